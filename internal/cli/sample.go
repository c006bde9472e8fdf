package cli

import (
	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

// Fixed IDs so local clients can hard-code them when running without Postgres.
var (
	sampleQuizID      = uuid.MustParse("8f14e45f-ceea-4e67-a1a4-000000000001")
	sampleChallengeID = uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000c1")
)

func sampleQuizzes() []domain.Quiz {
	q1 := uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000a1")
	q2 := uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000b1")
	return []domain.Quiz{
		{
			ID:               sampleQuizID,
			Title:            "Recycling basics",
			Description:      "Check what you know about sorting waste.",
			TimeLimitMinutes: 5,
			PassPercentage:   70,
			PointsReward:     20,
			Questions: []domain.Question{
				{
					ID:          q1,
					QuizID:      sampleQuizID,
					Prompt:      "Which bin do glass bottles go in?",
					Type:        domain.QuestionTypeMultipleChoice,
					Explanation: "Glass is collected separately from plastic and paper.",
					Points:      10,
					SortOrder:   1,
					Options: []domain.Option{
						{ID: uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000a2"), Text: "Paper", SortOrder: 1},
						{ID: uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000a3"), Text: "Glass", Correct: true, SortOrder: 2},
						{ID: uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000a4"), Text: "General waste", SortOrder: 3},
					},
				},
				{
					ID:        q2,
					QuizID:    sampleQuizID,
					Prompt:    "What do we call turning food scraps into soil?",
					Type:      domain.QuestionTypeText,
					Points:    10,
					SortOrder: 2,
					Options: []domain.Option{
						{ID: uuid.MustParse("8f14e45f-ceea-4e67-a1a4-0000000000b2"), Text: "Composting", Correct: true, SortOrder: 1},
					},
				},
			},
		},
	}
}

func sampleChallenges() []domain.Challenge {
	capacity := 100
	return []domain.Challenge{
		{
			ID:              sampleChallengeID,
			Title:           "Plastic-free week",
			Description:     "Avoid single-use plastic for seven days and photograph your alternatives.",
			Category:        "environment",
			Difficulty:      "medium",
			PointsReward:    50,
			ValidationType:  "manual",
			MaxParticipants: &capacity,
		},
	}
}
