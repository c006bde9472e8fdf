package cli

import (
	"fmt"

	"learning-progress-service/internal/auth"
	"learning-progress-service/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints an access token for local testing against the configured secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
		email  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			secret, err := jwtSecret(cfg)
			if err != nil {
				return err
			}
			id := uuid.New()
			if userID != "" {
				if id, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid user id: %w", err)
				}
			}
			switch role {
			case auth.RoleLearner, auth.RoleTutor, auth.RoleModerator:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.NewJWTService(secret, cfg.Auth.ExpireHours).Generate(id, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&role, "role", auth.RoleLearner, "learner, tutor or moderator")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}
