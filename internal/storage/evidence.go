package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FolderEvidence is the S3 prefix for challenge evidence objects.
const FolderEvidence = "evidence"

// ErrUnsupportedMediaType is returned for content types other than images and videos.
var ErrUnsupportedMediaType = errors.New("unsupported evidence media type")

// AllowedEvidenceTypes maps accepted MIME types to the stored file extension.
var AllowedEvidenceTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignExpiry   time.Duration
}

// UploadURL is a presigned direct upload target for one evidence object.
type UploadURL struct {
	URL       string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	MediaURL  string    `json:"mediaUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EvidenceMedia issues presigned PUT URLs so clients upload evidence straight to S3.
// The resulting media URL is what clients then attach to a submission.
type EvidenceMedia struct {
	presign *s3.PresignClient
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewEvidenceMedia uses static credentials when configured and the default chain otherwise.
func NewEvidenceMedia(ctx context.Context, cfg Config, logger *zap.Logger) (*EvidenceMedia, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("evidence bucket not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("evidence storage using default AWS credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	return &EvidenceMedia{
		presign: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// EvidenceKey returns evidence/{user_id}/{object_id}{ext}.
func EvidenceKey(userID, objectID uuid.UUID, ext string) string {
	return path.Join(FolderEvidence, userID.String(), objectID.String()+ext)
}

// PresignUpload returns a PUT URL for a new evidence object owned by userID.
func (m *EvidenceMedia) PresignUpload(ctx context.Context, userID uuid.UUID, contentType string) (UploadURL, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := AllowedEvidenceTypes[contentType]
	if !ok {
		return UploadURL{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	key := EvidenceKey(userID, uuid.New(), ext)
	req, err := m.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = m.cfg.PresignExpiry
	})
	if err != nil {
		return UploadURL{}, fmt.Errorf("presign put: %w", err)
	}
	m.logger.Debug("evidence upload presigned", zap.String("key", key), zap.String("user_id", userID.String()))
	return UploadURL{
		URL:       req.URL,
		Key:       key,
		MediaURL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.cfg.Bucket, m.cfg.Region, key),
		ExpiresAt: m.now().Add(m.cfg.PresignExpiry),
	}, nil
}
