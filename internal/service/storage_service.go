package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/Jhoseto/factcheck-api/internal/config"
	"github.com/Jhoseto/factcheck-api/internal/crypto"
)

// StorageService archives raw model responses to S3-compatible object
// storage. Archives are encrypted before upload; they exist for dispute
// resolution (what did the user actually get charged for), not for serving.
type StorageService struct {
	client    *s3.Client
	bucket    string
	enabled   bool
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{enabled: false, logger: logger}, nil
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive encryptor: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible storage (Tigris, MinIO, etc.)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:    client,
		bucket:    cfg.StorageBucket,
		enabled:   true,
		encryptor: encryptor,
		logger:    logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// archiveEnvelope is the stored document.
type archiveEnvelope struct {
	AnalysisID string    `json:"analysis_id"`
	UserID     string    `json:"user_id"`
	ModelID    string    `json:"model_id"`
	Ciphertext string    `json:"ciphertext"` // AES-256-GCM, base64
	CreatedAt  time.Time `json:"created_at"`
}

// ArchiveResponse stores the raw model response for an analysis and returns
// the object key. A disabled service returns an empty key and no error;
// archiving is best-effort and never blocks billing.
func (s *StorageService) ArchiveResponse(ctx context.Context, userID, analysisID, modelID, raw string) (string, error) {
	if !s.enabled {
		return "", nil
	}

	ciphertext, err := s.encryptor.Encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt archive: %w", err)
	}

	now := time.Now().UTC()
	envelope := archiveEnvelope{
		AnalysisID: analysisID,
		UserID:     userID,
		ModelID:    modelID,
		Ciphertext: ciphertext,
		CreatedAt:  now,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}

	key := fmt.Sprintf("responses/%s/%s/%s.json", now.Format("2006/01/02"), userID, analysisID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	s.logger.Debug("response archived", "key", key, "bytes", len(body))
	return key, nil
}
