package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"hearth-backend/internal/config"
	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	uploadURLExpiry    = 5 * time.Minute
	viewURLExpiry      = time.Hour
	maxCaptionRunes    = 200
	defaultMemoryLimit = 50
	maxMemoryLimit     = 100
)

var memoryExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/heic": "heic",
}

// Presigner signs direct S3 requests
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Presigner builds a presign client from the AWS section. Static keys and
// a custom endpoint are optional; without them the default chain is used.
func NewS3Presigner(ctx context.Context, cfg config.AWSConfig) (*s3.PresignClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	ContentType string `json:"content_type"`
	Caption     string `json:"caption"`
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	MemoryID  string `json:"memory_id"`
	ExpiresIn int    `json:"expires_in"`
}

// MemoryView is a memory with a short-lived download URL
type MemoryView struct {
	*models.Memory
	URL string `json:"url"`
}

// MemoryService handles the couple's shared photo memories
type MemoryService struct {
	memories  MemoryRepository
	couples   coupleWriter
	presigner Presigner
	bucket    string
	now       func() time.Time
}

// NewMemoryService creates a new memory service
func NewMemoryService(
	memories MemoryRepository,
	couples CoupleRepository,
	store *couplestore.Store,
	presigner Presigner,
	bucket string,
) *MemoryService {
	return &MemoryService{
		memories:  memories,
		couples:   coupleWriter{couples: couples, store: store},
		presigner: presigner,
		bucket:    bucket,
		now:       time.Now,
	}
}

// PresignUpload records a memory and returns a URL the client uploads the photo to
func (s *MemoryService) PresignUpload(ctx context.Context, userID string, req UploadRequest) (*UploadResponse, error) {
	ext, ok := memoryExtensions[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, validationError("unsupported content type %q", req.ContentType)
	}
	caption := strings.TrimSpace(req.Caption)
	if utf8.RuneCountInString(caption) > maxCaptionRunes {
		return nil, validationError("caption exceeds %d characters", maxCaptionRunes)
	}

	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.IsPaired() {
		return nil, ErrNotPaired
	}

	memoryID := uuid.New().String()
	// {couple_id}/{memory_id}.{ext}
	key := fmt.Sprintf("%s/%s.%s", c.ID, memoryID, ext)

	signed, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(strings.ToLower(req.ContentType)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		return nil, networkError("presign upload", err)
	}

	m := &models.Memory{
		ID:        memoryID,
		CoupleID:  c.ID,
		UserID:    userID,
		S3Key:     key,
		Caption:   caption,
		CreatedAt: s.now(),
	}
	if err := s.memories.Create(ctx, m); err != nil {
		return nil, networkError("create memory", err)
	}

	log.Info().Str("user_id", userID).Str("memory_id", memoryID).Msg("Memory upload presigned")
	return &UploadResponse{
		UploadURL: signed.URL,
		MemoryID:  memoryID,
		ExpiresIn: int(uploadURLExpiry / time.Second),
	}, nil
}

// List returns a page of the couple's memories, newest first
func (s *MemoryService) List(ctx context.Context, userID string, limit, offset int) ([]MemoryView, int, error) {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	if limit > maxMemoryLimit {
		limit = maxMemoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	memories, total, err := s.memories.ListByCouple(ctx, c.ID, limit, offset)
	if err != nil {
		return nil, 0, networkError("list memories", err)
	}

	views := make([]MemoryView, 0, len(memories))
	for _, m := range memories {
		signed, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(m.S3Key),
		}, func(opts *s3.PresignOptions) {
			opts.Expires = viewURLExpiry
		})
		if err != nil {
			return nil, 0, networkError("presign download", err)
		}
		views = append(views, MemoryView{Memory: m, URL: signed.URL})
	}
	return views, total, nil
}
