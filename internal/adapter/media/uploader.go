package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/config"
)

var ErrInvalidUpload = errors.New("invalid media upload")

// presigner is the part of *s3.PresignClient used here.
type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// Upload is a one-shot grant to PUT an attachment directly into the bucket.
// The client sends the returned Key as the message image/audio reference.
type Upload struct {
	Key       string      `json:"key"`
	URL       string      `json:"url"`
	Method    string      `json:"method"`
	Headers   http.Header `json:"headers,omitempty"`
	ExpiresAt int64       `json:"expires_at"`
}

type Uploader struct {
	presign  presigner
	bucket   string
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time
}

// NewUploader builds an S3 (or S3-compatible, path-style) presigning client.
// No request reaches the object store until the client uploads.
func NewUploader(ctx context.Context, cfg config.MediaConfig) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newUploader(s3.NewPresignClient(client), cfg), nil
}

func newUploader(p presigner, cfg config.MediaConfig) *Uploader {
	return &Uploader{
		presign:  p,
		bucket:   cfg.Bucket,
		ttl:      cfg.PresignTTL,
		maxBytes: cfg.MaxBytes,
		now:      time.Now,
	}
}

// PresignUpload grants userID a PUT of one image or audio object of at most size bytes.
func (u *Uploader) PresignUpload(ctx context.Context, userID, contentType string, size int64) (*Upload, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidUpload)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: content type %q: %w", ErrInvalidUpload, contentType, err)
	}
	if !strings.HasPrefix(mediaType, "image/") && !strings.HasPrefix(mediaType, "audio/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidUpload, mediaType)
	}
	if size <= 0 || (u.maxBytes > 0 && size > u.maxBytes) {
		return nil, fmt.Errorf("%w: size %d out of range (max %d)", ErrInvalidUpload, size, u.maxBytes)
	}

	key := objectKey(userID, mediaType)

	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(mediaType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(u.ttl))
	if err != nil {
		return nil, fmt.Errorf("media: presign put %s: %w", key, err)
	}

	return &Upload{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		Headers:   req.SignedHeader,
		ExpiresAt: u.now().Add(u.ttl).UnixMilli(),
	}, nil
}

// objectKey: messages/{user}/{uuid}{ext}
func objectKey(userID, mediaType string) string {
	ext := ""
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("messages/%s/%s%s", userID, uuid.NewString(), ext)
}
