// Package s3 implements the object-storage upload pipeline variant.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

// Config carries the bucket coordinates and static credentials. Endpoint
// is optional and supports S3-compatible stores.
type Config struct {
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// Uploader stores photos as bucket objects and returns their public URL.
type Uploader struct {
	client  *awss3.Client
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewUploader builds the S3 client from static credentials.
func NewUploader(ctx context.Context, cfg Config, logger *slog.Logger, metrics *observability.Metrics) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithBaseEndpoint(cfg.Endpoint),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Uploader{
		client:  awss3.NewFromConfig(awsCfg),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Upload puts the photo under a unique key and returns the public URL as a
// remote asset reference.
func (u *Uploader) Upload(ctx context.Context, photo []byte, filenameHint string) (domain.AssetRef, error) {
	if len(photo) == 0 {
		return domain.AssetRef{}, fmt.Errorf("%w: empty photo", domain.ErrUploadFailed)
	}

	key := objectKey(filenameHint)

	start := time.Now()
	_, err := u.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(photo),
		ContentType: aws.String("image/jpeg"),
	})
	u.metrics.UploadDuration.WithLabelValues("s3").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: put object: %v", domain.ErrUploadFailed, err)
	}

	u.logger.Debug("photo uploaded", "bucket", u.cfg.Bucket, "key", key, "bytes", len(photo))
	return domain.RemoteAsset(u.publicURL(key)), nil
}

// objectKey namespaces uploads by date and dedupes with a uuid, keeping
// the original extension when the hint has one.
func objectKey(filenameHint string) string {
	ext := path.Ext(filenameHint)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("reports/%s/%s%s", time.Now().UTC().Format("2006-01-02"), uuid.NewString(), ext)
}

func (u *Uploader) publicURL(key string) string {
	if u.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(u.cfg.PublicBaseURL, "/") + "/" + key
	}
	if u.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(u.cfg.Endpoint, "/"), u.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}
