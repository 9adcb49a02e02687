// Package archive exports finalized turns to S3-compatible object storage.
// Objects are written once per turn and never rewritten; the database stays
// the source of truth.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cellis212/insurance-manager-sub000/internal/store"
)

var ErrNoBucket = errors.New("archive: bucket not configured")

// uploader is the part of manager.Uploader the archiver uses.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver writes one JSON object per finalized turn.
type S3Archiver struct {
	up     uploader
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Archiver builds an archiver from the default AWS credential chain
// (environment, shared config, instance role).
func NewS3Archiver(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*S3Archiver, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return newS3Archiver(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, prefix, logger), nil
}

func newS3Archiver(up uploader, bucket, prefix string, logger *slog.Logger) *S3Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archiver{up: up, bucket: bucket, prefix: prefix, logger: logger}
}

// Key is the object key of a turn.
func (a *S3Archiver) Key(turn int) string {
	return path.Join(a.prefix, fmt.Sprintf("turn-%05d.json", turn))
}

// Archive uploads c as JSON.
func (a *S3Archiver) Archive(ctx context.Context, c *store.TurnCommit) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("archive: encode turn %d: %w", c.Turn, err)
	}
	key := a.Key(c.Turn)
	out, err := a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"turn": fmt.Sprint(c.Turn)},
	})
	if err != nil {
		return fmt.Errorf("archive: upload turn %d: %w", c.Turn, err)
	}
	a.logger.Info("turn archived", "turn", c.Turn, "bucket", a.bucket, "key", key, "location", out.Location, "bytes", len(body))
	return nil
}
