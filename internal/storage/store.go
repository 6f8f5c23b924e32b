// Package storage uploads message attachments to an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/config"
	"messenger-service/internal/models"
)

// ErrDisabled is returned by Put when no bucket is configured.
var ErrDisabled = errors.New("attachment storage disabled")

// Attachment kinds as stored on models.Attachment.Type.
const (
	KindImage = "image"
	KindVideo = "video"
	KindFile  = "file"
)

// Store puts objects into one bucket.
type Store struct {
	uploader  s3manageriface.UploaderAPI
	bucket    string
	publicURL string
}

// New connects to S3. An empty bucket yields a disabled store.
func New(cfg config.S3Config) (*Store, error) {
	if cfg.Bucket == "" {
		log.Warn().Msg("s3 bucket not configured, uploads disabled")
		return &Store{}, nil
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}

	log.Info().Str("bucket", cfg.Bucket).Msg("s3 storage configured")
	return NewWithUploader(s3manager.NewUploader(sess), cfg.Bucket, cfg.PublicURL), nil
}

func NewWithUploader(uploader s3manageriface.UploaderAPI, bucket, publicURL string) *Store {
	return &Store{uploader: uploader, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// Enabled reports whether uploads can succeed.
func (s *Store) Enabled() bool {
	return s != nil && s.uploader != nil && s.bucket != ""
}

// Put uploads body under folder and describes the result as an attachment.
func (s *Store) Put(ctx context.Context, body io.Reader, name, mimeType, folder string, size int64) (models.Attachment, error) {
	if !s.Enabled() {
		return models.Attachment{}, ErrDisabled
	}

	key := path.Join(folder, uuid.NewString()+extension(name, mimeType))
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return models.Attachment{}, err
	}

	url := out.Location
	if s.publicURL != "" {
		url = s.publicURL + "/" + key
	}
	return models.Attachment{
		URL:  url,
		Type: KindOf(mimeType),
		Name: name,
		Size: size,
	}, nil
}

// KindOf classifies a MIME type.
func KindOf(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	default:
		return KindFile
	}
}

func extension(name, mimeType string) string {
	if ext := path.Ext(name); ext != "" {
		return strings.ToLower(ext)
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
