// Package archive keeps a remote copy of every transmitted document in an
// S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
package archive

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/freightbill/sap-invoice-export/internal/config"
)

var logger = logrus.WithField("component", "archive")

// putObjectAPI is the part of *s3.Client the archive needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads documents under <prefix>/<yyyy>/<mm>/<name>.
type S3 struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3 builds a client from cfg. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg), nil
}

func newS3(client putObjectAPI, cfg config.S3Config) *S3 {
	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// Key returns the object key for a document archived at t.
func (a *S3) Key(name string, t time.Time) string {
	return path.Join(a.prefix, t.Format("2006"), t.Format("01"), path.Base(name))
}

// Put uploads data and returns its object key.
func (a *S3) Put(ctx context.Context, name string, data []byte, t time.Time) (string, error) {
	key := a.Key(name, t)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/xml"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", a.bucket, key)
	}

	logger.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"key":    key,
		"bytes":  len(data),
	}).Info("Archived document")
	return key, nil
}
