package publishers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client defines the minimal subset of the S3 client used by s3Publisher.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Publisher uploads the report to an S3 bucket.
type s3Publisher struct {
	id     string
	bucket string
	prefix string
	dated  bool
	client s3Client
	log    Logger
}

func newS3Publisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.S3 == nil {
		return nil, fmt.Errorf("publisher %q missing s3 configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := *cfg.S3
	loadOpts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(c.Region)}
	if c.AccessKeyID != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})

	return &s3Publisher{
		id:     cfg.ID,
		bucket: c.Bucket,
		prefix: c.KeyPrefix,
		dated:  c.Dated,
		client: client,
		log:    ensureLogger(log),
	}, nil
}

func (s *s3Publisher) ID() string   { return s.id }
func (s *s3Publisher) Type() string { return TypeS3 }

// Publish puts the report object, replacing any previous one with the same key.
func (s *s3Publisher) Publish(ctx context.Context, d Delivery) error {
	key := d.objectKey(s.prefix, s.dated)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(d.Body),
		ContentLength: aws.Int64(int64(len(d.Body))),
		ContentType:   aws.String(d.ContentType),
		Metadata: map[string]string{
			"rows":        strconv.Itoa(d.Rows),
			"window-days": strconv.Itoa(d.WindowDays),
		},
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.ErrorObj("s3 publisher upload failed", "publisher_s3_error", map[string]any{
			"publisher_id": s.id,
			"bucket":       s.bucket,
			"key":          key,
			"error":        err.Error(),
		})
		return fmt.Errorf("put object s3://%s/%s: %w", s.bucket, key, err)
	}
	s.log.InfoObj("s3 publisher uploaded report", "publisher_s3_delivery", map[string]any{
		"publisher_id": s.id,
		"bucket":       s.bucket,
		"key":          key,
	})
	return nil
}
