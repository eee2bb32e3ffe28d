package transcript

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies finished transcript artifacts to S3 for retention.
type S3Uploader struct {
	bucket   string
	s3Client S3API
}

// NewS3Uploader creates an uploader. If bucket is empty, uploads are disabled.
func NewS3Uploader(s3Client S3API, bucket string) *S3Uploader {
	return &S3Uploader{bucket: bucket, s3Client: s3Client}
}

// Enabled returns true if retention is configured (bucket is set).
func (u *S3Uploader) Enabled() bool {
	return u != nil && u.bucket != "" && u.s3Client != nil
}

// Upload writes the artifact under a by-date prefix.
func (u *S3Uploader) Upload(ctx context.Context, name string, data []byte) error {
	if !u.Enabled() {
		return nil
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("transcripts/v1/by-date/%d/%02d/%02d/%s",
		now.Year(), now.Month(), now.Day(), name)

	_, err := u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("transcript: upload %s: %w", key, err)
	}
	return nil
}
