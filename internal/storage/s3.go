package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store keeps listing images in Amazon S3 (or compatible APIs).
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	publicURL string
}

// NewS3Store serves objects of bucket from publicURL; when publicURL is
// empty it is derived from the bucket, region and endpoint.
func NewS3Store(client *s3.Client, bucket, publicURL string) *S3Store {
	if publicURL == "" {
		opts := client.Options()
		publicURL = DefaultS3PublicURL(bucket, opts.Region, aws.ToString(opts.BaseEndpoint))
	}
	return &S3Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    bucket,
		publicURL: publicURL,
	}
}

// DefaultS3PublicURL returns the virtual-hosted URL for AWS buckets, or the
// path-style URL when a custom endpoint is configured.
func DefaultS3PublicURL(bucket, region, endpoint string) string {
	if endpoint != "" {
		return strings.TrimSuffix(endpoint, "/") + "/" + bucket
	}
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

func (s *S3Store) Upload(ctx context.Context, file File, folder string) (Image, error) {
	if s.bucket == "" {
		return Image{}, fmt.Errorf("storage bucket is required")
	}

	key := newObjectKey(folder)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(file.Data),
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}
	// read access is granted by bucket policy; object ACLs are often disabled
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return Image{}, fmt.Errorf("upload %s: %w", file.Name, err)
	}

	return Image{ID: key, URL: objectURL(s.publicURL, key)}, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	if s.bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

var _ ImageStore = (*S3Store)(nil)
