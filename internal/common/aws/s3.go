package aws

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client stores documents and maps object keys to public URLs.
type S3Client struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// S3Options configures NewS3Client. Endpoint and UsePathStyle target
// S3-compatible stores such as MinIO.
type S3Options struct {
	Bucket        string
	PublicBaseURL string
	Endpoint      string
	UsePathStyle  bool
}

func NewS3Client(cfg awssdk.Config, opts S3Options) *S3Client {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, cfg.Region)
	}
	return &S3Client{client: client, bucket: opts.Bucket, baseURL: base}
}

// Upload stores data at key and returns the object's URL.
func (s *S3Client) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awssdk.String(s.bucket),
		Key:         awssdk.String(key),
		Body:        bytes.NewReader(data),
		ContentType: awssdk.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

// Delete removes the object a URL returned by Upload points at.
func (s *S3Client) Delete(ctx context.Context, objectURL string) error {
	key, err := s.KeyFromURL(objectURL)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(key),
	})
	return err
}

// KeyFromURL strips the bucket base URL from objectURL.
func (s *S3Client) KeyFromURL(objectURL string) (string, error) {
	if !strings.HasPrefix(objectURL, s.baseURL+"/") {
		return "", fmt.Errorf("url %q is not in bucket %s", objectURL, s.bucket)
	}
	key := strings.TrimPrefix(objectURL, s.baseURL+"/")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	if key == "" {
		return "", fmt.Errorf("url %q has no object key", objectURL)
	}
	return key, nil
}
