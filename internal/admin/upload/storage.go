package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LocalStorage writes files into a directory
type LocalStorage struct {
	Dir string
}

// NewLocalStorage returns a storage rooted at dir
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{Dir: dir}
}

func (s *LocalStorage) Save(ctx context.Context, name string, content io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	f, err := os.Create(filepath.Join(s.Dir, filepath.Base(name)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// S3Config selects a bucket on AWS or any S3-compatible endpoint
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
	// KeyPrefix is prepended to every object key
	KeyPrefix string
}

// S3Client is the subset of *s3.Client the storage uses
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage puts files into an S3 bucket
type S3Storage struct {
	client    S3Client
	bucket    string
	keyPrefix string
}

// NewS3Storage builds an S3 client with static credentials
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(strings.TrimSuffix(cfg.Endpoint, "/"))
	}
	return NewS3StorageWithClient(s3.New(opts), cfg.Bucket, cfg.KeyPrefix), nil
}

// NewS3StorageWithClient wraps an existing client
func NewS3StorageWithClient(client S3Client, bucket, keyPrefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, keyPrefix: keyPrefix}
}

// Key returns the object key of name
func (s *S3Storage) Key(name string) string {
	if s.keyPrefix == "" {
		return name
	}
	return path.Join(s.keyPrefix, name)
}

func (s *S3Storage) Save(ctx context.Context, name string, content io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		Body:        content,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", s.Key(name), err)
	}
	return nil
}
