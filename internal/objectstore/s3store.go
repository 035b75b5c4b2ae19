package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// RetryAttempts is the default number of transient-failure retries,
// matching the documented default for backend-to-external-system calls.
const RetryAttempts = 3

// S3Store is the cloud-batch backend's Store implementation, backed by the
// classic AWS SDK for Go (v1) s3 client. A real S3 bucket enforces
// single-writer-per-key consistency; this store performs no client-side
// locking of its own, matching that contract.
type S3Store struct {
	Bucket   string
	client   s3iface.S3API
	uploader *s3manager.Uploader
}

// NewS3Store builds a store against the given bucket using the default AWS
// session (region/credentials resolved from the environment/shared config,
// exactly as the AWS CLI the batch backend's Python original shelled out
// to would resolve them).
func NewS3Store(bucket, region string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	client := s3.New(sess)
	return &S3Store{
		Bucket:   bucket,
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("put %s failed after %d attempts: %w", key, RetryAttempts, lastErr)
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			lastErr = err
			continue
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	}
	return nil, fmt.Errorf("get %s failed after %d attempts: %w", key, RetryAttempts, lastErr)
}

func (s *S3Store) Sync(ctx context.Context, localDir, prefix string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(prefix, "/") + "/" + filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		return err
	})
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list %s failed: %w", prefix, err)
	}
	return keys, nil
}
