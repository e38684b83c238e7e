package backup

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/kleinpanic/ICS-Satellite/internal/config"
)

func TestNoopUploader_UploadReturnsErrNotConfigured(t *testing.T) {
	u := &NoopUploader{}
	if _, err := u.Upload(context.Background(), "/some/path"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Upload() error = %v, want ErrNotConfigured", err)
	}
}

func TestNoopUploader_PresignedURLReturnsErrNotConfigured(t *testing.T) {
	u := &NoopUploader{}
	if _, _, err := u.PresignedURL(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("PresignedURL() error = %v, want ErrNotConfigured", err)
	}
}

func TestNewUploader_EmptyBucketReturnsNoop(t *testing.T) {
	u, err := NewUploader(config.BackupStorageConfig{})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if _, ok := u.(*NoopUploader); !ok {
		t.Errorf("expected *NoopUploader, got %T", u)
	}
}

func TestNewUploader_WithBucketReturnsS3Uploader(t *testing.T) {
	cfg := config.BackupStorageConfig{
		Endpoint:     "localhost:9000",
		Region:       "us-east-1",
		Bucket:       "satfeed-backups",
		ObjectPrefix: "prod",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		URLExpiry:    config.Duration(15 * time.Minute),
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	s3u, ok := u.(*S3Uploader)
	if !ok {
		t.Fatalf("expected *S3Uploader, got %T", u)
	}
	if s3u.bucket != "satfeed-backups" {
		t.Errorf("bucket = %q", s3u.bucket)
	}
	if s3u.prefix != "prod" {
		t.Errorf("prefix = %q", s3u.prefix)
	}
}

// mockS3Client records calls for S3Uploader tests.
type mockS3Client struct {
	putBucket string
	putKey    string
	putPath   string
	putErr    error

	presignKey    string
	presignExpiry time.Duration
	presignErr    error
}

func (m *mockS3Client) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	m.putBucket = bucket
	m.putKey = objectName
	m.putPath = filePath
	return m.putErr
}

func (m *mockS3Client) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	m.presignKey = objectName
	m.presignExpiry = expiry
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse("https://storage.example.com/" + bucket + "/" + objectName + "?sig=abc")
}

func TestS3Uploader_UploadUsesPrefixedKey(t *testing.T) {
	mock := &mockS3Client{}
	u := &S3Uploader{client: mock, bucket: "satfeed-backups", prefix: "prod"}

	key, err := u.Upload(context.Background(), "/tmp/requests.sqlite")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if key != "prod/requests/current.sqlite" {
		t.Errorf("key = %q", key)
	}
	if mock.putBucket != "satfeed-backups" || mock.putKey != key || mock.putPath != "/tmp/requests.sqlite" {
		t.Errorf("unexpected put call: %+v", mock)
	}
}

func TestS3Uploader_UploadWrapsError(t *testing.T) {
	mock := &mockS3Client{putErr: errors.New("connection refused")}
	u := &S3Uploader{client: mock, bucket: "satfeed-backups"}

	if _, err := u.Upload(context.Background(), "/tmp/requests.sqlite"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestS3Uploader_PresignedURL(t *testing.T) {
	mock := &mockS3Client{}
	u := &S3Uploader{client: mock, bucket: "satfeed-backups", prefix: "prod", urlExpiry: 15 * time.Minute}

	urlStr, expiry, err := u.PresignedURL(context.Background())
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}
	if urlStr == "" {
		t.Error("expected a URL")
	}
	if mock.presignKey != "prod/requests/current.sqlite" {
		t.Errorf("presign key = %q", mock.presignKey)
	}
	if mock.presignExpiry != 15*time.Minute {
		t.Errorf("presign expiry = %v", mock.presignExpiry)
	}
	if expiry.Before(time.Now()) {
		t.Error("expiry should be in the future")
	}
}
