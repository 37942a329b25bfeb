package storage

import (
	"context"
	"net/url"
	"time"

	closingapp "github.com/bpo/cashclosing/internal/application/closing"
)

var _ closingapp.AttachmentStorage = (*StubAttachmentStorage)(nil)

// StubAttachmentStorage issues fake URLs for local development when no
// object storage is configured. Every object is reported as present.
type StubAttachmentStorage struct {
	BaseURL string
}

// NewStubAttachmentStorage creates a StubAttachmentStorage
func NewStubAttachmentStorage() *StubAttachmentStorage {
	return &StubAttachmentStorage{BaseURL: "https://storage.example.com"}
}

// GenerateUploadURL returns a fake upload URL
func (s *StubAttachmentStorage) GenerateUploadURL(ctx context.Context, storageKey, contentType string, size int64, expiresIn time.Duration) (string, time.Time, error) {
	return s.url("upload", storageKey, expiresIn)
}

// GenerateDownloadURL returns a fake download URL
func (s *StubAttachmentStorage) GenerateDownloadURL(ctx context.Context, storageKey, filename string, expiresIn time.Duration) (string, time.Time, error) {
	return s.url("download", storageKey, expiresIn)
}

// ObjectExists always returns true
func (s *StubAttachmentStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errEmptyKey
	}
	return true, nil
}

func (s *StubAttachmentStorage) url(op, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errEmptyKey
	}
	expiresAt := time.Now().Add(expiresIn)
	q := url.Values{"expires": {expiresAt.UTC().Format(time.RFC3339)}}
	return s.BaseURL + "/" + op + "/" + storageKey + "?" + q.Encode(), expiresAt, nil
}
