package closing

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/google/uuid"
)

// Attachment error codes
const (
	CodeDisallowedContentType = "DISALLOWED_CONTENT_TYPE"
	CodeAttachmentTooLarge    = "ATTACHMENT_TOO_LARGE"
	CodeInvalidStorageKey     = "INVALID_STORAGE_KEY"
	CodeAttachmentNotUploaded = "ATTACHMENT_NOT_UPLOADED"
	CodeAttachmentNotFound    = "ATTACHMENT_NOT_FOUND"
	CodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
)

// DefaultAllowedMimeTypes are the receipt formats accepted when none are configured.
// SVG is excluded because it can carry scripts.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
	"application/pdf",
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// AttachmentStorage issues presigned URLs for attachment bytes, which never
// pass through this service
type AttachmentStorage interface {
	// GenerateUploadURL returns a URL the client PUTs the file to
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, size int64, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL returns a URL that downloads the file under filename
	GenerateDownloadURL(ctx context.Context, storageKey, filename string, expiresIn time.Duration) (string, time.Time, error)

	// ObjectExists checks if an object was uploaded
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// attachmentKeyPrefix scopes every object to its company
func attachmentKeyPrefix(companyID uuid.UUID) string {
	return fmt.Sprintf("closings/%s/", companyID)
}

// attachmentKey builds closings/{companyID}/{attachmentID}/{filename}
func attachmentKey(companyID, attachmentID uuid.UUID, filename string) string {
	return attachmentKeyPrefix(companyID) + attachmentID.String() + "/" + sanitizeFilename(filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func (s *ClosingService) isAllowedMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return s.allowedMimeTypes[mimeType]
}

func (s *ClosingService) checkFile(mimeType string, size int64) error {
	if !s.isAllowedMimeType(mimeType) {
		return shared.NewDomainError(CodeDisallowedContentType,
			fmt.Sprintf("Content type '%s' is not allowed for attachments", mimeType))
	}
	if s.config.MaxAttachmentSize > 0 && size > s.config.MaxAttachmentSize {
		return shared.NewDomainError(CodeAttachmentTooLarge,
			fmt.Sprintf("Attachment exceeds the maximum size of %d bytes", s.config.MaxAttachmentSize))
	}
	return nil
}

// resolveAttachments turns request metadata into domain attachments. Storage
// keys must belong to the actor's company and, when verification is on, the
// object must already be uploaded.
func (s *ClosingService) resolveAttachments(ctx context.Context, actor closing.Actor, reqs []AttachmentRequest) ([]closing.Attachment, error) {
	out := make([]closing.Attachment, 0, len(reqs))
	prefix := attachmentKeyPrefix(actor.CompanyID)

	for _, req := range reqs {
		if err := s.checkFile(req.MimeType, req.ByteSize); err != nil {
			return nil, err
		}
		key := strings.TrimSpace(req.StorageKey)
		if key != "" && !strings.HasPrefix(key, prefix) {
			return nil, shared.NewDomainError(CodeInvalidStorageKey, "Attachment does not belong to the current company")
		}
		if key != "" && s.config.VerifyUploads && s.storage != nil {
			exists, err := s.storage.ObjectExists(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("failed to verify attachment upload: %w", err)
			}
			if !exists {
				return nil, shared.NewDomainError(CodeAttachmentNotUploaded,
					fmt.Sprintf("Attachment '%s' was not uploaded", req.Filename))
			}
		}

		id := uuid.New()
		if req.ID != nil && *req.ID != uuid.Nil {
			id = *req.ID
		}
		out = append(out, closing.Attachment{
			ID:         id,
			Filename:   strings.TrimSpace(req.Filename),
			ByteSize:   req.ByteSize,
			MimeType:   req.MimeType,
			StorageKey: key,
		})
	}
	return out, nil
}

// CreateAttachmentUploadURL reserves an attachment ID and storage key and
// returns a presigned URL to upload the file to
func (s *ClosingService) CreateAttachmentUploadURL(ctx context.Context, actor closing.Actor, req UploadURLRequest) (*UploadURLResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, shared.NewDomainError(CodeStorageUnavailable, "Attachment storage is not configured")
	}
	if err := s.checkFile(req.MimeType, req.ByteSize); err != nil {
		return nil, err
	}

	attachmentID := uuid.New()
	key := attachmentKey(actor.CompanyID, attachmentID, req.Filename)
	url, expiresAt, err := s.storage.GenerateUploadURL(ctx, key, req.MimeType, req.ByteSize, s.config.UploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &UploadURLResponse{
		Attachment: AttachmentResponse{
			ID:         attachmentID,
			Filename:   req.Filename,
			ByteSize:   req.ByteSize,
			MimeType:   req.MimeType,
			StorageKey: key,
		},
		UploadURL: url,
		ExpiresAt: expiresAt,
	}, nil
}

// GetAttachmentDownloadURL returns a presigned URL for an attachment of the
// closing or of any message in its thread
func (s *ClosingService) GetAttachmentDownloadURL(ctx context.Context, actor closing.Actor, closingID, attachmentID uuid.UUID) (*DownloadURLResponse, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError(CodeStorageUnavailable, "Attachment storage is not configured")
	}
	record, err := s.loadVisible(ctx, actor, closingID)
	if err != nil {
		return nil, err
	}

	att, ok := record.FindAttachment(attachmentID)
	if !ok {
		messages, err := s.threads.FindByClosingRecord(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		att, ok = findMessageAttachment(messages, attachmentID)
	}
	if !ok || att.StorageKey == "" {
		return nil, shared.NewDomainError(CodeAttachmentNotFound, "Attachment not found")
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, att.StorageKey, att.Filename, s.config.DownloadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download URL: %w", err)
	}
	return &DownloadURLResponse{
		Attachment:  ToAttachmentResponse(att),
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
}

func findMessageAttachment(messages []closing.ThreadMessage, id uuid.UUID) (closing.Attachment, bool) {
	for _, m := range messages {
		for _, a := range m.Attachments {
			if a.ID == id {
				return a, true
			}
		}
	}
	return closing.Attachment{}, false
}
