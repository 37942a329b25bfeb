package closing

import (
	"fmt"
	"strings"
	"time"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/google/uuid"
)

// AuthorRole tags who wrote a thread message
type AuthorRole string

const (
	AuthorRoleClient   AuthorRole = "client"
	AuthorRoleOperator AuthorRole = "operator"
	AuthorRoleSystem   AuthorRole = "system"
)

// IsValid checks if the author role is known
func (r AuthorRole) IsValid() bool {
	return r == AuthorRoleClient || r == AuthorRoleOperator || r == AuthorRoleSystem
}

// String returns the string representation of AuthorRole
func (r AuthorRole) String() string {
	return string(r)
}

// SystemAuthorName is shown for messages injected by the workflow
const SystemAuthorName = "System"

// ThreadMessage is one immutable entry of a closing's collaboration thread
type ThreadMessage struct {
	ID              uuid.UUID
	ClosingRecordID uuid.UUID
	AuthorID        *uuid.UUID
	AuthorName      string
	AuthorRole      AuthorRole
	Text            string
	Attachments     []Attachment
	CreatedAt       time.Time
}

// NewThreadMessage builds a message authored by the actor. The timestamp is
// assigned here, on the server, never taken from the client.
func NewThreadMessage(record *ClosingRecord, actor Actor, authorName, text string, attachments []Attachment) (*ThreadMessage, error) {
	if record == nil {
		return nil, shared.ErrNotFound
	}
	if !actor.CanView(record) {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Closing record is not visible to the current user")
	}
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return nil, shared.NewDomainError(CodeMissingRequiredField, "message text is required when no attachment is sent")
	}
	name := strings.TrimSpace(authorName)
	if name == "" {
		name = actor.Name
	}
	if name == "" {
		return nil, shared.NewDomainError(CodeMissingRequiredField, "author name is required")
	}

	atts := make([]Attachment, len(attachments))
	for i, a := range attachments {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		atts[i] = a
	}

	authorID := actor.UserID
	return &ThreadMessage{
		ID:              uuid.New(),
		ClosingRecordID: record.ID,
		AuthorID:        &authorID,
		AuthorName:      name,
		AuthorRole:      actor.Role.AuthorRole(),
		Text:            text,
		Attachments:     atts,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// newSystemMessage is injected by the workflow; it is not attributable to a user
func newSystemMessage(recordID uuid.UUID, text string, at time.Time) ThreadMessage {
	return ThreadMessage{
		ID:              uuid.New(),
		ClosingRecordID: recordID,
		AuthorName:      SystemAuthorName,
		AuthorRole:      AuthorRoleSystem,
		Text:            text,
		Attachments:     []Attachment{},
		CreatedAt:       at,
	}
}

// ReturnMessageText is the system message posted when a closing is returned
func ReturnMessageText(reason string) string {
	return fmt.Sprintf("Closing returned for correction: %s", reason)
}
