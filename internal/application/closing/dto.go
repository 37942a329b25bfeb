package closing

import (
	"time"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ============================================================================
// Request DTOs
// ============================================================================

// SalesRequest holds the raw text typed for each payment method. Blank means zero.
type SalesRequest struct {
	Boleto       string `json:"boleto"`
	Cash         string `json:"cash"`
	DebitCard    string `json:"debit_card"`
	CreditCard   string `json:"credit_card"`
	Pix          string `json:"pix"`
	WireTransfer string `json:"wire_transfer"`
	Other        string `json:"other"`
}

// AttachmentRequest is the metadata of a file already uploaded through a presigned URL
type AttachmentRequest struct {
	ID         *uuid.UUID `json:"id"`
	Filename   string     `json:"filename" binding:"required,min=1,max=255"`
	ByteSize   int64      `json:"byte_size" binding:"gte=0"`
	MimeType   string     `json:"mime_type" binding:"required,max=100"`
	StorageKey string     `json:"storage_key" binding:"max=512"`
}

// DraftRequest is the closing form as typed by the client. Money fields carry
// user text such as "1.234,56" and are parsed on the server.
type DraftRequest struct {
	Title                  string              `json:"title" binding:"max=200"`
	Date                   string              `json:"date" example:"2024-03-01"`
	ResponsibleName        string              `json:"responsible_name" binding:"max=200"`
	OpeningBalance         string              `json:"opening_balance" example:"1.000,00"`
	Sales                  SalesRequest        `json:"sales"`
	SupplyAmount           string              `json:"supply_amount"`
	WithdrawalAmount       string              `json:"withdrawal_amount"`
	ReportedClosingBalance string              `json:"reported_closing_balance"`
	Notes                  string              `json:"notes" binding:"max=5000"`
	Attachments            []AttachmentRequest `json:"attachments" binding:"omitempty,dive"`
}

// UpdateDraftRequest replaces the editable values of a DRAFT or RETURNED closing
type UpdateDraftRequest struct {
	DraftRequest
	Version int `json:"version" binding:"gte=0"`
}

// SubmitClosingRequest submits either an existing draft (ClosingID set) or a
// fresh one carried in Draft. When both are set the draft values replace the
// stored ones before submission.
type SubmitClosingRequest struct {
	ClosingID *uuid.UUID    `json:"-"`
	Draft     *DraftRequest `json:"draft"`
	Version   int           `json:"version" binding:"gte=0"`
}

// TransitionRequest applies a workflow action to a closing
type TransitionRequest struct {
	Action           string `json:"action" binding:"required,oneof=submit resubmit return complete"`
	Reason           string `json:"reason" binding:"max=1000"`
	FinalizationKind string `json:"finalization_kind" binding:"omitempty,max=50"`
	Version          int    `json:"version" binding:"gte=0"`
}

// AppendMessageRequest posts a message to the closing thread
type AppendMessageRequest struct {
	AuthorName  string              `json:"author_name" binding:"max=200"`
	Text        string              `json:"text" binding:"max=5000"`
	Attachments []AttachmentRequest `json:"attachments" binding:"omitempty,dive"`
}

// ClosingListFilter represents filter options for the closing list
type ClosingListFilter struct {
	Search   string   `form:"search"`
	Statuses []string `form:"status"`
	FromDate string   `form:"from_date"`
	ToDate   string   `form:"to_date"`
	Mine     bool     `form:"mine"`
	Page     int      `form:"page" binding:"omitempty,min=1"`
	PageSize int      `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string   `form:"order_by"`
	OrderDir string   `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// UploadURLRequest asks for a presigned URL to upload one attachment
type UploadURLRequest struct {
	Filename string `json:"filename" binding:"required,min=1,max=255"`
	MimeType string `json:"mime_type" binding:"required,max=100"`
	ByteSize int64  `json:"byte_size" binding:"required,gt=0"`
}

// ============================================================================
// Response DTOs
// ============================================================================

// SalesResponse is the sales breakdown with its derived total
type SalesResponse struct {
	Boleto       valueobject.Money `json:"boleto"`
	Cash         valueobject.Money `json:"cash"`
	DebitCard    valueobject.Money `json:"debit_card"`
	CreditCard   valueobject.Money `json:"credit_card"`
	Pix          valueobject.Money `json:"pix"`
	WireTransfer valueobject.Money `json:"wire_transfer"`
	Other        valueobject.Money `json:"other"`
	Total        valueobject.Money `json:"total"`
}

// AttachmentResponse is attachment metadata
type AttachmentResponse struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	ByteSize   int64     `json:"byte_size"`
	MimeType   string    `json:"mime_type"`
	StorageKey string    `json:"storage_key,omitempty"`
}

// ClosingResponse represents a closing record in API responses
type ClosingResponse struct {
	ID                     uuid.UUID                    `json:"id"`
	CompanyID              uuid.UUID                    `json:"company_id"`
	Date                   string                       `json:"date"`
	Title                  string                       `json:"title"`
	ResponsibleName        string                       `json:"responsible_name"`
	Currency               string                       `json:"currency"`
	OpeningBalance         *valueobject.Money           `json:"opening_balance"`
	Sales                  SalesResponse                `json:"sales"`
	SupplyAmount           valueobject.Money            `json:"supply_amount"`
	WithdrawalAmount       valueobject.Money            `json:"withdrawal_amount"`
	ReportedClosingBalance *valueobject.Money           `json:"reported_closing_balance"`
	ExpectedClosingBalance valueobject.Money            `json:"expected_closing_balance"`
	Divergence             closing.DivergenceDisclosure `json:"divergence"`
	Notes                  string                       `json:"notes"`
	Attachments            []AttachmentResponse         `json:"attachments"`
	Status                 string                       `json:"status"`
	FinalizationKind       *string                      `json:"finalization_kind,omitempty"`
	ReturnReason           string                       `json:"return_reason,omitempty"`
	CreatedBy              *uuid.UUID                   `json:"created_by,omitempty"`
	CreatedAt              time.Time                    `json:"created_at"`
	UpdatedAt              time.Time                    `json:"updated_at"`
	SubmittedAt            *time.Time                   `json:"submitted_at,omitempty"`
	SubmittedBy            *uuid.UUID                   `json:"submitted_by,omitempty"`
	ReturnedAt             *time.Time                   `json:"returned_at,omitempty"`
	ReturnedBy             *uuid.UUID                   `json:"returned_by,omitempty"`
	CompletedAt            *time.Time                   `json:"completed_at,omitempty"`
	CompletedBy            *uuid.UUID                   `json:"completed_by,omitempty"`
	Version                int                          `json:"version"`
}

// ClosingListItem is the compact row used by list and kanban views
type ClosingListItem struct {
	ID                     uuid.UUID               `json:"id"`
	Date                   string                  `json:"date"`
	Title                  string                  `json:"title"`
	ResponsibleName        string                  `json:"responsible_name"`
	Status                 string                  `json:"status"`
	ReportedClosingBalance valueobject.Money       `json:"reported_closing_balance"`
	ExpectedClosingBalance valueobject.Money       `json:"expected_closing_balance"`
	Difference             valueobject.Money       `json:"difference"`
	DivergenceLevel        closing.DivergenceLevel `json:"divergence_level"`
	AttachmentCount        int                     `json:"attachment_count"`
	UpdatedAt              time.Time               `json:"updated_at"`
	Version                int                     `json:"version"`
}

// SubmissionResult is returned by a successful submission. The divergence
// disclosure is informational; Message is set only when it is triggered.
type SubmissionResult struct {
	Closing    ClosingResponse              `json:"closing"`
	Disclosure closing.DivergenceDisclosure `json:"disclosure"`
	Message    string                       `json:"message,omitempty"`
}

// PreviewResponse is the live calculation for a form that is still being filled in
type PreviewResponse struct {
	Totals  closing.Totals       `json:"totals"`
	Display map[string]string    `json:"display"`
	Issues  []closing.FieldError `json:"issues"`
	Valid   bool                 `json:"valid"`
}

// ThreadMessageResponse represents one thread entry
type ThreadMessageResponse struct {
	ID              uuid.UUID            `json:"id"`
	ClosingRecordID uuid.UUID            `json:"closing_record_id"`
	AuthorID        *uuid.UUID           `json:"author_id,omitempty"`
	AuthorName      string               `json:"author_name"`
	AuthorRole      string               `json:"author_role"`
	Text            string               `json:"text"`
	Attachments     []AttachmentResponse `json:"attachments"`
	CreatedAt       time.Time            `json:"created_at"`
}

// CalendarResponse lists every projected day of the range in date order
type CalendarResponse struct {
	From string                `json:"from"`
	To   string                `json:"to"`
	Days []closing.CalendarDay `json:"days"`
}

// UploadURLResponse carries the presigned upload URL and the attachment
// metadata to send back with the draft once the upload finished
type UploadURLResponse struct {
	Attachment AttachmentResponse `json:"attachment"`
	UploadURL  string             `json:"upload_url"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// DownloadURLResponse carries a presigned download URL
type DownloadURLResponse struct {
	Attachment  AttachmentResponse `json:"attachment"`
	DownloadURL string             `json:"download_url"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// ============================================================================
// Conversion functions
// ============================================================================

func (r DraftRequest) toInput(attachments []closing.Attachment) closing.DraftInput {
	return closing.DraftInput{
		Title:                  r.Title,
		Date:                   r.Date,
		ResponsibleName:        r.ResponsibleName,
		OpeningBalance:         r.OpeningBalance,
		SupplyAmount:           r.SupplyAmount,
		WithdrawalAmount:       r.WithdrawalAmount,
		ReportedClosingBalance: r.ReportedClosingBalance,
		Sales: map[closing.PaymentMethod]string{
			closing.PaymentMethodBoleto:       r.Sales.Boleto,
			closing.PaymentMethodCash:         r.Sales.Cash,
			closing.PaymentMethodDebitCard:    r.Sales.DebitCard,
			closing.PaymentMethodCreditCard:   r.Sales.CreditCard,
			closing.PaymentMethodPix:          r.Sales.Pix,
			closing.PaymentMethodWireTransfer: r.Sales.WireTransfer,
			closing.PaymentMethodOther:        r.Sales.Other,
		},
		Notes:       r.Notes,
		Attachments: attachments,
	}
}

// ToAttachmentResponse converts a domain attachment to its response DTO
func ToAttachmentResponse(a closing.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		Filename:   a.Filename,
		ByteSize:   a.ByteSize,
		MimeType:   a.MimeType,
		StorageKey: a.StorageKey,
	}
}

func toAttachmentResponses(atts []closing.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, len(atts))
	for i, a := range atts {
		out[i] = ToAttachmentResponse(a)
	}
	return out
}

// ToClosingResponse converts a domain ClosingRecord to a response DTO
func ToClosingResponse(r *closing.ClosingRecord, policy closing.DivergencePolicy) ClosingResponse {
	disclosure := r.Disclosure(policy)
	resp := ClosingResponse{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		Date:            r.DateString(),
		Title:           r.Title,
		ResponsibleName: r.ResponsibleName,
		Currency:        string(r.Currency),
		OpeningBalance:  typedBalance(r.OpeningBalance, r.OpeningBalanceBlank),
		Sales: SalesResponse{
			Boleto:       r.Sales.Boleto,
			Cash:         r.Sales.Cash,
			DebitCard:    r.Sales.DebitCard,
			CreditCard:   r.Sales.CreditCard,
			Pix:          r.Sales.Pix,
			WireTransfer: r.Sales.WireTransfer,
			Other:        r.Sales.Other,
			Total:        r.SalesTotal(),
		},
		SupplyAmount:           r.SupplyAmount,
		WithdrawalAmount:       r.WithdrawalAmount,
		ReportedClosingBalance: typedBalance(r.ReportedClosingBalance, r.ReportedBalanceBlank),
		ExpectedClosingBalance: disclosure.Expected,
		Divergence:             disclosure,
		Notes:                  r.Notes,
		Attachments:            toAttachmentResponses(r.Attachments),
		Status:                 string(r.Status),
		ReturnReason:           r.ReturnReason,
		CreatedBy:              r.CreatedBy,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		SubmittedAt:            r.SubmittedAt,
		SubmittedBy:            r.SubmittedBy,
		ReturnedAt:             r.ReturnedAt,
		ReturnedBy:             r.ReturnedBy,
		CompletedAt:            r.CompletedAt,
		CompletedBy:            r.CompletedBy,
		Version:                r.Version,
	}
	if r.FinalizationKind != nil {
		kind := string(*r.FinalizationKind)
		resp.FinalizationKind = &kind
	}
	return resp
}

// typedBalance is nil for a balance the client has not typed yet
func typedBalance(m valueobject.Money, blank bool) *valueobject.Money {
	if blank {
		return nil
	}
	return &m
}

// ToClosingListItem converts a domain ClosingRecord to a list row
func ToClosingListItem(r *closing.ClosingRecord, policy closing.DivergencePolicy) ClosingListItem {
	disclosure := r.Disclosure(policy)
	return ClosingListItem{
		ID:                     r.ID,
		Date:                   r.DateString(),
		Title:                  r.Title,
		ResponsibleName:        r.ResponsibleName,
		Status:                 string(r.Status),
		ReportedClosingBalance: r.ReportedClosingBalance,
		ExpectedClosingBalance: disclosure.Expected,
		Difference:             disclosure.Difference,
		DivergenceLevel:        disclosure.Level,
		AttachmentCount:        len(r.Attachments),
		UpdatedAt:              r.UpdatedAt,
		Version:                r.Version,
	}
}

// ToThreadMessageResponse converts a domain ThreadMessage to a response DTO
func ToThreadMessageResponse(m *closing.ThreadMessage) ThreadMessageResponse {
	return ThreadMessageResponse{
		ID:              m.ID,
		ClosingRecordID: m.ClosingRecordID,
		AuthorID:        m.AuthorID,
		AuthorName:      m.AuthorName,
		AuthorRole:      string(m.AuthorRole),
		Text:            m.Text,
		Attachments:     toAttachmentResponses(m.Attachments),
		CreatedAt:       m.CreatedAt,
	}
}
