package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ClosingRecordModel is the persistence model for the ClosingRecord aggregate root.
// Money is stored as integer cents in the record currency. A NULL opening or
// reported balance is one the client has not typed yet.
type ClosingRecordModel struct {
	CompanyAggregateModel
	Currency                    string     `gorm:"type:varchar(3);not null;default:'BRL'"`
	ClosingDate                 *time.Time `gorm:"type:date;index"`
	Title                       string     `gorm:"type:varchar(200)"`
	ResponsibleName             string     `gorm:"type:varchar(200)"`
	OpeningBalanceCents         *int64
	SalesBoletoCents            int64 `gorm:"not null;default:0"`
	SalesCashCents              int64 `gorm:"not null;default:0"`
	SalesDebitCardCents         int64 `gorm:"not null;default:0"`
	SalesCreditCardCents        int64 `gorm:"not null;default:0"`
	SalesPixCents               int64 `gorm:"not null;default:0"`
	SalesWireTransferCents      int64 `gorm:"not null;default:0"`
	SalesOtherCents             int64 `gorm:"not null;default:0"`
	SupplyAmountCents           int64 `gorm:"not null;default:0"`
	WithdrawalAmountCents       int64 `gorm:"not null;default:0"`
	ReportedClosingBalanceCents *int64
	Notes                       string  `gorm:"type:text"`
	AttachmentsJSON             string  `gorm:"column:attachments;type:jsonb;default:'[]'"`
	Status                      string  `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	FinalizationKind            *string `gorm:"type:varchar(50)"`
	ReturnReason                string  `gorm:"type:varchar(1000)"`
	SubmittedAt                 *time.Time
	SubmittedBy                 *uuid.UUID `gorm:"type:uuid"`
	ReturnedAt                  *time.Time
	ReturnedBy                  *uuid.UUID `gorm:"type:uuid"`
	CompletedAt                 *time.Time
	CompletedBy                 *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ClosingRecordModel) TableName() string {
	return "closing_records"
}

// ToDomain converts the persistence model to a domain ClosingRecord
func (m *ClosingRecordModel) ToDomain() (*closing.ClosingRecord, error) {
	cur := valueobject.Currency(m.Currency)
	money := func(cents int64) valueobject.Money { return valueobject.NewMoney(cents, cur) }
	attachments, err := decodeAttachments(m.AttachmentsJSON, m.ID)
	if err != nil {
		return nil, err
	}

	r := &closing.ClosingRecord{
		CompanyAggregateRoot: m.ToCompanyAggregateRoot(),
		Currency:             cur,
		Title:                m.Title,
		ResponsibleName:      m.ResponsibleName,
		OpeningBalance:       money(centsOrZero(m.OpeningBalanceCents)),
		OpeningBalanceBlank:  m.OpeningBalanceCents == nil,
		Sales: closing.SalesBreakdown{
			Boleto:       money(m.SalesBoletoCents),
			Cash:         money(m.SalesCashCents),
			DebitCard:    money(m.SalesDebitCardCents),
			CreditCard:   money(m.SalesCreditCardCents),
			Pix:          money(m.SalesPixCents),
			WireTransfer: money(m.SalesWireTransferCents),
			Other:        money(m.SalesOtherCents),
		},
		SupplyAmount:           money(m.SupplyAmountCents),
		WithdrawalAmount:       money(m.WithdrawalAmountCents),
		ReportedClosingBalance: money(centsOrZero(m.ReportedClosingBalanceCents)),
		ReportedBalanceBlank:   m.ReportedClosingBalanceCents == nil,
		Notes:                  m.Notes,
		Attachments:            attachments,
		Status:                 closing.ClosingStatus(m.Status),
		ReturnReason:           m.ReturnReason,
		SubmittedAt:            m.SubmittedAt,
		SubmittedBy:            m.SubmittedBy,
		ReturnedAt:             m.ReturnedAt,
		ReturnedBy:             m.ReturnedBy,
		CompletedAt:            m.CompletedAt,
		CompletedBy:            m.CompletedBy,
	}
	if m.ClosingDate != nil {
		y, mo, d := m.ClosingDate.Date()
		r.Date = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	}
	if m.FinalizationKind != nil {
		kind := closing.FinalizationKind(*m.FinalizationKind)
		r.FinalizationKind = &kind
	}
	return r, nil
}

// FromDomain populates the persistence model from a domain ClosingRecord
func (m *ClosingRecordModel) FromDomain(r *closing.ClosingRecord) {
	m.FromDomainCompanyAggregateRoot(r.CompanyAggregateRoot)
	m.Currency = string(r.Currency)
	m.ClosingDate = nil
	if !r.Date.IsZero() {
		d := r.Date
		m.ClosingDate = &d
	}
	m.Title = r.Title
	m.ResponsibleName = r.ResponsibleName
	m.OpeningBalanceCents = centsOrNil(r.OpeningBalance, r.OpeningBalanceBlank)
	m.SalesBoletoCents = r.Sales.Boleto.Cents()
	m.SalesCashCents = r.Sales.Cash.Cents()
	m.SalesDebitCardCents = r.Sales.DebitCard.Cents()
	m.SalesCreditCardCents = r.Sales.CreditCard.Cents()
	m.SalesPixCents = r.Sales.Pix.Cents()
	m.SalesWireTransferCents = r.Sales.WireTransfer.Cents()
	m.SalesOtherCents = r.Sales.Other.Cents()
	m.SupplyAmountCents = r.SupplyAmount.Cents()
	m.WithdrawalAmountCents = r.WithdrawalAmount.Cents()
	m.ReportedClosingBalanceCents = centsOrNil(r.ReportedClosingBalance, r.ReportedBalanceBlank)
	m.Notes = r.Notes
	m.AttachmentsJSON = encodeAttachments(r.Attachments)
	m.Status = string(r.Status)
	m.FinalizationKind = nil
	if r.FinalizationKind != nil {
		kind := string(*r.FinalizationKind)
		m.FinalizationKind = &kind
	}
	m.ReturnReason = r.ReturnReason
	m.SubmittedAt = r.SubmittedAt
	m.SubmittedBy = r.SubmittedBy
	m.ReturnedAt = r.ReturnedAt
	m.ReturnedBy = r.ReturnedBy
	m.CompletedAt = r.CompletedAt
	m.CompletedBy = r.CompletedBy
}

// ClosingRecordModelFromDomain creates a new persistence model from domain
func ClosingRecordModelFromDomain(r *closing.ClosingRecord) *ClosingRecordModel {
	m := &ClosingRecordModel{}
	m.FromDomain(r)
	return m
}

// ThreadMessageModel is one row of the append-only closing thread
type ThreadMessageModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	ClosingRecordID uuid.UUID  `gorm:"type:uuid;not null;index:idx_thread_record_created,priority:1"`
	AuthorID        *uuid.UUID `gorm:"type:uuid"`
	AuthorName      string     `gorm:"type:varchar(200);not null"`
	AuthorRole      string     `gorm:"type:varchar(20);not null"`
	Text            string     `gorm:"type:text"`
	AttachmentsJSON string     `gorm:"column:attachments;type:jsonb;default:'[]'"`
	CreatedAt       time.Time  `gorm:"not null;index:idx_thread_record_created,priority:2"`
}

// TableName returns the table name for GORM
func (ThreadMessageModel) TableName() string {
	return "closing_thread_messages"
}

// ToDomain converts the persistence model to a domain ThreadMessage
func (m *ThreadMessageModel) ToDomain() (*closing.ThreadMessage, error) {
	attachments, err := decodeAttachments(m.AttachmentsJSON, m.ID)
	if err != nil {
		return nil, err
	}
	return &closing.ThreadMessage{
		ID:              m.ID,
		ClosingRecordID: m.ClosingRecordID,
		AuthorID:        m.AuthorID,
		AuthorName:      m.AuthorName,
		AuthorRole:      closing.AuthorRole(m.AuthorRole),
		Text:            m.Text,
		Attachments:     attachments,
		CreatedAt:       m.CreatedAt.UTC(),
	}, nil
}

// ThreadMessageModelFromDomain creates a new persistence model from domain
func ThreadMessageModelFromDomain(msg *closing.ThreadMessage) *ThreadMessageModel {
	return &ThreadMessageModel{
		ID:              msg.ID,
		ClosingRecordID: msg.ClosingRecordID,
		AuthorID:        msg.AuthorID,
		AuthorName:      msg.AuthorName,
		AuthorRole:      string(msg.AuthorRole),
		Text:            msg.Text,
		AttachmentsJSON: encodeAttachments(msg.Attachments),
		CreatedAt:       msg.CreatedAt,
	}
}

func encodeAttachments(atts []closing.Attachment) string {
	if len(atts) == 0 {
		return "[]"
	}
	b, err := json.Marshal(atts)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// decodeAttachments reports a corrupt column as an error
func decodeAttachments(raw string, ownerID uuid.UUID) ([]closing.Attachment, error) {
	atts := make([]closing.Attachment, 0)
	if raw == "" || raw == "[]" {
		return atts, nil
	}
	if err := json.Unmarshal([]byte(raw), &atts); err != nil {
		return nil, fmt.Errorf("failed to parse attachments of %s: %w", ownerID, err)
	}
	return atts, nil
}

func centsOrZero(cents *int64) int64 {
	if cents == nil {
		return 0
	}
	return *cents
}

func centsOrNil(m valueobject.Money, blank bool) *int64 {
	if blank {
		return nil
	}
	cents := m.Cents()
	return &cents
}
