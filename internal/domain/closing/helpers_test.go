package closing

import (
	"testing"

	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testActors struct {
	company  uuid.UUID
	client   Actor
	other    Actor
	operator Actor
	admin    Actor
	outsider Actor
}

func newTestActors() testActors {
	company := uuid.New()
	return testActors{
		company:  company,
		client:   Actor{UserID: uuid.New(), Name: "Maria Client", Role: ActorRoleClient, CompanyID: company},
		other:    Actor{UserID: uuid.New(), Name: "Joao Client", Role: ActorRoleClient, CompanyID: company},
		operator: Actor{UserID: uuid.New(), Name: "Olga Operator", Role: ActorRoleOperator, CompanyID: company},
		admin:    Actor{UserID: uuid.New(), Name: "Ana Admin", Role: ActorRoleAdmin, CompanyID: company},
		outsider: Actor{UserID: uuid.New(), Name: "Other Co", Role: ActorRoleOperator, CompanyID: uuid.New()},
	}
}

func receipt() Attachment {
	return Attachment{ID: uuid.New(), Filename: "withdrawal-receipt.pdf", ByteSize: 20480, MimeType: "application/pdf"}
}

// balancedInput: 1000 + 500 + 1200 - 800 = 1900, reported 1900
func balancedInput() DraftInput {
	return DraftInput{
		Title:                  "Fechamento Loja Centro",
		Date:                   "2024-03-01",
		ResponsibleName:        "Maria",
		OpeningBalance:         "1000.00",
		SupplyAmount:           "500.00",
		WithdrawalAmount:       "800.00",
		ReportedClosingBalance: "1900.00",
		Sales: map[PaymentMethod]string{
			PaymentMethodCash:       "1200.00",
			PaymentMethodPix:        "350.00",
			PaymentMethodCreditCard: "420.50",
		},
		Attachments: []Attachment{receipt()},
	}
}

func newDraft(t *testing.T, owner Actor, in DraftInput) *ClosingRecord {
	t.Helper()
	fields, err := ParseDraft(in, valueobject.BRL)
	require.NoError(t, err)
	r, err := NewClosingRecord(owner, valueobject.BRL, fields)
	require.NoError(t, err)
	return r
}

func newInReview(t *testing.T, a testActors) *ClosingRecord {
	t.Helper()
	r := newDraft(t, a.client, balancedInput())
	require.NoError(t, r.Transition(a.client, ActionSubmit, TransitionPayload{}))
	return r
}

func brl(cents int64) valueobject.Money {
	return valueobject.NewMoneyBRL(cents)
}
