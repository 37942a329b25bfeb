package closing

import (
	"errors"
	"testing"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidInput(t *testing.T) {
	fields, err := Validate(balancedInput(), valueobject.BRL)
	require.NoError(t, err)

	assert.Equal(t, "Fechamento Loja Centro", fields.Title)
	assert.Equal(t, "2024-03-01", fields.Date.Format(DateLayout))
	assert.Equal(t, int64(100000), fields.OpeningBalance.Cents())
	assert.Equal(t, int64(50000), fields.SupplyAmount.Cents())
	assert.Equal(t, int64(80000), fields.WithdrawalAmount.Cents())
	assert.Equal(t, int64(190000), fields.ReportedClosingBalance.Cents())
	assert.Equal(t, int64(120000), fields.Sales.Cash.Cents())
	assert.True(t, fields.Sales.Boleto.IsZero())
	assert.Equal(t, int64(197050), fields.Sales.Total().Cents())
	assert.Len(t, fields.Attachments, 1)
}

func TestValidate_CheckOrder(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *DraftInput)
		wantCode  string
		wantField string
	}{
		{
			name:      "blank title",
			mutate:    func(in *DraftInput) { in.Title = "   " },
			wantCode:  CodeMissingRequiredField,
			wantField: "title",
		},
		{
			name:      "missing date",
			mutate:    func(in *DraftInput) { in.Date = "" },
			wantCode:  CodeMissingRequiredField,
			wantField: "date",
		},
		{
			name:      "impossible date",
			mutate:    func(in *DraftInput) { in.Date = "2024-02-30" },
			wantCode:  CodeMissingRequiredField,
			wantField: "date",
		},
		{
			name:      "negative opening balance",
			mutate:    func(in *DraftInput) { in.OpeningBalance = "-10" },
			wantCode:  CodeInvalidAmount,
			wantField: "opening_balance",
		},
		{
			name:      "blank opening balance",
			mutate:    func(in *DraftInput) { in.OpeningBalance = " " },
			wantCode:  CodeMissingRequiredField,
			wantField: "opening_balance",
		},
		{
			name:      "non-numeric supply",
			mutate:    func(in *DraftInput) { in.SupplyAmount = "abc" },
			wantCode:  CodeInvalidAmount,
			wantField: "supply_amount",
		},
		{
			name:      "malformed withdrawal",
			mutate:    func(in *DraftInput) { in.WithdrawalAmount = "12,3456" },
			wantCode:  CodeInvalidAmount,
			wantField: "withdrawal_amount",
		},
		{
			name:      "negative reported balance",
			mutate:    func(in *DraftInput) { in.ReportedClosingBalance = "-1,00" },
			wantCode:  CodeInvalidAmount,
			wantField: "reported_closing_balance",
		},
		{
			name:      "blank reported balance",
			mutate:    func(in *DraftInput) { in.ReportedClosingBalance = "" },
			wantCode:  CodeMissingRequiredField,
			wantField: "reported_closing_balance",
		},
		{
			name:      "negative pix sales",
			mutate:    func(in *DraftInput) { in.Sales[PaymentMethodPix] = "-5" },
			wantCode:  CodeInvalidAmount,
			wantField: "sales.pix",
		},
		{
			name:      "unknown sales key",
			mutate:    func(in *DraftInput) { in.Sales["voucher"] = "10" },
			wantCode:  CodeInvalidAmount,
			wantField: "sales.voucher",
		},
		{
			name:      "withdrawal without attachment",
			mutate:    func(in *DraftInput) { in.Attachments = nil },
			wantCode:  CodeMissingMandatoryAttachment,
			wantField: "attachments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := balancedInput()
			tt.mutate(&in)

			_, err := Validate(in, valueobject.BRL)
			require.Error(t, err)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantCode, vErr.First().Code)
			assert.Equal(t, tt.wantField, vErr.First().Field)

			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.wantCode, domainErr.Code)
		})
	}
}

func TestValidate_FirstFailureBlocks(t *testing.T) {
	in := balancedInput()
	in.Title = ""
	in.OpeningBalance = "-1"
	in.Attachments = nil

	_, err := Validate(in, valueobject.BRL)
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 3)
	assert.Equal(t, "title", vErr.Fields[0].Field)
	assert.Equal(t, "opening_balance", vErr.Fields[1].Field)
	assert.Equal(t, "attachments", vErr.Fields[2].Field)

	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.False(t, errors.Is(err, ErrInvalidAmount))
	assert.True(t, vErr.HasCode(CodeInvalidAmount))
	assert.Contains(t, vErr.Summary(), "opening_balance")
}

func TestValidate_BlankBalancesAreRequired(t *testing.T) {
	_, err := Validate(DraftInput{Title: "x", Date: "2024-03-01"}, valueobject.BRL)
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 2)
	assert.Equal(t, FieldError{Field: "opening_balance", Code: CodeMissingRequiredField, Message: "opening_balance is required"}, vErr.Fields[0])
	assert.Equal(t, "reported_closing_balance", vErr.Fields[1].Field)
	assert.Equal(t, CodeMissingRequiredField, vErr.Fields[1].Code)
}

func TestValidate_BlankFlowsAreZero(t *testing.T) {
	in := DraftInput{Title: "Sem movimento", Date: "2024-03-02", OpeningBalance: "0", ReportedClosingBalance: "0,00"}

	fields, err := Validate(in, valueobject.BRL)
	require.NoError(t, err)
	assert.True(t, fields.OpeningBalance.IsZero())
	assert.False(t, fields.OpeningBalanceBlank)
	assert.True(t, fields.SupplyAmount.IsZero())
	assert.True(t, fields.WithdrawalAmount.IsZero())
	assert.True(t, fields.ReportedClosingBalance.IsZero())
	assert.False(t, fields.ReportedBalanceBlank)
	assert.True(t, fields.Sales.Total().IsZero())
}

func TestValidate_ZeroWithdrawalNeedsNoAttachment(t *testing.T) {
	in := balancedInput()
	in.WithdrawalAmount = "0"
	in.Attachments = nil

	_, err := Validate(in, valueobject.BRL)
	assert.NoError(t, err)
}

func TestValidate_LocalizedAmounts(t *testing.T) {
	in := balancedInput()
	in.OpeningBalance = "R$ 1.000,00"
	in.SupplyAmount = "500"
	in.Sales[PaymentMethodCash] = "1.200,00"

	fields, err := Validate(in, valueobject.BRL)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), fields.OpeningBalance.Cents())
	assert.Equal(t, int64(120000), fields.Sales.Cash.Cents())
}

func TestParseDraft(t *testing.T) {
	t.Run("allows blank title and date", func(t *testing.T) {
		fields, err := ParseDraft(DraftInput{OpeningBalance: "10"}, valueobject.BRL)
		require.NoError(t, err)
		assert.True(t, fields.Date.IsZero())
		assert.Equal(t, int64(1000), fields.OpeningBalance.Cents())
	})

	t.Run("keeps blank balances blank", func(t *testing.T) {
		fields, err := ParseDraft(DraftInput{SupplyAmount: "5"}, valueobject.BRL)
		require.NoError(t, err)
		assert.True(t, fields.OpeningBalanceBlank)
		assert.True(t, fields.ReportedBalanceBlank)
		assert.True(t, fields.OpeningBalance.IsZero())

		in := InputFromFields(fields)
		assert.Empty(t, in.OpeningBalance)
		assert.Empty(t, in.ReportedClosingBalance)
		assert.Equal(t, "5.00", in.SupplyAmount)
	})

	t.Run("allows withdrawal without attachment", func(t *testing.T) {
		in := balancedInput()
		in.Attachments = nil
		_, err := ParseDraft(in, valueobject.BRL)
		assert.NoError(t, err)
	})

	t.Run("rejects bad amounts", func(t *testing.T) {
		_, err := ParseDraft(DraftInput{SupplyAmount: "-3"}, valueobject.BRL)
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		_, err := ParseDraft(DraftInput{Date: "01/03/2024"}, valueobject.BRL)
		assert.True(t, errors.Is(err, ErrMissingRequiredField))
	})
}

func TestValidateFields_RoundTrip(t *testing.T) {
	fields, err := Validate(balancedInput(), valueobject.BRL)
	require.NoError(t, err)
	assert.NoError(t, ValidateFields(fields, valueobject.BRL))

	fields.Attachments = nil
	err = ValidateFields(fields, valueobject.BRL)
	assert.True(t, errors.Is(err, ErrMissingMandatoryAttachment))
}

func TestSubmit_DraftWithBlankBalanceFails(t *testing.T) {
	a := newTestActors()
	in := balancedInput()
	in.ReportedClosingBalance = ""
	r := newDraft(t, a.client, in)
	require.True(t, r.ReportedBalanceBlank)

	err := r.Transition(a.client, ActionSubmit, TransitionPayload{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.Equal(t, ClosingStatusDraft, r.Status)

	require.NoError(t, r.UpdateFields(a.client, mustParse(t, balancedInput())))
	assert.False(t, r.ReportedBalanceBlank)
	assert.NoError(t, r.Transition(a.client, ActionSubmit, TransitionPayload{}))
}

func mustParse(t *testing.T, in DraftInput) ClosingFields {
	t.Helper()
	fields, err := ParseDraft(in, valueobject.BRL)
	require.NoError(t, err)
	return fields
}
