package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionBatch is one teller's cash-drawer shift.
//
// OpenSlot is 1 while the batch is open and NULL afterwards; together with
// EmployeeId it forms a unique index, so the database itself refuses a second
// open batch for the same employee.
type TransactionBatch struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	BranchId             int             `gorm:"index;not null" json:"branch_id"`
	EmployeeId           int             `gorm:"index;not null;uniqueIndex:idx_batch_open_slot,priority:1" json:"employee_id"`
	OpenSlot             *int            `gorm:"uniqueIndex:idx_batch_open_slot,priority:2" json:"-"`
	Currency             string          `gorm:"size:3;not null" json:"currency"`
	ProviderName         string          `gorm:"size:100;not null" json:"provider_name"`
	ProviderSignatureUrl string          `gorm:"size:255" json:"provider_signature_url"`
	BeginningBalance     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"beginning_balance"`
	DepositInBank        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"deposit_in_bank"`

	// derived, see RecomputeBatchTotals
	CashCountTotal                decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"cash_count_total"`
	GrandTotal                    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"grand_total"`
	TotalCashCollection           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_cash_collection"`
	TotalDepositEntry             decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_deposit_entry"`
	TotalCheckRemittance          decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_check_remittance"`
	TotalOnlineRemittance         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_online_remittance"`
	TotalActualRemittance         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_actual_remittance"`
	TotalSupposedRemitance        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_supposed_remitance"`
	TotalCashOnHand               decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_cash_on_hand"`
	SavingsWithdrawal             decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"savings_withdrawal"`
	TimeDepositWithdrawal         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"time_deposit_withdrawal"`
	LoanReleases                  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"loan_releases"`
	PettyCash                     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"petty_cash"`
	TotalActualSupposedComparison decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_actual_supposed_comparison"`

	IsClosed       bool       `gorm:"index;not null;default:false" json:"is_closed"`
	CanView        bool       `gorm:"not null;default:false" json:"can_view"`
	RequestView    *time.Time `json:"request_view"`
	ViewApprovedBy *int       `json:"view_approved_by"`
	ViewApprovedAt *time.Time `json:"view_approved_at"`

	EndSignatureUrl string     `gorm:"size:255" json:"end_signature_url"`
	EndName         string     `gorm:"size:100" json:"end_name"`
	EndPosition     string     `gorm:"size:100" json:"end_position"`
	ClosedAt        *time.Time `json:"closed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b TransactionBatch) GetId() int {
	return b.ID
}

type NewTransactionBatch struct {
	BeginningBalance decimal.Decimal `json:"beginning_balance" validate:"gte=0"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	ProviderName     string          `json:"provider_name" validate:"required,max=100"`
	// base64 or data URL; stored as an object and replaced by its URL
	ProviderSignature string `json:"provider_signature" validate:"required"`
}

func (input *NewTransactionBatch) Validate() error {
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	input.ProviderName = strings.TrimSpace(input.ProviderName)
	return validateInput(input)
}

type EndBatchInput struct {
	Signature string `json:"signature" validate:"required"`
	Name      string `json:"name" validate:"required,max=100"`
	Position  string `json:"position" validate:"required,max=100"`
}

func (input *EndBatchInput) Validate() error {
	input.Name = strings.TrimSpace(input.Name)
	input.Position = strings.TrimSpace(input.Position)
	return validateInput(input)
}

type CollectionsInput struct {
	TotalCashCollection decimal.Decimal `json:"total_cash_collection" validate:"gte=0"`
	TotalDepositEntry   decimal.Decimal `json:"total_deposit_entry" validate:"gte=0"`
}

func (input *CollectionsInput) Validate() error {
	return validateInput(input)
}

type DepositInBankInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

func (input *DepositInBankInput) Validate() error {
	return validateInput(input)
}

func openSlot() *int {
	one := 1
	return &one
}

// NewOpenBatch builds the row for a freshly opened batch.
func NewOpenBatch(branchId, employeeId int, input *NewTransactionBatch, signatureUrl string) *TransactionBatch {
	return &TransactionBatch{
		BranchId:             branchId,
		EmployeeId:           employeeId,
		OpenSlot:             openSlot(),
		Currency:             input.Currency,
		ProviderName:         input.ProviderName,
		ProviderSignatureUrl: signatureUrl,
		BeginningBalance:     input.BeginningBalance.Round(2),
	}
}
