package models

import (
	"strings"
	"time"

	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
)

type CheckRemittance struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BranchId           int             `gorm:"index;not null" json:"branch_id"`
	TransactionBatchId int             `gorm:"index;not null" json:"transaction_batch_id"`
	BankId             int             `gorm:"index;not null" json:"bank_id"`
	ReferenceNumber    string          `gorm:"size:100;not null" json:"reference_number"`
	AccountName        string          `gorm:"size:255;not null" json:"account_name"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OnlineRemittance struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BranchId           int             `gorm:"index;not null" json:"branch_id"`
	TransactionBatchId int             `gorm:"index;not null" json:"transaction_batch_id"`
	BankId             int             `gorm:"index;not null" json:"bank_id"`
	ReferenceNumber    string          `gorm:"size:100;not null" json:"reference_number"`
	AccountName        string          `gorm:"size:255;not null" json:"account_name"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r CheckRemittance) GetId() int { return r.ID }

func (r CheckRemittance) GetAmount() decimal.Decimal { return r.Amount }

func (r OnlineRemittance) GetId() int { return r.ID }

func (r OnlineRemittance) GetAmount() decimal.Decimal { return r.Amount }

// NewRemittance is the shared input of check and online remittances.
type NewRemittance struct {
	BankId          int             `json:"bank_id" validate:"gt=0"`
	ReferenceNumber string          `json:"reference_number" validate:"required,max=100"`
	AccountName     string          `json:"account_name" validate:"required,max=255"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=0"`
}

func (input *NewRemittance) Validate() error {
	input.ReferenceNumber = strings.TrimSpace(input.ReferenceNumber)
	input.AccountName = strings.TrimSpace(input.AccountName)
	return validateInput(input)
}

func (input *NewRemittance) ToCheck(batch *TransactionBatch) *CheckRemittance {
	return &CheckRemittance{
		BranchId:           batch.BranchId,
		TransactionBatchId: batch.ID,
		BankId:             input.BankId,
		ReferenceNumber:    input.ReferenceNumber,
		AccountName:        input.AccountName,
		Amount:             utils.Round2(input.Amount),
	}
}

func (input *NewRemittance) ToOnline(batch *TransactionBatch) *OnlineRemittance {
	return &OnlineRemittance{
		BranchId:           batch.BranchId,
		TransactionBatchId: batch.ID,
		BankId:             input.BankId,
		ReferenceNumber:    input.ReferenceNumber,
		AccountName:        input.AccountName,
		Amount:             utils.Round2(input.Amount),
	}
}

func (input *NewRemittance) ApplyToCheck(r *CheckRemittance) {
	r.BankId = input.BankId
	r.ReferenceNumber = input.ReferenceNumber
	r.AccountName = input.AccountName
	r.Amount = utils.Round2(input.Amount)
}

func (input *NewRemittance) ApplyToOnline(r *OnlineRemittance) {
	r.BankId = input.BankId
	r.ReferenceNumber = input.ReferenceNumber
	r.AccountName = input.AccountName
	r.Amount = utils.Round2(input.Amount)
}

// Amounted is anything contributing a single amount to a rollup.
type Amounted interface {
	GetAmount() decimal.Decimal
}

// ComputeRemittanceTotal sums amount over the list; empty sums to zero.
func ComputeRemittanceTotal[T Amounted](list []T) decimal.Decimal {
	total := decimal.Zero
	for _, r := range list {
		total = utils.Add(total, r.GetAmount())
	}
	return total
}
