package models

import (
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
)

type DisbursementTransaction struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	BranchId               int             `gorm:"index;not null" json:"branch_id"`
	TransactionBatchId     int             `gorm:"index;not null" json:"transaction_batch_id"`
	DisbursementCategoryId int             `gorm:"index;not null" json:"disbursement_category_id"`
	ReferenceNumber        *string         `gorm:"size:100" json:"reference_number"`
	Remarks                string          `gorm:"size:255" json:"remarks"`
	Amount                 decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d DisbursementTransaction) GetId() int { return d.ID }

func (d DisbursementTransaction) GetAmount() decimal.Decimal { return d.Amount }

type NewDisbursement struct {
	DisbursementCategoryId int             `json:"disbursement_category_id" validate:"gt=0"`
	ReferenceNumber        *string         `json:"reference_number" validate:"omitempty,max=100"`
	Remarks                string          `json:"remarks" validate:"max=255"`
	Amount                 decimal.Decimal `json:"amount" validate:"gte=0"`
}

func (input *NewDisbursement) Validate() error {
	if input.ReferenceNumber != nil {
		ref := strings.TrimSpace(*input.ReferenceNumber)
		if ref == "" {
			input.ReferenceNumber = nil
		} else {
			input.ReferenceNumber = &ref
		}
	}
	return validateInput(input)
}

func (input *NewDisbursement) ToDisbursement(batch *TransactionBatch) *DisbursementTransaction {
	return &DisbursementTransaction{
		BranchId:               batch.BranchId,
		TransactionBatchId:     batch.ID,
		DisbursementCategoryId: input.DisbursementCategoryId,
		ReferenceNumber:        input.ReferenceNumber,
		Remarks:                strings.TrimSpace(input.Remarks),
		Amount:                 utils.Round2(input.Amount),
	}
}

// ComputeDisbursementTotal has the same shape as the remittance rollup.
func ComputeDisbursementTotal(list []*DisbursementTransaction) decimal.Decimal {
	return ComputeRemittanceTotal(list)
}

// DisbursementBuckets are the four deduction lines of the blotter.
type DisbursementBuckets struct {
	SavingsWithdrawal     decimal.Decimal `json:"savings_withdrawal"`
	TimeDepositWithdrawal decimal.Decimal `json:"time_deposit_withdrawal"`
	LoanReleases          decimal.Decimal `json:"loan_releases"`
	PettyCash             decimal.Decimal `json:"petty_cash"`
}

func (b DisbursementBuckets) Total() decimal.Decimal {
	return utils.Sum(b.SavingsWithdrawal, b.TimeDepositWithdrawal, b.LoanReleases, b.PettyCash)
}

// BucketDisbursements sums disbursements per category code.
// codes maps category id to code; a category without a code counts as petty cash.
func BucketDisbursements(list []*DisbursementTransaction, codes map[int]DisbursementCode) DisbursementBuckets {
	b := DisbursementBuckets{
		SavingsWithdrawal:     decimal.Zero,
		TimeDepositWithdrawal: decimal.Zero,
		LoanReleases:          decimal.Zero,
		PettyCash:             decimal.Zero,
	}
	for _, d := range list {
		switch codes[d.DisbursementCategoryId] {
		case DisbursementCodeSavingsWithdrawal:
			b.SavingsWithdrawal = utils.Add(b.SavingsWithdrawal, d.Amount)
		case DisbursementCodeTimeDepositWithdrawal:
			b.TimeDepositWithdrawal = utils.Add(b.TimeDepositWithdrawal, d.Amount)
		case DisbursementCodeLoanRelease:
			b.LoanReleases = utils.Add(b.LoanReleases, d.Amount)
		default:
			b.PettyCash = utils.Add(b.PettyCash, d.Amount)
		}
	}
	return b
}

type DisbursementGroup struct {
	CategoryId   int                        `json:"category_id"`
	CategoryName string                     `json:"category_name"`
	Items        []*DisbursementTransaction `json:"items"`
	Total        decimal.Decimal            `json:"total"`
}

// GroupDisbursementsByCategory is for display only. Groups follow category
// sort order, then name; items keep their list order.
func GroupDisbursementsByCategory(list []*DisbursementTransaction, categories map[int]*DisbursementCategory) []DisbursementGroup {
	index := make(map[int]int)
	var groups []DisbursementGroup
	for _, d := range list {
		pos, ok := index[d.DisbursementCategoryId]
		if !ok {
			g := DisbursementGroup{CategoryId: d.DisbursementCategoryId, Total: decimal.Zero}
			if c := categories[d.DisbursementCategoryId]; c != nil {
				g.CategoryName = c.Name
			}
			groups = append(groups, g)
			pos = len(groups) - 1
			index[d.DisbursementCategoryId] = pos
		}
		groups[pos].Items = append(groups[pos].Items, d)
		groups[pos].Total = utils.Add(groups[pos].Total, d.Amount)
	}
	sortOrder := func(id int) int {
		if c := categories[id]; c != nil {
			return c.SortOrder
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		oi, oj := sortOrder(groups[i].CategoryId), sortOrder(groups[j].CategoryId)
		if oi != oj {
			return oi < oj
		}
		return groups[i].CategoryName < groups[j].CategoryName
	})
	return groups
}
