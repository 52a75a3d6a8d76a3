package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
)

// CashCount is one (denomination, quantity) observation of a batch.
type CashCount struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BranchId           int             `gorm:"index;not null" json:"branch_id"`
	TransactionBatchId int             `gorm:"not null;uniqueIndex:idx_cash_count_denomination,priority:1" json:"transaction_batch_id"`
	Name               string          `gorm:"size:100;not null;uniqueIndex:idx_cash_count_denomination,priority:2" json:"name"`
	BillAmount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"bill_amount"`
	Quantity           int64           `gorm:"not null" json:"quantity"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c CashCount) GetId() int {
	return c.ID
}

// Denomination is one row of the canonical bills-and-coins catalog.
type Denomination struct {
	Name        string          `json:"name"`
	Value       decimal.Decimal `json:"value"`
	CountryCode string          `json:"country_code"`
}

// CashCountRow is the editable working row of a cash count sheet.
// Quantity nil means "not yet entered"; zero means "counted, none present".
type CashCountRow struct {
	ID         int             `json:"id,omitempty"`
	Name       string          `json:"name"`
	BillAmount decimal.Decimal `json:"bill_amount"`
	Quantity   *int64          `json:"quantity"`
}

func (r CashCountRow) Amount() decimal.Decimal {
	if r.Quantity == nil {
		return decimal.Zero
	}
	return utils.Multiply(r.BillAmount, decimal.NewFromInt(*r.Quantity))
}

type CashCountMerge struct {
	Rows              []CashCountRow `json:"rows"`
	DeletedCashCounts []int          `json:"deleted_cash_counts"`
}

// MergeDenominationsWithCounts lays the persisted counts of a batch over the
// catalog. Rows follow catalog order. A persisted count whose denomination is
// gone from the catalog, or that duplicates an earlier count of the same
// denomination, is listed in DeletedCashCounts.
func MergeDenominationsWithCounts(denominations []Denomination, existing []CashCount) CashCountMerge {
	byName := make(map[string]CashCount, len(existing))
	var deleted []int
	for _, c := range existing {
		key := denominationKey(c.Name)
		if _, dup := byName[key]; dup {
			deleted = append(deleted, c.ID)
			continue
		}
		byName[key] = c
	}

	rows := make([]CashCountRow, 0, len(denominations))
	used := make(map[string]bool, len(denominations))
	for _, d := range denominations {
		key := denominationKey(d.Name)
		if used[key] {
			continue
		}
		used[key] = true
		row := CashCountRow{Name: d.Name, BillAmount: d.Value}
		if c, ok := byName[key]; ok {
			q := c.Quantity
			row.ID = c.ID
			row.Quantity = &q
		}
		rows = append(rows, row)
	}

	for _, c := range existing {
		if used[denominationKey(c.Name)] {
			continue
		}
		if byName[denominationKey(c.Name)].ID == c.ID {
			deleted = append(deleted, c.ID)
		}
	}
	return CashCountMerge{Rows: rows, DeletedCashCounts: deleted}
}

func denominationKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ComputeCashCountTotal sums bill_amount × quantity; unset quantities count as zero.
func ComputeCashCountTotal(rows []CashCountRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = utils.Add(total, r.Amount())
	}
	return total
}

type CashCountSavePlan struct {
	CashCounts        []*CashCount `json:"cash_counts"`
	DeletedCashCounts []int        `json:"deleted_cash_counts"`
}

// PrepareSave partitions rows into upserts (quantity > 0) and deletes
// (quantity zero or cleared on a persisted row). Rows never filled in are dropped.
func PrepareSave(batch *TransactionBatch, rows []CashCountRow) CashCountSavePlan {
	var plan CashCountSavePlan
	for _, r := range rows {
		if r.Quantity != nil && *r.Quantity > 0 {
			plan.CashCounts = append(plan.CashCounts, &CashCount{
				ID:                 r.ID,
				BranchId:           batch.BranchId,
				TransactionBatchId: batch.ID,
				Name:               r.Name,
				BillAmount:         r.BillAmount,
				Quantity:           *r.Quantity,
				Amount:             utils.Round2(r.Amount()),
			})
			continue
		}
		if r.ID > 0 {
			plan.DeletedCashCounts = append(plan.DeletedCashCounts, r.ID)
		}
	}
	return plan
}

// CashCountInput is one submitted quantity, matched to a row by denomination name.
type CashCountInput struct {
	Name     string `json:"name"`
	Quantity *int64 `json:"quantity"`
}

// ApplyCashCountInputs writes submitted quantities into the merged rows.
// Unknown denominations, duplicates and negative quantities are rejected.
func ApplyCashCountInputs(rows []CashCountRow, inputs []CashCountInput) ([]CashCountRow, error) {
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		index[denominationKey(r.Name)] = i
	}
	out := make([]CashCountRow, len(rows))
	copy(out, rows)
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		field := "cash_counts[" + strconv.Itoa(i) + "]"
		key := denominationKey(in.Name)
		if key == "" {
			return nil, NewValidationError(field+".name", "is required")
		}
		pos, ok := index[key]
		if !ok {
			return nil, NewValidationError(field+".name", "unknown denomination "+strconv.Quote(in.Name))
		}
		if seen[key] {
			return nil, NewValidationError(field+".name", "duplicate denomination "+strconv.Quote(in.Name))
		}
		seen[key] = true
		if in.Quantity != nil && *in.Quantity < 0 {
			return nil, NewValidationError(field+".quantity", "must be greater than or equal to 0")
		}
		if in.Quantity == nil {
			out[pos].Quantity = nil
			continue
		}
		q := *in.Quantity
		out[pos].Quantity = &q
	}
	return out, nil
}
