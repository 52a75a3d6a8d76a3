package models

import (
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
)

type BalanceResult struct {
	Status     BalanceStatus   `json:"status"`
	Difference decimal.Decimal `json:"difference"`
}

// ClassifyBalance compares actual against supposed at cent precision.
// Both operands are rounded before subtracting, so sub-cent noise never
// shows up as an overage or shortage.
func ClassifyBalance(actual, supposed decimal.Decimal) BalanceResult {
	diff := utils.Subtract(utils.Round2(actual), utils.Round2(supposed))
	switch diff.Sign() {
	case 0:
		return BalanceResult{Status: BalanceStatusBalanced, Difference: decimal.Zero}
	case 1:
		return BalanceResult{Status: BalanceStatusOverage, Difference: diff}
	default:
		return BalanceResult{Status: BalanceStatusShortage, Difference: diff}
	}
}

// ClassifyBalanceFloat accepts finite float inputs, e.g. amounts from a
// client that computed them in binary floating point.
func ClassifyBalanceFloat(actual, supposed float64) BalanceResult {
	return ClassifyBalance(decimal.NewFromFloat(actual), decimal.NewFromFloat(supposed))
}

type BlotterSummary struct {
	TransactionBatchId int `json:"transaction_batch_id"`

	BeginningBalance    decimal.Decimal `json:"beginning_balance"`
	TotalCashCollection decimal.Decimal `json:"total_cash_collection"`
	TotalDepositEntry   decimal.Decimal `json:"total_deposit_entry"`
	CollectionTotal     decimal.Decimal `json:"collection_total"`

	SavingsWithdrawal     decimal.Decimal `json:"savings_withdrawal"`
	TimeDepositWithdrawal decimal.Decimal `json:"time_deposit_withdrawal"`
	LoanReleases          decimal.Decimal `json:"loan_releases"`
	PettyCash             decimal.Decimal `json:"petty_cash"`
	DisbursementTotal     decimal.Decimal `json:"disbursement_total"`

	TotalSupposedRemittance decimal.Decimal `json:"total_supposed_remittance"`
	TotalCashOnHand         decimal.Decimal `json:"total_cash_on_hand"`
	TotalCheckRemittance    decimal.Decimal `json:"total_check_remittance"`
	TotalOnlineRemittance   decimal.Decimal `json:"total_online_remittance"`
	TotalDepositInBank      decimal.Decimal `json:"total_deposit_in_bank"`
	TotalActualRemittance   decimal.Decimal `json:"total_actual_remittance"`

	Comparison decimal.Decimal `json:"comparison"`
	Status     BalanceStatus   `json:"status"`
}

// ComputeBlotter reads the already aggregated totals of the batch and adds the
// collection and disbursement lines plus the balance verdict.
func ComputeBlotter(b *TransactionBatch) BlotterSummary {
	buckets := DisbursementBuckets{
		SavingsWithdrawal:     b.SavingsWithdrawal,
		TimeDepositWithdrawal: b.TimeDepositWithdrawal,
		LoanReleases:          b.LoanReleases,
		PettyCash:             b.PettyCash,
	}
	verdict := ClassifyBalance(b.TotalActualRemittance, b.TotalSupposedRemitance)
	return BlotterSummary{
		TransactionBatchId:      b.ID,
		BeginningBalance:        b.BeginningBalance,
		TotalCashCollection:     b.TotalCashCollection,
		TotalDepositEntry:       b.TotalDepositEntry,
		CollectionTotal:         utils.Sum(b.BeginningBalance, b.TotalCashCollection, b.TotalDepositEntry),
		SavingsWithdrawal:       b.SavingsWithdrawal,
		TimeDepositWithdrawal:   b.TimeDepositWithdrawal,
		LoanReleases:            b.LoanReleases,
		PettyCash:               b.PettyCash,
		DisbursementTotal:       buckets.Total(),
		TotalSupposedRemittance: b.TotalSupposedRemitance,
		TotalCashOnHand:         b.TotalCashOnHand,
		TotalCheckRemittance:    b.TotalCheckRemittance,
		TotalOnlineRemittance:   b.TotalOnlineRemittance,
		TotalDepositInBank:      b.DepositInBank,
		TotalActualRemittance:   b.TotalActualRemittance,
		Comparison:              verdict.Difference,
		Status:                  verdict.Status,
	}
}

// BatchConstituents are the records every derived total is rebuilt from.
type BatchConstituents struct {
	CashCounts        []*CashCount
	CheckRemittances  []*CheckRemittance
	OnlineRemittances []*OnlineRemittance
	Disbursements     []*DisbursementTransaction
	CategoryCodes     map[int]DisbursementCode
}

// RecomputeBatchTotals rebuilds every derived field of b from its records.
// Totals are never edited directly.
func RecomputeBatchTotals(b *TransactionBatch, c BatchConstituents) {
	cashCountTotal := decimal.Zero
	for _, cc := range c.CashCounts {
		cashCountTotal = utils.Add(cashCountTotal, utils.Multiply(cc.BillAmount, decimal.NewFromInt(cc.Quantity)))
	}
	buckets := BucketDisbursements(c.Disbursements, c.CategoryCodes)

	b.CashCountTotal = utils.Round2(cashCountTotal)
	b.GrandTotal = utils.Round2(utils.Add(cashCountTotal, b.DepositInBank))
	b.TotalCheckRemittance = utils.Round2(ComputeRemittanceTotal(c.CheckRemittances))
	b.TotalOnlineRemittance = utils.Round2(ComputeRemittanceTotal(c.OnlineRemittances))
	b.SavingsWithdrawal = utils.Round2(buckets.SavingsWithdrawal)
	b.TimeDepositWithdrawal = utils.Round2(buckets.TimeDepositWithdrawal)
	b.LoanReleases = utils.Round2(buckets.LoanReleases)
	b.PettyCash = utils.Round2(buckets.PettyCash)
	b.TotalCashOnHand = b.CashCountTotal
	b.TotalActualRemittance = utils.Round2(utils.Sum(b.TotalCashOnHand, b.TotalCheckRemittance, b.TotalOnlineRemittance, b.DepositInBank))
	b.TotalSupposedRemitance = utils.Round2(utils.Subtract(
		utils.Sum(b.BeginningBalance, b.TotalCashCollection, b.TotalDepositEntry),
		buckets.Total(),
	))
	b.TotalActualSupposedComparison = ClassifyBalance(b.TotalActualRemittance, b.TotalSupposedRemitance).Difference
}
