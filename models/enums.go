package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type BatchState string

const (
	BatchStateNoBatch       BatchState = "NO_BATCH"
	BatchStateOpen          BatchState = "OPEN"
	BatchStateViewRequested BatchState = "VIEW_REQUESTED"
	BatchStateViewApproved  BatchState = "VIEW_APPROVED"
	BatchStateClosed        BatchState = "CLOSED"
)

type BalanceStatus string

const (
	BalanceStatusBalanced BalanceStatus = "BALANCED"
	BalanceStatusOverage  BalanceStatus = "OVERAGE"
	BalanceStatusShortage BalanceStatus = "SHORTAGE"
)

// EventAction is the last segment of a realtime topic.
type EventAction string

const (
	EventActionCreate EventAction = "create"
	EventActionUpdate EventAction = "update"
	EventActionDelete EventAction = "delete"
)

func (t EventAction) IsValid() bool {
	switch t {
	case EventActionCreate, EventActionUpdate, EventActionDelete:
		return true
	}
	return false
}

type EventEntity string

const (
	EventEntityTransactionBatch EventEntity = "transaction-batch"
	EventEntityCashCount        EventEntity = "cash-count"
	EventEntityCheckRemittance  EventEntity = "check-remittance"
	EventEntityOnlineRemittance EventEntity = "online-remittance"
	EventEntityDisbursement     EventEntity = "disbursement-transaction"
	EventEntityBillsAndCoins    EventEntity = "bills-and-coins"
)

// TopicCatalogUpdate is published whenever denomination rows change.
const TopicCatalogUpdate = "bills-and-coins.update"

// BatchTopic builds "<entity>.transaction-batch.<batchId>.<action>".
func BatchTopic(entity EventEntity, batchId int, action EventAction) string {
	return string(entity) + "." + string(EventEntityTransactionBatch) + "." + strconv.Itoa(batchId) + "." + string(action)
}

// ParseBatchTopic is the inverse of BatchTopic.
func ParseBatchTopic(topic string) (EventEntity, int, EventAction, error) {
	parts := strings.Split(topic, ".")
	if len(parts) != 4 || parts[1] != string(EventEntityTransactionBatch) {
		return "", 0, "", errors.New("invalid batch topic " + strconv.Quote(topic))
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil || id <= 0 {
		return "", 0, "", errors.New("invalid batch id in topic " + strconv.Quote(topic))
	}
	action := EventAction(parts[3])
	if !action.IsValid() {
		return "", 0, "", errors.New("invalid action in topic " + strconv.Quote(topic))
	}
	return EventEntity(parts[0]), id, action, nil
}

// DisbursementCode maps a disbursement category onto one blotter bucket.
type DisbursementCode string

const (
	DisbursementCodeSavingsWithdrawal     DisbursementCode = "SAVINGS_WITHDRAWAL"
	DisbursementCodeTimeDepositWithdrawal DisbursementCode = "TIME_DEPOSIT_WITHDRAWAL"
	DisbursementCodeLoanRelease           DisbursementCode = "LOAN_RELEASE"
	DisbursementCodePettyCash             DisbursementCode = "PETTY_CASH"
)

func (t *DisbursementCode) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("disbursement code must be string")
	}
	switch str {
	case "SAVINGS_WITHDRAWAL":
		*t = DisbursementCodeSavingsWithdrawal
	case "TIME_DEPOSIT_WITHDRAWAL":
		*t = DisbursementCodeTimeDepositWithdrawal
	case "LOAN_RELEASE":
		*t = DisbursementCodeLoanRelease
	case "PETTY_CASH":
		*t = DisbursementCodePettyCash
	default:
		return errors.New("invalid disbursement code")
	}
	return nil
}

type EmployeeRole string

const (
	EmployeeRoleTeller   EmployeeRole = "TELLER"
	EmployeeRoleApprover EmployeeRole = "APPROVER"
)

func (t *EmployeeRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("employee role must be string")
	}
	switch str {
	case "TELLER":
		*t = EmployeeRoleTeller
	case "APPROVER":
		*t = EmployeeRoleApprover
	default:
		return errors.New("invalid employee role")
	}
	return nil
}
