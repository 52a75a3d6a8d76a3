package models

import "time"

// BatchStateOf derives the lifecycle state from the persisted flags.
// A nil batch means the employee has no batch at all.
func BatchStateOf(b *TransactionBatch) BatchState {
	switch {
	case b == nil:
		return BatchStateNoBatch
	case b.IsClosed:
		return BatchStateClosed
	case b.CanView:
		return BatchStateViewApproved
	case b.RequestView != nil:
		return BatchStateViewRequested
	default:
		return BatchStateOpen
	}
}

// EnsureCanOpen rejects opening while the employee still has a batch that is not closed.
func EnsureCanOpen(existing *TransactionBatch) error {
	state := BatchStateOf(existing)
	if state == BatchStateNoBatch || state == BatchStateClosed {
		return nil
	}
	return conflict("open batch", state, ErrBatchAlreadyOpen)
}

// EnsureMutable guards cash count, remittance, disbursement and deposit changes.
func EnsureMutable(b *TransactionBatch, op string) error {
	switch state := BatchStateOf(b); state {
	case BatchStateNoBatch:
		return conflict(op, state, ErrNoOpenBatch)
	case BatchStateClosed:
		return conflict(op, state, ErrBatchClosed)
	}
	return nil
}

// RequestViewAccess moves OPEN to VIEW_REQUESTED.
func RequestViewAccess(b *TransactionBatch, now time.Time) error {
	const op = "request blotter view"
	switch state := BatchStateOf(b); state {
	case BatchStateOpen:
		b.RequestView = &now
		return nil
	case BatchStateNoBatch:
		return conflict(op, state, ErrNoOpenBatch)
	case BatchStateViewRequested:
		return conflict(op, state, ErrViewAlreadyRequested)
	case BatchStateViewApproved:
		return conflict(op, state, ErrViewAlreadyGranted)
	default:
		return conflict(op, state, ErrBatchClosed)
	}
}

// ApproveViewAccess moves VIEW_REQUESTED to VIEW_APPROVED.
func ApproveViewAccess(b *TransactionBatch, approverId int, now time.Time) error {
	const op = "approve blotter view"
	switch state := BatchStateOf(b); state {
	case BatchStateViewRequested:
		b.CanView = true
		b.RequestView = nil
		b.ViewApprovedBy = &approverId
		b.ViewApprovedAt = &now
		return nil
	case BatchStateNoBatch:
		return conflict(op, state, ErrNoOpenBatch)
	case BatchStateOpen:
		return conflict(op, state, ErrViewNotRequested)
	case BatchStateViewApproved:
		return conflict(op, state, ErrViewAlreadyGranted)
	default:
		return conflict(op, state, ErrBatchClosed)
	}
}

// DenyViewAccess drops a pending request, returning the batch to OPEN.
func DenyViewAccess(b *TransactionBatch) error {
	const op = "deny blotter view"
	switch state := BatchStateOf(b); state {
	case BatchStateViewRequested:
		b.RequestView = nil
		return nil
	case BatchStateNoBatch:
		return conflict(op, state, ErrNoOpenBatch)
	case BatchStateOpen:
		return conflict(op, state, ErrViewNotRequested)
	case BatchStateViewApproved:
		return conflict(op, state, ErrViewAlreadyGranted)
	default:
		return conflict(op, state, ErrBatchClosed)
	}
}

// CloseBatch ends the shift. Closing is terminal.
// input must already be validated; signatureUrl is the stored end signature.
func CloseBatch(b *TransactionBatch, input *EndBatchInput, signatureUrl string, now time.Time) error {
	if err := EnsureCanClose(b); err != nil {
		return err
	}
	b.IsClosed = true
	b.OpenSlot = nil
	b.EndSignatureUrl = signatureUrl
	b.EndName = input.Name
	b.EndPosition = input.Position
	b.ClosedAt = &now
	return nil
}

// EnsureCanClose allows OPEN and VIEW_APPROVED only.
func EnsureCanClose(b *TransactionBatch) error {
	const op = "end batch"
	switch state := BatchStateOf(b); state {
	case BatchStateOpen, BatchStateViewApproved:
		return nil
	case BatchStateNoBatch:
		return conflict(op, state, ErrNoOpenBatch)
	case BatchStateViewRequested:
		return conflict(op, state, ErrViewRequestPending)
	default:
		return conflict(op, state, ErrBatchClosed)
	}
}

// EnsureBlotterVisible lets a teller read the blotter once access was
// approved, or after the batch closed.
func EnsureBlotterVisible(b *TransactionBatch) error {
	const op = "view blotter"
	switch state := BatchStateOf(b); state {
	case BatchStateViewApproved, BatchStateClosed:
		return nil
	case BatchStateNoBatch:
		return conflict(op, state, ErrNoOpenBatch)
	case BatchStateViewRequested:
		return conflict(op, state, ErrViewRequestPending)
	default:
		return conflict(op, state, ErrViewNotRequested)
	}
}
