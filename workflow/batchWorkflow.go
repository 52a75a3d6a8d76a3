package workflow

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const openBatchLockTTL = 15 * time.Second

type Repositories struct {
	Batches       models.Repository[models.TransactionBatch]
	CashCounts    models.Repository[models.CashCount]
	Checks        models.Repository[models.CheckRemittance]
	Onlines       models.Repository[models.OnlineRemittance]
	Disbursements models.Repository[models.DisbursementTransaction]
	Categories    models.Repository[models.DisbursementCategory]
	Banks         models.Repository[models.Bank]
}

// NewGormRepositories wires every repository to MySQL.
func NewGormRepositories() Repositories {
	return Repositories{
		Batches:       models.NewGormRepository[models.TransactionBatch](nil),
		CashCounts:    models.NewGormRepository[models.CashCount](nil),
		Checks:        models.NewGormRepository[models.CheckRemittance](nil),
		Onlines:       models.NewGormRepository[models.OnlineRemittance](nil),
		Disbursements: models.NewGormRepository[models.DisbursementTransaction](nil),
		Categories:    models.NewGormRepository[models.DisbursementCategory](nil),
		Banks:         models.NewGormRepository[models.Bank](nil),
	}
}

// SessionStore remembers the current batch of each employee.
type SessionStore interface {
	Remember(employeeId, batchId int)
	Lookup(employeeId int) (int, bool)
	Forget(employeeId int)
}

// BatchWorkflow runs every batch lifecycle and mutation operation.
//
// Each mutation locks the batch row, applies the change, rebuilds the derived
// totals from the stored records and writes an outbox event, all in one
// transaction.
type BatchWorkflow struct {
	Repos      Repositories
	Tx         models.Transactor
	Catalog    models.DenominationCatalog
	Events     EventPublisher
	Confirmer  Confirmer
	Locker     Locker
	Signatures SignatureStore
	Session    SessionStore
	Tracer     trace.Tracer
	Now        func() time.Time
}

type Blotter struct {
	State         models.BatchState          `json:"state"`
	Summary       models.BlotterSummary      `json:"summary"`
	Disbursements []models.DisbursementGroup `json:"disbursements"`
}

type CashCountSheet struct {
	TransactionBatchId int                   `json:"transaction_batch_id"`
	Rows               []models.CashCountRow `json:"rows"`
	DeletedCashCounts  []int                 `json:"deleted_cash_counts"`
	Total              decimal.Decimal       `json:"total"`
}

func (w *BatchWorkflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *BatchWorkflow) startSpan(ctx context.Context, name string, actor Actor) (context.Context, trace.Span) {
	tracer := w.Tracer
	if tracer == nil {
		tracer = otel.Tracer("teller-backend")
	}
	return tracer.Start(ctx, "BatchWorkflow."+name, trace.WithAttributes(
		attribute.Int("employee_id", actor.EmployeeId),
		attribute.Int("branch_id", actor.BranchId),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func (w *BatchWorkflow) publish(ctx context.Context, b *models.TransactionBatch, entity models.EventEntity, action models.EventAction, obj interface{}) error {
	record, err := models.NewBatchEventRecord(ctx, b.BranchId, b.ID, entity, action, obj)
	if err != nil {
		return err
	}
	return w.Events.Publish(ctx, record)
}

// authorize hides batches of other employees from tellers and batches of
// other branches from everyone.
func authorize(actor Actor, b *models.TransactionBatch) error {
	if actor.BranchId > 0 && b.BranchId != actor.BranchId {
		return &models.NotFoundError{Resource: "TransactionBatch", ID: b.ID}
	}
	if actor.Role != models.EmployeeRoleApprover && b.EmployeeId != actor.EmployeeId {
		return &models.NotFoundError{Resource: "TransactionBatch", ID: b.ID}
	}
	return nil
}

func requireApprover(actor Actor) error {
	if actor.Role != models.EmployeeRoleApprover {
		return ErrApproverRequired
	}
	return nil
}

func (w *BatchWorkflow) loadBatch(ctx context.Context, actor Actor, batchId int) (*models.TransactionBatch, error) {
	b, err := w.Repos.Batches.GetById(ctx, batchId)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

// activeBatch returns the employee's batch that is not closed, or nil.
func (w *BatchWorkflow) activeBatch(ctx context.Context, employeeId int) (*models.TransactionBatch, error) {
	list, err := w.Repos.Batches.FindAll(ctx, models.Where("employee_id", employeeId), models.Where("is_closed", false))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (w *BatchWorkflow) categoryCodes(ctx context.Context) (map[int]models.DisbursementCode, map[int]*models.DisbursementCategory, error) {
	categories, err := w.Repos.Categories.FindAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	codes := make(map[int]models.DisbursementCode, len(categories))
	byId := make(map[int]*models.DisbursementCategory, len(categories))
	for _, c := range categories {
		codes[c.ID] = c.Code
		byId[c.ID] = c
	}
	return codes, byId, nil
}

// recompute rebuilds the derived totals of b from its stored records.
func (w *BatchWorkflow) recompute(ctx context.Context, b *models.TransactionBatch) error {
	byBatch := models.Where("transaction_batch_id", b.ID)
	cashCounts, err := w.Repos.CashCounts.FindAll(ctx, byBatch)
	if err != nil {
		return err
	}
	checks, err := w.Repos.Checks.FindAll(ctx, byBatch)
	if err != nil {
		return err
	}
	onlines, err := w.Repos.Onlines.FindAll(ctx, byBatch)
	if err != nil {
		return err
	}
	disbursements, err := w.Repos.Disbursements.FindAll(ctx, byBatch)
	if err != nil {
		return err
	}
	codes, _, err := w.categoryCodes(ctx)
	if err != nil {
		return err
	}
	models.RecomputeBatchTotals(b, models.BatchConstituents{
		CashCounts:        cashCounts,
		CheckRemittances:  checks,
		OnlineRemittances: onlines,
		Disbursements:     disbursements,
		CategoryCodes:     codes,
	})
	return nil
}

// discardSignature removes a signature uploaded for a change that failed.
// The change's error is what the caller sees; a failed removal is only logged.
func (w *BatchWorkflow) discardSignature(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := w.Signatures.Remove(context.WithoutCancel(ctx), url); err != nil {
		config.LogError(config.GetLogger(), "batchWorkflow.go", "discardSignature", "remove signature", url, err)
	}
}

// transition applies fn to the locked batch row and emits a batch update event.
func (w *BatchWorkflow) transition(ctx context.Context, actor Actor, batchId int, fn func(ctx context.Context, b *models.TransactionBatch) error) (*models.TransactionBatch, error) {
	var updated *models.TransactionBatch
	err := w.Tx.InTx(ctx, func(ctx context.Context) error {
		b, err := w.Repos.Batches.UpdateById(ctx, batchId, func(b *models.TransactionBatch) error {
			if err := authorize(actor, b); err != nil {
				return err
			}
			return fn(ctx, b)
		})
		if err != nil {
			return err
		}
		updated = b
		return w.publish(ctx, b, models.EventEntityTransactionBatch, models.EventActionUpdate, b)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// mutateBatch is transition for record changes: the batch must not be closed
// and totals are recomputed after fn.
func (w *BatchWorkflow) mutateBatch(ctx context.Context, actor Actor, batchId int, op string, fn func(ctx context.Context, b *models.TransactionBatch) error) (*models.TransactionBatch, error) {
	return w.transition(ctx, actor, batchId, func(ctx context.Context, b *models.TransactionBatch) error {
		if err := models.EnsureMutable(b, op); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(ctx, b); err != nil {
				return err
			}
		}
		return w.recompute(ctx, b)
	})
}

func (w *BatchWorkflow) OpenBatch(ctx context.Context, actor Actor, input *models.NewTransactionBatch) (result *models.TransactionBatch, err error) {
	const op = "open batch"
	ctx, span := w.startSpan(ctx, "OpenBatch", actor)
	defer func() { endSpan(span, err) }()

	if err := input.Validate(); err != nil {
		return nil, err
	}
	release, err := w.Locker.Obtain(ctx, "OpenBatch:"+strconv.Itoa(actor.EmployeeId), openBatchLockTTL)
	if err != nil {
		if errors.Is(err, utils.ErrLockNotObtained) {
			return nil, models.NewStateConflictError(op, models.BatchStateNoBatch, models.ErrBatchAlreadyOpen)
		}
		return nil, models.AsCollaboratorError(op, err)
	}
	defer release()

	existing, err := w.activeBatch(ctx, actor.EmployeeId)
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	if err := models.EnsureCanOpen(existing); err != nil {
		return nil, err
	}
	signatureUrl, err := w.Signatures.Store(ctx, actor, "provider", input.ProviderSignature)
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}

	batch := models.NewOpenBatch(actor.BranchId, actor.EmployeeId, input, signatureUrl)
	models.RecomputeBatchTotals(batch, models.BatchConstituents{})
	err = w.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := w.Repos.Batches.Create(ctx, batch); err != nil {
			if errors.Is(err, models.ErrDuplicateKey) {
				return models.NewStateConflictError(op, models.BatchStateOpen, models.ErrBatchAlreadyOpen)
			}
			return err
		}
		return w.publish(ctx, batch, models.EventEntityTransactionBatch, models.EventActionCreate, batch)
	})
	if err != nil {
		w.discardSignature(ctx, signatureUrl)
		return nil, models.AsCollaboratorError(op, err)
	}
	w.Session.Remember(actor.EmployeeId, batch.ID)
	return batch, nil
}

// CurrentBatch returns the actor's batch that is not closed, or nil.
func (w *BatchWorkflow) CurrentBatch(ctx context.Context, actor Actor) (*models.TransactionBatch, error) {
	if id, ok := w.Session.Lookup(actor.EmployeeId); ok {
		b, err := w.Repos.Batches.GetById(ctx, id)
		if err == nil && !b.IsClosed && b.EmployeeId == actor.EmployeeId {
			return b, nil
		}
		var nf *models.NotFoundError
		if err != nil && !errors.As(err, &nf) {
			return nil, models.AsCollaboratorError("current batch", err)
		}
		w.Session.Forget(actor.EmployeeId)
	}
	b, err := w.activeBatch(ctx, actor.EmployeeId)
	if err != nil {
		return nil, models.AsCollaboratorError("current batch", err)
	}
	if b != nil {
		w.Session.Remember(actor.EmployeeId, b.ID)
	}
	return b, nil
}

func (w *BatchWorkflow) RequestView(ctx context.Context, actor Actor, credential string) (result *models.TransactionBatch, err error) {
	const op = "request blotter view"
	ctx, span := w.startSpan(ctx, "RequestView", actor)
	defer func() { endSpan(span, err) }()

	current, err := w.CurrentBatch(ctx, actor)
	if err != nil {
		return nil, err
	}
	// reject illegal requests before prompting for confirmation
	if current == nil {
		return nil, models.RequestViewAccess(nil, w.now())
	}
	trial := *current
	if err := models.RequestViewAccess(&trial, w.now()); err != nil {
		return nil, err
	}
	if err := w.Confirmer.Confirm(ctx, actor, ConfirmActionRequestView, credential); err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	result, err = w.transition(ctx, actor, current.ID, func(ctx context.Context, b *models.TransactionBatch) error {
		return models.RequestViewAccess(b, w.now())
	})
	return result, models.AsCollaboratorError(op, err)
}

func (w *BatchWorkflow) ApproveView(ctx context.Context, actor Actor, batchId int) (result *models.TransactionBatch, err error) {
	ctx, span := w.startSpan(ctx, "ApproveView", actor)
	defer func() { endSpan(span, err) }()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	result, err = w.transition(ctx, actor, batchId, func(ctx context.Context, b *models.TransactionBatch) error {
		return models.ApproveViewAccess(b, actor.EmployeeId, w.now())
	})
	return result, models.AsCollaboratorError("approve blotter view", err)
}

func (w *BatchWorkflow) DenyView(ctx context.Context, actor Actor, batchId int) (result *models.TransactionBatch, err error) {
	ctx, span := w.startSpan(ctx, "DenyView", actor)
	defer func() { endSpan(span, err) }()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	result, err = w.transition(ctx, actor, batchId, func(ctx context.Context, b *models.TransactionBatch) error {
		return models.DenyViewAccess(b)
	})
	return result, models.AsCollaboratorError("deny blotter view", err)
}

func (w *BatchWorkflow) CloseBatch(ctx context.Context, actor Actor, input *models.EndBatchInput, credential string) (result *models.TransactionBatch, err error) {
	const op = "end batch"
	ctx, span := w.startSpan(ctx, "CloseBatch", actor)
	defer func() { endSpan(span, err) }()

	current, err := w.CurrentBatch(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := models.EnsureCanClose(current); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := w.Confirmer.Confirm(ctx, actor, ConfirmActionEndBatch, credential); err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	signatureUrl, err := w.Signatures.Store(ctx, actor, "end", input.Signature)
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	result, err = w.transition(ctx, actor, current.ID, func(ctx context.Context, b *models.TransactionBatch) error {
		if err := models.EnsureCanClose(b); err != nil {
			return err
		}
		if err := w.recompute(ctx, b); err != nil {
			return err
		}
		return models.CloseBatch(b, input, signatureUrl, w.now())
	})
	if err != nil {
		w.discardSignature(ctx, signatureUrl)
		return nil, models.AsCollaboratorError(op, err)
	}
	w.Session.Forget(actor.EmployeeId)
	return result, nil
}

// countryOfCurrency maps an ISO 4217 code to the country of its catalog.
func countryOfCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) == 3 {
		return currency[:2]
	}
	return config.DefaultCountryCode()
}

func derefCashCounts(list []*models.CashCount) []models.CashCount {
	out := make([]models.CashCount, 0, len(list))
	for _, c := range list {
		out = append(out, *c)
	}
	return out
}

func (w *BatchWorkflow) mergeCashCounts(ctx context.Context, b *models.TransactionBatch) (models.CashCountMerge, error) {
	denominations, err := w.Catalog.GetDenominations(ctx, countryOfCurrency(b.Currency))
	if err != nil {
		return models.CashCountMerge{}, err
	}
	counts, err := w.Repos.CashCounts.FindAll(ctx, models.Where("transaction_batch_id", b.ID))
	if err != nil {
		return models.CashCountMerge{}, err
	}
	return models.MergeDenominationsWithCounts(denominations, derefCashCounts(counts)), nil
}

func (w *BatchWorkflow) GetCashCountSheet(ctx context.Context, actor Actor, batchId int) (*CashCountSheet, error) {
	b, err := w.loadBatch(ctx, actor, batchId)
	if err != nil {
		return nil, models.AsCollaboratorError("get cash counts", err)
	}
	merge, err := w.mergeCashCounts(ctx, b)
	if err != nil {
		return nil, models.AsCollaboratorError("get cash counts", err)
	}
	return &CashCountSheet{
		TransactionBatchId: b.ID,
		Rows:               merge.Rows,
		DeletedCashCounts:  utils.UniqueSlice(merge.DeletedCashCounts),
		Total:              models.ComputeCashCountTotal(merge.Rows),
	}, nil
}

// SaveCashCounts applies submitted quantities to the sheet and stores it as one
// set: positive quantities are upserted, zeroed rows and stale denominations
// deleted.
func (w *BatchWorkflow) SaveCashCounts(ctx context.Context, actor Actor, batchId int, inputs []models.CashCountInput) (sheet *CashCountSheet, err error) {
	const op = "save cash counts"
	ctx, span := w.startSpan(ctx, "SaveCashCounts", actor)
	defer func() { endSpan(span, err) }()

	_, err = w.mutateBatch(ctx, actor, batchId, op, func(ctx context.Context, b *models.TransactionBatch) error {
		merge, err := w.mergeCashCounts(ctx, b)
		if err != nil {
			return err
		}
		rows, err := models.ApplyCashCountInputs(merge.Rows, inputs)
		if err != nil {
			return err
		}
		plan := models.PrepareSave(b, rows)
		deletes := utils.UniqueSlice(append(plan.DeletedCashCounts, merge.DeletedCashCounts...))
		created := make(map[*models.CashCount]bool, len(plan.CashCounts))
		for _, c := range plan.CashCounts {
			created[c] = c.ID == 0
		}
		if err := w.Repos.CashCounts.SaveSet(ctx, plan.CashCounts, deletes); err != nil {
			return err
		}
		for _, c := range plan.CashCounts {
			action := models.EventActionUpdate
			if created[c] {
				action = models.EventActionCreate
			}
			if err := w.publish(ctx, b, models.EventEntityCashCount, action, c); err != nil {
				return err
			}
		}
		for _, id := range deletes {
			gone := &models.CashCount{ID: id, BranchId: b.BranchId, TransactionBatchId: b.ID}
			if err := w.publish(ctx, b, models.EventEntityCashCount, models.EventActionDelete, gone); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	return w.GetCashCountSheet(ctx, actor, batchId)
}

// childRecord binds one record kind of a batch to its repository and topic.
type childRecord[T any] struct {
	entity  models.EventEntity
	repo    models.Repository[T]
	batchOf func(*T) int
}

func (w *BatchWorkflow) checkRecords() childRecord[models.CheckRemittance] {
	return childRecord[models.CheckRemittance]{
		entity:  models.EventEntityCheckRemittance,
		repo:    w.Repos.Checks,
		batchOf: func(r *models.CheckRemittance) int { return r.TransactionBatchId },
	}
}

func (w *BatchWorkflow) onlineRecords() childRecord[models.OnlineRemittance] {
	return childRecord[models.OnlineRemittance]{
		entity:  models.EventEntityOnlineRemittance,
		repo:    w.Repos.Onlines,
		batchOf: func(r *models.OnlineRemittance) int { return r.TransactionBatchId },
	}
}

func (w *BatchWorkflow) disbursementRecords() childRecord[models.DisbursementTransaction] {
	return childRecord[models.DisbursementTransaction]{
		entity:  models.EventEntityDisbursement,
		repo:    w.Repos.Disbursements,
		batchOf: func(d *models.DisbursementTransaction) int { return d.TransactionBatchId },
	}
}

func createChild[T any](ctx context.Context, w *BatchWorkflow, actor Actor, batchId int, op string, kind childRecord[T], build func(b *models.TransactionBatch) *T) (*T, error) {
	var record *T
	_, err := w.mutateBatch(ctx, actor, batchId, op, func(ctx context.Context, b *models.TransactionBatch) error {
		record = build(b)
		if err := kind.repo.Create(ctx, record); err != nil {
			return err
		}
		return w.publish(ctx, b, kind.entity, models.EventActionCreate, record)
	})
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	return record, nil
}

func updateChild[T any](ctx context.Context, w *BatchWorkflow, actor Actor, batchId, id int, op string, kind childRecord[T], apply func(*T)) (*T, error) {
	var record *T
	_, err := w.mutateBatch(ctx, actor, batchId, op, func(ctx context.Context, b *models.TransactionBatch) error {
		updated, err := kind.repo.UpdateById(ctx, id, func(r *T) error {
			if kind.batchOf(r) != b.ID {
				return &models.NotFoundError{Resource: string(kind.entity), ID: id}
			}
			apply(r)
			return nil
		})
		if err != nil {
			return err
		}
		record = updated
		return w.publish(ctx, b, kind.entity, models.EventActionUpdate, record)
	})
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	return record, nil
}

func deleteChild[T any](ctx context.Context, w *BatchWorkflow, actor Actor, batchId, id int, op string, kind childRecord[T]) (*T, error) {
	var record *T
	_, err := w.mutateBatch(ctx, actor, batchId, op, func(ctx context.Context, b *models.TransactionBatch) error {
		existing, err := kind.repo.GetById(ctx, id)
		if err != nil {
			return err
		}
		if kind.batchOf(existing) != b.ID {
			return &models.NotFoundError{Resource: string(kind.entity), ID: id}
		}
		if record, err = kind.repo.DeleteById(ctx, id); err != nil {
			return err
		}
		return w.publish(ctx, b, kind.entity, models.EventActionDelete, record)
	})
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	return record, nil
}

func listChildren[T any](ctx context.Context, w *BatchWorkflow, actor Actor, batchId int, kind childRecord[T], query models.PageQuery) (*models.PaginatedResult[T], error) {
	if _, err := w.loadBatch(ctx, actor, batchId); err != nil {
		return nil, models.AsCollaboratorError("list "+string(kind.entity), err)
	}
	query.Filters = append(query.Filters, models.Where("transaction_batch_id", batchId))
	result, err := kind.repo.GetPaginated(ctx, query)
	if err != nil {
		return nil, models.AsCollaboratorError("list "+string(kind.entity), err)
	}
	return result, nil
}

// ensureReference turns a missing bank or category into a ValidationError.
func ensureReference[T any](ctx context.Context, repo models.Repository[T], field string, id int) error {
	if _, err := repo.GetById(ctx, id); err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return models.NewValidationError(field, "does not exist")
		}
		return err
	}
	return nil
}

func (w *BatchWorkflow) validateRemittance(ctx context.Context, op string, input *models.NewRemittance) error {
	if err := input.Validate(); err != nil {
		return err
	}
	return models.AsCollaboratorError(op, ensureReference(ctx, w.Repos.Banks, "bank_id", input.BankId))
}

func (w *BatchWorkflow) CreateCheckRemittance(ctx context.Context, actor Actor, batchId int, input *models.NewRemittance) (*models.CheckRemittance, error) {
	const op = "create check remittance"
	if err := w.validateRemittance(ctx, op, input); err != nil {
		return nil, err
	}
	return createChild(ctx, w, actor, batchId, op, w.checkRecords(), input.ToCheck)
}

func (w *BatchWorkflow) UpdateCheckRemittance(ctx context.Context, actor Actor, batchId, id int, input *models.NewRemittance) (*models.CheckRemittance, error) {
	const op = "update check remittance"
	if err := w.validateRemittance(ctx, op, input); err != nil {
		return nil, err
	}
	return updateChild(ctx, w, actor, batchId, id, op, w.checkRecords(), input.ApplyToCheck)
}

func (w *BatchWorkflow) DeleteCheckRemittance(ctx context.Context, actor Actor, batchId, id int) (*models.CheckRemittance, error) {
	return deleteChild(ctx, w, actor, batchId, id, "delete check remittance", w.checkRecords())
}

func (w *BatchWorkflow) ListCheckRemittances(ctx context.Context, actor Actor, batchId int, query models.PageQuery) (*models.PaginatedResult[models.CheckRemittance], error) {
	return listChildren(ctx, w, actor, batchId, w.checkRecords(), query)
}

func (w *BatchWorkflow) CreateOnlineRemittance(ctx context.Context, actor Actor, batchId int, input *models.NewRemittance) (*models.OnlineRemittance, error) {
	const op = "create online remittance"
	if err := w.validateRemittance(ctx, op, input); err != nil {
		return nil, err
	}
	return createChild(ctx, w, actor, batchId, op, w.onlineRecords(), input.ToOnline)
}

func (w *BatchWorkflow) UpdateOnlineRemittance(ctx context.Context, actor Actor, batchId, id int, input *models.NewRemittance) (*models.OnlineRemittance, error) {
	const op = "update online remittance"
	if err := w.validateRemittance(ctx, op, input); err != nil {
		return nil, err
	}
	return updateChild(ctx, w, actor, batchId, id, op, w.onlineRecords(), input.ApplyToOnline)
}

func (w *BatchWorkflow) DeleteOnlineRemittance(ctx context.Context, actor Actor, batchId, id int) (*models.OnlineRemittance, error) {
	return deleteChild(ctx, w, actor, batchId, id, "delete online remittance", w.onlineRecords())
}

func (w *BatchWorkflow) ListOnlineRemittances(ctx context.Context, actor Actor, batchId int, query models.PageQuery) (*models.PaginatedResult[models.OnlineRemittance], error) {
	return listChildren(ctx, w, actor, batchId, w.onlineRecords(), query)
}

func (w *BatchWorkflow) CreateDisbursement(ctx context.Context, actor Actor, batchId int, input *models.NewDisbursement) (*models.DisbursementTransaction, error) {
	const op = "create disbursement"
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ensureReference(ctx, w.Repos.Categories, "disbursement_category_id", input.DisbursementCategoryId); err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	return createChild(ctx, w, actor, batchId, op, w.disbursementRecords(), input.ToDisbursement)
}

func (w *BatchWorkflow) DeleteDisbursement(ctx context.Context, actor Actor, batchId, id int) (*models.DisbursementTransaction, error) {
	return deleteChild(ctx, w, actor, batchId, id, "delete disbursement", w.disbursementRecords())
}

func (w *BatchWorkflow) ListDisbursements(ctx context.Context, actor Actor, batchId int, query models.PageQuery) (*models.PaginatedResult[models.DisbursementTransaction], error) {
	return listChildren(ctx, w, actor, batchId, w.disbursementRecords(), query)
}

func (w *BatchWorkflow) SetDepositInBank(ctx context.Context, actor Actor, batchId int, input *models.DepositInBankInput) (*models.TransactionBatch, error) {
	const op = "set deposit in bank"
	if err := input.Validate(); err != nil {
		return nil, err
	}
	b, err := w.mutateBatch(ctx, actor, batchId, op, func(ctx context.Context, b *models.TransactionBatch) error {
		b.DepositInBank = utils.Round2(input.Amount)
		return nil
	})
	return b, models.AsCollaboratorError(op, err)
}

// RecordCollections stores the cash collection and deposit entry totals
// reported by the collections system.
func (w *BatchWorkflow) RecordCollections(ctx context.Context, actor Actor, batchId int, input *models.CollectionsInput) (*models.TransactionBatch, error) {
	const op = "record collections"
	if err := input.Validate(); err != nil {
		return nil, err
	}
	b, err := w.mutateBatch(ctx, actor, batchId, op, func(ctx context.Context, b *models.TransactionBatch) error {
		b.TotalCashCollection = utils.Round2(input.TotalCashCollection)
		b.TotalDepositEntry = utils.Round2(input.TotalDepositEntry)
		return nil
	})
	return b, models.AsCollaboratorError(op, err)
}

func (w *BatchWorkflow) RecomputeTotals(ctx context.Context, actor Actor, batchId int) (*models.TransactionBatch, error) {
	b, err := w.mutateBatch(ctx, actor, batchId, "recompute totals", nil)
	return b, models.AsCollaboratorError("recompute totals", err)
}

// GetBlotter is open to approvers at any time; tellers need approved view
// access or a closed batch.
func (w *BatchWorkflow) GetBlotter(ctx context.Context, actor Actor, batchId int) (result *Blotter, err error) {
	const op = "get blotter"
	ctx, span := w.startSpan(ctx, "GetBlotter", actor)
	defer func() { endSpan(span, err) }()

	b, err := w.loadBatch(ctx, actor, batchId)
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	if actor.Role != models.EmployeeRoleApprover {
		if err := models.EnsureBlotterVisible(b); err != nil {
			return nil, err
		}
	}
	disbursements, err := w.Repos.Disbursements.FindAll(ctx, models.Where("transaction_batch_id", b.ID))
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	_, categories, err := w.categoryCodes(ctx)
	if err != nil {
		return nil, models.AsCollaboratorError(op, err)
	}
	groups := models.GroupDisbursementsByCategory(disbursements, categories)
	if groups == nil {
		groups = []models.DisbursementGroup{}
	}
	return &Blotter{
		State:         models.BatchStateOf(b),
		Summary:       models.ComputeBlotter(b),
		Disbursements: groups,
	}, nil
}

func (w *BatchWorkflow) GetBatch(ctx context.Context, actor Actor, batchId int) (*models.TransactionBatch, error) {
	b, err := w.loadBatch(ctx, actor, batchId)
	return b, models.AsCollaboratorError("get batch", err)
}

// ListBatches pages through the branch's batches; tellers only see their own.
func (w *BatchWorkflow) ListBatches(ctx context.Context, actor Actor, query models.PageQuery) (*models.PaginatedResult[models.TransactionBatch], error) {
	if actor.Role != models.EmployeeRoleApprover {
		query.Filters = append(query.Filters, models.Where("employee_id", actor.EmployeeId))
	}
	if actor.BranchId > 0 {
		query.Filters = append(query.Filters, models.Where("branch_id", actor.BranchId))
	}
	result, err := w.Repos.Batches.GetPaginated(ctx, query)
	if err != nil {
		return nil, models.AsCollaboratorError("list batches", err)
	}
	return result, nil
}
