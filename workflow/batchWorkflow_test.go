package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/testkit"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	teller   = Actor{EmployeeId: 9, BranchId: 1, Role: models.EmployeeRoleTeller}
	teller2  = Actor{EmployeeId: 10, BranchId: 1, Role: models.EmployeeRoleTeller}
	approver = Actor{EmployeeId: 50, BranchId: 1, Role: models.EmployeeRoleApprover}
)

type harness struct {
	w             *BatchWorkflow
	batches       *testkit.MemRepo[models.TransactionBatch]
	cashCounts    *testkit.MemRepo[models.CashCount]
	checks        *testkit.MemRepo[models.CheckRemittance]
	onlines       *testkit.MemRepo[models.OnlineRemittance]
	disbursements *testkit.MemRepo[models.DisbursementTransaction]
	events        *testkit.RecordingPublisher
	confirmer     *stubConfirmer
	signatures    *stubSignatures
	session       *testkit.MemSession
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func qty(n int64) *int64 {
	return &n
}

func newHarness() *harness {
	h := &harness{
		batches:       testkit.NewMemRepo[models.TransactionBatch](),
		cashCounts:    testkit.NewMemRepo[models.CashCount](),
		checks:        testkit.NewMemRepo[models.CheckRemittance](),
		onlines:       testkit.NewMemRepo[models.OnlineRemittance](),
		disbursements: testkit.NewMemRepo[models.DisbursementTransaction](),
		events:        &testkit.RecordingPublisher{},
		confirmer:     &stubConfirmer{},
		signatures:    &stubSignatures{},
		session:       testkit.NewMemSession(),
	}
	categories := testkit.NewMemRepo[models.DisbursementCategory]()
	categories.Seed(
		&models.DisbursementCategory{BranchId: 1, Name: "Savings", Code: models.DisbursementCodeSavingsWithdrawal, SortOrder: 1},
		&models.DisbursementCategory{BranchId: 1, Name: "Loans", Code: models.DisbursementCodeLoanRelease, SortOrder: 2},
		&models.DisbursementCategory{BranchId: 1, Name: "Petty cash", Code: models.DisbursementCodePettyCash, SortOrder: 3},
	)
	banks := testkit.NewMemRepo[models.Bank]()
	banks.Seed(&models.Bank{BranchId: 1, Name: "BDO"})

	h.w = &BatchWorkflow{
		Repos: Repositories{
			Batches:       h.batches,
			CashCounts:    h.cashCounts,
			Checks:        h.checks,
			Onlines:       h.onlines,
			Disbursements: h.disbursements,
			Categories:    categories,
			Banks:         banks,
		},
		Tx: testkit.PassThroughTx{},
		Catalog: testkit.StaticCatalog{
			{Name: "1000", Value: dec("1000"), CountryCode: "PH"},
			{Name: "500", Value: dec("500"), CountryCode: "PH"},
			{Name: "100", Value: dec("100"), CountryCode: "PH"},
			{Name: "20", Value: dec("20"), CountryCode: "PH"},
			{Name: "1", Value: dec("1"), CountryCode: "PH"},
		},
		Events:     h.events,
		Confirmer:  h.confirmer,
		Locker:     stubLocker{},
		Signatures: h.signatures,
		Session:    h.session,
		Now:        func() time.Time { return time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) open(t *testing.T, actor Actor, beginning string) *models.TransactionBatch {
	t.Helper()
	b, err := h.w.OpenBatch(context.Background(), actor, &models.NewTransactionBatch{
		BeginningBalance:  dec(beginning),
		Currency:          "php",
		ProviderName:      "Vault",
		ProviderSignature: "data:image/png;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("open batch: %v", err)
	}
	return b
}

func requireConflict(t *testing.T, err error, sentinel error) {
	t.Helper()
	var sc *models.StateConflictError
	if !errors.As(err, &sc) || !errors.Is(err, sentinel) {
		t.Fatalf("expected state conflict %v, got %v", sentinel, err)
	}
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != field {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOpenBatch_CreatesAndRemembers(t *testing.T) {
	h := newHarness()
	b := h.open(t, teller, "1000")

	if b.ID == 0 || b.OpenSlot == nil || b.Currency != "PHP" || b.BranchId != 1 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	if b.ProviderSignatureUrl != "https://storage.test/9/provider.png" {
		t.Fatalf("unexpected signature url %s", b.ProviderSignatureUrl)
	}
	if !b.TotalSupposedRemitance.Equal(dec("1000")) {
		t.Fatalf("expected supposed remittance to start at the beginning balance, got %s", b.TotalSupposedRemitance)
	}
	if !h.events.Has(fmt.Sprintf("transaction-batch.transaction-batch.%d.create", b.ID)) {
		t.Fatalf("missing create event, got %v", h.events.Topics())
	}
	current, err := h.w.CurrentBatch(context.Background(), teller)
	if err != nil || current == nil || current.ID != b.ID {
		t.Fatalf("expected current batch %d, got %+v %v", b.ID, current, err)
	}
}

func TestOpenBatch_OnePerEmployee(t *testing.T) {
	h := newHarness()
	h.open(t, teller, "0")

	_, err := h.w.OpenBatch(context.Background(), teller, &models.NewTransactionBatch{Currency: "PHP", ProviderName: "Vault", ProviderSignature: "x"})
	requireConflict(t, err, models.ErrBatchAlreadyOpen)
	if h.batches.Count() != 1 {
		t.Fatalf("expected a single batch, got %d", h.batches.Count())
	}
	// another teller is unaffected
	h.open(t, teller2, "0")
}

func TestOpenBatch_DuplicateKeyIsConflict(t *testing.T) {
	h := newHarness()
	h.batches.OnCreate = func(*models.TransactionBatch) error {
		return fmt.Errorf("TransactionBatch: %w: Error 1062", models.ErrDuplicateKey)
	}
	_, err := h.w.OpenBatch(context.Background(), teller, &models.NewTransactionBatch{Currency: "PHP", ProviderName: "Vault", ProviderSignature: "x"})
	requireConflict(t, err, models.ErrBatchAlreadyOpen)
	if _, ok := h.session.Lookup(teller.EmployeeId); ok {
		t.Fatalf("session must not remember a failed open")
	}
	if len(h.signatures.removed) != 1 || h.signatures.removed[0] != "https://storage.test/9/provider.png" {
		t.Fatalf("expected the uploaded provider signature to be removed, got %v", h.signatures.removed)
	}
}

func TestOpenBatch_LockHeldIsConflict(t *testing.T) {
	h := newHarness()
	h.w.Locker = stubLocker{err: utils.ErrLockNotObtained}
	_, err := h.w.OpenBatch(context.Background(), teller, &models.NewTransactionBatch{Currency: "PHP", ProviderName: "Vault", ProviderSignature: "x"})
	requireConflict(t, err, models.ErrBatchAlreadyOpen)
}

func TestOpenBatch_RejectsBadInputBeforeWriting(t *testing.T) {
	h := newHarness()
	_, err := h.w.OpenBatch(context.Background(), teller, &models.NewTransactionBatch{Currency: "PHP", ProviderName: "Vault"})
	requireValidation(t, err, "provider_signature")

	_, err = h.w.OpenBatch(context.Background(), teller, &models.NewTransactionBatch{Currency: "PHP", ProviderName: "Vault", ProviderSignature: "bad"})
	requireValidation(t, err, "signature")
	if h.batches.Count() != 0 || len(h.events.Topics()) != 0 {
		t.Fatalf("rejected open must not write")
	}
}

func TestOpenBatch_StorageFailureIsCollaboratorError(t *testing.T) {
	h := newHarness()
	h.batches.FailWith = errors.New("connection refused")
	_, err := h.w.OpenBatch(context.Background(), teller, &models.NewTransactionBatch{Currency: "PHP", ProviderName: "Vault", ProviderSignature: "x"})
	var ce *models.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestCloseBatch_FailedCloseRemovesSignature(t *testing.T) {
	h := newHarness()
	b := h.open(t, teller, "0")
	h.cashCounts.FailWith = errors.New("timeout")

	_, err := h.w.CloseBatch(context.Background(), teller, &models.EndBatchInput{
		Signature: "data:image/png;base64,AAAA", Name: "Ana Reyes", Position: "Teller",
	}, "ok")
	if err == nil {
		t.Fatalf("expected close to fail")
	}
	if len(h.signatures.removed) != 1 || h.signatures.removed[0] != "https://storage.test/9/end.png" {
		t.Fatalf("expected the end signature to be removed, got %v", h.signatures.removed)
	}
	stored, _ := h.batches.GetById(context.Background(), b.ID)
	if stored.IsClosed || stored.EndSignatureUrl != "" {
		t.Fatalf("failed close must leave the batch open, got %+v", stored)
	}
}

func TestBatchWorkflow_FullShift(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	b := h.open(t, teller, "1000")

	if _, err := h.w.RecordCollections(ctx, teller, b.ID, &models.CollectionsInput{TotalCashCollection: dec("5000"), TotalDepositEntry: dec("300")}); err != nil {
		t.Fatalf("record collections: %v", err)
	}
	sheet, err := h.w.SaveCashCounts(ctx, teller, b.ID, []models.CashCountInput{
		{Name: "1000", Quantity: qty(3)},
		{Name: "500", Quantity: qty(1)},
		{Name: "20", Quantity: qty(5)},
	})
	if err != nil {
		t.Fatalf("save cash counts: %v", err)
	}
	if !sheet.Total.Equal(dec("3600")) || len(sheet.Rows) != 5 || sheet.Rows[0].Name != "1000" {
		t.Fatalf("unexpected sheet: %+v", sheet)
	}
	if sheet.Rows[2].Quantity != nil {
		t.Fatalf("untouched denomination should stay unset")
	}
	bank := 1
	if _, err := h.w.CreateCheckRemittance(ctx, teller, b.ID, &models.NewRemittance{BankId: bank, ReferenceNumber: "CHK-1", AccountName: "Juan", Amount: dec("400")}); err != nil {
		t.Fatalf("create check: %v", err)
	}
	if _, err := h.w.CreateOnlineRemittance(ctx, teller, b.ID, &models.NewRemittance{BankId: bank, ReferenceNumber: "TRX-1", AccountName: "Maria", Amount: dec("250")}); err != nil {
		t.Fatalf("create online: %v", err)
	}
	if _, err := h.w.SetDepositInBank(ctx, teller, b.ID, &models.DepositInBankInput{Amount: dec("100")}); err != nil {
		t.Fatalf("deposit in bank: %v", err)
	}
	if _, err := h.w.CreateDisbursement(ctx, teller, b.ID, &models.NewDisbursement{DisbursementCategoryId: 1, Amount: dec("2000")}); err != nil {
		t.Fatalf("create savings disbursement: %v", err)
	}
	petty, err := h.w.CreateDisbursement(ctx, teller, b.ID, &models.NewDisbursement{DisbursementCategoryId: 3, Remarks: "snacks", Amount: dec("150")})
	if err != nil {
		t.Fatalf("create petty disbursement: %v", err)
	}

	stored, _ := h.batches.GetById(ctx, b.ID)
	// actual = 3600 + 400 + 250 + 100; supposed = 1000 + 5000 + 300 - 2150
	if !stored.TotalActualRemittance.Equal(dec("4350")) || !stored.TotalSupposedRemitance.Equal(dec("4150")) {
		t.Fatalf("unexpected totals: actual %s supposed %s", stored.TotalActualRemittance, stored.TotalSupposedRemitance)
	}
	if !stored.GrandTotal.Equal(dec("3700")) || !stored.PettyCash.Equal(dec("150")) || !stored.SavingsWithdrawal.Equal(dec("2000")) {
		t.Fatalf("unexpected derived fields: %+v", stored)
	}

	_, err = h.w.GetBlotter(ctx, teller, b.ID)
	requireConflict(t, err, models.ErrViewNotRequested)

	if _, err := h.w.RequestView(ctx, teller, "secret"); err != nil {
		t.Fatalf("request view: %v", err)
	}
	_, err = h.w.GetBlotter(ctx, teller, b.ID)
	requireConflict(t, err, models.ErrViewRequestPending)

	if _, err := h.w.ApproveView(ctx, teller, b.ID); !errors.Is(err, ErrApproverRequired) {
		t.Fatalf("expected approver required, got %v", err)
	}
	approved, err := h.w.ApproveView(ctx, approver, b.ID)
	if err != nil || !approved.CanView || *approved.ViewApprovedBy != approver.EmployeeId {
		t.Fatalf("approve view: %+v %v", approved, err)
	}

	blotter, err := h.w.GetBlotter(ctx, teller, b.ID)
	if err != nil {
		t.Fatalf("get blotter: %v", err)
	}
	if blotter.Summary.Status != models.BalanceStatusOverage || !blotter.Summary.Comparison.Equal(dec("200")) {
		t.Fatalf("unexpected verdict: %+v", blotter.Summary)
	}
	if !blotter.Summary.CollectionTotal.Equal(dec("6300")) || !blotter.Summary.DisbursementTotal.Equal(dec("2150")) {
		t.Fatalf("unexpected blotter lines: %+v", blotter.Summary)
	}
	if len(blotter.Disbursements) != 2 || blotter.Disbursements[0].CategoryName != "Savings" || blotter.Disbursements[1].CategoryName != "Petty cash" {
		t.Fatalf("unexpected groups: %+v", blotter.Disbursements)
	}

	// removing petty cash balances the supposed side upward
	if _, err := h.w.DeleteDisbursement(ctx, teller, b.ID, petty.ID); err != nil {
		t.Fatalf("delete disbursement: %v", err)
	}
	stored, _ = h.batches.GetById(ctx, b.ID)
	if !stored.TotalSupposedRemitance.Equal(dec("4300")) || !stored.TotalActualSupposedComparison.Equal(dec("50")) {
		t.Fatalf("unexpected totals after delete: %s %s", stored.TotalSupposedRemitance, stored.TotalActualSupposedComparison)
	}

	closed, err := h.w.CloseBatch(ctx, teller, &models.EndBatchInput{Signature: "x", Name: "Ana", Position: "Teller"}, "secret")
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if models.BatchStateOf(closed) != models.BatchStateClosed || closed.EndSignatureUrl != "https://storage.test/9/end.png" {
		t.Fatalf("unexpected closed batch: %+v", closed)
	}
	if current, _ := h.w.CurrentBatch(ctx, teller); current != nil {
		t.Fatalf("closed batch must not be current")
	}
	_, err = h.w.CreateCheckRemittance(ctx, teller, b.ID, &models.NewRemittance{BankId: bank, ReferenceNumber: "CHK-2", AccountName: "Late", Amount: dec("1")})
	requireConflict(t, err, models.ErrBatchClosed)

	if _, err := h.w.GetBlotter(ctx, teller, b.ID); err != nil {
		t.Fatalf("closed blotter should stay visible: %v", err)
	}
	next := h.open(t, teller, "4350")
	if next.ID == b.ID {
		t.Fatalf("expected a new batch")
	}
}

func TestSaveCashCounts_ZeroDeletesPersistedRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	b := h.open(t, teller, "0")

	if _, err := h.w.SaveCashCounts(ctx, teller, b.ID, []models.CashCountInput{{Name: "100", Quantity: qty(2)}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if h.cashCounts.Count() != 1 {
		t.Fatalf("expected one stored count, got %d", h.cashCounts.Count())
	}
	sheet, err := h.w.SaveCashCounts(ctx, teller, b.ID, []models.CashCountInput{{Name: "100", Quantity: qty(0)}})
	if err != nil {
		t.Fatalf("save zero: %v", err)
	}
	if h.cashCounts.Count() != 0 || !sheet.Total.IsZero() {
		t.Fatalf("expected count deleted, got %d rows total %s", h.cashCounts.Count(), sheet.Total)
	}
	if !h.events.Has(fmt.Sprintf("cash-count.transaction-batch.%d.delete", b.ID)) {
		t.Fatalf("missing delete event: %v", h.events.Topics())
	}
}

func TestSaveCashCounts_RemovesStaleDenominations(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	b := h.open(t, teller, "0")
	h.cashCounts.Seed(&models.CashCount{BranchId: 1, TransactionBatchId: b.ID, Name: "200 (old)", BillAmount: dec("200"), Quantity: 1, Amount: dec("200")})

	sheet, err := h.w.GetCashCountSheet(ctx, teller, b.ID)
	if err != nil || len(sheet.DeletedCashCounts) != 1 {
		t.Fatalf("expected the stale count flagged: %+v %v", sheet, err)
	}
	if _, err := h.w.SaveCashCounts(ctx, teller, b.ID, []models.CashCountInput{{Name: "1", Quantity: qty(7)}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	stored, _ := h.batches.GetById(ctx, b.ID)
	if h.cashCounts.Count() != 1 || !stored.CashCountTotal.Equal(dec("7")) {
		t.Fatalf("expected stale count removed, got %d rows total %s", h.cashCounts.Count(), stored.CashCountTotal)
	}
}

func TestSaveCashCounts_RejectsUnknownDenomination(t *testing.T) {
	h := newHarness()
	b := h.open(t, teller, "0")
	_, err := h.w.SaveCashCounts(context.Background(), teller, b.ID, []models.CashCountInput{{Name: "1000", Quantity: qty(1)}, {Name: "7", Quantity: qty(1)}})
	requireValidation(t, err, "cash_counts[1].name")
	if h.cashCounts.Count() != 0 {
		t.Fatalf("rejected save must not write")
	}
}

func TestRemittances_ScopedToBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	mine := h.open(t, teller, "0")
	theirs := h.open(t, teller2, "0")

	check, err := h.w.CreateCheckRemittance(ctx, teller, mine.ID, &models.NewRemittance{BankId: 1, ReferenceNumber: "C1", AccountName: "A", Amount: dec("10")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = h.w.DeleteCheckRemittance(ctx, teller2, theirs.ID, check.ID)
	requireNotFound(t, err)
	_, err = h.w.UpdateCheckRemittance(ctx, teller2, theirs.ID, check.ID, &models.NewRemittance{BankId: 1, ReferenceNumber: "C1", AccountName: "A", Amount: dec("99")})
	requireNotFound(t, err)
	_, err = h.w.GetBatch(ctx, teller2, mine.ID)
	requireNotFound(t, err)

	updated, err := h.w.UpdateCheckRemittance(ctx, teller, mine.ID, check.ID, &models.NewRemittance{BankId: 1, ReferenceNumber: "C1", AccountName: "A", Amount: dec("12.345")})
	if err != nil || !updated.Amount.Equal(dec("12.35")) {
		t.Fatalf("update: %+v %v", updated, err)
	}
	page, err := h.w.ListCheckRemittances(ctx, teller, mine.ID, models.PageQuery{})
	if err != nil || page.TotalSize != 1 || page.Data[0].ID != check.ID {
		t.Fatalf("unexpected page: %+v %v", page, err)
	}
	page, _ = h.w.ListCheckRemittances(ctx, teller2, theirs.ID, models.PageQuery{})
	if page.TotalSize != 0 {
		t.Fatalf("other batch should be empty, got %d", page.TotalSize)
	}
}

func TestReferences_MustExist(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	b := h.open(t, teller, "0")

	_, err := h.w.CreateOnlineRemittance(ctx, teller, b.ID, &models.NewRemittance{BankId: 42, ReferenceNumber: "T", AccountName: "A", Amount: dec("1")})
	requireValidation(t, err, "bank_id")
	_, err = h.w.CreateDisbursement(ctx, teller, b.ID, &models.NewDisbursement{DisbursementCategoryId: 42, Amount: dec("1")})
	requireValidation(t, err, "disbursement_category_id")
	_, err = h.w.CreateDisbursement(ctx, teller, b.ID, &models.NewDisbursement{DisbursementCategoryId: 1, Amount: dec("-1")})
	requireValidation(t, err, "amount")
}

func TestRequestView_Gates(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	_, err := h.w.RequestView(ctx, teller, "secret")
	requireConflict(t, err, models.ErrNoOpenBatch)
	if h.confirmer.calls != 0 {
		t.Fatalf("illegal request must not prompt for confirmation")
	}

	b := h.open(t, teller, "0")
	h.confirmer.decline = true
	if _, err := h.w.RequestView(ctx, teller, "wrong"); !errors.Is(err, models.ErrConfirmationDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}
	stored, _ := h.batches.GetById(ctx, b.ID)
	if models.BatchStateOf(stored) != models.BatchStateOpen {
		t.Fatalf("declined request changed state to %s", models.BatchStateOf(stored))
	}

	h.confirmer.decline = false
	if _, err := h.w.RequestView(ctx, teller, "secret"); err != nil {
		t.Fatalf("request view: %v", err)
	}
	_, err = h.w.RequestView(ctx, teller, "secret")
	requireConflict(t, err, models.ErrViewAlreadyRequested)

	_, err = h.w.CloseBatch(ctx, teller, &models.EndBatchInput{Signature: "x", Name: "Ana", Position: "Teller"}, "secret")
	requireConflict(t, err, models.ErrViewRequestPending)

	denied, err := h.w.DenyView(ctx, approver, b.ID)
	if err != nil || models.BatchStateOf(denied) != models.BatchStateOpen {
		t.Fatalf("deny view: %+v %v", denied, err)
	}
}

func TestListBatches_TellerSeesOwn(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.open(t, teller, "0")
	h.open(t, teller2, "0")

	own, err := h.w.ListBatches(ctx, teller, models.PageQuery{})
	if err != nil || own.TotalSize != 1 {
		t.Fatalf("teller should see one batch: %+v %v", own, err)
	}
	all, err := h.w.ListBatches(ctx, approver, models.PageQuery{})
	if err != nil || all.TotalSize != 2 {
		t.Fatalf("approver should see the branch: %+v %v", all, err)
	}
}

func TestCountryOfCurrency(t *testing.T) {
	cases := map[string]string{"PHP": "PH", " usd ": "US", "": "PH", "PESO": "PH"}
	for in, expected := range cases {
		if got := countryOfCurrency(in); got != expected {
			t.Fatalf("%q: expected %s, got %s", in, expected, got)
		}
	}
}
