package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/teller_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BranchGuardPlugin scopes queries/updates/deletes to the request's branch_id
// when the model has a branch_id column, so one branch never reads another's batches.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include branch_id manually.
// - Bypass is explicit via appctx.ContextKeySkipBranchScope.
type BranchGuardPlugin struct{}

func NewBranchGuardPlugin() *BranchGuardPlugin { return &BranchGuardPlugin{} }

func (p *BranchGuardPlugin) Name() string { return "branch_guard" }

func (p *BranchGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("branch_guard:query", branchGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("branch_guard:row", branchGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("branch_guard:update", branchGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("branch_guard:delete", branchGuardCallback); err != nil {
		return err
	}
	return nil
}

func branchGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassBranchScope(ctx) {
		return
	}
	branchID := branchIdFromContext(ctx)
	if branchID == 0 {
		return
	}

	// Only apply if the current model/table includes a branch_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasBranchID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "branch_id") {
			hasBranchID = true
			break
		}
	}
	if !hasBranchID {
		return
	}

	// Don't duplicate an explicit branch filter.
	if whereHasBranchID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "branch_id"},
				Value:  branchID,
			},
		},
	})
}

func branchIdFromContext(ctx context.Context) int {
	if v, ok := appctx.GetInt(ctx, appctx.ContextKeyBranchId); ok {
		return v
	}
	return 0
}

func shouldBypassBranchScope(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipBranchScope)
	return ok && v
}

func whereHasBranchID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasBranchID(e) {
			return true
		}
	}
	return false
}

func exprHasBranchID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsBranchID(v.Column)
	case clause.Neq:
		return colIsBranchID(v.Column)
	case clause.Gt:
		return colIsBranchID(v.Column)
	case clause.Gte:
		return colIsBranchID(v.Column)
	case clause.Lt:
		return colIsBranchID(v.Column)
	case clause.Lte:
		return colIsBranchID(v.Column)
	case clause.IN:
		return colIsBranchID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasBranchID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasBranchID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "branch_id")
	default:
		return false
	}
}

func colIsBranchID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "branch_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "branch_id")
	default:
		return false
	}
}
