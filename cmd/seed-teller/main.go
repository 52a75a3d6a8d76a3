// seed-teller prepares a development branch: the denomination catalog,
// banks, disbursement categories, one teller and one approver. It prints a
// session token for each employee.
//
// Usage (from backend directory):
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-teller
//
// SEED_BRANCH_ID selects the branch (default 1).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/mmdatafocus/teller_backend/workflow"
	"gorm.io/gorm"
)

const seedPassword = "Teller@123"

var seedBanks = []models.Bank{
	{Name: "BDO Unibank", Code: "BDO"},
	{Name: "Bank of the Philippine Islands", Code: "BPI"},
	{Name: "Metrobank", Code: "MBTC"},
}

var seedCategories = []models.DisbursementCategory{
	{Name: "Savings Withdrawal", Code: models.DisbursementCodeSavingsWithdrawal, SortOrder: 1},
	{Name: "Time Deposit Withdrawal", Code: models.DisbursementCodeTimeDepositWithdrawal, SortOrder: 2},
	{Name: "Loan Release", Code: models.DisbursementCodeLoanRelease, SortOrder: 3},
	{Name: "Petty Cash", Code: models.DisbursementCodePettyCash, SortOrder: 4},
}

var seedEmployees = []models.Employee{
	{Username: "teller1", Name: "Dev Teller", Position: "Teller", Role: models.EmployeeRoleTeller},
	{Username: "approver1", Name: "Dev Approver", Position: "Branch Head", Role: models.EmployeeRoleApprover},
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func branchId() int {
	v := strings.TrimSpace(os.Getenv("SEED_BRANCH_ID"))
	if v == "" {
		return 1
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		fail("invalid SEED_BRANCH_ID %q", v)
	}
	return id
}

func main() {
	// Seeding writes across branches; the branch guard must not scope it.
	ctx := utils.SetSkipBranchScopeInContext(context.Background(), true)
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fail("database not initialized (config.GetDB returned nil). Set DB_* env vars.")
	}
	models.MigrateTable()
	branch := branchId()

	refresher := &workflow.CatalogRefresher{
		Repo:   models.NewGormRepository[models.BillsAndCoins](db),
		Logger: config.GetLogger(),
	}
	countries, err := refresher.Sync(ctx)
	if err != nil {
		fail("failed to sync denomination catalog: %v", err)
	}
	fmt.Printf("Denomination catalog synced (changed: %v)\n", countries)

	for _, b := range seedBanks {
		b.BranchId = branch
		b.IsActive = utils.NewTrue()
		var existing models.Bank
		err := db.WithContext(ctx).Where("branch_id = ? AND code = ?", branch, b.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fail("failed to lookup bank %s: %v", b.Code, err)
		}
		if err := db.WithContext(ctx).Create(&b).Error; err != nil {
			fail("failed to create bank %s: %v", b.Code, err)
		}
		fmt.Printf("Created bank %s (id=%d)\n", b.Code, b.ID)
	}

	for _, cat := range seedCategories {
		cat.BranchId = branch
		cat.IsActive = utils.NewTrue()
		var existing models.DisbursementCategory
		err := db.WithContext(ctx).Where("branch_id = ? AND code = ?", branch, cat.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fail("failed to lookup category %s: %v", cat.Code, err)
		}
		if err := db.WithContext(ctx).Create(&cat).Error; err != nil {
			fail("failed to create category %s: %v", cat.Code, err)
		}
		fmt.Printf("Created disbursement category %s (id=%d)\n", cat.Code, cat.ID)
	}

	hashed, err := utils.HashPassword(seedPassword)
	if err != nil {
		fail("failed to hash password: %v", err)
	}

	for _, e := range seedEmployees {
		var existing models.Employee
		err := db.WithContext(ctx).Where("username = ?", e.Username).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			e.BranchId = branch
			e.PasswordHash = string(hashed)
			e.IsActive = utils.NewTrue()
			if err := db.WithContext(ctx).Create(&e).Error; err != nil {
				fail("failed to create employee %s: %v", e.Username, err)
			}
			existing = e
			fmt.Printf("Created employee %s (id=%d, role=%s)\n", e.Username, e.ID, e.Role)
		case err != nil:
			fail("failed to lookup employee %s: %v", e.Username, err)
		default:
			if err := db.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", existing.ID).Updates(map[string]any{
				"branch_id":     branch,
				"password_hash": string(hashed),
				"role":          e.Role,
				"is_active":     utils.NewTrue(),
			}).Error; err != nil {
				fail("failed to update employee %s: %v", e.Username, err)
			}
			existing.BranchId = branch
			existing.Role = e.Role
			fmt.Printf("Updated employee %s (id=%d, role=%s)\n", e.Username, existing.ID, e.Role)
		}

		token, err := utils.JwtGenerate(existing.ID, existing.BranchId, existing.Username, string(existing.Role))
		if err != nil {
			fail("failed to sign token for %s: %v", existing.Username, err)
		}
		fmt.Printf("  password=%q\n  token=%s\n", seedPassword, token)
	}
}
