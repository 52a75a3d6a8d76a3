package models

import (
	"time"

	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/shopspring/decimal"
)

type Bank struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  int       `gorm:"index;not null" json:"branch_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:20" json:"code"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type DisbursementCategory struct {
	ID        int              `gorm:"primary_key" json:"id"`
	BranchId  int              `gorm:"index;not null" json:"branch_id"`
	Name      string           `gorm:"size:100;not null" json:"name"`
	Code      DisbursementCode `gorm:"type:enum('SAVINGS_WITHDRAWAL','TIME_DEPOSIT_WITHDRAWAL','LOAN_RELEASE','PETTY_CASH');not null" json:"code"`
	SortOrder int              `gorm:"not null;default:0" json:"sort_order"`
	IsActive  *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillsAndCoins is one catalog denomination. The catalog is global reference
// data and carries no branch.
type BillsAndCoins struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CountryCode string          `gorm:"size:2;not null;uniqueIndex:idx_bills_and_coins_name,priority:1" json:"country_code"`
	Name        string          `gorm:"size:100;not null;uniqueIndex:idx_bills_and_coins_name,priority:2" json:"name"`
	Value       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"value"`
	SortOrder   int             `gorm:"not null;default:0" json:"sort_order"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b BillsAndCoins) ToDenomination() Denomination {
	return Denomination{Name: b.Name, Value: b.Value, CountryCode: b.CountryCode}
}

type Employee struct {
	ID           int          `gorm:"primary_key" json:"id"`
	BranchId     int          `gorm:"index;not null" json:"branch_id"`
	Username     string       `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name         string       `gorm:"size:100;not null" json:"name"`
	Position     string       `gorm:"size:100" json:"position"`
	Role         EmployeeRole `gorm:"type:enum('TELLER','APPROVER');not null;default:'TELLER'" json:"role"`
	PasswordHash string       `gorm:"size:255;not null" json:"-"`
	IsActive     *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b Bank) GetId() int {
	return b.ID
}

func (b Bank) GetDefault(id int) Data {
	return Bank{
		ID:       id,
		IsActive: utils.NewFalse(),
	}
}

func (c DisbursementCategory) GetId() int {
	return c.ID
}

func (c DisbursementCategory) GetDefault(id int) Data {
	return DisbursementCategory{
		ID:       id,
		Code:     DisbursementCodePettyCash,
		IsActive: utils.NewFalse(),
	}
}

func (e Employee) GetId() int {
	return e.ID
}

func (e Employee) GetDefault(id int) Data {
	return Employee{
		ID:       id,
		Role:     EmployeeRoleTeller,
		IsActive: utils.NewFalse(),
	}
}

func (b BillsAndCoins) GetId() int {
	return b.ID
}
