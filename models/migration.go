package models

import (
	"log"

	"github.com/mmdatafocus/teller_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Bank{}, &BillsAndCoins{}, &BatchEventRecord{},
		&CashCount{}, &CheckRemittance{},
		&DisbursementCategory{}, &DisbursementTransaction{},
		&Employee{},
		&OnlineRemittance{},
		&TransactionBatch{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
