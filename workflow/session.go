package workflow

import (
	"strconv"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/utils"
)

// TellerSession caches which batch an employee is working on.
// It is filled when a batch is opened or found, and cleared when it closes.
// Without Redis every lookup misses and callers fall back to the database.
type TellerSession struct{}

func sessionKey(employeeId int) string {
	return "TellerSession:" + strconv.Itoa(employeeId)
}

func (TellerSession) Remember(employeeId, batchId int) {
	if err := config.SetRedisValue(sessionKey(employeeId), strconv.Itoa(batchId), utils.GetCacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "session.go", "Remember", "set current batch", employeeId, err)
	}
}

func (TellerSession) Lookup(employeeId int) (int, bool) {
	v, ok, err := config.GetRedisValue(sessionKey(employeeId))
	if err != nil {
		config.LogError(config.GetLogger(), "session.go", "Lookup", "get current batch", employeeId, err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (TellerSession) Forget(employeeId int) {
	if err := config.RemoveRedisKey(sessionKey(employeeId)); err != nil {
		config.LogError(config.GetLogger(), "session.go", "Forget", "clear current batch", employeeId, err)
	}
}
