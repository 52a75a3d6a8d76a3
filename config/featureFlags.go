package config

import (
	"os"
	"strings"
)

// RequireSecurityConfirmation gates "request blotter view" and "end batch" behind
// re-entering the employee password. Defaults to on; only an explicit false disables it.
//
// Set via env:
// - REQUIRE_SECURITY_CONFIRMATION=false
func RequireSecurityConfirmation() bool {
	return envBool("REQUIRE_SECURITY_CONFIRMATION", true)
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS", false)
}

// RealtimePullEnabled starts the Pub/Sub pull receiver that feeds the realtime hub.
// Deployments using the push endpoint leave it off.
func RealtimePullEnabled() bool {
	return envBool("REALTIME_PULL_ENABLED", false)
}

// DefaultCountryCode selects the denomination catalog for new cash count sheets.
func DefaultCountryCode() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_COUNTRY_CODE")))
	if v == "" {
		return "PH"
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
