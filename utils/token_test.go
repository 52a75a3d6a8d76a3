package utils

import "testing"

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(7, 3, "teller1", "TELLER")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}
	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims error: %v", err)
	}
	if claims.EmployeeId != 7 || claims.BranchId != 3 || claims.Role != "TELLER" || claims.Username != "teller1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseClaims_RejectsMissingBranch(t *testing.T) {
	token, err := JwtGenerate(7, 0, "teller1", "TELLER")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}
	if _, err := ParseClaims(token); err == nil {
		t.Fatalf("expected error for token without branch")
	}
}

func TestParseClaims_RejectsGarbage(t *testing.T) {
	if _, err := ParseClaims("not-a-token"); err == nil {
		t.Fatalf("expected error")
	}
}
