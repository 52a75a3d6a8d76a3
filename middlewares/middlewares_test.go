package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
)

func TestGenerateLoaderResults(t *testing.T) {
	banks := []models.Bank{
		{ID: 3, Name: "BPI", IsActive: utils.NewTrue()},
		{ID: 1, Name: "BDO", IsActive: utils.NewTrue()},
	}
	results := generateLoaderResults(banks, []int{1, 2, 3})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Data.Name != "BDO" || results[2].Data.Name != "BPI" {
		t.Fatalf("results out of order: %+v %+v", results[0].Data, results[2].Data)
	}
	missing := results[1].Data
	if missing.ID != 2 || missing.IsActive == nil || *missing.IsActive {
		t.Fatalf("expected inactive default for missing id, got %+v", missing)
	}
}

func TestHandleError(t *testing.T) {
	boom := errors.New("boom")
	results := handleError[*models.Employee](2, boom)
	if len(results) != 2 || !errors.Is(results[1].Error, boom) {
		t.Fatalf("expected repeated error, got %+v", results)
	}
}

func sessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware())
	r.GET("/open", func(c *gin.Context) {
		id, _ := utils.GetEmployeeIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"employee_id": id})
	})
	r.GET("/private", RequireSession(), func(c *gin.Context) {
		branch, _ := utils.GetBranchIdFromContext(c.Request.Context())
		role, _ := utils.GetEmployeeRoleFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"branch_id": branch, "role": role})
	})
	return r
}

func TestSessionMiddleware(t *testing.T) {
	token, err := utils.JwtGenerate(9, 1, "ana", "TELLER")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	r := sessionRouter()

	cases := []struct {
		name     string
		path     string
		header   string
		value    string
		expected int
	}{
		{"bearer token", "/private", "Authorization", "Bearer " + token, http.StatusOK},
		{"token header", "/private", "token", token, http.StatusOK},
		{"no token on open route", "/open", "", "", http.StatusOK},
		{"no token on private route", "/private", "", "", http.StatusUnauthorized},
		{"garbage token", "/open", "Authorization", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.expected {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.expected, w.Code, w.Body.String())
		}
	}
}

func TestSessionMiddlewareRejectsTokenWithoutBranch(t *testing.T) {
	token, err := utils.JwtGenerate(9, 0, "ana", "TELLER")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("token", token)
	w := httptest.NewRecorder()
	sessionRouter().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(nil, 1, time.Minute).RateLimitMiddleware)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, w.Code)
		}
	}
}
