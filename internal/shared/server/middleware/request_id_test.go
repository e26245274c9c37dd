package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDKeepsValidHeaderAndReplacesInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	cases := map[string]bool{
		"req-123":                true,
		"has space":              false,
		strings.Repeat("a", 129): false,
		"line\nbreak":            false,
	}
	for header, keep := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-Id", header)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		got := resp.Header().Get("X-Request-Id")
		if got != resp.Body.String() {
			t.Fatalf("header %q and context %q disagree", got, resp.Body.String())
		}
		if keep && got != header {
			t.Fatalf("expected %q kept, got %q", header, got)
		}
		if !keep && (got == header || len(got) != 36) {
			t.Fatalf("expected generated uuid for %q, got %q", header, got)
		}
	}
}
