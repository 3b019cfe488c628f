package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		apiKey string
		path   string
		header string
		want   int
	}{
		{"health bypasses auth", "secret", "/health", "", http.StatusNoContent},
		{"missing key", "secret", "/versions", "", http.StatusUnauthorized},
		{"wrong key", "secret", "/versions", "guess", http.StatusUnauthorized},
		{"right key", "secret", "/versions", "secret", http.StatusNoContent},
		{"auth disabled", "", "/versions", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(tt.apiKey)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
