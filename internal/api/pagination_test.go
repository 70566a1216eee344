package api

import (
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantLimit int
	}{
		{"missing uses default", "/api/action-queue", 100},
		{"valid value respected", "/api/action-queue?limit=42", 42},
		{"capped at max", "/api/action-queue?limit=9000", 500},
		{"zero uses default", "/api/action-queue?limit=0", 100},
		{"negative uses default", "/api/action-queue?limit=-5", 100},
		{"garbage uses default", "/api/action-queue?limit=abc", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			got := ParsePagination(r, 100, 500)
			if got.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", got.Limit, tt.wantLimit)
			}
		})
	}
}
