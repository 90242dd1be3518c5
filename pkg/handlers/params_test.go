package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

func TestParseTagID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantNilID  bool
		wantStatus int
		wantError  string
	}{
		{
			name:      "valid UUID",
			pathValue: "550e8400-e29b-41d4-a716-446655440000",
			wantOK:    true,
			wantNilID: false,
		},
		{
			name:       "invalid UUID",
			pathValue:  "not-a-uuid",
			wantOK:     false,
			wantNilID:  true,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_tag_id",
		},
		{
			name:       "empty UUID",
			pathValue:  "",
			wantOK:     false,
			wantNilID:  true,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_tag_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseTagID(rec, req, logger)

			if ok != tt.wantOK {
				t.Errorf("ParseTagID() ok = %v, want %v", ok, tt.wantOK)
			}

			if tt.wantNilID && id != uuid.Nil {
				t.Errorf("ParseTagID() id = %v, want uuid.Nil", id)
			}

			if !tt.wantOK {
				if rec.Code != tt.wantStatus {
					t.Errorf("ParseTagID() status = %v, want %v", rec.Code, tt.wantStatus)
				}

				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp["error"] != tt.wantError {
					t.Errorf("ParseTagID() error = %v, want %v", resp["error"], tt.wantError)
				}
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   models.Page
		wantOK bool
	}{
		{"defaults", "", models.Page{Limit: models.DefaultPageLimit}, true},
		{"explicit", "?limit=20&offset=40", models.Page{Limit: 20, Offset: 40}, true},
		{"limit clamped", "?limit=5000", models.Page{Limit: models.DefaultPageLimit}, true},
		{"negative offset", "?offset=-1", models.Page{}, false},
		{"not a number", "?limit=ten", models.Page{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test"+tt.query, nil)
			rec := httptest.NewRecorder()

			page, ok := ParsePage(rec, req, zap.NewNop())
			if ok != tt.wantOK {
				t.Fatalf("ParsePage() ok = %v, want %v", ok, tt.wantOK)
			}
			if page != tt.want {
				t.Errorf("ParsePage() = %+v, want %+v", page, tt.want)
			}
			if !ok && rec.Code != http.StatusBadRequest {
				t.Errorf("ParsePage() status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestParseEntityID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.SetPathValue("id", "SALES.PUBLIC.ORDERS")
	rec := httptest.NewRecorder()

	id, ok := ParseEntityID(rec, req, zap.NewNop())
	if !ok || id != "SALES.PUBLIC.ORDERS" {
		t.Fatalf("ParseEntityID() = %q, %v", id, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	rec = httptest.NewRecorder()
	if _, ok := ParseEntityID(rec, req, zap.NewNop()); ok {
		t.Fatal("ParseEntityID() accepted an empty id")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
