package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestWriteJSONSetsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusTeapot, map[string]string{"a": "b"})
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["a"] != "b" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "nope")
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "nope" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Pagination
		wantErr bool
	}{
		{"defaults", "", Pagination{Limit: 50, Offset: 0}, false},
		{"explicit", "limit=10&offset=20", Pagination{Limit: 10, Offset: 20}, false},
		{"bad_limit", "limit=abc", Pagination{}, true},
		{"zero_limit", "limit=0", Pagination{}, true},
		{"negative_offset", "offset=-1", Pagination{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			got, err := ParsePagination(r)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueryInt64List(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?ids=1,+2,junk,3", nil)
	got := QueryInt64List(r, "ids")
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v", got)
	}
	if QueryInt64List(r, "missing") != nil {
		t.Error("missing param must return nil")
	}
}

func TestPathInt64(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "42")
	r := httptest.NewRequest(http.MethodGet, "/x/42", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	id, err := PathInt64(r, "id")
	if err != nil || id != 42 {
		t.Errorf("got (%d, %v)", id, err)
	}

	if _, err := PathInt64(r, "other"); err == nil {
		t.Error("missing param must error")
	}
}

func TestDecodeJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"prompt":"hi"}`))
	var body analyzeRequest
	if err := DecodeJSON(r, &body); err != nil || body.Prompt != "hi" {
		t.Errorf("got (%+v, %v)", body, err)
	}

	r = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("not json"))
	if err := DecodeJSON(r, &body); err == nil {
		t.Error("invalid body must error")
	}
}
