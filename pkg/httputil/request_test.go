package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"name": "test"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{invalid}`))
	var dest map[string]string

	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathString(t *testing.T) {
	router := mux.NewRouter()
	var got string
	var gotErr error
	router.HandleFunc("/identities/{user}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathString(r, "user")
	})

	req := httptest.NewRequest("GET", "/identities/jan@example.org", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.NoError(t, gotErr)
	assert.Equal(t, "jan@example.org", got)
}

func TestParsePathStringMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/identities", nil)

	_, err := ParsePathString(req, "user")

	assert.Error(t, err)
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		defaultVal  int
		want        int
		expectError bool
	}{
		{
			name:       "present",
			url:        "/audit?limit=50",
			defaultVal: 20,
			want:       50,
		},
		{
			name:       "missing uses default",
			url:        "/audit",
			defaultVal: 20,
			want:       20,
		},
		{
			name:        "invalid",
			url:         "/audit?limit=abc",
			defaultVal:  20,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)

			got, err := ParseQueryInt(req, "limit", tt.defaultVal)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/resync?dry_run=true", nil)

	got, err := ParseQueryBool(req, "dry_run", false)

	assert.NoError(t, err)
	assert.True(t, got)
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()

	ok := RequireNonEmpty(w, "", "user")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user is required")
}
