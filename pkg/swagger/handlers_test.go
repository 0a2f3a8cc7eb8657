package swagger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestServeSpec(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers().RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/openapi.yaml", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Chapterkit Admin API")
	assert.Contains(t, w.Body.String(), "/validation/run")
}

func TestServeUI(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers().RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/api-docs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")
}
