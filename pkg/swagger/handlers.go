// Package swagger serves the OpenAPI documentation for the admin API.
package swagger

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verenigingen/chapterkit/pkg/httputil"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Handlers provides HTTP handlers for the OpenAPI documentation
type Handlers struct{}

// NewHandlers creates a new documentation handlers instance
func NewHandlers() *Handlers {
	return &Handlers{}
}

// RegisterRoutes registers the documentation routes with the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/openapi.yaml", h.serveSpec).Methods("GET")
	router.HandleFunc("/api-docs", h.serveUI).Methods("GET")
}

// serveSpec serves the OpenAPI specification in YAML format
func (h *Handlers) serveSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiSpec)
}

// serveUI serves the Swagger UI HTML page, loading the UI assets from
// a CDN and the spec from /openapi.yaml.
func (h *Handlers) serveUI(w http.ResponseWriter, r *http.Request) {
	tmpl := template.Must(template.New("swagger").Parse(swaggerUITemplate))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		httputil.WriteInternalError(w, err)
	}
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Chapterkit Admin API</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
  <script>
    window.onload = function() {
      window.ui = SwaggerUIBundle({
        url: "openapi.yaml",
        dom_id: "#swagger-ui",
        presets: [SwaggerUIBundle.presets.apis],
        layout: "BaseLayout"
      });
    };
  </script>
</body>
</html>
`
