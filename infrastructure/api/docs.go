package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed openapi.json
var openapiSpec []byte

var swaggerPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Market Basket API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({url: {{.}}, dom_id: "#swagger-ui", deepLinking: true});
};
</script>
</body>
</html>
`))

// DocsRouter serves Swagger UI and the OpenAPI document.
type DocsRouter struct {
	specURL string
}

// NewDocsRouter creates a new documentation router whose UI loads specURL.
func NewDocsRouter(specURL string) *DocsRouter {
	return &DocsRouter{specURL: specURL}
}

// Routes returns the chi router for documentation endpoints.
func (d *DocsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = swaggerPage.Execute(w, d.specURL)
	})
	router.Get("/openapi.json", serveSpec)

	return router
}

// serveSpec writes the OpenAPI document with its server URL pointing at the
// host the request came in on, so "Try it out" works behind proxies.
func serveSpec(w http.ResponseWriter, r *http.Request) {
	var spec map[string]any
	if err := json.Unmarshal(openapiSpec, &spec); err != nil {
		http.Error(w, "invalid OpenAPI document", http.StatusInternalServerError)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}
	spec["servers"] = []map[string]string{{"url": fmt.Sprintf("%s://%s/api/v1", scheme, host)}}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(spec)
}
