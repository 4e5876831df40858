// Package swaggerkit serves the swag generated OpenAPI document and its UI
package swaggerkit

import (
	"encoding/json"
	"net/http"

	phttp "clockrelay/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SpecMutator edits the parsed document before it is served
type SpecMutator func(spec map[string]any)

// Mount serves /api/docs when enabled
func Mount(r phttp.Router, enabled bool, mutators ...SpecMutator) {
	if !enabled {
		return
	}
	r.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/docs/", http.StatusPermanentRedirect)
	})
	r.Get("/api/docs/doc.json", docJSON(mutators))
	r.Handle("/api/docs/*", httpSwagger.Handler(
		httpSwagger.InstanceName("api"),
		httpSwagger.URL("/api/docs/doc.json"),
	))
}

func docJSON(mutators []SpecMutator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var spec map[string]any
		if err := json.Unmarshal([]byte(readDoc()), &spec); err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}
		Normalize(spec)
		for _, m := range mutators {
			m(spec)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(spec)
	}
}
