package mgmt

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount installs /info, /pipelines, and /routes under prefix on r,
// matching spec §6's `management` endpoint: "/<base>/info",
// "/<base>/pipelines", "/<base>/routes" — JSON listings.
func Mount(r chi.Router, prefix string, svc *Service) {
	r.Get(prefix+"/info", svc.handleInfo)
	r.Get(prefix+"/pipelines", svc.handlePipelines)
	r.Get(prefix+"/routes", svc.handleRoutes)
}

func (s *Service) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Info())
}

func (s *Service) handlePipelines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Pipelines())
}

func (s *Service) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Routes())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
