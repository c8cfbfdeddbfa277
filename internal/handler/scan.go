package handler

import (
	"errors"
	"net/http"

	"github.com/dukerupert/aivis/internal/scan"
)

type ScanHandler struct {
	render *Renderer
	scans  *scan.Service
}

func NewScanHandler(rd *Renderer, s *scan.Service) *ScanHandler {
	return &ScanHandler{render: rd, scans: s}
}

// Run performs the quick scan and renders the result modal. The result is not
// kept anywhere once rendered.
func (h *ScanHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Partial(w, "scan-modal", map[string]any{"Error": "Invalid form data"})
		return
	}

	res, err := h.scans.Run(r.Context(), r.FormValue("url"), r.FormValue("email"))
	if err != nil {
		msg := scan.ErrScanFailed.Error()
		if errors.Is(err, scan.ErrMissingFields) {
			msg = err.Error()
		}
		h.render.Partial(w, "scan-modal", map[string]any{"Error": msg})
		return
	}
	h.render.Partial(w, "scan-modal", map[string]any{"Result": res})
}

// Close empties the modal container.
func (h *ScanHandler) Close(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}
