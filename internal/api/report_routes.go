package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kjannette/mtf-backend/internal/reports"
)

func (s *Server) handleReportPeriods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Periods())
}

// handleReport serves summary, pnl, interest and tax over ?period=.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	kind, err := reports.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	period := reports.Period(r.URL.Query().Get("period"))

	rep, err := s.svc.Report(r.Context(), ownerFrom(r.Context()), kind, period)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
