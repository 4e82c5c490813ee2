package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline/ledgerline/dashboard"
	lerrors "github.com/ledgerline/ledgerline/errors"
	"github.com/ledgerline/ledgerline/ledger"
)

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	// Without configured origins the API is same-origin only.
	if len(s.AllowedOrigins) > 0 {
		r.Use(newCORS(s.AllowedOrigins).Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/errors", s.handleLoadErrors)
		r.Get("/events", s.handleSSE)

		r.Get("/view", s.handleView)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/totals", s.handleTotals)
		r.Get("/counterparties", s.handleCounterparties)
		r.Get("/periods", s.handlePeriods)

		r.Route("/transactions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTransaction)
			r.Post("/correction", s.requireWritable(s.handleCorrection))
		})

		r.Route("/reconciliations", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.requireWritable(s.handleLink))
			r.Get("/{code}", s.handleGetGroup)
			r.Delete("/{code}", s.requireWritable(s.handleUnlink))
		})

		r.Post("/batch", s.requireWritable(s.handleBatch))
	})

	return r
}

// HealthResponse reports the server state.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	CommitSHA    string `json:"commit,omitempty"`
	ReadOnly     bool   `json:"read_only"`
	Transactions int    `json:"transactions"`
	Rejected     int    `json:"rejected"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	book, loadErrs := s.current()
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      s.Version,
		CommitSHA:    s.CommitSHA,
		ReadOnly:     s.ReadOnly,
		Transactions: book.Len(),
		Rejected:     len(loadErrs),
	})
}

// LoadErrorsResponse lists the records rejected by the last load.
type LoadErrorsResponse struct {
	Errors []lerrors.ErrorJSON `json:"errors"`
}

func (s *Server) handleLoadErrors(w http.ResponseWriter, r *http.Request) {
	_, loadErrs := s.current()
	respondJSON(w, http.StatusOK, LoadErrorsResponse{
		Errors: lerrors.NewJSONFormatter().FormatAllToSlice(loadErrs),
	})
}

// viewOptions reads the view query parameters: as_of, side, counterparty
// and year.
func (s *Server) viewOptions(r *http.Request) (dashboard.Options, error) {
	q := r.URL.Query()
	opts := dashboard.Options{
		AsOf:         ledger.Today(),
		Side:         s.Side,
		Opening:      s.Opening,
		Counterparty: strings.TrimSpace(q.Get("counterparty")),
	}

	if v := q.Get("as_of"); v != "" {
		asOf, err := ledger.NewDate(v)
		if err != nil {
			return opts, ledger.NewValidationError("", "as_of", err.Error())
		}
		opts.AsOf = asOf
	}
	if v := q.Get("side"); v != "" {
		side, err := ledger.ParseSide(v)
		if err != nil {
			return opts, ledger.NewValidationError("", "side", err.Error())
		}
		opts.Side = side
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year <= 0 {
			return opts, ledger.NewValidationError("", "year", "year must be a positive number")
		}
		opts.Year = year
	}
	return opts, nil
}

// buildView builds the view for r, writing the error response on failure.
func (s *Server) buildView(w http.ResponseWriter, r *http.Request) (*dashboard.View, bool) {
	opts, err := s.viewOptions(r)
	if err != nil {
		respondLedgerError(w, err)
		return nil, false
	}
	book, _ := s.current()
	view, err := dashboard.Build(r.Context(), book, opts)
	if err != nil {
		respondLedgerError(w, err)
		return nil, false
	}
	return view, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if view, ok := s.buildView(w, r); ok {
		respondJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"as_of":           view.AsOf,
		"opening_balance": view.Opening,
		"entries":         view.Timeline,
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"totals":        view.Totals,
		"reading":       view.Reading,
		"total_due":     view.TotalDue,
		"overdue_count": view.OverdueCount,
	})
}

func (s *Server) handleCounterparties(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"counterparties": view.Counterparties,
		"total_due":      view.TotalDue,
	})
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"periods": view.Periods})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	book, _ := s.current()
	t, ok := book.Get(id)
	if !ok {
		respondLedgerError(w, ledger.NewNotFoundError("transaction", id))
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// CorrectionRequest is the body of a correction. Both fields are optional.
type CorrectionRequest struct {
	Label string `json:"label"`
	Date  string `json:"date"`
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CorrectionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	}

	date := ledger.Today()
	if req.Date != "" {
		d, err := ledger.NewDate(req.Date)
		if err != nil {
			respondLedgerError(w, ledger.NewValidationError("", "date", err.Error()))
			return
		}
		date = d
	}

	book, _ := s.current()
	original, ok := book.Get(id)
	if !ok {
		respondLedgerError(w, ledger.NewNotFoundError("transaction", id))
		return
	}
	correction := ledger.CorrectingEntry(original, req.Label, date)
	if err := book.Record(correction); err != nil {
		respondLedgerError(w, err)
		return
	}

	s.log.Info().Str("original", id).Str("correction", correction.ID).Msg("Correcting entry recorded")
	s.broadcast("changed")
	respondJSON(w, http.StatusCreated, correction)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": view.Groups})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	book, _ := s.current()
	group, ok := book.Group(code)
	if !ok {
		respondLedgerError(w, ledger.NewNotFoundError("reconciliation", code))
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// LinkRequest is the body of POST /api/reconciliations. An empty code
// assigns the next free lettrage code.
type LinkRequest struct {
	IDs  []string `json:"ids"`
	Code string   `json:"code"`
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	book, _ := s.current()
	group, err := book.Link(req.IDs, req.Code)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	s.log.Info().Str("code", group.Code).Strs("members", group.Members).Str("status", group.Status.String()).Msg("Entries reconciled")
	s.broadcast("changed")
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	book, _ := s.current()
	if err := book.Unlink(code); err != nil {
		respondLedgerError(w, err)
		return
	}

	s.log.Info().Str("code", code).Msg("Reconciliation removed")
	s.broadcast("changed")
	respondJSON(w, http.StatusNoContent, nil)
}

// BatchRequest is the body of POST /api/batch.
type BatchRequest struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
}

// BatchResponse reports how many entries a batch action changed.
type BatchResponse struct {
	Action  string `json:"action"`
	Applied int    `json:"applied"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	action, err := ledger.ParseAction(req.Action)
	if err != nil {
		respondLedgerError(w, ledger.NewValidationError("", "action", err.Error()))
		return
	}

	book, _ := s.current()
	applied, err := book.Apply(action, ledger.NewSelection(req.IDs...))
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	s.log.Info().Str("action", action.String()).Int("applied", applied).Msg("Batch applied")
	if applied > 0 {
		s.broadcast("changed")
	}
	respondJSON(w, http.StatusOK, BatchResponse{Action: action.String(), Applied: applied})
}
