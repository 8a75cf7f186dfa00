// Package api is the thin HTTP surface the dashboard consumes. The only
// writes it accepts are run-status flips, lead ingestion/re-enqueue/delete,
// and template overrides; all campaign logic stays in the engine.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coldreach/internal/csvparser"
	"coldreach/internal/db"
	"coldreach/internal/models"
)

// Store is the slice of the persistence layer the API needs.
type Store interface {
	CampaignState(ctx context.Context) (*models.CampaignState, error)
	SetRunStatus(ctx context.Context, status models.RunStatus) error
	ListLeads(ctx context.Context, filter db.LeadFilter) ([]*models.Lead, error)
	InsertLeads(ctx context.Context, leads []*models.Lead) (int, int, error)
	RequeueLead(ctx context.Context, id int64) error
	DeleteLead(ctx context.Context, id int64) error
	ListActivity(ctx context.Context, limit int) ([]*models.ActivityLogEntry, error)
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	SaveTemplate(ctx context.Context, t *models.Template) error
}

type Handler struct {
	Store Store
	Log   *zap.Logger
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/campaign/status", h.CampaignStatus)
		r.Post("/campaign/start", h.setRunStatus(models.RunRunning))
		r.Post("/campaign/pause", h.setRunStatus(models.RunPaused))
		r.Post("/campaign/stop", h.setRunStatus(models.RunStopped))

		r.Get("/leads", h.ListLeads)
		r.Post("/leads/upload", h.UploadLeads)
		r.Put("/leads/{id}", h.RequeueLead)
		r.Delete("/leads/{id}", h.DeleteLead)

		r.Get("/logs", h.ListLogs)

		r.Get("/templates", h.ListTemplates)
		r.Post("/templates", h.SaveTemplate)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CampaignStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.Store.CampaignState(r.Context())
	if err != nil {
		h.serverError(w, "campaign status", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) setRunStatus(status models.RunStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Store.SetRunStatus(r.Context(), status); err != nil {
			h.serverError(w, "set run status", err)
			return
		}
		h.Log.Info("run status changed", zap.String("run_status", string(status)))
		writeJSON(w, http.StatusOK, map[string]string{"run_status": string(status)})
	}
}

func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter := db.LeadFilter{
		Status: models.LeadStatus(r.URL.Query().Get("status")),
		SortBy: r.URL.Query().Get("sort"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	leads, err := h.Store.ListLeads(r.Context(), filter)
	if err != nil {
		h.serverError(w, "list leads", err)
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *Handler) UploadLeads(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing csv file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	leads, err := csvparser.ParseLeads(file, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inserted, skipped, err := h.Store.InsertLeads(r.Context(), leads)
	if err != nil {
		h.serverError(w, "insert leads", err)
		return
	}

	h.Log.Info("leads uploaded", zap.Int("inserted", inserted), zap.Int("skipped", skipped))
	writeJSON(w, http.StatusOK, map[string]int{
		"inserted": inserted,
		"skipped":  skipped,
	})
}

func (h *Handler) RequeueLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return
	}

	if err := h.Store.RequeueLead(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "requeued"})
}

func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return
	}

	if err := h.Store.DeleteLead(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Store.ListActivity(r.Context(), limit)
	if err != nil {
		h.serverError(w, "list activity", err)
		return
	}
	if entries == nil {
		entries = []*models.ActivityLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		h.serverError(w, "list templates", err)
		return
	}
	if templates == nil {
		templates = []*models.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch t.Stage {
	case models.StageInitial, models.StageFollowup1, models.StageFollowup2, models.StageAutoResponse:
	default:
		http.Error(w, "unknown template stage", http.StatusBadRequest)
		return
	}

	if err := h.Store.SaveTemplate(r.Context(), &t); err != nil {
		h.serverError(w, "save template", err)
		return
	}
	writeJSON(w, http.StatusOK, &t)
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error("api request failed", zap.String("op", op), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
