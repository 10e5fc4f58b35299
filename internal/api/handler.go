package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/curia/internal/archive"
	"github.com/nidhogg/curia/internal/graph"
	"github.com/nidhogg/curia/internal/memory"
	"github.com/nidhogg/curia/internal/senate"
	"github.com/nidhogg/curia/internal/store"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers. Store, graph and
// speech archive are optional; their routes answer 503 when absent.
type Handler struct {
	assembly *senate.Assembly
	store    *store.Store
	graph    *graph.Archive
	speeches *archive.SpeechArchive
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	assembly *senate.Assembly,
	st *store.Store,
	gr *graph.Archive,
	speeches *archive.SpeechArchive,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		assembly: assembly,
		store:    st,
		graph:    gr,
		speeches: speeches,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/members", h.listMembers)
		r.Get("/members/{id}", h.getMember)
		r.Get("/members/{id}/relationships", h.getRelationships)
		r.Get("/members/{id}/memories", h.getMemories)
		r.Get("/members/{id}/influencers", h.getInfluencers)

		r.Post("/sessions", h.convene)
		r.Get("/sessions", h.listSessions)
		r.Post("/advance", h.advanceDays)

		r.Get("/speeches/search", h.searchSpeeches)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "assembly": "curia"})
}

type memberView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Faction string `json:"faction"`
	Rank    int    `json:"rank"`
	Phase   string `json:"phase"`
}

func view(m *senate.Member) memberView {
	return memberView{
		ID:      m.ID,
		Name:    m.Name,
		Faction: m.Faction,
		Rank:    m.Rank,
		Phase:   string(m.CurrentPhase()),
	}
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members := h.assembly.Members()
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, view(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := h.assembly.Member(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	writeJSON(w, http.StatusOK, view(m))
}

func (h *Handler) getRelationships(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := h.assembly.Member(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	writeJSON(w, http.StatusOK, m.RelationSnapshot())
}

func (h *Handler) getMemories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := h.assembly.Member(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	items := m.Memory().Query(memory.Query{Limit: limit})
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getInfluencers(w http.ResponseWriter, r *http.Request) {
	if h.graph == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "graph archive not configured"})
		return
	}
	id := chi.URLParam(r, "id")
	out, err := h.graph.Influencers(r.Context(), id, 10)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type conveneRequest struct {
	Day         string         `json:"day"` // "2006-01-02"
	Topics      []senate.Topic `json:"topics"`
	Rounds      int            `json:"rounds"`
	TurnBudget  int            `json:"turn_budget"`
	PresidingID string         `json:"presiding_id"`
	Testing     bool           `json:"testing"`
}

func (h *Handler) convene(w http.ResponseWriter, r *http.Request) {
	var req conveneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(req.Topics) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one topic is required"})
		return
	}
	day := time.Now()
	if req.Day != "" {
		parsed, err := time.Parse("2006-01-02", req.Day)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	res, err := h.assembly.Convene(r.Context(), day, req.Topics, senate.SessionConfig{
		Rounds:      req.Rounds,
		Testing:     req.Testing,
		TurnBudget:  req.TurnBudget,
		PresidingID: req.PresidingID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, senate.ErrSessionForbidden) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if h.store != nil {
		if err := h.store.SaveSession(r.Context(), res); err != nil {
			h.logger.Warn("session archive write failed",
				zap.String("session", res.SessionID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assembly.History())
}

type advanceRequest struct {
	Days float64 `json:"days"`
}

func (h *Handler) advanceDays(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Days <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be positive"})
		return
	}
	h.assembly.AdvanceDays(req.Days)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "decay applied",
		"days":   req.Days,
	})
}

func (h *Handler) searchSpeeches(w http.ResponseWriter, r *http.Request) {
	if h.speeches == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "speech archive not configured"})
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	topK := uint64(5)
	if v := r.URL.Query().Get("k"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			topK = n
		}
	}
	hits, err := h.speeches.Similar(r.Context(), query, topK)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
