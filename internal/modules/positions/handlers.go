package positions

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for position, cash and sector target
// endpoints.
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new positions handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "positions").Logger(),
	}
}

// RegisterRoutes mounts the position routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/positions", func(r chi.Router) {
		r.Get("/", h.HandleGetPositions)
		r.Post("/", h.HandleUpsertPosition)
		r.Delete("/{ticker}", h.HandleDeletePosition)
	})

	r.Route("/cash", func(r chi.Router) {
		r.Get("/", h.HandleGetCash)
		r.Put("/", h.HandleSetCash)
	})

	r.Route("/sector-allocations", func(r chi.Router) {
		r.Get("/", h.HandleGetSectorAllocations)
		r.Put("/", h.HandleUpsertSectorAllocation)
	})
}

// HandleGetPositions handles GET /api/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	result, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	if result == nil {
		result = []Position{}
	}
	writeJSON(w, result)
}

// HandleUpsertPosition handles POST /api/positions
func (h *Handler) HandleUpsertPosition(w http.ResponseWriter, r *http.Request) {
	var p Position
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if p.Shares < 0 || p.PriceBought < 0 {
		http.Error(w, "Shares and price must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(p); err != nil {
		h.log.Error().Err(err).Str("ticker", p.Ticker).Msg("Failed to save position")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleDeletePosition handles DELETE /api/positions/{ticker}
func (h *Handler) HandleDeletePosition(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}

	err := h.repo.Delete(ticker)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Position not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to delete position")
		http.Error(w, "Failed to delete position", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleGetCash handles GET /api/cash
func (h *Handler) HandleGetCash(w http.ResponseWriter, r *http.Request) {
	amount, err := h.repo.GetCash()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get cash")
		http.Error(w, "Failed to get cash", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{"cash": amount})
}

// HandleSetCash handles PUT /api/cash
func (h *Handler) HandleSetCash(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cash float64 `json:"cash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Cash < 0 {
		http.Error(w, "Cash must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetCash(body.Cash); err != nil {
		h.log.Error().Err(err).Msg("Failed to set cash")
		http.Error(w, "Failed to set cash", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{"cash": body.Cash})
}

// HandleGetSectorAllocations handles GET /api/sector-allocations
func (h *Handler) HandleGetSectorAllocations(w http.ResponseWriter, r *http.Request) {
	result, err := h.repo.GetSectorAllocations()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get sector allocations")
		http.Error(w, "Failed to get sector allocations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// HandleUpsertSectorAllocation handles PUT /api/sector-allocations
func (h *Handler) HandleUpsertSectorAllocation(w http.ResponseWriter, r *http.Request) {
	var body SectorAllocation
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Allocation < 0 || body.Allocation > 1 {
		http.Error(w, "Allocation must be in [0, 1]", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpsertSectorAllocation(body.Sector, body.Allocation); err != nil {
		h.log.Error().Err(err).Str("sector", body.Sector).Msg("Failed to save sector allocation")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, body)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
