package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/risksheet/internal/config"
	"github.com/aristath/risksheet/internal/modules/positions"
	"github.com/aristath/risksheet/internal/modules/recompute"
	"github.com/aristath/risksheet/internal/modules/snapshots"
)

// RecomputeHandler serves the portfolio recompute endpoint.
type RecomputeHandler struct {
	engine        *recompute.Service
	positionsRepo *positions.Repository
	cfg           *config.Config
	log           zerolog.Logger
}

// NewRecomputeHandler creates a new recompute handler
func NewRecomputeHandler(
	engine *recompute.Service,
	positionsRepo *positions.Repository,
	cfg *config.Config,
	log zerolog.Logger,
) *RecomputeHandler {
	return &RecomputeHandler{
		engine:        engine,
		positionsRepo: positionsRepo,
		cfg:           cfg,
		log:           log.With().Str("handler", "recompute").Logger(),
	}
}

// HandleRecalculate handles POST /api/recalculate. The request body may
// carry explicit rows; when it is empty or omitted the stored positions
// are recomputed instead.
func (h *RecomputeHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recompute.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	if len(req.Rows) == 0 {
		stored, err := h.positionsRepo.GetAll()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load positions")
			http.Error(w, "Failed to load positions", http.StatusInternalServerError)
			return
		}
		for _, p := range stored {
			req.Rows = append(req.Rows, recompute.Position{
				Ticker:      p.Ticker,
				Shares:      p.Shares,
				PriceBought: p.PriceBought,
				DateBought:  p.DateBought,
			})
		}
	}

	cash, err := h.positionsRepo.GetCash()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load cash")
		http.Error(w, "Failed to load cash", http.StatusInternalServerError)
		return
	}

	targets, err := h.positionsRepo.GetSectorAllocations()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load sector allocations")
		http.Error(w, "Failed to load sector allocations", http.StatusInternalServerError)
		return
	}

	marketWeights, err := h.cfg.MarketSectorWeights()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load market sector weights")
		http.Error(w, "Failed to load market sector weights", http.StatusInternalServerError)
		return
	}

	result, err := h.engine.Recompute(r.Context(), req, recompute.AggregationInputs{
		SectorTargets:       targets,
		MarketSectorWeights: marketWeights,
		Cash:                cash,
	})
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Recompute failed")
		http.Error(w, "Recompute failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode recompute response")
	}
}

// SnapshotsHandler serves snapshot history.
type SnapshotsHandler struct {
	repo *snapshots.Repository
	log  zerolog.Logger
}

// NewSnapshotsHandler creates a new snapshots handler
func NewSnapshotsHandler(repo *snapshots.Repository, log zerolog.Logger) *SnapshotsHandler {
	return &SnapshotsHandler{
		repo: repo,
		log:  log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetHistory handles GET /api/snapshots
func (h *SnapshotsHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := h.repo.GetHistory(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get snapshot history")
		http.Error(w, "Failed to get snapshot history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []snapshots.Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}
