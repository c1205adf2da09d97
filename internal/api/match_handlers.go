package api

import (
	"encoding/json"
	"net/http"

	"github.com/edwds/mimy/internal/match"
	"github.com/edwds/mimy/internal/middleware"
)

// MaxScoreShops caps the number of candidate shops in one score request.
const MaxScoreShops = 200

// ScoreRequest represents the request body for batch match scores.
type ScoreRequest struct {
	ShopIDs []int64 `json:"shop_ids"`
}

// ScoreResponse maps each requested shop to its match score. A shop with
// no usable signal renders as JSON null.
type ScoreResponse struct {
	Scores      map[int64]match.Score `json:"scores"`
	Diagnostics []ScoreDiagnostic     `json:"diagnostics,omitempty"`
}

// ScoreDiagnostic reports a per-shop failure inside a batch. The shop's
// score is null; the rest of the batch is unaffected.
type ScoreDiagnostic struct {
	ShopID int64  `json:"shop_id"`
	Error  string `json:"error"`
}

// MatchHandlers holds dependencies for match score HTTP handlers.
type MatchHandlers struct {
	computer *match.Computer
	rankings match.OwnRankingSource
}

// NewMatchHandlers creates a new MatchHandlers instance.
func NewMatchHandlers(computer *match.Computer, rankings match.OwnRankingSource) *MatchHandlers {
	return &MatchHandlers{
		computer: computer,
		rankings: rankings,
	}
}

// Scores handles POST /api/match/scores - computes match scores for the
// authenticated viewer across a batch of candidate shops.
func (h *MatchHandlers) Scores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	viewerID := middleware.GetUserID(r.Context())

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if len(req.ShopIDs) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "shop_ids must not be empty")
		return
	}
	if len(req.ShopIDs) > MaxScoreShops {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBatchTooLarge)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBatchTooLarge, "shop_ids exceeds the maximum of 200 per request")
		return
	}
	for _, id := range req.ShopIDs {
		if id <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "shop_ids must be positive integers")
			return
		}
	}

	result, err := h.computer.ComputeBatch(r.Context(), viewerID, req.ShopIDs)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute match scores")
		return
	}

	resp := ScoreResponse{Scores: result.Scores}
	for _, d := range result.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, ScoreDiagnostic{
			ShopID: d.ShopID,
			Error:  d.Err.Error(),
		})
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// Stats handles GET /api/match/stats/{shopID} - returns the viewer's own
// standing for a shop they ranked.
func (h *MatchHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	viewerID := middleware.GetUserID(r.Context())

	shopID, ok := shopIDFromPath(r.URL.Path, "/api/match/stats/")
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "shop ID must be a positive integer")
		return
	}

	stat, err := match.OwnStatFor(r.Context(), h.rankings, viewerID, shopID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load ranking stat")
		return
	}
	if stat == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeEntryNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeEntryNotFound, "Shop is not on the ranking list")
		return
	}

	writeJSON(w, r, http.StatusOK, stat)
}
