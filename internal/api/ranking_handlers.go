// Package api provides HTTP handlers for the Mimy API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edwds/mimy/internal/cache"
	"github.com/edwds/mimy/internal/middleware"
	"github.com/edwds/mimy/internal/ranklist"
)

// MaxBatchItems caps the number of judgements accepted in one batch insert.
const MaxBatchItems = 100

// CreateRankingRequest represents the request body for recording a judgement.
type CreateRankingRequest struct {
	ShopID int64  `json:"shop_id"`
	Tier   string `json:"satisfaction_tier"`
}

// BatchRankingRequest represents the request body for a batch insert.
type BatchRankingRequest struct {
	Items []CreateRankingRequest `json:"items"`
}

// BatchRankingResponse reports the outcome of a batch insert.
type BatchRankingResponse struct {
	Inserted int     `json:"inserted"`
	Skipped  []int64 `json:"skipped,omitempty"`
}

// ReorderRequest represents the request body for a bulk reorder.
type ReorderRequest struct {
	Items []ReorderItemRequest `json:"items"`
}

// ReorderItemRequest is one (shop, rank, tier) tuple of a reorder request.
type ReorderItemRequest struct {
	ShopID int64  `json:"shop_id"`
	Rank   int    `json:"rank"`
	Tier   string `json:"satisfaction_tier"`
}

// RankingListResponse wraps the owner's full ranked list.
type RankingListResponse struct {
	Entries []*ranklist.Entry `json:"entries"`
	Total   int               `json:"total"`
}

// RankingHandlers holds dependencies for ranking list HTTP handlers.
type RankingHandlers struct {
	manager *ranklist.Manager
	cache   *cache.Cache
	ttl     time.Duration
}

// NewRankingHandlers creates a new RankingHandlers instance. The cache may
// be a disabled instance; list reads then always hit the repository.
func NewRankingHandlers(manager *ranklist.Manager, c *cache.Cache, ttl time.Duration) *RankingHandlers {
	return &RankingHandlers{
		manager: manager,
		cache:   c,
		ttl:     ttl,
	}
}

// Ranking handles /api/ranking, dispatching on method:
// GET lists the owner's entries, POST records a new judgement.
func (h *RankingHandlers) Ranking(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.insert(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// list handles GET /api/ranking - returns the owner's full ranked list.
func (h *RankingHandlers) list(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var entries []*ranklist.Entry
	err := h.cache.GetOrSet(r.Context(), cache.OwnerListKey(ownerID), h.ttl, &entries,
		func(ctx context.Context) (any, error) {
			return h.manager.List(ctx, ownerID)
		})
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load ranking list")
		return
	}

	writeJSON(w, r, http.StatusOK, RankingListResponse{
		Entries: entries,
		Total:   len(entries),
	})
}

// insert handles POST /api/ranking - records a new judgement.
func (h *RankingHandlers) insert(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req CreateRankingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.ShopID <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "shop_id is required")
		return
	}

	tier, err := ranklist.ParseTier(req.Tier)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTier)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTier, "satisfaction_tier must be 'good', 'ok', or 'bad'")
		return
	}

	entry, err := h.manager.Insert(r.Context(), ownerID, req.ShopID, tier)
	if err != nil {
		h.writeManagerError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), cache.OwnerListPattern(ownerID))

	writeJSON(w, r, http.StatusCreated, entry)
}

// Batch handles POST /api/ranking/batch - records a set of judgements,
// skipping shops the owner has already ranked.
func (h *RankingHandlers) Batch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ownerID := middleware.GetUserID(r.Context())

	var req BatchRankingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if len(req.Items) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "items must not be empty")
		return
	}
	if len(req.Items) > MaxBatchItems {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBatchTooLarge)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBatchTooLarge, "items exceeds the maximum of 100 per request")
		return
	}

	items := make([]ranklist.BatchItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ShopID <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "every item requires a shop_id")
			return
		}
		tier, err := ranklist.ParseTier(item.Tier)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTier)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTier, "satisfaction_tier must be 'good', 'ok', or 'bad'")
			return
		}
		items = append(items, ranklist.BatchItem{ShopID: item.ShopID, Tier: tier})
	}

	result, err := h.manager.InsertMany(r.Context(), ownerID, items)
	if err != nil {
		h.writeManagerError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), cache.OwnerListPattern(ownerID))

	writeJSON(w, r, http.StatusOK, BatchRankingResponse{
		Inserted: result.Inserted,
		Skipped:  result.Skipped,
	})
}

// Reorder handles PUT /api/ranking/reorder - applies a set of
// (shop, rank, tier) tuples atomically.
func (h *RankingHandlers) Reorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ownerID := middleware.GetUserID(r.Context())

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	items := make([]ranklist.ReorderItem, 0, len(req.Items))
	for _, item := range req.Items {
		tier, err := ranklist.ParseTier(item.Tier)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTier)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTier, "satisfaction_tier must be 'good', 'ok', or 'bad'")
			return
		}
		items = append(items, ranklist.ReorderItem{ShopID: item.ShopID, Rank: item.Rank, Tier: tier})
	}

	if err := h.manager.Reorder(r.Context(), ownerID, items); err != nil {
		h.writeManagerError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), cache.OwnerListPattern(ownerID))

	writeJSON(w, r, http.StatusOK, map[string]any{"updated": len(items)})
}

// Delete handles DELETE /api/ranking/{shopID} - removes the owner's
// judgement for a shop, closing the rank gap and cascading to the
// owner's visit records for that shop.
func (h *RankingHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ownerID := middleware.GetUserID(r.Context())

	shopID, ok := shopIDFromPath(r.URL.Path, "/api/ranking/")
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "shop ID must be a positive integer")
		return
	}

	if err := h.manager.Delete(r.Context(), ownerID, shopID); err != nil {
		h.writeManagerError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), cache.OwnerListPattern(ownerID))
	h.cache.InvalidatePattern(r.Context(), cache.ShopReviewsPattern(shopID))

	w.WriteHeader(http.StatusNoContent)
}

// writeManagerError maps ranklist errors to the standard error envelope.
func (h *RankingHandlers) writeManagerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ranklist.ErrInvalidTier):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTier)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTier, "satisfaction_tier must be 'good', 'ok', or 'bad'")
	case errors.Is(err, ranklist.ErrInvalidReorder):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidReorder)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidReorder, err.Error())
	case errors.Is(err, ranklist.ErrDuplicateEntry):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDuplicateShop)
		WriteError(w, ctx, http.StatusConflict, ErrCodeDuplicateShop, "Shop is already on the ranking list")
	case errors.Is(err, ranklist.ErrEntryNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeEntryNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeEntryNotFound, "Ranking entry not found")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update ranking list")
	}
}

// shopIDFromPath extracts the trailing shop ID from a path like
// /api/ranking/123. Returns false for missing, non-numeric, nested, or
// non-positive IDs.
func shopIDFromPath(path, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
