// README: Stateless fare estimate.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideflow/internal/modules/pricing"
	"rideflow/internal/types"
)

type PricingHandler struct {
	pricing *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type priceReq struct {
	DistanceMeters  *float64   `json:"distance_meters"`
	DurationSeconds *float64   `json:"duration_seconds"`
	At              *time.Time `json:"at"`
}

type priceResp struct {
	Min       types.Money      `json:"min"`
	Max       types.Money      `json:"max"`
	Peak      bool             `json:"peak"`
	Night     bool             `json:"night"`
	Breakdown map[string]int64 `json:"breakdown"`
}

// Estimate handles POST /api/price.
func (h *PricingHandler) Estimate(c *gin.Context) {
	var req priceReq
	if !bindJSON(c, &req) {
		return
	}
	if req.DistanceMeters == nil || req.DurationSeconds == nil {
		writeError(c, http.StatusBadRequest, "missing distance_meters or duration_seconds")
		return
	}

	preq := pricing.PricingRequest{
		Route: types.RouteFacts{DistanceMeters: *req.DistanceMeters, DurationSeconds: *req.DurationSeconds},
	}
	if req.At != nil {
		preq.RequestTime = *req.At
	}

	res, err := h.pricing.Estimate(c.Request.Context(), preq)
	if err != nil {
		if errors.Is(err, types.ErrFormat) {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, priceResp{
		Min:       types.Money{Amount: res.Band.Min, Currency: res.Currency},
		Max:       types.Money{Amount: res.Band.Max, Currency: res.Currency},
		Peak:      res.Peak,
		Night:     res.Night,
		Breakdown: res.Breakdown,
	})
}
