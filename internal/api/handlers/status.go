package handlers

import (
	"net/http"

	"github.com/vantor-labs/vantor/internal/api"
	"github.com/vantor-labs/vantor/internal/service"
)

type RateReporter interface {
	Status() service.RateLimiterStatus
}

// StatusHandler reports the occupancy of the provider admission window.
type StatusHandler struct {
	limiter RateReporter
}

func NewStatusHandler(limiter RateReporter) *StatusHandler {
	return &StatusHandler{limiter: limiter}
}

type StatusResponse struct {
	Status    string                    `json:"status"`
	RateLimit service.RateLimiterStatus `json:"rate_limit"`
}

func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, StatusResponse{
		Status:    "ok",
		RateLimit: h.limiter.Status(),
	})
}
