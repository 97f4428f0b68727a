package handler

import (
	"net/http"

	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
)

// StatsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics are available at /metrics via promhttp.
type StatsHandler struct {
	q *queue.PriorityQueue
}

func NewStatsHandler(q *queue.PriorityQueue) *StatsHandler {
	return &StatsHandler{q: q}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Real-time in-process queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	high, normal, low := h.q.Depths()
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]int{
			"high":   high,
			"normal": normal,
			"low":    low,
			"total":  high + normal + low,
		},
	})
}
