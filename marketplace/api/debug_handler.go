package api

import (
	"net/http"

	rlinfra "roomlink-api/middleware/ratelimit/infra"
)

type rateLimitStatsResponse struct {
	Total  rlinfra.Counters            `json:"total"`
	Routes map[string]rlinfra.Counters `json:"routes"`
	Keys   map[string]rlinfra.Counters `json:"keys,omitempty"`
}

func (h *handler) debugRateLimit(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rateLimitStatsResponse{
		Total:  h.DebugStats.Total(),
		Routes: h.DebugStats.ByRoute(),
		Keys:   h.DebugStats.ByKey(),
	})
}
