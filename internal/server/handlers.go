package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transfer-dashboard-backend/internal/query"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
)

// OverviewSets are evaluated by GET /overview when no sets are named
var OverviewSets = []stats.MetricSet{
	stats.SetKPI,
	stats.SetOverTime,
	stats.SetByService,
	stats.SetByDirection,
}

func responseMeta(resp *query.Response) map[string]any {
	meta := map[string]any{
		"set":            resp.Set,
		"chain":          resp.Chain,
		"start":          resp.Start,
		"end":            resp.End,
		"empty":          resp.Empty,
		"unavailable":    resp.Unavailable,
		"cached":         resp.Cached,
		"degradedFields": resp.Degraded,
	}
	if resp.Granularity != "" {
		meta["granularity"] = resp.Granularity
	}
	return meta
}

// handleSet serves one fixed metric set
func (s *Server) handleSet(set stats.MetricSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.serve(c, set)
	}
}

// handleNamedSet serves the set named in the path
func (s *Server) handleNamedSet(c *gin.Context) {
	set, err := stats.ParseMetricSet(c.Param("set"))
	if err != nil {
		Fail(c, err)
		return
	}
	s.serve(c, set)
}

// handleRanked picks between a by-count and a by-volume ranking from ?by=
func (s *Server) handleRanked(byCount, byVolume stats.MetricSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.DefaultQuery("by", "count") {
		case "count":
			s.serve(c, byCount)
		case "volume":
			s.serve(c, byVolume)
		default:
			Fail(c, utils.NewInputError("INVALID_RANKING", "by must be count or volume, got %q", c.Query("by")))
		}
	}
}

func (s *Server) serve(c *gin.Context, set stats.MetricSet) {
	req, err := s.parseRequest(c, set)
	if err != nil {
		Fail(c, err)
		return
	}
	resp, err := s.engine.Run(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, resp.Data(), responseMeta(resp))
}

// handleOverview evaluates several sets over the same parameters
func (s *Server) handleOverview(c *gin.Context) {
	sets, err := parseSets(c.Query("sets"), OverviewSets)
	if err != nil {
		Fail(c, err)
		return
	}
	req, err := s.parseRequest(c, "")
	if err != nil {
		Fail(c, err)
		return
	}
	results, err := s.engine.RunMany(c.Request.Context(), req, sets)
	if err != nil {
		Fail(c, err)
		return
	}

	data := make(map[stats.MetricSet]any, len(results))
	meta := make(map[string]any, len(results))
	unavailable := false
	for set, resp := range results {
		data[set] = resp.Data()
		meta[string(set)] = responseMeta(resp)
		unavailable = unavailable || resp.Unavailable
	}
	meta["unavailable"] = unavailable
	Ok(c, data, meta)
}

// handleSets lists the available metric sets
func (s *Server) handleSets(c *gin.Context) {
	type setInfo struct {
		Name            stats.MetricSet   `json:"name"`
		GroupBy         []stats.Dimension `json:"groupBy"`
		UsesGranularity bool              `json:"usesGranularity"`
		Ranked          bool              `json:"ranked"`
		DefaultLimit    int               `json:"defaultLimit,omitempty"`
	}
	out := make([]setInfo, 0)
	for _, set := range stats.AllMetricSets() {
		def, _ := set.Definition()
		out = append(out, setInfo{
			Name:            set,
			GroupBy:         def.GroupBy,
			UsesGranularity: set.UsesGranularity(),
			Ranked:          set.Ranked(),
			DefaultLimit:    def.DefaultLimit,
		})
	}
	Ok(c, out, map[string]any{"defaults": s.defaults})
}

// handleLive returns the live collector's tallies
func (s *Server) handleLive(c *gin.Context) {
	if s.live == nil {
		Error(c, http.StatusNotFound, "live monitoring is disabled", nil)
		return
	}
	Ok(c, s.live.Snapshot(), nil)
}

// handleClearCache drops all memoized results
func (s *Server) handleClearCache(c *gin.Context) {
	n, err := s.engine.ClearCache(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"cleared": n}, nil)
}

// handleHealth runs every registered check
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	resp := gin.H{"status": "ok", "checks": checks}
	if s.ws != nil {
		resp["clients"] = s.ws.GetClientCount()
	}
	if !healthy {
		resp["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleWebSocket hands the connection to the broadcaster
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.ws == nil {
		Error(c, http.StatusNotFound, "live monitoring is disabled", nil)
		return
	}
	s.ws.UpgradeConnection(c.Writer, c.Request)
}
