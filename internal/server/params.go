package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/internal/query"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
)

// Defaults fill query parameters the caller leaves out
type Defaults struct {
	Chain       string `yaml:"chain"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Granularity string `yaml:"granularity"`
}

// DefaultDefaults returns the dashboard's initial view
func DefaultDefaults() Defaults {
	return Defaults{
		Chain:       "filecoin",
		Start:       "2024-01-01",
		End:         "2025-07-31",
		Granularity: string(stats.GranularityMonth),
	}
}

// Request builds the default request for set
func (d Defaults) Request(set stats.MetricSet) (query.Request, error) {
	w, err := filter.ParseWindow(d.Start, d.End)
	if err != nil {
		return query.Request{}, err
	}
	return query.Request{
		Chain:       d.Chain,
		Window:      w,
		Granularity: stats.Granularity(d.Granularity),
		Set:         set,
	}, nil
}

// parseRequest reads chain, start, end, granularity and limit from the query string
func (s *Server) parseRequest(c *gin.Context, set stats.MetricSet) (query.Request, error) {
	d := s.defaults
	w, err := filter.ParseWindow(c.DefaultQuery("start", d.Start), c.DefaultQuery("end", d.End))
	if err != nil {
		return query.Request{}, err
	}

	req := query.Request{
		Chain:       c.DefaultQuery("chain", d.Chain),
		Window:      w,
		Granularity: stats.Granularity(strings.ToLower(c.DefaultQuery("granularity", d.Granularity))),
		Set:         set,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return query.Request{}, utils.NewInputError("INVALID_LIMIT", "limit must be an integer, got %q", raw)
		}
		req.Limit = limit
	}
	return req, nil
}

// parseSets reads a comma separated list of metric sets
func parseSets(raw string, fallback []stats.MetricSet) ([]stats.MetricSet, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	var sets []stats.MetricSet
	for _, part := range strings.Split(raw, ",") {
		set, err := stats.ParseMetricSet(part)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}
