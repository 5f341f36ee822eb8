package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/cache"
	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/internal/metrics"
	"transfer-dashboard-backend/internal/normalize"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
	"transfer-dashboard-backend/storage"
)

// Request is the full parameter tuple of one aggregation
type Request struct {
	Chain       string
	Window      filter.Window
	Granularity stats.Granularity
	Set         stats.MetricSet
	Limit       int
}

// Validate rejects malformed parameters before any data is read
func (r Request) Validate() error {
	if models.NormalizeChain(r.Chain) == "" {
		return utils.NewInputError("INVALID_CHAIN", "chain of interest is required")
	}
	if r.Window.Start.IsZero() || r.Window.End.Before(r.Window.Start) {
		return utils.NewInputError("INVALID_WINDOW", "invalid window %s", r.Window)
	}
	if _, err := r.Set.Definition(); err != nil {
		return err
	}
	// time-bucketed sets need a granularity; any other set may omit it but not misspell it
	if r.Set.UsesGranularity() || r.Granularity != "" {
		if _, err := stats.ParseGranularity(string(r.Granularity)); err != nil {
			return err
		}
	}
	if r.Limit < 0 {
		return utils.NewInputError("INVALID_LIMIT", "limit must not be negative, got %d", r.Limit)
	}
	return nil
}

// CacheKey serializes every parameter that can change the result
func (r Request) CacheKey() string {
	params := url.Values{}
	params.Set("chain", models.NormalizeChain(r.Chain))
	params.Set("start", r.Window.Start.Format(filter.DateLayout))
	params.Set("end", r.Window.End.Format(filter.DateLayout))
	if r.Set.UsesGranularity() {
		params.Set("granularity", string(r.Granularity))
	}
	if r.Set.Ranked() {
		params.Set("limit", strconv.Itoa(r.Limit))
	}
	return cache.Key(string(r.Set), params)
}

// Response carries the rows of one metric set plus how they were produced
type Response struct {
	Set         stats.MetricSet      `json:"set"`
	Chain       string               `json:"chain"`
	Start       string               `json:"start"`
	End         string               `json:"end"`
	Granularity stats.Granularity    `json:"granularity,omitempty"`
	Rows        []stats.MetricRow    `json:"rows,omitempty"`
	Transfers   []models.TransferRow `json:"transfers,omitempty"`
	Empty       bool                 `json:"empty"`
	Unavailable bool                 `json:"unavailable"`
	Cached      bool                 `json:"cached"`
	Degraded    int                  `json:"degradedFields"`
}

// Data returns the rows or transfers of the set, never nil
func (r *Response) Data() interface{} {
	if r.Set == stats.SetRecent || r.Set == stats.SetWhales {
		if r.Transfers == nil {
			return []models.TransferRow{}
		}
		return r.Transfers
	}
	if r.Rows == nil {
		return []stats.MetricRow{}
	}
	return r.Rows
}

func newResponse(req Request) *Response {
	resp := &Response{
		Set:   req.Set,
		Chain: models.NormalizeChain(req.Chain),
		Start: req.Window.Start.Format(filter.DateLayout),
		End:   req.Window.End.Format(filter.DateLayout),
	}
	if req.Set.UsesGranularity() {
		resp.Granularity = req.Granularity
	}
	return resp
}

// Engine runs parametrized aggregations against an injected source
type Engine struct {
	source storage.Source
	cache  cache.Cache
	log    *zap.Logger
}

// NewEngine creates an engine. A nil cache disables memoization.
func NewEngine(source storage.Source, c cache.Cache) *Engine {
	return &Engine{
		source: source,
		cache:  c,
		log:    utils.Component(utils.ComponentEngine),
	}
}

// Run computes one metric set. Only invalid parameters produce an error; an unreachable
// upstream yields an empty response flagged Unavailable, which is not memoized.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	set := string(req.Set)

	if err := req.Validate(); err != nil {
		metrics.RecordQuery(set, "input_error", time.Since(start).Seconds())
		return nil, err
	}

	key := req.CacheKey()
	if cached, ok := e.lookup(ctx, key, set); ok {
		metrics.RecordQuery(set, "cached", time.Since(start).Seconds())
		return cached, nil
	}

	resp := newResponse(req)
	transfers, degraded, err := e.Transfers(ctx, req.Chain, req.Window)
	if err != nil {
		resp.Empty = true
		resp.Unavailable = true
		metrics.RecordQuery(set, "unavailable", time.Since(start).Seconds())
		return resp, nil
	}
	resp.Degraded = degraded

	result, err := stats.Compute(transfers, req.Set, models.NormalizeChain(req.Chain), req.Granularity, req.Limit)
	if err != nil {
		metrics.RecordQuery(set, "input_error", time.Since(start).Seconds())
		return nil, err
	}
	resp.Rows = result.Rows
	resp.Transfers = result.Transfers
	resp.Empty = result.Empty()

	e.store(ctx, key, resp)

	outcome := "ok"
	if resp.Empty {
		outcome = "empty"
	}
	metrics.RecordQuery(set, outcome, time.Since(start).Seconds())
	return resp, nil
}

// Transfers loads, normalizes and filters the unified stream for a window.
// It returns the number of degraded fields alongside the transfers.
func (e *Engine) Transfers(ctx context.Context, chain string, w filter.Window) ([]models.NormalizedTransfer, int, error) {
	qStart, qEnd := w.QueryBounds()
	q := storage.Query{Chain: models.NormalizeChain(chain), Start: qStart, End: qEnd}

	var (
		wg                sync.WaitGroup
		simple            []models.RawSimpleTransferEvent
		messages          []models.RawMessageEvent
		simpleErr, msgErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		simple, simpleErr = e.source.SimpleTransfers(ctx, q)
	}()
	go func() {
		defer wg.Done()
		messages, msgErr = e.source.MessageEvents(ctx, q)
	}()
	wg.Wait()

	if err := e.unavailable("simple_transfers", simpleErr); err != nil {
		return nil, 0, err
	}
	if err := e.unavailable("message_events", msgErr); err != nil {
		return nil, 0, err
	}

	res := normalize.Normalize(simple, messages, chain)
	metrics.RecordDegraded(res.Degraded)
	if n := res.DegradedTotal(); n > 0 {
		e.log.Debug("degraded numeric fields", zap.Int("count", n), zap.Any("fields", res.Degraded))
	}
	return filter.Apply(res.Transfers, chain, w), res.DegradedTotal(), nil
}

func (e *Engine) unavailable(feed string, err error) error {
	if err == nil {
		return nil
	}
	if !utils.IsDataUnavailable(err) {
		err = utils.NewDataUnavailable(err, utils.ComponentEngine).WithContext("feed", feed)
	}
	metrics.DataUnavailable.WithLabelValues(feed).Inc()
	utils.LogError(e.log, err, "upstream read failed, serving empty result", zap.String("feed", feed))
	return err
}

func (e *Engine) lookup(ctx context.Context, key, set string) (*Response, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, found, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.RecordCache(set, found)
	if !found {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		e.log.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

func (e *Engine) store(ctx context.Context, key string, resp *Response) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		e.log.Warn("cannot encode result for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := e.cache.Set(ctx, key, data); err != nil {
		e.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ClearCache drops every memoized result
func (e *Engine) ClearCache(ctx context.Context) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	n, err := e.cache.Clear(ctx)
	if err != nil {
		return 0, utils.WrapError(err, utils.ErrorTypeCache, "CACHE_CLEAR_FAILED", "failed to clear cache", utils.ComponentCache)
	}
	e.log.Info("cache cleared", zap.Int("entries", n))
	return n, nil
}

// RunMany evaluates several metric sets over the same parameters in parallel.
// The first input error aborts the whole batch.
func (e *Engine) RunMany(ctx context.Context, base Request, sets []stats.MetricSet) (map[stats.MetricSet]*Response, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make(map[stats.MetricSet]*Response, len(sets))
		firstErr error
	)
	for _, set := range sets {
		req := base
		req.Set = set
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("metric set %s panicked: %v", req.Set, r)
					}
					mu.Unlock()
				}
			}()
			resp, err := e.Run(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[req.Set] = resp
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
