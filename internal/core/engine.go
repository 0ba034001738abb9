package core

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultFetchTimeout   = 20 * time.Second
	DefaultMaxConcurrency = 4
)

type Engine struct {
	mu       sync.RWMutex
	sources  map[string]UsageSource // keyed by source ID
	aliases  map[string]string
	fallback UsageSource
	configs  []SourceConfig
	records  []UsageRecord
	interval time.Duration
	timeout  time.Duration
	limit    int
	observer Observer
	now      func() time.Time

	polls    singleflight.Group
	onUpdate func([]UsageRecord)
}

type EngineOption func(*Engine)

func WithFetchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithMaxConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(interval time.Duration, opts ...EngineOption) *Engine {
	e := &Engine{
		sources:  make(map[string]UsageSource),
		aliases:  make(map[string]string),
		interval: interval,
		timeout:  DefaultFetchTimeout,
		limit:    DefaultMaxConcurrency,
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RegisterSource(s UsageSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[s.ID()] = s
}

// RegisterAlias routes configs with source ID alias to the source registered as id.
func (e *Engine) RegisterAlias(alias, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aliases[alias] = id
}

// SetFallback sets the source used for unregistered IDs whose config type is
// "api" or "pay-as-you-go".
func (e *Engine) SetFallback(s UsageSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = s
}

func (e *Engine) SetSources(configs []SourceConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = slices.Clone(configs)
}

func (e *Engine) OnUpdate(fn func([]UsageRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// Records returns the result of the last completed RefreshAll.
func (e *Engine) Records() []UsageRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return CloneRecords(e.records)
}

func (e *Engine) Sources() []UsageSource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := lo.Values(e.sources)
	slices.SortFunc(out, func(a, b UsageSource) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

// RefreshAll polls the configured sources. A call made while another poll is
// in flight waits for and shares that poll's result instead of starting a new one.
func (e *Engine) RefreshAll(ctx context.Context) ([]UsageRecord, error) {
	v, err, _ := e.polls.Do("refresh", func() (any, error) {
		e.mu.RLock()
		configs := slices.Clone(e.configs)
		e.mu.RUnlock()

		records, err := e.Refresh(ctx, configs)

		e.mu.Lock()
		e.records = records
		fn := e.onUpdate
		e.mu.Unlock()

		if fn != nil {
			fn(CloneRecords(records))
		}
		return records, err
	})
	records, _ := v.([]UsageRecord)
	return CloneRecords(records), err
}

// Refresh fetches every config with bounded parallelism. The result holds
// exactly one summary record per config, in config order, followed by that
// config's expansions.
func (e *Engine) Refresh(ctx context.Context, configs []SourceConfig) ([]UsageRecord, error) {
	results := make([][]UsageRecord, len(configs))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, cfg := range configs {
		g.Go(func() error {
			results[i] = e.fetchOne(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	out := make([]UsageRecord, 0, len(configs))
	for _, group := range results {
		for i, r := range group {
			key := r.Key()
			if _, dup := seen[key]; dup && i > 0 {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}

	summaries := lo.Filter(out, func(r UsageRecord, _ int) bool { return r.IsSummary() })
	if len(summaries) > 0 && lo.EveryBy(summaries, func(r UsageRecord) bool {
		return !r.Available && IsTransportFailure(r.FailureKind)
	}) {
		return out, ErrAllSourcesUnreachable
	}
	return out, nil
}

type fetchResult struct {
	records []UsageRecord
	err     error
}

func (e *Engine) fetchOne(ctx context.Context, cfg SourceConfig) []UsageRecord {
	source, ok := e.lookup(cfg)
	if !ok {
		err := Errorf(KindConfigMissing, "no source adapter registered for %q", cfg.SourceID)
		e.observer.SourceFetched(cfg.SourceID, nil, 0, err)
		return e.seal(cfg, "", []UsageRecord{Unavailable(cfg.SourceID, cfg.SourceID, err)})
	}
	name := source.Describe().Name

	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%s: adapter panic: %v", cfg.SourceID, r)}
			}
		}()
		records, err := source.Fetch(fetchCtx, cfg)
		done <- fetchResult{records: records, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-fetchCtx.Done():
		res.err = WrapError(KindTimeout, fmt.Sprintf("%s: fetch did not finish", cfg.SourceID), fetchCtx.Err())
	}
	e.observer.SourceFetched(cfg.SourceID, res.records, time.Since(start), res.err)

	if res.err != nil {
		return e.seal(cfg, name, []UsageRecord{Unavailable(cfg.SourceID, name, res.err)})
	}
	if len(res.records) == 0 {
		err := Errorf(KindUnknown, "%s returned no usage records", cfg.SourceID)
		return e.seal(cfg, name, []UsageRecord{Unavailable(cfg.SourceID, name, err)})
	}
	return e.seal(cfg, name, res.records)
}

// seal stamps engine-owned fields and enforces the record invariants.
func (e *Engine) seal(cfg SourceConfig, name string, records []UsageRecord) []UsageRecord {
	now := e.now()
	out := make([]UsageRecord, len(records))
	for i, r := range records {
		if r.SourceID == "" {
			r.SourceID = cfg.SourceID
		}
		if r.DisplayName == "" {
			r.DisplayName = name
		}
		if r.AuthSource == "" {
			r.AuthSource = cfg.AuthSource
		}
		if i == 0 {
			r.Kind = RecordSummary
		} else {
			r.Kind = RecordExpansion
		}
		r.FetchedAt = now
		out[i] = Finalize(r)
	}
	return out
}

func (e *Engine) lookup(cfg SourceConfig) (UsageSource, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id := cfg.SourceID
	if target, ok := e.aliases[id]; ok {
		id = target
	}
	if s, ok := e.sources[id]; ok {
		return s, true
	}
	if e.fallback != nil && UsesGenericFallback(cfg.Type) {
		return e.fallback, true
	}
	return nil, false
}

func UsesGenericFallback(configType string) bool {
	switch strings.ToLower(strings.TrimSpace(configType)) {
	case "api", "pay-as-you-go":
		return true
	}
	return false
}

func (e *Engine) Run(ctx context.Context) {
	e.poll(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("engine: context cancelled, stopping refresh loop")
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *Engine) poll(ctx context.Context) {
	if _, err := e.RefreshAll(ctx); err != nil {
		log.Printf("engine: poll finished with error: %v", err)
	}
}
