package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/ports"
	"github.com/samirrijal/etxebila/internal/pkg/metrics"
	"github.com/samirrijal/etxebila/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/samirrijal/etxebila/internal/core/usecases")

// searchSeq numbers searches process-wide so IDs sort by creation.
var searchSeq atomic.Uint64

// NewSearchID mints a fresh search identifier.
func NewSearchID() string {
	return fmt.Sprintf("S%d-%s", searchSeq.Add(1), uuid.NewString()[:8])
}

// OrchestratorConfig tunes pagination and index hints for a session.
type OrchestratorConfig struct {
	PageSize     int
	TextPageSize int
	// CountOnly requests per_page=0: sessions carry a total and no documents.
	CountOnly bool
	// AutoLoad fetches every page in sequence. When false a session rests in
	// StatusReady after each page until LoadMore.
	AutoLoad  bool
	PageDelay time.Duration
	QueryBy   []string
	Tuning    domain.IndexTuning
	// FallbackTTL is how long a good page stays available as a fallback, in
	// seconds. Zero disables the fallback cache.
	FallbackTTL int
}

// DefaultOrchestratorConfig mirrors the production defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PageSize:     250,
		TextPageSize: 20,
		AutoLoad:     true,
		PageDelay:    800 * time.Millisecond,
		Tuning: domain.IndexTuning{
			SearchCutoffMs: 3000,
			UseCache:       true,
			MaxCandidates:  1000,
		},
		FallbackTTL: 900,
	}
}

// Orchestrator owns the search session for one consumer (a websocket
// connection or a single REST request). At most one session is current;
// selecting again supersedes it, cancels its in-flight request and makes
// sure none of its late responses touch the accumulated state.
type Orchestrator struct {
	index   ports.SearchIndex
	planner *FilterPlanner
	cache   ports.CacheService
	events  ports.EventPublisher
	cfg     OrchestratorConfig

	mu       sync.Mutex
	current  *session
	inflight map[string]context.CancelFunc
	changed  chan struct{}
	observer func(domain.Snapshot)
	closed   bool
	wg       sync.WaitGroup
}

type session struct {
	id         string
	locationID string
	sel        Selection
	plan       *Plan
	pageSize   int
	ctx        context.Context

	status  domain.SessionStatus
	page    int
	fetched map[int]struct{}
	docs    []domain.Property
	seen    map[string]struct{}
	total   int
	outcome domain.Outcome
	err     error
}

// NewOrchestrator creates a new Orchestrator. cache and events may be nil.
func NewOrchestrator(index ports.SearchIndex, planner *FilterPlanner, cache ports.CacheService, events ports.EventPublisher, cfg OrchestratorConfig) *Orchestrator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultOrchestratorConfig().PageSize
	}
	if cfg.TextPageSize <= 0 {
		cfg.TextPageSize = DefaultOrchestratorConfig().TextPageSize
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	return &Orchestrator{
		index:    index,
		planner:  planner,
		cache:    cache,
		events:   events,
		cfg:      cfg,
		inflight: make(map[string]context.CancelFunc),
		changed:  make(chan struct{}),
	}
}

// OnChange registers fn to receive every snapshot transition. fn runs with
// the orchestrator locked and must not call back into it.
func (o *Orchestrator) OnChange(fn func(domain.Snapshot)) {
	o.mu.Lock()
	o.observer = fn
	o.mu.Unlock()
}

// Select starts a new session for sel, superseding the current one, and
// returns its search ID. Results arrive asynchronously; use Snapshot, Wait
// or OnChange to observe them.
func (o *Orchestrator) Select(ctx context.Context, sel Selection) string {
	id := NewSearchID()
	sctx, cancel := context.WithCancel(ctx)

	s := &session{
		id:         id,
		locationID: sel.LocationID(),
		sel:        sel,
		ctx:        sctx,
		status:     domain.StatusLoading,
		fetched:    make(map[int]struct{}),
		seen:       make(map[string]struct{}),
		outcome:    domain.OutcomeExact,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return ""
	}
	o.supersedeLocked()
	o.current = s
	o.inflight[id] = cancel
	o.notifyLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	slog.Debug("search selected", "search_id", id, "location_id", s.locationID)

	go o.run(s, 1)
	return id
}

// LoadMore fetches the next page of a session resting in StatusReady. It
// reports whether a fetch was started.
func (o *Orchestrator) LoadMore() bool {
	o.mu.Lock()
	s := o.current
	if o.closed || s == nil || s.status != domain.StatusReady {
		o.mu.Unlock()
		return false
	}
	s.status = domain.StatusLoading
	o.notifyLocked()
	o.wg.Add(1)
	next := s.page + 1
	o.mu.Unlock()

	go o.run(s, next)
	return true
}

// Clear supersedes the current session and returns to idle.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.supersedeLocked()
	o.current = nil
	o.notifyLocked()
}

// Snapshot returns the current observable state.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Wait blocks until the current session is settled or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (domain.Snapshot, error) {
	for {
		o.mu.Lock()
		if o.current == nil || o.current.status.Settled() {
			snap := o.snapshotLocked()
			o.mu.Unlock()
			return snap, nil
		}
		ch := o.changed
		o.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}

// Close cancels every in-flight request and waits for session goroutines
// to exit. The orchestrator cannot be reused.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	for id, cancel := range o.inflight {
		cancel()
		delete(o.inflight, id)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) supersedeLocked() {
	prev := o.current
	if prev == nil {
		return
	}
	if cancel, ok := o.inflight[prev.id]; ok {
		cancel()
		delete(o.inflight, prev.id)
	}
	if prev.status == domain.StatusLoading || prev.status == domain.StatusReady {
		prev.status = domain.StatusSuperseded
		metrics.SessionsSuperseded.Inc()
		slog.Debug("search superseded", "search_id", prev.id)
	}
}

func (o *Orchestrator) notifyLocked() {
	close(o.changed)
	o.changed = make(chan struct{})
	if o.observer != nil {
		o.observer(o.snapshotLocked())
	}
}

func (o *Orchestrator) snapshotLocked() domain.Snapshot {
	s := o.current
	if s == nil {
		return domain.Snapshot{Status: domain.StatusIdle, Documents: []domain.Property{}}
	}
	docs := make([]domain.Property, len(s.docs))
	copy(docs, s.docs)
	snap := domain.Snapshot{
		SearchID:   s.id,
		Status:     s.status,
		Page:       s.page,
		PageSize:   s.pageSize,
		Documents:  docs,
		TotalCount: s.total,
		Outcome:    s.outcome,
	}
	if s.plan != nil {
		snap.Mode = s.plan.Mode
		snap.Filter = s.plan.Filter
	}
	if s.err != nil {
		snap.Error = s.err.Error()
		snap.ErrorKind = domain.ErrorKind(s.err)
	}
	return snap
}

// apply runs fn against s under the lock if s is still current. A false
// return means the response is stale and was dropped.
func (o *Orchestrator) apply(s *session, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s || s.status == domain.StatusSuperseded {
		metrics.StaleResponsesDropped.Inc()
		slog.Debug("dropping stale response", "search_id", s.id, "err", domain.ErrSuperseded)
		return false
	}
	fn()
	o.notifyLocked()
	return true
}

func (o *Orchestrator) run(s *session, page int) {
	defer o.wg.Done()

	if s.plan == nil {
		plan, err := o.plan(s)
		ok := o.apply(s, func() {
			if err != nil {
				s.status = domain.StatusFailed
				s.err = err
				return
			}
			s.plan = plan
			s.pageSize = o.pageSizeFor(plan)
			s.outcome = plan.Outcome()
		})
		if !ok {
			return
		}
		if err != nil {
			slog.Warn("search planning failed", "search_id", s.id, "location_id", s.locationID,
				"kind", domain.ErrorKind(err), "error", err)
			o.settled(s)
			return
		}
		metrics.SessionsStarted.WithLabelValues(string(plan.Mode)).Inc()
	}

	for {
		if !o.claim(s, page) {
			return
		}

		res, outcome, err := o.fetch(s.ctx, s, page)

		var more bool
		ok := o.apply(s, func() {
			if err != nil {
				s.status = domain.StatusFailed
				s.err = err
				return
			}
			o.mergeLocked(s, page, res, outcome)
			more = s.status == domain.StatusLoading
		})
		if !ok {
			return
		}
		if err != nil {
			if s.ctx.Err() == nil {
				slog.Error("search page failed", "search_id", s.id, "page", page,
					"kind", domain.ErrorKind(err), "error", err)
			}
			o.settled(s)
			return
		}
		if !more {
			o.mu.Lock()
			done := s.status == domain.StatusComplete
			o.mu.Unlock()
			if done {
				o.settled(s)
			}
			return
		}

		if err := sleepCtx(s.ctx, o.cfg.PageDelay); err != nil {
			if o.apply(s, func() {
				s.status = domain.StatusFailed
				s.err = err
			}) {
				o.settled(s)
			}
			return
		}
		page++
	}
}

func (o *Orchestrator) plan(s *session) (*Plan, error) {
	_, span := tracer.Start(s.ctx, telemetry.SpanPlan)
	defer span.End()
	span.SetAttributes(attribute.String("search.id", s.id), attribute.String("location.id", s.locationID))

	plan, err := o.planner.Plan(s.sel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.ErrorKind(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("search.mode", string(plan.Mode)))
	if plan.Filter != nil {
		span.SetAttributes(attribute.Int("search.filter_chars", plan.Filter.Len()))
	}
	return plan, nil
}

// claim marks page as fetched for s. A page is never requested twice.
func (o *Orchestrator) claim(s *session, page int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s || s.status != domain.StatusLoading {
		return false
	}
	if _, dup := s.fetched[page]; dup {
		return false
	}
	s.fetched[page] = struct{}{}
	return true
}

func (o *Orchestrator) mergeLocked(s *session, page int, res *domain.IndexResult, outcome domain.Outcome) {
	s.page = page
	s.total = res.TotalCount
	added := 0
	for _, doc := range res.Documents {
		if doc.ID != "" {
			if _, dup := s.seen[doc.ID]; dup {
				continue
			}
			s.seen[doc.ID] = struct{}{}
		}
		s.docs = append(s.docs, doc)
		added++
	}
	s.outcome = worseOutcome(s.outcome, outcome)
	metrics.PagesFetched.WithLabelValues(string(s.plan.Mode), string(outcome)).Inc()

	switch {
	case s.pageSize == 0,
		res.Returned() < s.pageSize,
		page*s.pageSize >= s.total,
		outcome == domain.OutcomeFallback && added == 0:
		s.status = domain.StatusComplete
	case o.cfg.AutoLoad:
		s.status = domain.StatusLoading
	default:
		s.status = domain.StatusReady
	}
}

func (o *Orchestrator) pageSizeFor(plan *Plan) int {
	if o.cfg.CountOnly {
		return 0
	}
	if plan.Mode == domain.ModeText {
		return o.cfg.TextPageSize
	}
	return o.cfg.PageSize
}

// request builds the immutable request for one page of s.
func (o *Orchestrator) request(s *session, page int) domain.SearchRequest {
	return domain.SearchRequest{
		SearchID:  s.id,
		Mode:      s.plan.Mode,
		Text:      s.plan.Text,
		GeoFilter: s.plan.Filter,
		SortBy:    s.plan.SortBy,
		Page:      page,
		PageSize:  s.pageSize,
	}
}

func (o *Orchestrator) fetch(ctx context.Context, s *session, page int) (*domain.IndexResult, domain.Outcome, error) {
	req := o.request(s, page)
	return fetchPage(ctx, o.index, o.cache, o.cfg, s.plan, req)
}

func (o *Orchestrator) settled(s *session) {
	o.mu.Lock()
	if cancel, ok := o.inflight[s.id]; ok && o.current == s {
		cancel()
		delete(o.inflight, s.id)
	}
	event := &domain.SessionEvent{
		SearchID:     s.id,
		LocationID:   s.locationID,
		Status:       s.status,
		Outcome:      s.outcome,
		TotalCount:   s.total,
		PagesFetched: len(s.fetched),
		ErrorKind:    domain.ErrorKind(s.err),
		Time:         time.Now().UTC(),
	}
	if s.plan != nil {
		event.Mode = s.plan.Mode
	}
	o.mu.Unlock()

	if o.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 2*time.Second)
	defer cancel()
	if err := o.events.PublishSessionEvent(ctx, event); err != nil {
		slog.Warn("session event publish failed", "search_id", s.id, "error", err)
	}
}

// fetchPage runs one index request for req, serving the last good copy of
// the page when the index is unreachable.
func fetchPage(ctx context.Context, index ports.SearchIndex, cache ports.CacheService, cfg OrchestratorConfig, plan *Plan, req domain.SearchRequest) (*domain.IndexResult, domain.Outcome, error) {
	ctx, span := tracer.Start(ctx, telemetry.SpanPage)
	defer span.End()
	span.SetAttributes(
		attribute.String("search.id", req.SearchID),
		attribute.String("search.mode", string(req.Mode)),
		attribute.Int("search.page", req.Page),
		attribute.Int("search.page_size", req.PageSize),
	)

	q := domain.IndexQuery{
		Text:    req.Text,
		QueryBy: cfg.QueryBy,
		SortBy:  req.SortBy,
		Page:    req.Page,
		PerPage: req.PageSize,
		Tuning:  cfg.Tuning,
	}
	if req.GeoFilter != nil {
		q.Filter = req.GeoFilter.Text
	}

	start := time.Now()
	res, err := index.SearchProperties(ctx, q)
	metrics.IndexRequestDuration.WithLabelValues(string(req.Mode), resultLabel(err)).Observe(time.Since(start).Seconds())

	key := fallbackKey(plan, req)
	if err == nil {
		span.SetAttributes(attribute.Int("search.total", res.TotalCount), attribute.Int("search.hits", res.Returned()))
		storeFallback(ctx, cache, cfg.FallbackTTL, key, res)
		return res, plan.Outcome(), nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, domain.ErrorKind(err))

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	var qe *domain.IndexQueryError
	if errors.As(err, &qe) {
		qe.Filter = q.Filter
		qe.SearchID = req.SearchID
		return nil, "", qe
	}

	if errors.Is(err, domain.ErrIndexConnectivity) {
		if cached := loadFallback(ctx, cache, cfg.FallbackTTL, key); cached != nil {
			metrics.FallbackPagesServed.Inc()
			slog.Warn("search index unreachable, serving cached page",
				"search_id", req.SearchID, "page", req.Page, "error", err)
			return cached, domain.OutcomeFallback, nil
		}
	}
	return nil, "", err
}

// fallbackKey identifies a page by what it asks for, not by search ID.
// Radius searches bucket their center by geohash so nearby points share pages.
func fallbackKey(plan *Plan, req domain.SearchRequest) string {
	suffix := strconv.Itoa(req.Page) + ":" + strconv.Itoa(req.PageSize)
	if plan.Center != nil && plan.RadiusMeters > 0 {
		cell := geohash.EncodeWithPrecision(plan.Center.Lat, plan.Center.Lng, 7)
		return fmt.Sprintf("search:page:radius:%s:%.0f:%s:%s", cell, plan.RadiusMeters, hashOf(req.Text), suffix)
	}
	filter := ""
	if req.GeoFilter != nil {
		filter = req.GeoFilter.Text
	}
	return "search:page:" + hashOf(string(req.Mode)+"|"+req.Text+"|"+filter+"|"+req.SortBy) + ":" + suffix
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func storeFallback(ctx context.Context, cache ports.CacheService, ttl int, key string, res *domain.IndexResult) {
	if cache == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, data, ttl); err != nil {
		slog.Debug("fallback page not cached", "key", key, "error", err)
	}
}

func loadFallback(ctx context.Context, cache ports.CacheService, ttl int, key string) *domain.IndexResult {
	if cache == nil || ttl <= 0 {
		return nil
	}
	data, err := cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("fallback_page").Inc()
		return nil
	}
	var res domain.IndexResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil
	}
	metrics.CacheHits.WithLabelValues("fallback_page").Inc()
	return &res
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.ErrorKind(err)
}

var outcomeRank = map[domain.Outcome]int{
	domain.OutcomeExact:       0,
	domain.OutcomeApproximate: 1,
	domain.OutcomeFallback:    2,
}

func worseOutcome(a, b domain.Outcome) domain.Outcome {
	if outcomeRank[b] > outcomeRank[a] {
		return b
	}
	return a
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
