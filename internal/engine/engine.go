package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/condense/internal/clock"
	"github.com/roach88/condense/internal/compact"
	"github.com/roach88/condense/internal/compliance"
	"github.com/roach88/condense/internal/integrity"
	"github.com/roach88/condense/internal/ir"
	"github.com/roach88/condense/internal/store"
	"github.com/roach88/condense/internal/view"
)

const tracerName = "github.com/roach88/condense/internal/engine"

// SessionGenerator mints session IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type SessionGenerator interface {
	Generate() string
}

// Engine serializes appends to the raw event logs in a store and serves
// model turns from them.
//
// Thread-safety model:
//   - Enqueue, RequestCompaction, NewSession: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Resume, PrepareTurn, Compact: safe from any goroutine; Resume should
//     finish before producers start appending to the same session
type Engine struct {
	store      *store.Store
	queue      *eventQueue
	sessionGen SessionGenerator
	builder    *view.Builder
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *compliance.Metrics
	tracer     trace.Tracer
	repairOpts []integrity.RepairOption
	compliance bool

	mu       sync.Mutex
	monitors map[string]*compliance.Monitor
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. Session monitors and the default view
// builder log through it as well.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock stamping engine-made events.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMetrics attaches compliance metrics to every session monitor.
func WithMetrics(m *compliance.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithViewBuilder replaces the default view builder.
func WithViewBuilder(b *view.Builder) EngineOption {
	return func(e *Engine) {
		e.builder = b
	}
}

// WithSessionGenerator replaces the UUIDv7 session ID generator.
func WithSessionGenerator(g SessionGenerator) EngineOption {
	return func(e *Engine) {
		e.sessionGen = g
	}
}

// WithTracer sets the tracer for session operations.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithRepairOptions passes options to every repair run by Resume.
func WithRepairOptions(opts ...integrity.RepairOption) EngineOption {
	return func(e *Engine) {
		e.repairOpts = append(e.repairOpts, opts...)
	}
}

// WithCompliance turns the live compliance monitors on or off.
// Default: on.
func WithCompliance(enabled bool) EngineOption {
	return func(e *Engine) {
		e.compliance = enabled
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      s,
		queue:      newEventQueue(),
		sessionGen: UUIDv7Generator{},
		clock:      clock.Real(),
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer(tracerName),
		compliance: true,
		monitors:   make(map[string]*compliance.Monitor),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.builder == nil {
		e.builder = view.NewBuilder(view.WithSink(view.SlogSink(e.logger)))
	}
	return e
}

// NewSession returns a fresh session ID. The session exists in the store
// once its first event is appended.
func (e *Engine) NewSession() string {
	return e.sessionGen.Generate()
}

// Enqueue submits an append for the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(a Append) bool {
	return e.queue.Enqueue(a)
}

// RequestCompaction enqueues a CompactionRequest for sessionID.
func (e *Engine) RequestCompaction(sessionID, reason string) bool {
	return e.Enqueue(Append{
		SessionID: sessionID,
		Event: ir.CompactionRequest{
			Meta: ir.Meta{
				ID:        ir.NewEventID(),
				Timestamp: e.clock.Now(),
				Source:    ir.SourceEnvironment,
			},
			Reason: reason,
		},
	})
}

// QueueLen returns the number of appends waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run drains the append queue until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// A failed append is logged with its session and event and skipped.
// Retrying would reorder the log relative to events already behind it.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		a, ok := e.queue.TryDequeue()
		if ok {
			if err := e.process(ctx, a); err != nil {
				e.logAppendError(a, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Drained() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the queued appends are written.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process persists one append and taps it through the session monitor.
// CRITICAL: Called only from the Run goroutine.
func (e *Engine) process(ctx context.Context, a Append) error {
	if a.SessionID == "" || a.Event == nil {
		return &RuntimeError{
			Code:      ErrCodeInvalidAppend,
			Message:   "append needs a session id and an event",
			SessionID: a.SessionID,
		}
	}

	var mon *compliance.Monitor
	if e.compliance {
		var err error
		if mon, err = e.monitorFor(ctx, a.SessionID); err != nil {
			return err
		}
	}

	id := ir.IDOf(a.Event)
	n, err := e.store.Append(ctx, a.SessionID, a.Event)
	if err != nil {
		return fmt.Errorf("append event %s: %w", id, err)
	}
	if n == 0 {
		e.logger.Debug("duplicate event skipped", "session", a.SessionID, "event_id", id)
		return nil
	}

	if mon != nil {
		e.mu.Lock()
		mon.Process(a.Event)
		e.mu.Unlock()
	}

	e.logger.Debug("event appended",
		"session", a.SessionID,
		"event_id", id,
		"kind", a.Event.Kind(),
	)
	return nil
}

// monitorFor returns the session's monitor, priming a new one from the
// stored log so that history appended before this process started is not
// reported as unmatched.
func (e *Engine) monitorFor(ctx context.Context, sessionID string) (*compliance.Monitor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mon, ok := e.monitors[sessionID]; ok {
		return mon, nil
	}
	log, err := e.store.ReadLog(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("prime monitor for %s: %w", sessionID, err)
	}
	mon := e.newMonitor(sessionID)
	mon.Prime(log.Events())
	e.monitors[sessionID] = mon
	return mon, nil
}

func (e *Engine) newMonitor(sessionID string) *compliance.Monitor {
	return compliance.New(
		compliance.WithLogger(e.logger),
		compliance.WithMetrics(e.metrics),
		compliance.WithSession(sessionID),
	)
}

// Violations returns the live compliance violations recorded for sessionID.
func (e *Engine) Violations(sessionID string) []compliance.Violation {
	e.mu.Lock()
	defer e.mu.Unlock()

	mon, ok := e.monitors[sessionID]
	if !ok {
		return []compliance.Violation{}
	}
	return mon.Violations()
}

// ResumeReport describes what Resume found and fixed.
type ResumeReport struct {
	SessionID string `json:"session_id"`

	// Events is the log length before repair.
	Events int `json:"events"`

	// Violations are the problems found before repair.
	Violations []integrity.Violation `json:"violations"`

	// Repairs are the synthetic observations computed for orphan actions.
	Repairs []ir.Event `json:"-"`

	// Persisted counts repairs newly written; repairs already in the store
	// are skipped.
	Persisted int `json:"persisted"`

	// Remaining are the violations repair cannot fix.
	Remaining []integrity.Violation `json:"remaining"`
}

// Clean reports whether the log passes the integrity gate after repair.
func (r *ResumeReport) Clean() bool {
	return len(r.Remaining) == 0
}

// Resume reconciles sessionID's stored log before a session continues:
// every orphan action gets a synthetic ErrorObservation, persisted at the
// end of the log, and the session monitor restarts from the repaired log.
func (e *Engine) Resume(ctx context.Context, sessionID string) (report *ResumeReport, err error) {
	ctx, span := e.startSpan(ctx, "engine.Resume", sessionID)
	defer func() { endSpan(span, err) }()

	log, err := e.store.ReadLog(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}

	report = &ResumeReport{
		SessionID:  sessionID,
		Events:     log.Len(),
		Violations: integrity.Validate(log),
	}

	opts := append([]integrity.RepairOption{integrity.WithClock(e.clock)}, e.repairOpts...)
	report.Repairs = integrity.Repair(log, opts...)
	if len(report.Repairs) > 0 {
		n, err := e.store.Append(ctx, sessionID, report.Repairs...)
		if err != nil {
			return nil, fmt.Errorf("resume %s: persist repairs: %w", sessionID, err)
		}
		report.Persisted = n
		log = log.Append(report.Repairs...)
	}
	report.Remaining = integrity.Validate(log)

	if e.compliance {
		mon := e.newMonitor(sessionID)
		mon.Prime(log.Events())
		e.mu.Lock()
		e.monitors[sessionID] = mon
		e.mu.Unlock()
	}

	span.SetAttributes(
		attribute.Int("condense.events", report.Events),
		attribute.Int("condense.violations", len(report.Violations)),
		attribute.Int("condense.repairs", len(report.Repairs)),
	)
	e.logger.Info("session resumed",
		"session", sessionID,
		"events", report.Events,
		"violations", len(report.Violations),
		"repairs", len(report.Repairs),
		"persisted", report.Persisted,
		"remaining", len(report.Remaining),
	)
	return report, nil
}

// PrepareTurn builds the View for the next model call. It fails with a
// CORRUPT_LOG RuntimeError wrapping the *integrity.IntegrityError when the
// log still has unmatched calls or results.
func (e *Engine) PrepareTurn(ctx context.Context, sessionID string) (v *view.View, err error) {
	ctx, span := e.startSpan(ctx, "engine.PrepareTurn", sessionID)
	defer func() { endSpan(span, err) }()

	log, err := e.store.ReadLog(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("prepare turn %s: %w", sessionID, err)
	}
	if err := integrity.Verify(log); err != nil {
		e.logger.Error("turn blocked by corrupt log", "session", sessionID, "error", err)
		return nil, NewCorruptLogError(sessionID, err)
	}

	v = e.builder.Build(log)
	span.SetAttributes(
		attribute.Int("condense.log_events", log.Len()),
		attribute.Int("condense.view_events", v.Len()),
		attribute.Int("condense.iterations", v.Iterations),
		attribute.Bool("condense.converged", v.Converged),
	)
	return v, nil
}

// Compact plans a compaction over the current view and persists it.
// Returns nil when the planner finds nothing to do.
func (e *Engine) Compact(ctx context.Context, sessionID string, planner *compact.Planner) (c *ir.Compaction, err error) {
	ctx, span := e.startSpan(ctx, "engine.Compact", sessionID)
	defer func() { endSpan(span, err) }()

	v, err := e.PrepareTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	c, ok, err := planner.Plan(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("compact %s: %w", sessionID, err)
	}
	if !ok {
		return nil, nil
	}
	if _, err := e.store.Append(ctx, sessionID, *c); err != nil {
		return nil, fmt.Errorf("compact %s: persist: %w", sessionID, err)
	}

	span.SetAttributes(attribute.Int("condense.forgotten", len(c.Forgotten)))
	e.logger.Info("session compacted",
		"session", sessionID,
		"compaction_id", c.ID,
		"forgotten", len(c.Forgotten),
		"summary", c.HasSummary(),
	)
	return c, nil
}

func (e *Engine) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("condense.session_id", sessionID)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// logAppendError logs a failed append with enough context to replay it.
func (e *Engine) logAppendError(a Append, err error) {
	attrs := []any{"error", err, "session", a.SessionID}
	if a.Event != nil {
		attrs = append(attrs, "event_id", ir.IDOf(a.Event), "kind", a.Event.Kind())
	}
	e.logger.Error("append failed", attrs...)
}
