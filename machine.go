package website

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/kiluadev/website")

const defaultQueueSize = 64

// Result is the outcome of one processed input.
type Result struct {
	State State
	Err   error
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) MachineOption {
	return func(m *Machine) {
		if logger == nil {
			logger = zap.NewNop()
		}
		m.logger = logger
	}
}

// WithInitialState replaces the default Home state the machine starts in.
func WithInitialState(s State) MachineOption {
	return func(m *Machine) {
		if s.Page != nil {
			m.initial = &s
		}
	}
}

// WithQueueSize sets how many inputs may wait before Send blocks.
func WithQueueSize(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithFetchTimeout bounds each content fetch. An expired fetch counts as a
// fetch failure. Zero means no timeout.
func WithFetchTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

type request struct {
	ctx   context.Context
	input Input
	seq   uint64
	done  chan Result
}

type fetchResult struct {
	seq  uint64
	html string
	err  error
}

// Machine owns the site state. Inputs are processed strictly one at a time in
// the order they were sent; each input's content fetch starts only after the
// previous state has been published. Readers always observe a complete State.
type Machine struct {
	catalog      *Catalog
	fetcher      ContentFetcher
	renderer     MarkdownRenderer
	logger       *zap.Logger
	initial      *State
	queueSize    int
	fetchTimeout time.Duration

	state    atomic.Pointer[State]
	seq      atomic.Uint64
	requests chan *request
	results  chan fetchResult

	subMu      sync.Mutex
	subs       map[int]chan State
	nextSub    int
	subsClosed bool

	// mu guards closing against concurrent Send calls. Once sealed is
	// closed no Send can still be enqueueing.
	mu        sync.RWMutex
	isClosed  bool
	closed    chan struct{}
	sealed    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewMachine creates a machine and starts its worker. Call Close to stop it.
func NewMachine(c *Catalog, f ContentFetcher, r MarkdownRenderer, opts ...MachineOption) *Machine {
	m := &Machine{
		catalog:   c,
		fetcher:   f,
		renderer:  r,
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
		subs:      make(map[int]chan State),
		closed:    make(chan struct{}),
		sealed:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	initial := HomeState(c)
	if m.initial != nil {
		initial = *m.initial
	}
	m.state.Store(&initial)

	m.requests = make(chan *request, m.queueSize)
	m.results = make(chan fetchResult, m.queueSize)

	go m.run()
	return m
}

// Catalog returns the catalog the machine navigates.
func (m *Machine) Catalog() *Catalog {
	return m.catalog
}

// State returns the most recently published state.
func (m *Machine) State() State {
	return *m.state.Load()
}

// Send enqueues an input. The returned channel receives exactly one Result
// once the input has been processed. If ctx is cancelled before the input
// completes, its result is discarded and the state is left unchanged.
func (m *Machine) Send(ctx context.Context, in Input) (<-chan Result, error) {
	if in == nil {
		return nil, errors.New("nil input")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.isClosed {
		return nil, ErrMachineClosed
	}

	req := &request{
		ctx:   ctx,
		input: in,
		seq:   m.seq.Add(1),
		done:  make(chan Result, 1),
	}

	select {
	case m.requests <- req:
		return req.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, ErrMachineClosed
	}
}

// SendAndAwait enqueues an input and waits for its result.
func (m *Machine) SendAndAwait(ctx context.Context, in Input) (State, error) {
	done, err := m.Send(ctx, in)
	if err != nil {
		return m.State(), err
	}
	select {
	case res := <-done:
		return res.State, res.Err
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

// Subscribe returns a channel receiving every published state in commit
// order. States are dropped for subscribers whose buffer is full. The
// returned function unsubscribes. The channel is closed when the machine
// stops, and is returned already closed after that.
func (m *Machine) Subscribe(buffer int) (<-chan State, func()) {
	ch := make(chan State, buffer)

	m.subMu.Lock()
	if m.subsClosed {
		m.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
			m.subMu.Unlock()
		})
	}
}

// Close stops the worker and cancels any fetch in flight. Inputs still queued
// complete with ErrMachineClosed. Safe to call multiple times.
func (m *Machine) Close() error {
	m.closeOnce.Do(func() {
		// Closing first releases Send calls blocked on a full queue, so the
		// write lock below cannot wait behind them.
		close(m.closed)
		m.mu.Lock()
		m.isClosed = true
		m.mu.Unlock()
		close(m.sealed)
	})
	<-m.stopped
	return nil
}

func (m *Machine) run() {
	defer close(m.stopped)
	for {
		// Queued inputs are never started once Close has begun.
		select {
		case <-m.closed:
			m.stop()
			return
		default:
		}

		select {
		case <-m.closed:
			m.stop()
			return
		case req := <-m.requests:
			m.process(req)
		case res := <-m.results:
			m.discard(res)
		}
	}
}

func (m *Machine) stop() {
	<-m.sealed
	m.drain()
}

func (m *Machine) drain() {
	current := m.State()
	for {
		select {
		case req := <-m.requests:
			req.done <- Result{State: current, Err: ErrMachineClosed}
		default:
			m.subMu.Lock()
			m.subsClosed = true
			for id, ch := range m.subs {
				delete(m.subs, id)
				close(ch)
			}
			m.subMu.Unlock()
			return
		}
	}
}

func (m *Machine) discard(res fetchResult) {
	m.logger.Debug("discarding stale content result", zap.Uint64("seq", res.seq))
}

func (m *Machine) process(req *request) {
	if err := req.ctx.Err(); err != nil {
		req.done <- Result{State: m.State(), Err: err}
		return
	}

	ctx, span := tracer.Start(req.ctx, "machine.transition",
		trace.WithAttributes(
			attribute.String("website.input", req.input.String()),
			attribute.Int64("website.seq", int64(req.seq)),
		))
	defer span.End()

	start := time.Now()
	next, err := m.transition(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if next == nil {
		m.logger.Debug("input completed without state change",
			zap.Uint64("seq", req.seq),
			zap.Stringer("input", req.input),
			zap.Error(err))
		req.done <- Result{State: m.State(), Err: err}
		return
	}

	m.commit(*next)
	m.logger.Debug("state published",
		zap.Uint64("seq", req.seq),
		zap.Stringer("input", req.input),
		zap.Stringer("page", next.Page),
		zap.Bool("content", next.RenderedContent != nil),
		zap.Duration("duration", time.Since(start)))
	req.done <- Result{State: *next, Err: err}
}

func (m *Machine) commit(s State) {
	m.state.Store(&s)

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			m.logger.Warn("subscriber is not keeping up, state dropped", zap.Stringer("page", s.Page))
		}
	}
}

// transition computes the next state. A nil state means nothing is published.
func (m *Machine) transition(ctx context.Context, req *request) (*State, error) {
	c := m.catalog

	switch in := req.input.(type) {
	case NavigateHome:
		s := HomeState(c)
		return &s, nil

	case NotFound:
		s := NotFoundState(c)
		return &s, nil

	case NavigateToPage:
		if in.Page == nil {
			return nil, fmt.Errorf("navigate: %w", ErrUnknownPage)
		}
		p, ok := c.Page(in.Page.ID)
		if !ok {
			return nil, fmt.Errorf("navigate to %q: %w", in.Page.ID, ErrUnknownPage)
		}

		switch {
		case p.IsHome():
			s := HomeState(c)
			return &s, nil
		case p.IsNotFound():
			s := NotFoundState(c)
			return &s, nil
		}

		if p.IsSection {
			target := c.RedirectTarget(p)
			if target == nil {
				return nil, NewConfigurationError(p.ID, "section has no pages to redirect to")
			}
			m.logger.Debug("redirecting section", zap.Stringer("section", p), zap.Stringer("target", target))
			p = target
		}

		if !p.Routable() {
			return nil, NewConfigurationError(p.ID, "page has no route and cannot be shown")
		}
		return m.load(ctx, req.seq, p)

	default:
		return nil, fmt.Errorf("unsupported input %T", in)
	}
}

// load fetches and renders the content of p. The fetch runs in its own
// goroutine and reports on the shared results channel tagged with seq; results
// carrying any other tag belong to abandoned inputs and are dropped. The
// fetch context is cancelled as soon as load returns.
func (m *Machine) load(ctx context.Context, seq uint64, p *Page) (*State, error) {
	prev, next := PreviousAndNext(m.catalog, p)
	path := ContentPath(p)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go m.fetch(ctx, seq, p, path)

	for {
		select {
		case res := <-m.results:
			if res.seq != seq {
				m.discard(res)
				continue
			}
			if res.err != nil {
				m.logger.Warn("content not available",
					zap.Stringer("page", p),
					zap.String("path", path),
					zap.Error(res.err))
				return &State{Page: p, PreviousPage: prev, NextPage: next}, res.err
			}
			html := res.html
			return &State{Page: p, RenderedContent: &html, PreviousPage: prev, NextPage: next}, nil

		case <-ctx.Done():
			return nil, ctx.Err()

		case <-m.closed:
			return nil, ErrMachineClosed
		}
	}
}

func (m *Machine) fetch(ctx context.Context, seq uint64, p *Page, path string) {
	res := fetchResult{seq: seq}

	fetchCtx := ctx
	if m.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, m.fetchTimeout)
		defer cancel()
	}

	md, err := m.fetcher.Fetch(fetchCtx, path)
	if err != nil {
		res.err = &ContentFetchError{Page: p.ID, Path: path, Op: "fetch", Err: err}
	} else if html, rerr := m.renderer.Render(md); rerr != nil {
		res.err = &ContentFetchError{Page: p.ID, Path: path, Op: "render", Err: rerr}
	} else {
		res.html = html
	}

	select {
	case m.results <- res:
	case <-m.closed:
	}
}
