// Package session owns the live state of one game session for one
// participant. A single goroutine applies every event through game.Reduce;
// everything else (push handlers, the poller, REST completions, user actions)
// only posts events to it.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/config"
	"wordmaster-live/internal/game"
	"wordmaster-live/internal/markers"
	"wordmaster-live/internal/transport"
)

const (
	eventBuffer   = 256
	watcherBuffer = 16
)

type Config struct {
	SessionID string
	UserID    string
	UserName  string

	PollInterval            time.Duration
	TickInterval            time.Duration
	SubmitTimeout           time.Duration
	AnalysisTimeout         time.Duration
	ComprehensionRetries    int
	ComprehensionRetryDelay time.Duration
	AIStreamMode            string

	Now func() time.Time
}

// ConfigFrom maps the client environment onto a store config.
func ConfigFrom(c config.ClientConfig) Config {
	return Config{
		SessionID:               c.SessionID,
		UserID:                  c.UserID,
		UserName:                c.UserName,
		PollInterval:            c.PollInterval,
		TickInterval:            c.TickInterval,
		SubmitTimeout:           c.SubmitTimeout,
		AnalysisTimeout:         c.SubmitTimeout,
		ComprehensionRetries:    c.ComprehensionRetries,
		ComprehensionRetryDelay: c.ComprehensionRetryDelay,
		AIStreamMode:            c.AIStreamMode,
	}
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 45 * time.Second
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = c.SubmitTimeout
	}
	if c.ComprehensionRetries < 1 {
		c.ComprehensionRetries = 1
	}
	if c.ComprehensionRetryDelay < 0 {
		c.ComprehensionRetryDelay = 0
	}
	if c.AIStreamMode == "" {
		c.AIStreamMode = config.AIStreamTopic
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Transport is the push channel. *transport.Client satisfies it.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, handler transport.Handler) func()
	Publish(destination string, payload any) error
	Disconnect()
}

// Backend is the REST surface the store needs. *api.Client satisfies it.
type Backend interface {
	FetchState(ctx context.Context, sessionID string) (api.GameStateDTO, error)
	FetchHistory(ctx context.Context, sessionID string) ([]api.ChatMessageDTO, error)
	FetchLeaderboard(ctx context.Context, sessionID string) ([]api.LeaderboardEntryDTO, error)
	FetchQuestions(ctx context.Context, sessionID, userID string) ([]api.QuestionDTO, error)
	SubmitAnswers(ctx context.Context, sessionID, userID string, body api.ComprehensionSubmission) (api.ComprehensionResultDTO, error)
	SubmitAnalysis(ctx context.Context, sessionID string, req api.AnalysisRequest) error
	StreamAnalysis(ctx context.Context, req api.AnalysisRequest, fn func(api.AIStreamMessage)) error
}

type Deps struct {
	Transport Transport
	API       Backend
	Markers   markers.Store
}

// barrier is answered by the loop once every earlier event has been applied.
type barrier struct{ done chan struct{} }

func (barrier) Kind() string { return "barrier" }

type analysisTimeout struct{ seq uint64 }

func (analysisTimeout) Kind() string { return "analysis_timeout" }

type Store struct {
	cfg  Config
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	events  chan game.Event
	done    chan struct{}
	delayed *delayQueue
	flight  singleflight.Group
	wg      sync.WaitGroup

	mu    sync.RWMutex
	state game.Session

	watchMu  sync.Mutex
	watchers map[chan game.Session]struct{}

	subsMu sync.Mutex
	unsubs []func()

	analysisSeq atomic.Uint64
	started     atomic.Bool
	asyncMu     sync.Mutex
	closeOnce   sync.Once
	loopDone    chan struct{}
}

// New builds the store and starts its event loop. Nothing touches the network
// until Start.
func New(cfg Config, deps Deps) *Store {
	cfg = cfg.withDefaults()
	if deps.Markers == nil {
		deps.Markers = markers.NewMemory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:      cfg,
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan game.Event, eventBuffer),
		done:     make(chan struct{}),
		state:    game.NewSession(cfg.SessionID, cfg.UserID, cfg.UserName),
		watchers: map[chan game.Session]struct{}{},
		loopDone: make(chan struct{}),
	}
	s.delayed = newDelayQueue(s.events, s.done)
	go s.loop()
	return s
}

// Start bootstraps from REST, subscribes every push topic, connects the
// transport and launches the poller. A failed bootstrap is logged; the poller
// and the push channel catch up later.
func (s *Store) Start(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("bootstrap_refresh_failed")
	}
	if s.deps.Transport != nil {
		s.subscribeAll()
		if err := s.deps.Transport.Connect(s.ctx); err != nil {
			return err
		}
	}
	s.goAsync(s.poll)
	log.Info().Str("session_id", s.cfg.SessionID).Str("user_id", s.cfg.UserID).Msg("session_started")
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() game.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Dispatch queues ev for the loop. It is a no-op after Close.
func (s *Store) Dispatch(ev game.Event) {
	if ev == nil || s.closed() {
		return
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Watch returns a channel that receives a snapshot after every state change.
// Slow watchers miss intermediate snapshots rather than stall the loop.
func (s *Store) Watch() chan game.Session {
	ch := make(chan game.Session, watcherBuffer)
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.closed() {
		close(ch)
		return ch
	}
	s.watchers[ch] = struct{}{}
	watchersActive.Inc()
	return ch
}

func (s *Store) Unwatch(ch chan game.Session) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if _, ok := s.watchers[ch]; !ok {
		return
	}
	delete(s.watchers, ch)
	close(ch)
	watchersActive.Dec()
}

// Close withdraws subscriptions, disconnects the transport and stops the
// loop and poller. Later calls and events are no-ops.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.subsMu.Lock()
		unsubs := s.unsubs
		s.unsubs = nil
		s.subsMu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
		s.asyncMu.Lock()
		close(s.done)
		s.asyncMu.Unlock()
		s.cancel()
		if s.deps.Transport != nil {
			s.deps.Transport.Disconnect()
		}
		<-s.loopDone
		s.wg.Wait()

		s.watchMu.Lock()
		for ch := range s.watchers {
			delete(s.watchers, ch)
			close(ch)
			watchersActive.Dec()
		}
		s.watchMu.Unlock()
		log.Info().Str("session_id", s.cfg.SessionID).Msg("session_closed")
	})
}

// TransportWarning and TransportConnected are the transport callbacks.
func (s *Store) TransportWarning(text string) {
	s.Dispatch(game.TransportWarning{Text: text})
}

func (s *Store) TransportConnected() {
	s.Dispatch(game.TransportRecovered{})
	s.refreshAsync("reconnected")
}

func (s *Store) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// settle waits until every event queued before it has been applied.
func (s *Store) settle(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	select {
	case s.events <- b:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-b.done:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) loop() {
	defer close(s.loopDone)
	var ticker *time.Ticker
	var tickC <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer stopTicker()

	for {
		var ev game.Event
		select {
		case <-s.done:
			return
		case <-tickC:
			ev = game.Tick{}
		case ev = <-s.events:
		}

		switch e := ev.(type) {
		case barrier:
			close(e.done)
			continue
		case analysisTimeout:
			// Stale when a newer request replaced it or the answer already came.
			if e.seq != s.analysisSeq.Load() || !s.state.AIBusy {
				continue
			}
			ev = game.AnalysisFailed{Reason: "timeout"}
		}

		next, eff := s.apply(ev)
		switch {
		case eff.RestartTimer && next.Timer.Running:
			stopTicker()
			ticker = time.NewTicker(s.cfg.TickInterval)
			tickC = ticker.C
		case eff.StopTimer || !next.Timer.Running:
			stopTicker()
		}
		s.runEffects(eff)
	}
}

func (s *Store) apply(ev game.Event) (game.Session, game.Effects) {
	s.mu.Lock()
	prev := s.state
	next, eff := game.Reduce(prev, ev, s.cfg.Now())
	s.state = next
	s.mu.Unlock()

	eventsApplied.WithLabelValues(ev.Kind()).Inc()
	if prev.Phase != next.Phase {
		log.Info().
			Str("session_id", s.cfg.SessionID).
			Str("from", string(prev.Phase)).
			Str("to", string(next.Phase)).
			Str("event", ev.Kind()).
			Msg("phase_changed")
	}
	if _, tick := ev.(game.Tick); !tick || prev.Timer.Remaining != next.Timer.Remaining {
		s.notify(next)
	}
	return next, eff
}

func (s *Store) notify(st game.Session) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- st.Clone():
		default:
		}
	}
}

func (s *Store) runEffects(eff game.Effects) {
	if eff.Refresh {
		s.refreshAsync("effect")
	}
	if eff.FetchLeaderboard {
		s.goAsync(s.fetchLeaderboard)
	}
	if eff.PersistQuizMarker {
		s.goAsync(s.persistQuizMarker)
	}
}

// goAsync runs fn on its own goroutine unless the store is closing.
func (s *Store) goAsync(fn func()) {
	s.asyncMu.Lock()
	defer s.asyncMu.Unlock()
	if s.closed() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Store) fetchLeaderboard() {
	entries, err := s.deps.API.FetchLeaderboard(s.ctx, s.cfg.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("leaderboard_fetch_failed")
		return
	}
	s.Dispatch(game.LeaderboardLoaded{Leaderboard: api.LeaderboardToGame(entries)})
}

func (s *Store) persistQuizMarker() {
	if err := s.deps.Markers.MarkCompleted(s.ctx, s.cfg.SessionID, s.cfg.UserID); err != nil {
		log.Error().Err(err).Str("session_id", s.cfg.SessionID).Str("user_id", s.cfg.UserID).Msg("quiz_marker_persist_failed")
		return
	}
	log.Debug().Str("session_id", s.cfg.SessionID).Str("user_id", s.cfg.UserID).Msg("quiz_marker_persisted")
}
