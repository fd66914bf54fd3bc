package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/config"
	"wordmaster-live/internal/game"
	"wordmaster-live/internal/markers"
	"wordmaster-live/internal/transport"
)

type published struct {
	destination string
	payload     any
}

type fakeTransport struct {
	mu           sync.Mutex
	handlers     map[string]transport.Handler
	published    []published
	publishErr   error
	connected    bool
	disconnected bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string]transport.Handler{}}
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeTransport) Subscribe(topic string, h transport.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, topic)
	}
}

func (f *fakeTransport) Publish(destination string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{destination: destination, payload: payload})
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeTransport) push(t *testing.T, topic, body string) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("no handler for %s", topic)
	}
	h([]byte(body))
}

func (f *fakeTransport) publishedCopy() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

type fakeBackend struct {
	mu          sync.Mutex
	state       api.GameStateDTO
	history     []api.ChatMessageDTO
	leaderboard []api.LeaderboardEntryDTO
	questions   [][]api.QuestionDTO
	result      api.ComprehensionResultDTO
	analysisErr error
	stream      []api.AIStreamMessage
	stateGate   chan struct{}

	stateCalls    atomic.Int32
	questionCalls atomic.Int32
	analysisCalls atomic.Int32
	lastAnswers   api.ComprehensionSubmission
}

func (b *fakeBackend) FetchState(ctx context.Context, _ string) (api.GameStateDTO, error) {
	b.stateCalls.Add(1)
	if b.stateGate != nil {
		select {
		case <-b.stateGate:
		case <-ctx.Done():
			return api.GameStateDTO{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, nil
}

func (b *fakeBackend) FetchHistory(context.Context, string) ([]api.ChatMessageDTO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history, nil
}

func (b *fakeBackend) FetchLeaderboard(context.Context, string) ([]api.LeaderboardEntryDTO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leaderboard, nil
}

func (b *fakeBackend) FetchQuestions(context.Context, string, string) ([]api.QuestionDTO, error) {
	n := int(b.questionCalls.Add(1))
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= len(b.questions) {
		return b.questions[n-1], nil
	}
	return nil, nil
}

func (b *fakeBackend) SubmitAnswers(_ context.Context, _, _ string, body api.ComprehensionSubmission) (api.ComprehensionResultDTO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAnswers = body
	return b.result, nil
}

func (b *fakeBackend) SubmitAnalysis(context.Context, string, api.AnalysisRequest) error {
	b.analysisCalls.Add(1)
	return b.analysisErr
}

func (b *fakeBackend) StreamAnalysis(_ context.Context, _ api.AnalysisRequest, fn func(api.AIStreamMessage)) error {
	b.analysisCalls.Add(1)
	for _, m := range b.stream {
		fn(m)
	}
	return nil
}

func intPtr(v int) *int { return &v }

// playingState has Ana (user 7, the local user) and Ben, with Ana to play.
func playingState() api.GameStateDTO {
	return api.GameStateDTO{
		SessionID:     "42",
		Status:        "TURN_IN_PROGRESS",
		CurrentTurn:   3,
		TotalTurns:    12,
		CurrentPlayer: &api.CurrentPlayerDTO{ID: "11", UserID: "7", Name: "Ana"},
		Players: []api.PlayerDTO{
			{ID: "11", UserID: "7", PlayerName: "Ana"},
			{ID: "12", UserID: "8", PlayerName: "Ben"},
		},
		TimeRemaining: intPtr(40),
		TimePerTurn:   60,
	}
}

func newTestStore(t *testing.T, b *fakeBackend, tr *fakeTransport, tweak func(*Config)) *Store {
	t.Helper()
	cfg := Config{
		SessionID:               "42",
		UserID:                  "7",
		UserName:                "Ana",
		PollInterval:            time.Hour,
		TickInterval:            time.Hour,
		SubmitTimeout:           time.Hour,
		AnalysisTimeout:         time.Hour,
		ComprehensionRetries:    3,
		ComprehensionRetryDelay: time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	st := New(cfg, Deps{Transport: tr, API: b, Markers: markers.NewMemory()})
	t.Cleanup(st.Close)
	return st
}

func startedStore(t *testing.T, b *fakeBackend, tr *fakeTransport, tweak func(*Config)) *Store {
	t.Helper()
	st := newTestStore(t, b, tr, tweak)
	if err := st.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return st
}

func waitFor(t *testing.T, st *Store, what string, cond func(game.Session) bool) game.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := st.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; state = %+v", what, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartBootstrapsAndSubscribes(t *testing.T) {
	b := &fakeBackend{
		state: playingState(),
		history: []api.ChatMessageDTO{
			{ID: "100", SenderID: "8", SenderName: "Ben", Content: "Once upon a time", Timestamp: api.FlexTime{Time: time.UnixMilli(1_700_000_000_000)}},
		},
	}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	snap := st.Snapshot()
	if snap.Phase != game.PhaseTurnInProgress {
		t.Fatalf("Phase = %s, want TURN_IN_PROGRESS", snap.Phase)
	}
	if !snap.IsMyTurn() {
		t.Fatal("IsMyTurn() = false, want true")
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "Once upon a time" {
		t.Fatalf("Messages = %+v", snap.Messages)
	}
	if len(tr.handlers) != len(topics("42")) {
		t.Fatalf("subscribed %d topics, want %d", len(tr.handlers), len(topics("42")))
	}
	if !tr.connected {
		t.Fatal("transport not connected")
	}
}

func TestSubmitTurnOptimisticThenConfirm(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	if err := st.SubmitTurn(context.Background(), "  The dog ran  "); err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	snap := st.Snapshot()
	if len(snap.Messages) != 1 || !snap.Messages[0].IsOptimistic {
		t.Fatalf("Messages = %+v, want one optimistic entry", snap.Messages)
	}
	if snap.CurrentTurn != 3 {
		t.Fatalf("CurrentTurn = %d, want 3 until the server advances it", snap.CurrentTurn)
	}

	sent := tr.publishedCopy()
	if len(sent) != 1 || sent[0].destination != "/app/game/42/word" {
		t.Fatalf("published = %+v", sent)
	}
	ws, ok := sent[0].payload.(wordSubmission)
	if !ok || ws.Word != "The dog ran" || ws.ClientMessageID != snap.Messages[0].ID {
		t.Fatalf("payload = %+v", sent[0].payload)
	}

	echo, _ := json.Marshal(map[string]any{
		"id":              101,
		"clientMessageId": ws.ClientMessageID,
		"senderId":        7,
		"senderName":      "Ana",
		"content":         "The dog ran",
		"timestamp":       time.Now().UnixMilli(),
		"grammarStatus":   "PERFECT",
	})
	tr.push(t, "/topic/game/42/chat", string(echo))
	tr.push(t, "/topic/game/42/chat", string(echo))

	snap = waitFor(t, st, "confirmed message", func(s game.Session) bool {
		return len(s.Messages) == 1 && !s.Messages[0].IsOptimistic
	})
	if snap.Messages[0].ID != "101" || snap.Messages[0].Status != game.StatusConfirmed {
		t.Fatalf("confirmed message = %+v", snap.Messages[0])
	}
}

func TestSubmitTurnGuards(t *testing.T) {
	state := playingState()
	state.CurrentPlayer = &api.CurrentPlayerDTO{ID: "12", UserID: "8", Name: "Ben"}
	b := &fakeBackend{state: state}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	if err := st.SubmitTurn(context.Background(), "   "); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("SubmitTurn(blank) error = %v, want ErrEmptySubmission", err)
	}
	if err := st.SubmitTurn(context.Background(), "my words"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("SubmitTurn() error = %v, want ErrNotYourTurn", err)
	}
	if got := len(st.Snapshot().Messages); got != 0 {
		t.Fatalf("Messages = %d, want 0", got)
	}
	if got := len(tr.publishedCopy()); got != 0 {
		t.Fatalf("published = %d, want 0", got)
	}
}

func TestSubmitTurnPublishFailureRestoresCompose(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	tr.publishErr = transport.ErrNotConnected
	st := startedStore(t, b, tr, nil)

	err := st.SubmitTurn(context.Background(), "hello there")
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("SubmitTurn() error = %v, want ErrNotConnected", err)
	}
	snap := st.Snapshot()
	if len(snap.Messages) != 0 {
		t.Fatalf("Messages = %+v, want none", snap.Messages)
	}
	if snap.Compose != "hello there" {
		t.Fatalf("Compose = %q, want restored draft", snap.Compose)
	}
	if snap.Alert == "" {
		t.Fatal("Alert is empty after failed submission")
	}

	st.ClearAlert()
	waitFor(t, st, "alert cleared", func(s game.Session) bool { return s.Alert == "" })
}

func TestUnconfirmedSubmissionExpires(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, func(c *Config) { c.SubmitTimeout = 20 * time.Millisecond })

	if err := st.SubmitTurn(context.Background(), "nobody hears me"); err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	snap := waitFor(t, st, "expiry", func(s game.Session) bool { return len(s.Messages) == 0 })
	if snap.Compose != "nobody hears me" {
		t.Fatalf("Compose = %q, want restored draft", snap.Compose)
	}
}

func TestSingleParticipantAdvancesLocally(t *testing.T) {
	state := playingState()
	state.Players = state.Players[:1]
	b := &fakeBackend{state: state}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	if err := st.SubmitTurn(context.Background(), "solo line"); err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	snap := st.Snapshot()
	if snap.CurrentTurn != 4 {
		t.Fatalf("CurrentTurn = %d, want 4", snap.CurrentTurn)
	}
	if snap.Timer.Remaining != 60 {
		t.Fatalf("Timer.Remaining = %d, want 60", snap.Timer.Remaining)
	}
}

func completedBackend() *fakeBackend {
	state := playingState()
	state.Status = "COMPLETED"
	return &fakeBackend{state: state}
}

func TestProceedFallsBackToResults(t *testing.T) {
	b := completedBackend()
	b.questions = [][]api.QuestionDTO{{}, nil, {}}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	watch := st.Watch()
	var mu sync.Mutex
	var seen []game.Phase
	go func() {
		for s := range watch {
			mu.Lock()
			seen = append(seen, s.Phase)
			mu.Unlock()
		}
	}()

	if err := st.Proceed(context.Background()); err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if got := st.Snapshot().Phase; got != game.PhaseResults {
		t.Fatalf("Phase = %s, want RESULTS", got)
	}
	if got := b.questionCalls.Load(); got != 3 {
		t.Fatalf("question fetches = %d, want 3", got)
	}
	st.Unwatch(watch)

	mu.Lock()
	defer mu.Unlock()
	for _, p := range seen {
		if p == game.PhaseAwaitingComprehension {
			t.Fatal("observed AWAITING_COMPREHENSION during fallback")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		done, _ := st.deps.Markers.Completed(context.Background(), "42", "7")
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("quiz marker was not persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProceedSkipsFinishedQuiz(t *testing.T) {
	b := completedBackend()
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)
	if err := st.deps.Markers.MarkCompleted(context.Background(), "42", "7"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	if err := st.Proceed(context.Background()); err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if got := st.Snapshot().Phase; got != game.PhaseResults {
		t.Fatalf("Phase = %s, want RESULTS", got)
	}
	if got := b.questionCalls.Load(); got != 0 {
		t.Fatalf("question fetches = %d, want 0", got)
	}
}

func TestProceedRejectedBeforeGameEnds(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	st := startedStore(t, b, newFakeTransport(), nil)
	if err := st.Proceed(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("Proceed() error = %v, want ErrInvalidPhase", err)
	}
}

func TestComprehensionRoundTrip(t *testing.T) {
	b := completedBackend()
	b.questions = [][]api.QuestionDTO{
		nil,
		{{ID: "1", Question: "Who ran?", Type: "multiple_choice", Options: []string{"dog", "cat"}}},
	}
	b.result = api.ComprehensionResultDTO{CorrectAnswers: 1, TotalQuestions: 1, Percentage: 100}
	st := startedStore(t, b, newFakeTransport(), nil)

	if err := st.Proceed(context.Background()); err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	snap := st.Snapshot()
	if snap.Phase != game.PhaseAwaitingComprehension || len(snap.Questions) != 1 {
		t.Fatalf("Phase = %s, questions = %d", snap.Phase, len(snap.Questions))
	}

	st.StartComprehension()
	waitFor(t, st, "quiz start", func(s game.Session) bool { return s.Phase == game.PhaseComprehensionInProgress })

	res, err := st.SubmitComprehension(context.Background(), []game.Answer{{QuestionID: "1", Answer: "dog"}})
	if err != nil {
		t.Fatalf("SubmitComprehension() error = %v", err)
	}
	if res.CorrectAnswers != 1 {
		t.Fatalf("CorrectAnswers = %d, want 1", res.CorrectAnswers)
	}
	snap = st.Snapshot()
	if snap.Phase != game.PhaseResults || snap.Result == nil || snap.Result.Percentage != 100 {
		t.Fatalf("after submit: phase = %s, result = %+v", snap.Phase, snap.Result)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lastAnswers.Questions) != 1 || b.lastAnswers.Questions[0].Question != "Who ran?" {
		t.Fatalf("submitted questions = %+v", b.lastAnswers.Questions)
	}
}

func TestPushTopicsDriveState(t *testing.T) {
	b := &fakeBackend{
		state:       playingState(),
		leaderboard: []api.LeaderboardEntryDTO{{UserID: "7", Name: "Ana", Score: 9}},
	}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	tr.push(t, "/topic/game/42/players", `[
		{"id": 11, "userId": 7, "playerName": "Ana"},
		{"id": 12, "userId": 8, "playerName": "Ben"},
		{"id": 12, "userId": 8, "playerName": "Ben"}
	]`)
	tr.push(t, "/topic/game/42/turn", `{"turnNumber": 4, "playerId": 12, "playerName": "Ben", "roleName": "Hero", "timeRemaining": 60}`)
	tr.push(t, "/topic/game/42/updates", `{"type": "storyUpdate", "content": "A storm rolls in.", "turnNumber": 4}`)
	tr.push(t, "/topic/game/42/scores", `[{"id": 11, "userId": 7, "name": "Ana", "score": 5}]`)
	tr.push(t, "/user/queue/responses", `{"roleName": "Narrator"}`)

	snap := waitFor(t, st, "pushes applied", func(s game.Session) bool { return s.Role == "Narrator" })
	if len(snap.Players) != 2 {
		t.Fatalf("Players = %d, want 2", len(snap.Players))
	}
	if snap.CurrentTurn != 4 || snap.CurrentPlayer == nil || snap.CurrentPlayer.UserID != "8" {
		t.Fatalf("turn = %d, current = %+v", snap.CurrentTurn, snap.CurrentPlayer)
	}
	if snap.IsMyTurn() || snap.Timer.Running {
		t.Fatal("timer running on another participant's turn")
	}
	if snap.StoryPrompt != "A storm rolls in." {
		t.Fatalf("StoryPrompt = %q", snap.StoryPrompt)
	}
	if len(snap.Leaderboard) != 1 || snap.Leaderboard[0].Score != 5 {
		t.Fatalf("Leaderboard = %+v", snap.Leaderboard)
	}

	tr.push(t, "/user/queue/score", `{"points": 4, "reason": "Perfect grammar", "totalScore": 9}`)
	snap = waitFor(t, st, "leaderboard refetch", func(s game.Session) bool {
		return len(s.Leaderboard) == 1 && s.Leaderboard[0].Score == 9
	})
	if snap.LastScore.Points != 4 {
		t.Fatalf("LastScore = %+v", snap.LastScore)
	}
}

func TestRejectedSubmissionAckRollsBack(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	if err := st.SubmitTurn(context.Background(), "bad words"); err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	tr.push(t, "/topic/game/42/updates", `{"success": false, "message": "Failed to submit word", "word": "bad words"}`)
	snap := waitFor(t, st, "rollback", func(s game.Session) bool { return len(s.Messages) == 0 })
	if snap.Compose != "bad words" || snap.Alert != "Failed to submit word" {
		t.Fatalf("Compose = %q, Alert = %q", snap.Compose, snap.Alert)
	}
}

func TestAnalysisOverTopic(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	if err := st.SubmitForAnalysis(context.Background(), "I goes to school"); err != nil {
		t.Fatalf("SubmitForAnalysis() error = %v", err)
	}
	if !st.Snapshot().AIBusy {
		t.Fatal("AIBusy = false after request")
	}
	tr.push(t, "/topic/ai/42", `{"type": "partial", "text": "MINOR_ERRORS"}`)
	tr.push(t, "/topic/ai/42", `{"type": "partial", "text": "Use \"go\" with I."}`)
	tr.push(t, "/topic/ai/42", `{"type": "final", "text": "Otherwise nice."}`)

	snap := waitFor(t, st, "analysis final", func(s game.Session) bool { return !s.AIBusy })
	if len(snap.Messages) != 1 || snap.Messages[0].Content != `Use "go" with I. Otherwise nice.` {
		t.Fatalf("Messages = %+v", snap.Messages)
	}
	if got := b.analysisCalls.Load(); got != 1 {
		t.Fatalf("analysis calls = %d, want 1", got)
	}
	if snap.CurrentTurn != 3 {
		t.Fatal("analysis changed the turn")
	}
}

func TestAnalysisSubmitErrorAppendsNotice(t *testing.T) {
	b := &fakeBackend{state: playingState(), analysisErr: errors.New("boom")}
	st := startedStore(t, b, newFakeTransport(), nil)

	if err := st.SubmitForAnalysis(context.Background(), "text"); err != nil {
		t.Fatalf("SubmitForAnalysis() error = %v", err)
	}
	snap := waitFor(t, st, "failure notice", func(s game.Session) bool { return !s.AIBusy })
	if len(snap.Messages) != 1 || snap.Messages[0].Content != game.AnalysisFailedText {
		t.Fatalf("Messages = %+v", snap.Messages)
	}
}

func TestAnalysisOverSSE(t *testing.T) {
	b := &fakeBackend{
		state: playingState(),
		stream: []api.AIStreamMessage{
			{Type: "partial", Text: "Looks fine."},
			{Type: "final", Text: "Good job."},
		},
	}
	st := startedStore(t, b, newFakeTransport(), func(c *Config) { c.AIStreamMode = config.AIStreamSSE })

	if err := st.SubmitForAnalysis(context.Background(), "I go to school"); err != nil {
		t.Fatalf("SubmitForAnalysis() error = %v", err)
	}
	snap := waitFor(t, st, "analysis final", func(s game.Session) bool { return !s.AIBusy })
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "Looks fine. Good job." {
		t.Fatalf("Messages = %+v", snap.Messages)
	}
}

func TestTruncatedSSEStreamFails(t *testing.T) {
	b := &fakeBackend{
		state:  playingState(),
		stream: []api.AIStreamMessage{{Type: "partial", Text: "Half a tho"}},
	}
	st := startedStore(t, b, newFakeTransport(), func(c *Config) { c.AIStreamMode = config.AIStreamSSE })

	if err := st.SubmitForAnalysis(context.Background(), "text"); err != nil {
		t.Fatalf("SubmitForAnalysis() error = %v", err)
	}
	snap := waitFor(t, st, "failure", func(s game.Session) bool { return !s.AIBusy })
	if len(snap.Messages) != 1 || snap.Messages[0].Content != game.AnalysisFailedText {
		t.Fatalf("Messages = %+v", snap.Messages)
	}
}

func TestAnalysisTimesOut(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	st := startedStore(t, b, newFakeTransport(), func(c *Config) { c.AnalysisTimeout = 20 * time.Millisecond })

	if err := st.SubmitForAnalysis(context.Background(), "text"); err != nil {
		t.Fatalf("SubmitForAnalysis() error = %v", err)
	}
	snap := waitFor(t, st, "timeout", func(s game.Session) bool { return !s.AIBusy })
	if len(snap.Messages) != 1 || snap.Messages[0].Content != game.AnalysisFailedText {
		t.Fatalf("Messages = %+v", snap.Messages)
	}
}

func TestAnalysisTimeoutAfterFinalIsDropped(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, func(c *Config) { c.AnalysisTimeout = 30 * time.Millisecond })

	if err := st.SubmitForAnalysis(context.Background(), "text"); err != nil {
		t.Fatalf("SubmitForAnalysis() error = %v", err)
	}
	tr.push(t, "/topic/ai/42", `{"type": "final", "text": "Looks good."}`)
	waitFor(t, st, "analysis final", func(s game.Session) bool { return !s.AIBusy })

	time.Sleep(90 * time.Millisecond)
	if err := st.settle(context.Background()); err != nil {
		t.Fatalf("settle() error = %v", err)
	}
	snap := st.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "Looks good." {
		t.Fatalf("Messages = %+v, want only the final feedback", snap.Messages)
	}
}

func TestUnsolicitedAnalysisErrorAppendsNotice(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)

	tr.push(t, "/topic/ai/42", `{"type": "error", "text": "model down"}`)
	snap := waitFor(t, st, "failure notice", func(s game.Session) bool { return len(s.Messages) == 1 })
	if snap.AIBusy || snap.Messages[0].Content != game.AnalysisFailedText {
		t.Fatalf("AIBusy = %v Messages = %+v", snap.AIBusy, snap.Messages)
	}
}

func TestConcurrentRefreshesShareOneRequest(t *testing.T) {
	b := &fakeBackend{state: playingState(), stateGate: make(chan struct{})}
	st := newTestStore(t, b, newFakeTransport(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.Refresh(context.Background())
		}()
	}
	deadline := time.Now().Add(2 * time.Second)
	for b.stateCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never started")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(b.stateGate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
	}
	if got := b.stateCalls.Load(); got != 1 {
		t.Fatalf("state fetches = %d, want 1", got)
	}
	if got := st.Snapshot().Phase; got != game.PhaseTurnInProgress {
		t.Fatalf("Phase = %s, want TURN_IN_PROGRESS", got)
	}
}

func TestTransportWarningSurfacesAndClears(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	st := startedStore(t, b, newFakeTransport(), nil)

	st.TransportWarning("Connection rejected: bad token")
	waitFor(t, st, "warning", func(s game.Session) bool { return s.Warning != "" })
	st.TransportConnected()
	waitFor(t, st, "warning cleared", func(s game.Session) bool { return s.Warning == "" })
}

func TestCloseStopsEverything(t *testing.T) {
	b := &fakeBackend{state: playingState()}
	tr := newFakeTransport()
	st := startedStore(t, b, tr, nil)
	watch := st.Watch()

	before := st.Snapshot()
	st.Close()
	st.Close()

	st.Dispatch(game.ScoresUpdated{Leaderboard: []game.LeaderboardEntry{{UserID: "7", Score: 99}}})
	if got := st.Snapshot(); len(got.Leaderboard) != len(before.Leaderboard) {
		t.Fatalf("Leaderboard changed after Close: %+v", got.Leaderboard)
	}
	if err := st.SubmitTurn(context.Background(), "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("SubmitTurn() error = %v, want ErrClosed", err)
	}
	if err := st.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Refresh() error = %v, want ErrClosed", err)
	}
	if !tr.disconnected {
		t.Fatal("transport not disconnected")
	}
	if len(tr.handlers) != 0 {
		t.Fatalf("%d subscriptions left after Close", len(tr.handlers))
	}
	for range watch {
	}
}

func TestClientMessageIDsAreUniqueAndOrdered(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id := NewClientMessageID()
		if id <= prev {
			t.Fatalf("id %d = %s, not after %s", i, id, prev)
		}
		prev = id
	}
	if !strings.HasPrefix(prev, "opt-") {
		t.Fatalf("id = %q, want opt- prefix", prev)
	}
}
