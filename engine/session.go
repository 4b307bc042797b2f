// Package engine holds the core of the bot: the comment decision pipeline
// and the playback controller state machine that coordinates scene switches
// with the external player.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/AlexandroAurellino/live-shop-bot/catalog"
	"github.com/AlexandroAurellino/live-shop-bot/classifier"
	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/metrics"
	"github.com/AlexandroAurellino/live-shop-bot/ratelimit"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// Player is the scene-compositor/media-player adapter consumed by the
// session. The playback-ended handler must be registered before Connect.
type Player interface {
	Connect() error
	Disconnect()
	SwitchToScene(sceneName string) error
	CurrentScene() (string, error)
	SetMediaFile(inputName, path string) error
	OnPlaybackEnded(fn func(inputName string))
}

// Listener is one chat connection attempt; the session restarts listeners
// with backoff for as long as it runs.
type Listener interface {
	Run() error
	Stop()
	Connected() bool
}

// ListenerFactory creates a fresh listener wired to the given comment
// callback.
type ListenerFactory func(onComment func(user, text string)) Listener

// Classifier turns a comment into a verdict against the session catalog.
type Classifier interface {
	Classify(ctx context.Context, comment string, cat *catalog.Catalog) types.Verdict
}

// EventSink receives human-readable transition events for the operator
// dashboard. Implementations must not block.
type EventSink interface {
	Log(kind, message, user string)
	Stats(types.LiveStats)
}

// event is a message on the session's serialized inbox. Every mutation of
// playback state happens on the inbox loop, which turns callback races into
// message ordering.
type event interface{}

type requestEvent struct {
	product types.Product
	user    string
	manual  bool
}

// playbackEndedEvent and timerEvent carry the playback generation observed
// when the signal fired; the loop ignores events whose generation no longer
// matches, which removes the stale-timer / double-advance hazard.
type playbackEndedEvent struct {
	input string
	gen   uint64
}

type timerEvent struct {
	gen uint64
}

type skipEvent struct {
	reply chan bool
}

type statsEvent struct {
	reply chan types.LiveStats
}

// Session is one start-to-stop run of the bot. All playback state is owned
// by the inbox loop; external callers interact through posted events.
type Session struct {
	cfg     Config
	catalog *catalog.Catalog
	cls     Classifier
	cache   *classifier.Cache
	limiter *ratelimit.Window
	player  Player
	listen  ListenerFactory
	sink    EventSink
	logger  *logging.Logger
	backoff Backoff

	inbox  chan event
	runCtx context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	listenerMu sync.Mutex
	listener   Listener
	stopping   bool

	started  atomic.Bool
	stopOnce sync.Once

	// loop-owned playback state
	playing bool
	current *types.Product
	queue   []types.Product
	timer   *time.Timer
	gen     atomic.Uint64

	commentsProcessed atomic.Int64
	scenesSwitched    atomic.Int64
	errorCount        atomic.Int64
}

// NewSession wires a session from its collaborators. Nothing runs until
// Start.
func NewSession(cfg Config, cat *catalog.Catalog, cls Classifier, player Player, listen ListenerFactory, sink EventSink, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	return &Session{
		cfg:     cfg,
		catalog: cat,
		cls:     cls,
		cache:   classifier.NewCache(cfg.CacheTTL),
		limiter: ratelimit.NewWindow(cfg.RateLimitPerMinute),
		player:  player,
		listen:  listen,
		sink:    sink,
		logger:  logger,
		backoff: DefaultBackoff(cfg.ReconnectDelay),
		inbox:   make(chan event, 64),
	}
}

// Start connects the player and launches the controller loop and the chat
// ingress loop. A failed player connection is the only fatal start error.
func (s *Session) Start(ctx context.Context) error {
	if s.started.Swap(true) {
		return errors.New("session already started")
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.group, _ = errgroup.WithContext(s.runCtx)

	s.player.OnPlaybackEnded(func(input string) {
		s.post(playbackEndedEvent{input: input, gen: s.gen.Load()})
	})

	if err := s.player.Connect(); err != nil {
		s.cancel()
		s.emitLog("system", "player connection failed: "+err.Error(), "")
		return errors.Wrap(err, "player connection failed")
	}
	s.group.Go(func() error {
		s.loop()
		return nil
	})
	s.group.Go(func() error {
		s.runIngress()
		return nil
	})

	s.emitLog("system", fmt.Sprintf("session started for %s", s.cfg.StreamTarget), "")
	return nil
}

// Stop tears the session down: the ingress loop is signalled, the backup
// timer cancelled, the player disconnected, and cache and rate-window state
// cleared. Idempotent.
func (s *Session) Stop() {
	if !s.started.Load() {
		return
	}
	s.stopOnce.Do(func() {
		s.emitLog("system", "stopping session", "")
		s.cancel()

		// stopping is set under the same lock that registers listeners, so a
		// listener created concurrently with Stop is stopped on one side or
		// the other, never orphaned.
		s.listenerMu.Lock()
		s.stopping = true
		if s.listener != nil {
			s.listener.Stop()
		}
		s.listenerMu.Unlock()

		_ = s.group.Wait()

		s.player.Disconnect()
		s.cache.Clear()
		s.limiter.Reset()
		s.emitLog("system", "session stopped", "")
	})
}

// SkipCurrent forces the playback-ended transition regardless of the
// current view. Returns false when nothing is playing or the session is
// stopped.
func (s *Session) SkipCurrent() bool {
	metrics.ControlCommandTotal.WithLabelValues("skip").Inc()
	reply := make(chan bool, 1)
	if !s.post(skipEvent{reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-s.runCtx.Done():
		return false
	}
}

// ManualPlay requests a product by free-text name on the operator's behalf.
// The name still goes through the resolver, but manual requests bypass the
// rate governor: an explicit operator action should not compete with viewer
// comments for admission slots.
func (s *Session) ManualPlay(name string) bool {
	metrics.ControlCommandTotal.WithLabelValues("play").Inc()
	p, ok := s.catalog.Resolve(name)
	if !ok {
		s.emitLog("system", fmt.Sprintf("manual trigger: no product matches %q", name), "")
		return false
	}
	s.emitLog("system", "manual trigger: "+p.Name, "")
	return s.post(requestEvent{product: p, manual: true})
}

// LiveStats returns a consistent snapshot of the session's observable
// state.
func (s *Session) LiveStats() types.LiveStats {
	reply := make(chan types.LiveStats, 1)
	if s.post(statsEvent{reply: reply}) {
		select {
		case st := <-reply:
			return st
		case <-s.runCtx.Done():
		}
	}
	// Loop is gone; counters are still accurate, playback state is not
	// observable anymore.
	return s.counterStats(false)
}

// processComment is the decision pipeline. It runs on the single ingestion
// goroutine: cache lookup, classify on miss, resolve, then hand the request
// to the controller loop.
func (s *Session) processComment(user, text string) {
	id := uuid.New()
	s.commentsProcessed.Add(1)
	metrics.CommentsProcessedCount.Add(1)
	s.emitLog("chat", text, user)
	s.logger.Debug("processing comment", "messageID", id, "user", user)

	verdict, cached := s.cache.Get(text)
	if cached {
		metrics.CacheHitCount.Add(1)
	} else {
		verdict = s.cls.Classify(s.runCtx, text, s.catalog)
		s.cache.Put(text, verdict)
	}

	switch verdict.Intent {
	case types.IntentError:
		s.errorCount.Add(1)
		s.logger.Warn("classification failed, ignoring comment", "messageID", id)
	case types.IntentProductRequest:
		if verdict.ProductName == "" {
			return
		}
		p, ok := s.catalog.Resolve(verdict.ProductName)
		if !ok {
			s.logger.Debug("no catalog product matches classifier output",
				"messageID", id, "productName", verdict.ProductName)
			return
		}
		s.post(requestEvent{product: p, user: user})
	}
}

// post delivers an event to the inbox unless the session is shutting down.
func (s *Session) post(ev event) bool {
	if s.runCtx == nil {
		return false
	}
	select {
	case s.inbox <- ev:
		return true
	case <-s.runCtx.Done():
		return false
	}
}

// loop is the single mutation point for playback state.
func (s *Session) loop() {
	for {
		select {
		case <-s.runCtx.Done():
			s.teardown()
			return
		case ev := <-s.inbox:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case requestEvent:
		s.handleRequest(ev)
	case playbackEndedEvent:
		if ev.gen != s.gen.Load() || !s.playing {
			return
		}
		if !s.inProductScene() {
			return
		}
		s.cancelTimer()
		s.emitLog("system", "playback ended for "+s.current.Name, "")
		s.advance()
	case timerEvent:
		if ev.gen != s.gen.Load() || !s.playing {
			return
		}
		if !s.inProductScene() {
			return
		}
		metrics.BackupTimerFiredCount.Add(1)
		s.emitLog("system", "backup timer fired, video possibly stuck; checking queue", "")
		s.cancelTimer()
		s.advance()
	case skipEvent:
		if !s.playing {
			ev.reply <- false
			return
		}
		s.emitLog("system", "skipping "+s.current.Name, "")
		s.cancelTimer()
		s.advance()
		ev.reply <- true
	case statsEvent:
		ev.reply <- s.snapshotStats()
	}
}

func (s *Session) handleRequest(ev requestEvent) {
	if !ev.manual && !s.limiter.TryAdmit() {
		metrics.RateLimitedCount.Add(1)
		s.emitLog("system", fmt.Sprintf("rate limit hit, ignoring %q", ev.product.Name), ev.user)
		return
	}

	if !s.playing {
		s.startPlayback(ev.product)
		return
	}

	if s.current != nil && s.current.Name == ev.product.Name {
		metrics.QueueDropCount.Add(1)
		s.emitLog("system", fmt.Sprintf("%q is already playing, dropping request", ev.product.Name), ev.user)
		return
	}
	if s.queued(ev.product.Name) {
		metrics.QueueDropCount.Add(1)
		s.emitLog("system", fmt.Sprintf("%q is already in queue, dropping request", ev.product.Name), ev.user)
		return
	}

	s.queue = append(s.queue, ev.product)
	s.emitLog("system", fmt.Sprintf("video playing, added %q to queue (position %d)", ev.product.Name, len(s.queue)), ev.user)
	s.emitStats()
}

// startPlayback loads the product's media, switches to the product view,
// and arms the backup timer. On any player failure the session stays in its
// current state; the failure is reported, not retried.
func (s *Session) startPlayback(p types.Product) {
	if p.MediaFile == "" {
		s.errorCount.Add(1)
		s.emitLog("system", fmt.Sprintf("no media file configured for %q", p.Name), "")
		return
	}
	path := filepath.Join(s.cfg.MediaDir, p.MediaFile)

	s.emitLog("system", "loading video "+p.MediaFile, "")
	if err := s.player.SetMediaFile(s.cfg.MediaSource, path); err != nil {
		s.errorCount.Add(1)
		s.emitLog("system", "failed to set media source: "+err.Error(), "")
		return
	}
	if err := s.player.SwitchToScene(s.cfg.ProductScene); err != nil {
		s.errorCount.Add(1)
		s.emitLog("system", "failed to switch scene: "+err.Error(), "")
		return
	}

	s.playing = true
	cp := p
	s.current = &cp
	s.scenesSwitched.Add(1)
	metrics.SceneSwitchCount.Add(1)

	gen := s.gen.Add(1)
	s.armTimer(gen)

	s.emitLog("system", "now playing "+p.Name, "")
	s.emitStats()
}

// advance pops the next queued product or returns to the main scene.
func (s *Session) advance() {
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.emitLog("system", fmt.Sprintf("queue: playing next item %q", next.Name), "")
		s.startPlayback(next)
		return
	}

	s.playing = false
	s.current = nil
	s.gen.Add(1)
	s.emitLog("system", fmt.Sprintf("queue empty, returning to %q", s.cfg.MainScene), "")
	if err := s.player.SwitchToScene(s.cfg.MainScene); err != nil {
		s.errorCount.Add(1)
		s.emitLog("system", "failed to switch back to main scene: "+err.Error(), "")
	}
	s.emitStats()
}

// armTimer replaces any outstanding backup timer with one for the given
// playback generation.
func (s *Session) armTimer(gen uint64) {
	s.cancelTimer()
	s.timer = time.AfterFunc(s.cfg.AutoReturnDelay, func() {
		s.post(timerEvent{gen: gen})
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// inProductScene checks that the player is still showing the product view.
// A query failure counts as "not in the product view": no advance happens
// on uncertain state.
func (s *Session) inProductScene() bool {
	scene, err := s.player.CurrentScene()
	if err != nil {
		s.errorCount.Add(1)
		s.logger.Error("failed to query current scene", "error", err.Error())
		return false
	}
	return scene == s.cfg.ProductScene
}

func (s *Session) queued(name string) bool {
	for _, p := range s.queue {
		if p.Name == name {
			return true
		}
	}
	return false
}

// teardown clears loop-owned playback state on shutdown.
func (s *Session) teardown() {
	s.cancelTimer()
	s.queue = nil
	s.playing = false
	s.current = nil
}

func (s *Session) snapshotStats() types.LiveStats {
	st := s.counterStats(true)
	if s.current != nil {
		st.CurrentProduct = s.current.Name
	}
	st.Queue = make([]string, len(s.queue))
	for i, p := range s.queue {
		st.Queue[i] = p.Name
	}
	return st
}

func (s *Session) counterStats(running bool) types.LiveStats {
	return types.LiveStats{
		Running:           running,
		CommentsProcessed: s.commentsProcessed.Load(),
		ScenesSwitched:    s.scenesSwitched.Load(),
		Errors:            s.errorCount.Load(),
		Queue:             []string{},
	}
}

// runIngress owns the chat connection lifecycle: run a listener, and when
// it returns, restart it with escalating backoff until the session stops.
func (s *Session) runIngress() {
	attempt := 0
	for {
		if s.runCtx.Err() != nil {
			return
		}

		l := s.listen(s.processComment)
		s.setListener(l)
		s.emitLog("system", "connecting to "+s.cfg.StreamTarget, "")

		err := l.Run()

		s.setListener(nil)
		if s.runCtx.Err() != nil {
			return
		}
		if l.Connected() {
			attempt = 0
		}
		if err != nil {
			s.errorCount.Add(1)
			metrics.ChatErrorCount.Add(1)
			s.emitLog("system", "connection error: "+err.Error(), "")
		}

		attempt++
		delay := s.backoff.Delay(attempt)
		s.emitLog("system", fmt.Sprintf("retry in %s", delay), "")
		if !sleep(s.runCtx, delay) {
			return
		}
	}
}

func (s *Session) setListener(l Listener) {
	s.listenerMu.Lock()
	s.listener = l
	stopNow := s.stopping && l != nil
	s.listenerMu.Unlock()
	if stopNow {
		l.Stop()
	}
}

func (s *Session) emitLog(kind, message, user string) {
	if kind == "chat" {
		s.logger.Info("chat comment", "user", user, "message", message)
	} else {
		s.logger.Info(message, "category", kind)
	}
	if s.sink != nil {
		s.sink.Log(kind, message, user)
	}
}

func (s *Session) emitStats() {
	if s.sink != nil {
		s.sink.Stats(s.snapshotStats())
	}
}
