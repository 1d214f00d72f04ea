// Package playback sequences a validated quiz document: it owns the
// ordered scene list, the active scene index, the accumulated per-scene
// results, and the document (re)load lifecycle.
package playback

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-playback-service/internal/domain"
	"quiz-playback-service/internal/engine"
	"quiz-playback-service/internal/resolver"
	"quiz-playback-service/internal/schema"
)

// Status is the coarse playback lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// SceneView is the rendering collaborator's contract for the active scene:
// everything it needs to draw, nothing it is allowed to decide.
type SceneView struct {
	SceneID                    string             `json:"sceneId"`
	SceneType                  domain.SceneType   `json:"sceneType"`
	Variant                    domain.Variant     `json:"variant"`
	DurationInSeconds          float64            `json:"durationInSeconds"`
	QuestionText               string             `json:"questionText,omitempty"`
	Options                    []domain.Option    `json:"options,omitempty"`
	CorrectAnswerID            string             `json:"correctAnswerId,omitempty"`
	EffectiveTimerDuration     int                `json:"effectiveTimerDuration"`
	TimeRemaining              int                `json:"timeRemaining"`
	Answered                   bool               `json:"answered"`
	Revealing                  bool               `json:"revealing"`
	SelectedOptionID           string             `json:"selectedOptionId,omitempty"`
	ResolvedBackgroundImageURL string             `json:"resolvedBackgroundImageUrl,omitempty"`
	ResolvedBackgroundVideoURL string             `json:"resolvedBackgroundVideoUrl,omitempty"`
	BackgroundChanged          bool               `json:"backgroundChanged"`
	BackgroundMusic            string             `json:"backgroundMusic,omitempty"`
}

// Summary aggregates the results map for the completion consumer. Scenes
// that ended without an answer are counted separately, never as wrong.
type Summary struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
}

// Snapshot is one consistent view of playback for subscribers.
type Snapshot struct {
	SessionID  string                        `json:"sessionId"`
	Status     Status                        `json:"status"`
	SceneIndex int                           `json:"sceneIndex"`
	SceneCount int                           `json:"sceneCount"`
	Scene      *SceneView                    `json:"scene,omitempty"`
	Results    map[string]domain.SceneResult `json:"results"`
	Summary    Summary                       `json:"summary"`
	Error      string                        `json:"error,omitempty"`
}

// Option tunes a Player.
type Option func(*Player)

// WithTickInterval shrinks the countdown second, for tests and previews.
func WithTickInterval(d time.Duration) Option {
	return func(p *Player) { p.engineCfg.TickInterval = d }
}

// WithRevealWindow overrides the fixed post-answer reveal delay.
func WithRevealWindow(d time.Duration) Option {
	return func(p *Player) { p.engineCfg.RevealWindow = d }
}

// Player is the playback sequencer. All state is owned here and mutated
// only through Load, SelectOption, and the scene-result callback; every
// (re)load mints a fresh session id, and results carrying a stale session
// or scene id are discarded.
type Player struct {
	engineCfg engine.Config

	mu          sync.Mutex
	doc         *domain.QuizDocument
	sessionID   string
	index       int
	results     map[string]domain.SceneResult
	runner      *engine.Runner
	status      Status
	errMsg      string
	prevBg      resolver.Resolved
	hasPrevBg   bool
	bgChanged   bool
	stopped     bool
	subscribers map[chan Snapshot]struct{}
}

// NewPlayer builds an idle player; call Load to begin playback.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		status:      StatusIdle,
		results:     make(map[string]domain.SceneResult),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load validates the raw document and restarts playback from scene zero.
// Any in-flight scene runner is torn down first, so no zombie timer can
// fire into the new state. On validation failure the player lands in a
// user-visible failed status (and the error is also returned for the
// caller's logs); a later Load is the recovery action.
func (p *Player) Load(raw []byte) error {
	doc, err := schema.Parse(raw)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return domain.ErrNotLoaded
	}
	p.teardownRunnerLocked()
	p.sessionID = uuid.NewString()
	p.index = 0
	p.results = make(map[string]domain.SceneResult)
	p.prevBg = resolver.Resolved{}
	p.hasPrevBg = false
	p.bgChanged = false

	if err != nil {
		p.doc = nil
		p.status = StatusFailed
		p.errMsg = err.Error()
		p.broadcastLocked()
		p.mu.Unlock()
		log.Printf("playback: document rejected: %v", err)
		return err
	}

	p.doc = &doc
	p.status = StatusPlaying
	p.errMsg = ""
	p.activateSceneLocked()
	p.broadcastLocked()
	p.mu.Unlock()
	return nil
}

// SelectOption forwards the user's selection to the active scene runner.
// Outside the countdown window it is a no-op and returns false.
func (p *Player) SelectOption(optionID string) bool {
	p.mu.Lock()
	runner := p.runner
	p.mu.Unlock()
	if runner == nil {
		return false
	}
	// The runner re-checks the latch under its own lock; calling outside
	// p.mu avoids holding two locks while its callbacks re-enter us.
	return runner.Select(optionID)
}

// Snapshot returns a consistent copy of the playback state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe returns a channel fed with snapshots on every tick and
// transition, starting with the current state. The caller must invoke the
// returned cancel function to avoid leaks.
func (p *Player) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	initial := p.snapshotLocked()
	p.mu.Unlock()

	ch <- initial

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Stop tears down the active runner and rejects further loads. Subscriber
// channels stay open until their cancel functions run.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.teardownRunnerLocked()
	p.mu.Unlock()
}

// activateSceneLocked creates and starts a brand-new runner for the scene
// at the current index. Scene runtime state never bleeds across scenes:
// each activation gets a fresh engine.Runner bound to the current session.
func (p *Player) activateSceneLocked() {
	scene := p.doc.Scenes[p.index]

	if !scene.Variant.Known() {
		// Parse closes the variant set, so this is defense in depth; per the
		// error design the whole document aborts instead of skipping a scene.
		p.teardownRunnerLocked()
		p.status = StatusFailed
		p.errMsg = domain.ErrUnknownVariant.Error() + ": " + string(scene.Variant)
		log.Printf("playback: aborting document %s: unknown variant %q", p.doc.VideoID, scene.Variant)
		return
	}

	bg := resolver.Background(scene, *p.doc)
	p.bgChanged = !p.hasPrevBg || !bg.Equal(p.prevBg)
	p.prevBg = bg
	p.hasPrevBg = true

	session := p.sessionID
	runner := engine.NewRunner(scene, p.engineCfg, func(res engine.Result) {
		p.handleSceneResult(session, res)
	})
	runner.OnUpdate(func(engine.Snapshot) {
		p.pushUpdate(session)
	})
	p.runner = runner
	runner.Start()
}

// handleSceneResult records a scene result and advances the sequence.
// Results from a stale session or a scene other than the active one are
// dropped; they come from runners that were already replaced.
func (p *Player) handleSceneResult(session string, res engine.Result) {
	p.mu.Lock()
	if p.stopped || p.status != StatusPlaying || session != p.sessionID || p.doc == nil {
		p.mu.Unlock()
		log.Printf("playback: dropping stale result for scene %s", res.SceneID)
		return
	}
	active := p.doc.Scenes[p.index]
	if res.SceneID != active.SceneID {
		p.mu.Unlock()
		log.Printf("playback: dropping result for inactive scene %s (active %s)", res.SceneID, active.SceneID)
		return
	}

	p.results[res.SceneID] = domain.SceneResult{SceneID: res.SceneID, IsCorrect: res.IsCorrect}

	if p.index == len(p.doc.Scenes)-1 {
		p.status = StatusFinished
		p.teardownRunnerLocked()
	} else {
		p.index++
		p.activateSceneLocked()
	}
	p.broadcastLocked()
	p.mu.Unlock()
}

// pushUpdate rebroadcasts the snapshot on engine ticks, gated on the
// session so a stopped runner's trailing tick cannot resurface.
func (p *Player) pushUpdate(session string) {
	p.mu.Lock()
	if !p.stopped && session == p.sessionID {
		p.broadcastLocked()
	}
	p.mu.Unlock()
}

func (p *Player) teardownRunnerLocked() {
	if p.runner != nil {
		p.runner.Stop()
		p.runner = nil
	}
}

func (p *Player) broadcastLocked() {
	if len(p.subscribers) == 0 {
		return
	}
	snap := p.snapshotLocked()
	for ch := range p.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so a slow consumer never
			// blocks the timeline.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (p *Player) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:  p.sessionID,
		Status:     p.status,
		SceneIndex: p.index,
		Results:    make(map[string]domain.SceneResult, len(p.results)),
		Error:      p.errMsg,
	}
	for id, res := range p.results {
		snap.Results[id] = res
		switch {
		case res.IsCorrect == nil:
			snap.Summary.Unanswered++
		case *res.IsCorrect:
			snap.Summary.Correct++
		default:
			snap.Summary.Incorrect++
		}
	}
	if p.doc == nil {
		return snap
	}
	snap.SceneCount = len(p.doc.Scenes)

	if p.status != StatusPlaying {
		return snap
	}
	scene := p.doc.Scenes[p.index]
	view := &SceneView{
		SceneID:                    scene.SceneID,
		SceneType:                  scene.SceneType,
		Variant:                    scene.Variant,
		DurationInSeconds:          scene.DurationInSeconds,
		EffectiveTimerDuration:     scene.EffectiveTimerSeconds(),
		ResolvedBackgroundImageURL: p.prevBg.ImageURL,
		ResolvedBackgroundVideoURL: p.prevBg.VideoURL,
		BackgroundChanged:          p.bgChanged,
		BackgroundMusic:            resolver.Music(*p.doc),
	}
	if scene.Question != nil {
		view.QuestionText = scene.Question.QuestionText
		view.Options = scene.Question.Options
		view.CorrectAnswerID = scene.Question.CorrectAnswerID
	}
	if p.runner != nil {
		es := p.runner.Snapshot()
		view.TimeRemaining = es.TimeRemaining
		view.Answered = es.Answered
		view.Revealing = es.Revealing
		view.SelectedOptionID = es.SelectedOptionID
	}
	snap.Scene = view
	return snap
}
