// Package engine drives the interactive lifecycle of a single active
// scene: countdown ticks, answer capture, the reveal window, and the
// scene-duration fallback clock, ending in exactly one scene result.
package engine

import (
	"sync"
	"time"

	"quiz-playback-service/internal/domain"
)

// State is the runner's position in the scene lifecycle. Answered is not a
// resting state: the transition into Revealing happens in the same
// critical section that latches the answer.
type State int

const (
	StateCountdown State = iota
	StateRevealing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCountdown:
		return "countdown"
	case StateRevealing:
		return "revealing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// DefaultTickInterval is the wall-clock length of one countdown second.
const DefaultTickInterval = time.Second

// DefaultRevealWindow is how long correctness stays on screen before the
// scene concludes.
const DefaultRevealWindow = 3 * time.Second

// Result is the terminal event of one scene activation. IsCorrect is nil
// when the scene timed out with no selection.
type Result struct {
	SceneID   string
	IsCorrect *bool
}

// Snapshot is a read-only view of the runner for the rendering
// collaborator, refreshed on every tick and transition.
type Snapshot struct {
	SceneID                string `json:"sceneId"`
	State                  State  `json:"-"`
	EffectiveTimerDuration int    `json:"effectiveTimerDuration"`
	TimeRemaining          int    `json:"timeRemaining"`
	Answered               bool   `json:"answered"`
	Revealing              bool   `json:"revealing"`
	SelectedOptionID       string `json:"selectedOptionId,omitempty"`
}

// Config tunes the runner's clocks. The zero value means real-time
// playback; tests shrink both to run scenes in milliseconds.
type Config struct {
	TickInterval time.Duration
	RevealWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.RevealWindow <= 0 {
		c.RevealWindow = DefaultRevealWindow
	}
	return c
}

// Runner owns the runtime state of one scene activation. All transitions
// go through a single mutex so the answered latch is check-and-set
// atomically no matter which trigger (selection, countdown expiry,
// scene-duration fallback) fires first; the losers are no-ops.
//
// timerDuration longer than durationInSeconds is not rejected upstream;
// the scene-duration clock simply wins through the latch.
type Runner struct {
	scene    domain.Scene
	cfg      Config
	onResult func(Result)
	onUpdate func(Snapshot)

	mu            sync.Mutex
	state         State
	timeRemaining int
	selected      string
	answered      bool
	resultEmitted bool
	stopped       bool

	sceneTimer  *time.Timer
	revealTimer *time.Timer
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewRunner builds a runner for one scene activation. onResult fires
// exactly once, after the reveal window (or straight at the scene-duration
// deadline for non-interactive scenes), unless the runner is stopped
// first.
func NewRunner(scene domain.Scene, cfg Config, onResult func(Result)) *Runner {
	return &Runner{
		scene:         scene,
		cfg:           cfg.withDefaults(),
		onResult:      onResult,
		state:         StateCountdown,
		timeRemaining: scene.EffectiveTimerSeconds(),
		stopCh:        make(chan struct{}),
	}
}

// OnUpdate registers a snapshot listener. Must be called before Start.
func (r *Runner) OnUpdate(fn func(Snapshot)) {
	r.onUpdate = fn
}

// Start arms the scene-duration fallback clock and, for interactive
// scenes, the repeating countdown tick.
func (r *Runner) Start() {
	duration := time.Duration(r.scene.DurationInSeconds * float64(r.cfg.TickInterval))
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.sceneTimer = time.AfterFunc(duration, r.sceneTimeout)
	ticking := r.scene.Interactive() && r.timeRemaining > 0
	r.mu.Unlock()

	if !ticking {
		return
	}
	go func() {
		ticker := time.NewTicker(r.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !r.handleTick() {
					return
				}
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop tears the runner down: every pending timer is cancelled so no stale
// callback can fire into a newer scene. No result is emitted for a scene
// stopped before Done.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		if r.sceneTimer != nil {
			r.sceneTimer.Stop()
		}
		if r.revealTimer != nil {
			r.revealTimer.Stop()
		}
		r.mu.Unlock()
		close(r.stopCh)
	})
}

// Select records the user's answer. It only applies while the countdown is
// running; selections after the scene is answered (or on non-interactive
// scenes, or with an unknown option id) are no-ops and return false.
func (r *Runner) Select(optionID string) bool {
	r.mu.Lock()
	if r.stopped || r.state != StateCountdown || !r.scene.Interactive() {
		r.mu.Unlock()
		return false
	}
	if _, ok := r.scene.Question.Option(optionID); !ok {
		r.mu.Unlock()
		return false
	}
	r.answerLocked(optionID)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return true
}

// Snapshot returns the current read-only view.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// handleTick decrements the countdown and, at zero, latches a no-answer
// transition. Returns false once ticking should stop.
func (r *Runner) handleTick() bool {
	r.mu.Lock()
	if r.stopped || r.state != StateCountdown {
		r.mu.Unlock()
		return false
	}
	r.timeRemaining--
	if r.timeRemaining <= 0 {
		r.timeRemaining = 0
		r.answerLocked("")
	}
	keep := r.state == StateCountdown
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return keep
}

// sceneTimeout is the coarse fallback clock for the whole scene. It exists
// because timerDuration may be shorter than durationInSeconds, leaving a
// gap where the scene would otherwise hang unanswered.
func (r *Runner) sceneTimeout() {
	r.mu.Lock()
	if r.stopped || r.state != StateCountdown {
		r.mu.Unlock()
		return
	}
	var emit *Result
	if r.scene.Interactive() {
		r.answerLocked("")
	} else {
		emit = r.finishLocked()
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.emit(emit)
	r.notify(snap)
}

// finishReveal closes the reveal window and emits the scene result.
func (r *Runner) finishReveal() {
	r.mu.Lock()
	if r.stopped || r.state != StateRevealing {
		r.mu.Unlock()
		return
	}
	emit := r.finishLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.emit(emit)
	r.notify(snap)
}

// answerLocked is the single transition out of Countdown. Callers hold the
// lock and have already verified state == StateCountdown, so the answered
// latch flips at most once per activation. The scene-duration clock is
// cancelled here; the reveal window starts in the same instant.
func (r *Runner) answerLocked(optionID string) {
	r.answered = true
	r.selected = optionID
	r.state = StateRevealing
	if r.sceneTimer != nil {
		r.sceneTimer.Stop()
	}
	r.revealTimer = time.AfterFunc(r.cfg.RevealWindow, r.finishReveal)
}

// finishLocked moves to Done and builds the result, guarded so it is
// produced at most once.
func (r *Runner) finishLocked() *Result {
	r.state = StateDone
	if r.revealTimer != nil {
		r.revealTimer.Stop()
	}
	if r.resultEmitted {
		return nil
	}
	r.resultEmitted = true

	res := Result{SceneID: r.scene.SceneID}
	if r.selected != "" && r.scene.Question != nil {
		correct := r.selected == r.scene.Question.CorrectAnswerID
		res.IsCorrect = &correct
	}
	return &res
}

func (r *Runner) snapshotLocked() Snapshot {
	return Snapshot{
		SceneID:                r.scene.SceneID,
		State:                  r.state,
		EffectiveTimerDuration: r.scene.EffectiveTimerSeconds(),
		TimeRemaining:          r.timeRemaining,
		Answered:               r.answered,
		Revealing:              r.state == StateRevealing,
		SelectedOptionID:       r.selected,
	}
}

func (r *Runner) emit(res *Result) {
	if res != nil && r.onResult != nil {
		r.onResult(*res)
	}
}

func (r *Runner) notify(snap Snapshot) {
	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
}
