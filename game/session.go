package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swdee/go-posegame/pose"
	"github.com/swdee/go-posegame/tracker"
)

// SessionParams defines the configuration of a game Session
type SessionParams struct {
	// Classifier are the pose classification thresholds
	Classifier pose.Params
	// Match is the hold and cooldown timing for confirming poses
	Match tracker.MatchParams
	// Round is the length and scoring of a round
	Round RoundParams
	// Smoothing enables Kalman smoothing of keypoints when not nil
	Smoothing *tracker.SmootherParams
	// Selector chooses target poses, nil cycles in a fixed order
	Selector TargetSelector
	// AutoCalibrate calibrates the squat rule from the last processed frame
	// when a round starts, the player is expected to stand upright
	AutoCalibrate bool
}

// DefaultSessionParams returns SessionParams with the default parameters of
// every component, smoothing disabled and cycling targets
func DefaultSessionParams() SessionParams {
	return SessionParams{
		Classifier: pose.DefaultParams(),
		Match:      tracker.DefaultMatchParams(),
		Round:      DefaultRoundParams(),
	}
}

// EventType identifies a Session event
type EventType int

const (
	EventRoundStart EventType = iota
	EventScore
	EventRoundEnd
	EventRoundReset
)

var eventNames = [...]string{
	EventRoundStart: "round_start",
	EventScore:      "score",
	EventRoundEnd:   "round_end",
	EventRoundReset: "round_reset",
}

func (e EventType) String() string {
	if e < EventRoundStart || e > EventRoundReset {
		return fmt.Sprintf("EventType(%d)", int(e))
	}

	return eventNames[e]
}

// Event is published to Session subscribers when the round changes
type Event struct {
	Type EventType
	// Match is the scoring match for EventScore
	Match *tracker.MatchEvent
	// State is the round state after the event
	State RoundState
}

// FrameResult is the outcome of processing a single frame
type FrameResult struct {
	// Matched are the poses the frame satisfied
	Matched pose.Set
	// Events are the target matches confirmed on this frame
	Events []tracker.MatchEvent
	// Awarded are the points scored on this frame
	Awarded int
	// State is the round state after the frame
	State RoundState
}

// Snapshot is a read only view of a Session for rendering
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Round     RoundState `json:"round"`
	// RemainingSeconds is Round.Remaining in seconds
	RemainingSeconds float64 `json:"remaining_seconds"`
	// Matched are the poses matched on the last frame
	Matched pose.Set `json:"matched"`
	// Calibrated is true once a standing calibration is in use
	Calibrated bool `json:"calibrated"`
	// Hold is how long the target pose has been held
	Hold time.Duration `json:"hold"`
	// HoldThreshold is how long the target must be held to score
	HoldThreshold time.Duration `json:"hold_threshold"`
}

// Session is a single player game.  It runs each frame through classification,
// match tracking and scoring, and serializes frames arriving from a capture
// loop with clock ticks arriving from a timer, so it is safe for concurrent
// use.
type Session struct {
	mu sync.Mutex

	id            uuid.UUID
	autoCalibrate bool

	base       *pose.Classifier
	classifier *pose.Classifier
	matches    *tracker.MatchTracker
	smoother   *tracker.Smoother
	round      *RoundController

	lastFrame pose.Frame
	haveFrame bool
	matched   pose.Set

	subs    []func(Event)
	pending []Event
}

// NewSession returns a Session ready to start its first round
func NewSession(p SessionParams) (*Session, error) {

	classifier, err := pose.NewClassifier(p.Classifier)

	if err != nil {
		return nil, err
	}

	matches, err := tracker.NewMatchTracker(p.Match)

	if err != nil {
		return nil, err
	}

	round, err := NewRoundController(p.Round, p.Selector)

	if err != nil {
		return nil, err
	}

	s := &Session{
		id:            uuid.New(),
		autoCalibrate: p.AutoCalibrate,
		base:          classifier,
		classifier:    classifier,
		matches:       matches,
		round:         round,
	}

	if p.Smoothing != nil {
		s.smoother, err = tracker.NewSmoother(*p.Smoothing)

		if err != nil {
			return nil, err
		}
	}

	round.OnRoundEnd(func(st RoundState) {
		Logf("session %s: round ended with score %d", s.id, st.Score)
		s.pending = append(s.pending, Event{Type: EventRoundEnd, State: st})
	})

	return s, nil
}

// ID returns the unique session identifier
func (s *Session) ID() string {
	return s.id.String()
}

// Subscribe registers fn to receive round events.  Events are delivered after
// the Session lock is released so fn may call back into the Session.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = append(s.subs, fn)
}

// OnScore registers fn to be called with each scoring match
func (s *Session) OnScore(fn func(tracker.MatchEvent, RoundState)) {
	s.Subscribe(func(ev Event) {
		if ev.Type == EventScore && ev.Match != nil {
			fn(*ev.Match, ev.State)
		}
	})
}

// OnRoundEnd registers fn to be called when a round runs out of time
func (s *Session) OnRoundEnd(fn func(RoundState)) {
	s.Subscribe(func(ev Event) {
		if ev.Type == EventRoundEnd {
			fn(ev.State)
		}
	})
}

// unlock releases the Session lock and delivers queued events
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	for _, ev := range pending {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// ProcessFrame classifies a frame and, while a round is running, advances the
// round clock to the frame timestamp and scores any confirmed match of the
// target pose
func (s *Session) ProcessFrame(f pose.Frame) FrameResult {
	s.mu.Lock()
	defer s.unlock()

	if s.smoother != nil {
		f = s.smoother.Smooth(f)
	}

	s.lastFrame = f
	s.haveFrame = true
	s.matched = s.classifier.Classify(f)

	res := FrameResult{Matched: s.matched}

	if s.round.Status() == Running {
		s.track(f, &res)
	}

	res.State = s.round.State()

	return res
}

// track feeds the classification of the target pose to the match tracker and
// forwards a confirmed match to the round.  A pose only builds up a hold once
// it is the target, so at most one match scores per frame.
func (s *Session) track(f pose.Frame, res *FrameResult) {

	ended, err := s.round.Tick(f.Timestamp)

	if err != nil || ended {
		return
	}

	target := s.round.Target()
	ev, ok := s.matches.Observe(target, s.matched.Has(target), f.Timestamp)

	if !ok {
		return
	}

	res.Events = append(res.Events, ev)

	points, err := s.round.OnMatch(ev, f.Timestamp)

	if err != nil {
		Logf("session %s: dropped %v match: %v", s.id, ev.Pose, err)
		return
	}

	if points == 0 {
		return
	}

	// the next target starts without hold or cooldown from earlier rounds
	s.matches.Clear(s.round.Target())

	res.Awarded += points
	match := ev

	Logf("session %s: %v held for %v, score %d", s.id, ev.Pose, ev.Held, s.round.Score())
	s.pending = append(s.pending, Event{Type: EventScore, Match: &match, State: s.round.State()})
}

// Tick advances the round clock to now
func (s *Session) Tick(now time.Time) error {
	s.mu.Lock()
	defer s.unlock()

	_, err := s.round.Tick(now)

	return err
}

// Start begins a new round at now.  Match tracking and smoothing start afresh
// and, with AutoCalibrate, the last frame is used as the standing posture.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.unlock()

	if err := s.round.Start(now); err != nil {
		return err
	}

	s.matches.Reset()

	if s.smoother != nil {
		s.smoother.Reset()
	}

	if s.autoCalibrate && s.haveFrame {
		if !s.calibrate(s.lastFrame) {
			Logf("session %s: could not calibrate from last frame", s.id)
		}
	}

	Logf("session %s: round started, target %v", s.id, s.round.Target())
	s.pending = append(s.pending, Event{Type: EventRoundStart, State: s.round.State()})

	return nil
}

// Reset abandons any round in progress and returns to NotStarted.  A standing
// calibration is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.unlock()

	s.round.Reset()
	s.matches.Reset()

	if s.smoother != nil {
		s.smoother.Reset()
	}

	Logf("session %s: round reset", s.id)
	s.pending = append(s.pending, Event{Type: EventRoundReset, State: s.round.State()})
}

// Calibrate uses f as the player's standing posture for squat detection and
// reports whether the frame was usable
func (s *Session) Calibrate(f pose.Frame) bool {
	s.mu.Lock()
	defer s.unlock()

	return s.calibrate(f)
}

// CalibrateLast calibrates from the most recently processed frame
func (s *Session) CalibrateLast() bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.haveFrame {
		return false
	}

	return s.calibrate(s.lastFrame)
}

func (s *Session) calibrate(f pose.Frame) bool {

	cal, ok := pose.Calibrate(f, s.base.Params().MinScore)

	if !ok {
		return false
	}

	s.classifier = s.base.WithCalibration(cal)
	Logf("session %s: calibrated hip height %.1f torso %.1f", s.id, cal.HipY, cal.Torso)

	return true
}

// State returns the current round state
func (s *Session) State() RoundState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.round.State()
}

// Snapshot returns the state needed to render the game
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.round.State()

	snap := Snapshot{
		SessionID:        s.id.String(),
		Round:            st,
		RemainingSeconds: st.Remaining.Seconds(),
		Matched:          s.matched,
		Calibrated:       s.classifier.Calibrated(),
		HoldThreshold:    s.matches.Params().HoldThreshold,
	}

	if st.Status == Running && s.haveFrame {
		snap.Hold, _ = s.matches.Holding(st.Target, s.lastFrame.Timestamp)
	}

	return snap
}
