// Package game runs a timed pose matching round: it converts confirmed pose
// matches into score and drives the round from start to its end.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/swdee/go-posegame/pose"
	"github.com/swdee/go-posegame/tracker"
)

var (
	// ErrInvalidParams is returned when round parameters are out of range
	ErrInvalidParams = errors.New("invalid round params")
	// ErrRoundNotStarted is returned when a round operation is used before
	// Start
	ErrRoundNotStarted = errors.New("round not started")
	// ErrRoundEnded is returned when a match arrives after the round ended
	ErrRoundEnded = errors.New("round has ended")
	// ErrRoundRunning is returned when starting a round that is in progress
	ErrRoundRunning = errors.New("round already running")
)

// Status is the lifecycle stage of a round
type Status int

const (
	NotStarted Status = iota
	Running
	Ended
)

var statusNames = [...]string{
	NotStarted: "not_started",
	Running:    "running",
	Ended:      "ended",
}

func (s Status) String() string {
	if s < NotStarted || s > Ended {
		return fmt.Sprintf("Status(%d)", int(s))
	}

	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}

	return fmt.Errorf("unknown round status %q", text)
}

// RoundParams defines the length and scoring of a round
type RoundParams struct {
	// Duration is the length of a round
	Duration time.Duration
	// Points are awarded for each confirmed match of the target pose
	Points int
}

// DefaultRoundParams returns RoundParams configured with
// - Duration: 60s
// - Points: 10
func DefaultRoundParams() RoundParams {
	return RoundParams{
		Duration: 60 * time.Second,
		Points:   10,
	}
}

// Validate checks the parameters are usable
func (p RoundParams) Validate() error {

	if p.Duration <= 0 {
		return fmt.Errorf("%w: duration %v must be positive", ErrInvalidParams, p.Duration)
	}

	if p.Points <= 0 {
		return fmt.Errorf("%w: points %d must be positive", ErrInvalidParams, p.Points)
	}

	return nil
}

// RoundState is the observable state of a round
type RoundState struct {
	Status Status `json:"status"`
	// Target is the pose the player must perform to score
	Target pose.Kind `json:"target"`
	Score  int       `json:"score"`
	// Remaining is the time left in the round
	Remaining time.Duration `json:"remaining"`
	// StartedAt is when the round was started, zero before the first Start
	StartedAt time.Time `json:"started_at"`
}

// RoundController owns the RoundState of a game session.  It is not safe for
// concurrent use, callers driving it from several goroutines must serialize
// access, see Session.
type RoundController struct {
	params   RoundParams
	selector TargetSelector
	state    RoundState
	onEnd    []func(RoundState)
}

// NewRoundController returns a RoundController in the NotStarted state.  A nil
// selector cycles through the poses in a fixed order.
func NewRoundController(p RoundParams, sel TargetSelector) (*RoundController, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if sel == nil {
		sel = CycleSelector{}
	}

	rc := &RoundController{
		params:   p,
		selector: sel,
	}

	rc.Reset()

	return rc, nil
}

// OnRoundEnd registers fn to be called once each time a round runs out of
// time
func (rc *RoundController) OnRoundEnd(fn func(RoundState)) {
	rc.onEnd = append(rc.onEnd, fn)
}

// Start begins a new round at now
func (rc *RoundController) Start(now time.Time) error {

	if rc.state.Status == Running {
		return ErrRoundRunning
	}

	rc.state = RoundState{
		Status:    Running,
		Target:    rc.selector.First(),
		Score:     0,
		Remaining: rc.params.Duration,
		StartedAt: now,
	}

	return nil
}

// Tick advances the round clock to now and reports whether this call ended
// the round.  Ticking an ended round is a no-op.
func (rc *RoundController) Tick(now time.Time) (bool, error) {

	switch rc.state.Status {
	case NotStarted:
		return false, ErrRoundNotStarted
	case Ended:
		return false, nil
	}

	remaining := rc.params.Duration - now.Sub(rc.state.StartedAt)

	if remaining < 0 {
		remaining = 0
	}

	// time remaining never goes back up, even if now steps backwards
	if remaining < rc.state.Remaining {
		rc.state.Remaining = remaining
	}

	if rc.state.Remaining > 0 {
		return false, nil
	}

	rc.state.Status = Ended

	for _, fn := range rc.onEnd {
		fn(rc.state)
	}

	return true, nil
}

// OnMatch scores a confirmed match if it is for the current target pose and
// returns the points awarded.  The round clock is advanced to now first so a
// match arriving after time is up is rejected with ErrRoundEnded.
func (rc *RoundController) OnMatch(ev tracker.MatchEvent, now time.Time) (int, error) {

	if _, err := rc.Tick(now); err != nil {
		return 0, err
	}

	if rc.state.Status == Ended {
		return 0, ErrRoundEnded
	}

	if ev.Pose != rc.state.Target {
		return 0, nil
	}

	rc.state.Score += rc.params.Points
	rc.state.Target = rc.selector.Next(rc.state.Target)

	return rc.params.Points, nil
}

// Reset returns the round to NotStarted clearing score and timer.  The target
// is chosen again by Start.
func (rc *RoundController) Reset() {
	rc.state = RoundState{
		Status:    NotStarted,
		Target:    pose.Kinds[0],
		Remaining: rc.params.Duration,
	}
}

// State returns a copy of the round state
func (rc *RoundController) State() RoundState {
	return rc.state
}

// Status returns the round lifecycle stage
func (rc *RoundController) Status() Status {
	return rc.state.Status
}

// Score returns the points scored this round
func (rc *RoundController) Score() int {
	return rc.state.Score
}

// Target returns the pose the player must currently perform
func (rc *RoundController) Target() pose.Kind {
	return rc.state.Target
}

// Remaining returns the time left in the round
func (rc *RoundController) Remaining() time.Duration {
	return rc.state.Remaining
}

// Params returns the round parameters
func (rc *RoundController) Params() RoundParams {
	return rc.params
}
