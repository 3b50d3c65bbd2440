// Package tracker follows poses and keypoints over time, debouncing pose
// matches into confirmed events and smoothing joint jitter.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/swdee/go-posegame/pose"
)

// ErrInvalidParams is returned when tracker parameters are out of range
var ErrInvalidParams = errors.New("invalid tracker params")

// MatchEvent is a confirmed pose match
type MatchEvent struct {
	// Pose is the pose that was held
	Pose pose.Kind `json:"pose"`
	// Timestamp is the time of the frame that confirmed the match
	Timestamp time.Time `json:"timestamp"`
	// Held is how long the pose was continuously held
	Held time.Duration `json:"held"`
}

// MatchParams defines the timing used to confirm a pose match
type MatchParams struct {
	// HoldThreshold is the minimum continuous time a pose must be detected
	// before it counts as a match
	HoldThreshold time.Duration
	// Cooldown is the minimum time after a confirmed match before the same
	// pose can be confirmed again
	Cooldown time.Duration
}

// DefaultMatchParams returns MatchParams configured with
// - Hold Threshold: 500ms
// - Cooldown: 1s
func DefaultMatchParams() MatchParams {
	return MatchParams{
		HoldThreshold: 500 * time.Millisecond,
		Cooldown:      time.Second,
	}
}

// Validate checks the parameters are usable
func (p MatchParams) Validate() error {

	if p.HoldThreshold < 0 {
		return fmt.Errorf("%w: hold threshold %v is negative", ErrInvalidParams, p.HoldThreshold)
	}

	if p.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown %v is negative", ErrInvalidParams, p.Cooldown)
	}

	return nil
}

// holdState is the debounce state of a single pose
type holdState struct {
	holding    bool
	holdStart  time.Time
	scored     bool
	lastScored time.Time
}

// MatchTracker turns per frame "pose is matching" signals into MatchEvents.
// A pose must be matched on every frame for HoldThreshold before an event is
// emitted, a single non matching frame restarts the hold.  It is not safe for
// concurrent use.
type MatchTracker struct {
	params MatchParams
	states [len(pose.Kinds)]holdState
}

// NewMatchTracker returns a MatchTracker using the given parameters
func NewMatchTracker(p MatchParams) (*MatchTracker, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &MatchTracker{params: p}, nil
}

// Params returns the tracker timing parameters
func (m *MatchTracker) Params() MatchParams {
	return m.params
}

// Observe records whether pose k is matching at time now and returns a
// MatchEvent when the hold is confirmed
func (m *MatchTracker) Observe(k pose.Kind, matching bool, now time.Time) (MatchEvent, bool) {

	if !k.Valid() {
		return MatchEvent{}, false
	}

	st := &m.states[k]

	if !matching {
		st.holding = false
		return MatchEvent{}, false
	}

	// start a new hold, also when the clock has stepped back past the start
	if !st.holding || now.Before(st.holdStart) {
		st.holding = true
		st.holdStart = now
		return MatchEvent{}, false
	}

	held := now.Sub(st.holdStart)

	if held < m.params.HoldThreshold {
		return MatchEvent{}, false
	}

	if st.scored && now.Sub(st.lastScored) < m.params.Cooldown {
		return MatchEvent{}, false
	}

	st.scored = true
	st.lastScored = now
	st.holding = false

	return MatchEvent{
		Pose:      k,
		Timestamp: now,
		Held:      held,
	}, true
}

// Holding returns how long pose k has been held as of now
func (m *MatchTracker) Holding(k pose.Kind, now time.Time) (time.Duration, bool) {

	if !k.Valid() || !m.states[k].holding {
		return 0, false
	}

	held := now.Sub(m.states[k].holdStart)

	if held < 0 {
		held = 0
	}

	return held, true
}

// Clear forgets the hold and cooldown state of pose k
func (m *MatchTracker) Clear(k pose.Kind) {
	if k.Valid() {
		m.states[k] = holdState{}
	}
}

// Reset clears all hold and cooldown state
func (m *MatchTracker) Reset() {
	m.states = [len(pose.Kinds)]holdState{}
}
