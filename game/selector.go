package game

import (
	"math/rand"

	"github.com/swdee/go-posegame/pose"
)

// TargetSelector chooses the pose the player is asked to perform
type TargetSelector interface {
	// First returns the target pose at the start of a round
	First() pose.Kind
	// Next returns the target after cur has been scored, it never returns cur
	Next(cur pose.Kind) pose.Kind
}

// CycleSelector asks for the poses in the fixed order HandsUp, TPose, Squat
// and then starts over
type CycleSelector struct{}

// First returns HandsUp
func (CycleSelector) First() pose.Kind {
	return pose.Kinds[0]
}

// Next returns the pose following cur in cycle order
func (CycleSelector) Next(cur pose.Kind) pose.Kind {
	for i, k := range pose.Kinds {
		if k == cur {
			return pose.Kinds[(i+1)%len(pose.Kinds)]
		}
	}

	return pose.Kinds[0]
}

// RandomSelector picks the next pose uniformly from the poses other than the
// current one
type RandomSelector struct {
	rng *rand.Rand
}

// NewRandomSelector returns a RandomSelector drawing from rng
func NewRandomSelector(rng *rand.Rand) *RandomSelector {
	return &RandomSelector{rng: rng}
}

// First returns a uniformly chosen pose
func (s *RandomSelector) First() pose.Kind {
	return pose.Kinds[s.rng.Intn(len(pose.Kinds))]
}

// Next returns a uniformly chosen pose that is not cur
func (s *RandomSelector) Next(cur pose.Kind) pose.Kind {

	options := make([]pose.Kind, 0, len(pose.Kinds))

	for _, k := range pose.Kinds {
		if k != cur {
			options = append(options, k)
		}
	}

	return options[s.rng.Intn(len(options))]
}
