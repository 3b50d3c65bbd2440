package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-posegame/pose"
)

// bodyFrame returns a frame with shoulders 100px apart and the left wrist at
// the given position
func bodyFrame(ts time.Time, wristX, wristY float64) pose.Frame {
	return pose.Frame{
		Timestamp: ts,
		Points: map[pose.Joint]pose.KeyPoint{
			pose.LeftShoulder:  {X: 350, Y: 200, Score: 0.9},
			pose.RightShoulder: {X: 250, Y: 200, Score: 0.9},
			pose.LeftWrist:     {X: wristX, Y: wristY, Score: 0.7},
		},
	}
}

func newTestSmoother(t *testing.T) *Smoother {
	t.Helper()
	s, err := NewSmoother(DefaultSmootherParams())
	require.NoError(t, err)
	return s
}

func TestSmootherFirstFramePassesThrough(t *testing.T) {
	s := newTestSmoother(t)

	in := bodyFrame(at(0), 400, 300)
	out := s.Smooth(in)

	assert.Equal(t, in.Points, out.Points)
	assert.Equal(t, in.Timestamp, out.Timestamp)
}

func TestSmootherStationaryJointStaysPut(t *testing.T) {
	s := newTestSmoother(t)

	var out pose.Frame

	for i := 0; i < 10; i++ {
		out = s.Smooth(bodyFrame(at(i*33), 400, 300))
	}

	wrist := out.Points[pose.LeftWrist]
	assert.InDelta(t, 400, wrist.X, 1e-6)
	assert.InDelta(t, 300, wrist.Y, 1e-6)
	assert.Equal(t, 0.7, wrist.Score)
}

func TestSmootherDampsJump(t *testing.T) {
	s := newTestSmoother(t)

	for i := 0; i < 10; i++ {
		s.Smooth(bodyFrame(at(i*33), 400, 300))
	}

	in := bodyFrame(at(330), 440, 300)
	out := s.Smooth(in)

	wrist := out.Points[pose.LeftWrist]
	assert.Greater(t, wrist.X, 400.0)
	assert.Less(t, wrist.X, 440.0)
	assert.InDelta(t, 300, wrist.Y, 1e-6)

	// the input frame is never modified
	assert.Equal(t, 440.0, in.Points[pose.LeftWrist].X)
}

func TestSmootherKeepsMissingJointsMissing(t *testing.T) {
	s := newTestSmoother(t)

	s.Smooth(bodyFrame(at(0), 400, 300))

	f := bodyFrame(at(33), 400, 300)
	delete(f.Points, pose.LeftWrist)

	out := s.Smooth(f)

	_, ok := out.Points[pose.LeftWrist]
	assert.False(t, ok)
	assert.Len(t, out.Points, 2)

	assert.True(t, s.Smooth(pose.EmptyFrame(at(66))).Empty())
}

func TestSmootherRestartsAfterGap(t *testing.T) {
	s := newTestSmoother(t)

	for i := 0; i < 5; i++ {
		s.Smooth(bodyFrame(at(i*33), 400, 300))
	}

	// wrist reappears elsewhere after longer than MaxGap
	out := s.Smooth(bodyFrame(at(2000), 600, 100))

	wrist := out.Points[pose.LeftWrist]
	assert.Equal(t, 600.0, wrist.X)
	assert.Equal(t, 100.0, wrist.Y)
}

func TestSmootherWithoutBodyScale(t *testing.T) {
	s := newTestSmoother(t)

	f := pose.Frame{
		Timestamp: at(0),
		Points: map[pose.Joint]pose.KeyPoint{
			pose.Nose: {X: 10, Y: 20, Score: 0.9},
		},
	}

	assert.Equal(t, f.Points, s.Smooth(f).Points)
}

func TestSmootherParamsValidate(t *testing.T) {
	bad := []SmootherParams{
		{StdWeightPosition: 0, StdWeightVelocity: 0.1, MinScore: 0.3},
		{StdWeightPosition: 0.1, StdWeightVelocity: -1, MinScore: 0.3},
		{StdWeightPosition: 0.1, StdWeightVelocity: 0.1, MinScore: 2},
		{StdWeightPosition: 0.1, StdWeightVelocity: 0.1, MinScore: 0.3, MaxGap: -time.Second},
	}

	for _, p := range bad {
		_, err := NewSmoother(p)
		assert.ErrorIs(t, err, ErrInvalidParams)
	}
}
