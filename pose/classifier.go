package pose

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidParams is returned when classifier parameters are out of range
var ErrInvalidParams = errors.New("invalid classifier params")

// minBodyScale is the smallest shoulder or hip width treated as a real body,
// anything smaller means the joints are coincident
const minBodyScale = 1e-6

// Params defines the thresholds used to classify poses.  Margins and
// tolerances are multiples of a body scale reference (shoulder or hip width)
// so classification does not depend on the player's distance from the camera.
type Params struct {
	// MinScore is the minimum keypoint confidence for a joint to be used
	MinScore float64
	// HandsUpMargin is how far, in shoulder widths, both wrists must be above
	// the higher shoulder
	HandsUpMargin float64
	// TPoseVerticalTolerance is the maximum vertical distance, in shoulder
	// widths, between each wrist and its shoulder
	TPoseVerticalTolerance float64
	// TPoseMinExtension is the minimum horizontal distance, in shoulder
	// widths, between each wrist and its shoulder
	TPoseMinExtension float64
	// SquatKneeMargin is the maximum distance, in hip widths, that the knees
	// may sit below the hips
	SquatKneeMargin float64
	// SquatMaxKneeAngle is the largest hip-knee-ankle angle in degrees
	// counted as a bent knee when no standing calibration is available
	SquatMaxKneeAngle float64
	// SquatMinDrop is the minimum drop of the hip centre, in calibrated torso
	// lengths, below its standing height
	SquatMinDrop float64
}

// DefaultParams returns an instance of Params configured with default values
// - Min Score: 0.3
// - Hands Up Margin: 0.5
// - T-Pose Vertical Tolerance: 0.35
// - T-Pose Min Extension: 0.8
// - Squat Knee Margin: 0.6
// - Squat Max Knee Angle: 120
// - Squat Min Drop: 0.25
func DefaultParams() Params {
	return Params{
		MinScore:               0.3,
		HandsUpMargin:          0.5,
		TPoseVerticalTolerance: 0.35,
		TPoseMinExtension:      0.8,
		SquatKneeMargin:        0.6,
		SquatMaxKneeAngle:      120,
		SquatMinDrop:           0.25,
	}
}

// Validate checks the parameters are usable
func (p Params) Validate() error {

	if !finite(p.MinScore) || p.MinScore < 0 || p.MinScore > 1 {
		return fmt.Errorf("%w: min score %v not in [0,1]", ErrInvalidParams, p.MinScore)
	}

	fields := []struct {
		name string
		val  float64
	}{
		{"hands up margin", p.HandsUpMargin},
		{"t-pose vertical tolerance", p.TPoseVerticalTolerance},
		{"t-pose min extension", p.TPoseMinExtension},
		{"squat knee margin", p.SquatKneeMargin},
		{"squat min drop", p.SquatMinDrop},
	}

	for _, f := range fields {
		if !finite(f.val) || f.val < 0 {
			return fmt.Errorf("%w: %s %v must be a non-negative number",
				ErrInvalidParams, f.name, f.val)
		}
	}

	if !finite(p.SquatMaxKneeAngle) || p.SquatMaxKneeAngle <= 0 || p.SquatMaxKneeAngle > 180 {
		return fmt.Errorf("%w: squat max knee angle %v not in (0,180]",
			ErrInvalidParams, p.SquatMaxKneeAngle)
	}

	return nil
}

// Classifier decides which poses a Frame satisfies.  It holds no state
// between calls and is safe for concurrent use.
type Classifier struct {
	params      Params
	calibration *Calibration
}

// NewClassifier returns a Classifier using the given parameters
func NewClassifier(p Params) (*Classifier, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Classifier{params: p}, nil
}

// Params returns the classifier thresholds
func (c *Classifier) Params() Params {
	return c.params
}

// WithCalibration returns a copy of the classifier that judges squats against
// the given standing calibration
func (c *Classifier) WithCalibration(cal Calibration) *Classifier {
	return &Classifier{
		params:      c.params,
		calibration: &cal,
	}
}

// Calibrated reports whether a standing calibration is in use
func (c *Classifier) Calibrated() bool {
	return c.calibration != nil
}

// Classify returns the set of poses the frame currently satisfies
func (c *Classifier) Classify(f Frame) Set {
	var s Set

	for _, k := range Kinds {
		if c.Matches(f, k) {
			s = s.Add(k)
		}
	}

	return s
}

// Matches reports whether the frame satisfies pose k
func (c *Classifier) Matches(f Frame, k Kind) bool {
	switch k {
	case HandsUp:
		return c.handsUp(f)
	case TPose:
		return c.tPose(f)
	case Squat:
		return c.squat(f)
	default:
		return false
	}
}

// handsUp checks both wrists are raised above the shoulders and the nose
func (c *Classifier) handsUp(f Frame) bool {

	pts, ok := c.points(f, Nose, LeftShoulder, RightShoulder, LeftWrist, RightWrist)

	if !ok {
		return false
	}

	sw := dist(pts[1], pts[2])

	if sw < minBodyScale {
		return false
	}

	// y grows downward so the higher shoulder has the smaller y
	limit := math.Min(pts[1].Y, pts[2].Y) - c.params.HandsUpMargin*sw
	nose := pts[0].Y

	for _, wrist := range pts[3:] {
		if wrist.Y > limit || wrist.Y >= nose {
			return false
		}
	}

	return true
}

// tPose checks both arms are held out level with their shoulders
func (c *Classifier) tPose(f Frame) bool {

	pts, ok := c.points(f, LeftShoulder, RightShoulder, LeftWrist, RightWrist)

	if !ok {
		return false
	}

	sw := dist(pts[0], pts[1])

	if sw < minBodyScale {
		return false
	}

	band := c.params.TPoseVerticalTolerance * sw
	reach := c.params.TPoseMinExtension * sw

	for i := 0; i < 2; i++ {
		shoulder, wrist := pts[i], pts[i+2]

		if math.Abs(wrist.Y-shoulder.Y) > band {
			return false
		}

		if math.Abs(wrist.X-shoulder.X) < reach {
			return false
		}
	}

	return true
}

// squat checks the knees are near hip height and the hips have dropped, either
// against the standing calibration or by the bend of the knees
func (c *Classifier) squat(f Frame) bool {

	pts, ok := c.points(f, LeftHip, RightHip, LeftKnee, RightKnee)

	if !ok {
		return false
	}

	hw := dist(pts[0], pts[1])

	if hw < minBodyScale {
		return false
	}

	margin := c.params.SquatKneeMargin * hw

	for i := 0; i < 2; i++ {
		if pts[i+2].Y-pts[i].Y >= margin {
			return false
		}
	}

	if c.calibration != nil {
		hipY := (pts[0].Y + pts[1].Y) / 2
		return hipY-c.calibration.HipY >= c.params.SquatMinDrop*c.calibration.Torso
	}

	ankles, ok := c.points(f, LeftAnkle, RightAnkle)

	if !ok {
		return false
	}

	for i := 0; i < 2; i++ {
		angle, ok := jointAngle(pts[i], pts[i+2], ankles[i])

		if !ok || angle > c.params.SquatMaxKneeAngle {
			return false
		}
	}

	return true
}

// points returns the requested joints in order, or false if any of them is
// missing or below the confidence threshold
func (c *Classifier) points(f Frame, joints ...Joint) ([]r2.Vec, bool) {

	pts := make([]r2.Vec, len(joints))

	for i, j := range joints {
		kp, ok := f.Point(j, c.params.MinScore)

		if !ok {
			return nil, false
		}

		pts[i] = r2.Vec{X: kp.X, Y: kp.Y}
	}

	return pts, true
}

// dist returns the euclidean distance between two points
func dist(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// jointAngle returns the angle in degrees at vertex b formed by the points a
// and c.  It returns false when either limb has zero length.
func jointAngle(a, b, c r2.Vec) (float64, bool) {

	ba := r2.Sub(a, b)
	bc := r2.Sub(c, b)

	if r2.Norm(ba) < minBodyScale || r2.Norm(bc) < minBodyScale {
		return 0, false
	}

	cos := math.Max(-1, math.Min(1, r2.Cos(ba, bc)))

	return math.Acos(cos) * 180 / math.Pi, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
