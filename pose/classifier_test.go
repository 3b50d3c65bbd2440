package pose

import (
	"errors"
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// standingPoints is a person standing upright with arms relaxed, shoulder
// width 100px and hip width 60px
func standingPoints() map[Joint]KeyPoint {
	return map[Joint]KeyPoint{
		Nose:          {X: 300, Y: 100, Score: 0.9},
		LeftEye:       {X: 310, Y: 90, Score: 0.9},
		RightEye:      {X: 290, Y: 90, Score: 0.9},
		LeftShoulder:  {X: 350, Y: 200, Score: 0.9},
		RightShoulder: {X: 250, Y: 200, Score: 0.9},
		LeftElbow:     {X: 360, Y: 300, Score: 0.9},
		RightElbow:    {X: 240, Y: 300, Score: 0.9},
		LeftWrist:     {X: 360, Y: 380, Score: 0.9},
		RightWrist:    {X: 240, Y: 380, Score: 0.9},
		LeftHip:       {X: 330, Y: 400, Score: 0.9},
		RightHip:      {X: 270, Y: 400, Score: 0.9},
		LeftKnee:      {X: 330, Y: 550, Score: 0.9},
		RightKnee:     {X: 270, Y: 550, Score: 0.9},
		LeftAnkle:     {X: 330, Y: 700, Score: 0.9},
		RightAnkle:    {X: 270, Y: 700, Score: 0.9},
	}
}

func standingFrame() Frame {
	return Frame{Timestamp: epoch, Points: standingPoints()}
}

func handsUpFrame() Frame {
	pts := standingPoints()
	pts[LeftElbow] = KeyPoint{X: 370, Y: 120, Score: 0.8}
	pts[RightElbow] = KeyPoint{X: 230, Y: 120, Score: 0.8}
	pts[LeftWrist] = KeyPoint{X: 360, Y: 50, Score: 0.8}
	pts[RightWrist] = KeyPoint{X: 240, Y: 50, Score: 0.8}
	return Frame{Timestamp: epoch, Points: pts}
}

func tPoseFrame() Frame {
	pts := standingPoints()
	pts[LeftElbow] = KeyPoint{X: 410, Y: 202, Score: 0.8}
	pts[RightElbow] = KeyPoint{X: 190, Y: 204, Score: 0.8}
	pts[LeftWrist] = KeyPoint{X: 470, Y: 205, Score: 0.8}
	pts[RightWrist] = KeyPoint{X: 130, Y: 210, Score: 0.8}
	return Frame{Timestamp: epoch, Points: pts}
}

func squatFrame() Frame {
	pts := standingPoints()
	for _, j := range []Joint{Nose, LeftEye, RightEye, LeftShoulder, RightShoulder,
		LeftElbow, RightElbow, LeftWrist, RightWrist} {
		kp := pts[j]
		kp.Y += 100
		pts[j] = kp
	}
	pts[LeftHip] = KeyPoint{X: 330, Y: 500, Score: 0.8}
	pts[RightHip] = KeyPoint{X: 270, Y: 500, Score: 0.8}
	pts[LeftKnee] = KeyPoint{X: 380, Y: 505, Score: 0.8}
	pts[RightKnee] = KeyPoint{X: 220, Y: 505, Score: 0.8}
	pts[LeftAnkle] = KeyPoint{X: 330, Y: 640, Score: 0.8}
	pts[RightAnkle] = KeyPoint{X: 270, Y: 640, Score: 0.8}
	return Frame{Timestamp: epoch, Points: pts}
}

// transform scales and translates every keypoint of the frame
func transform(f Frame, scale, dx, dy float64) Frame {
	pts := make(map[Joint]KeyPoint, len(f.Points))
	for j, kp := range f.Points {
		pts[j] = KeyPoint{X: kp.X*scale + dx, Y: kp.Y*scale + dy, Score: kp.Score}
	}
	return Frame{Timestamp: f.Timestamp, Points: pts}
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultParams())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestClassifyPoses(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name  string
		frame Frame
		want  Set
	}{
		{"standing", standingFrame(), SetOf()},
		{"hands up", handsUpFrame(), SetOf(HandsUp)},
		{"t-pose", tPoseFrame(), SetOf(TPose)},
		{"squat", squatFrame(), SetOf(Squat)},
		{"no person", EmptyFrame(epoch), SetOf()},
	}

	for _, tc := range tests {
		if got := c.Classify(tc.frame); got != tc.want {
			t.Errorf("%s: Classify = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestClassifyMissingOrLowConfidenceJoint(t *testing.T) {
	c := newTestClassifier(t)

	required := []struct {
		kind   Kind
		frame  func() Frame
		joints []Joint
	}{
		{HandsUp, handsUpFrame, []Joint{Nose, LeftShoulder, RightShoulder, LeftWrist, RightWrist}},
		{TPose, tPoseFrame, []Joint{LeftShoulder, RightShoulder, LeftWrist, RightWrist}},
		{Squat, squatFrame, []Joint{LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle}},
	}

	for _, r := range required {
		if !c.Matches(r.frame(), r.kind) {
			t.Fatalf("%v fixture does not match", r.kind)
		}

		for _, j := range r.joints {
			f := r.frame()
			delete(f.Points, j)

			if c.Matches(f, r.kind) {
				t.Errorf("%v matched with %v missing", r.kind, j)
			}

			f = r.frame()
			kp := f.Points[j]
			kp.Score = 0.29
			f.Points[j] = kp

			if c.Matches(f, r.kind) {
				t.Errorf("%v matched with %v below confidence threshold", r.kind, j)
			}

			f = r.frame()
			kp = f.Points[j]
			kp.X = math.NaN()
			f.Points[j] = kp

			if c.Matches(f, r.kind) {
				t.Errorf("%v matched with %v at NaN position", r.kind, j)
			}
		}
	}
}

func TestClassifyScaleAndTranslationInvariant(t *testing.T) {
	c := newTestClassifier(t)

	frames := map[string]Frame{
		"standing": standingFrame(),
		"hands up": handsUpFrame(),
		"t-pose":   tPoseFrame(),
		"squat":    squatFrame(),
	}

	transforms := []struct{ scale, dx, dy float64 }{
		{0.25, 0, 0},
		{0.5, 40, -30},
		{2, -500, 120},
		{3.7, 1000, 1000},
		{1, -300, -100},
	}

	for name, f := range frames {
		want := c.Classify(f)

		for _, tr := range transforms {
			got := c.Classify(transform(f, tr.scale, tr.dx, tr.dy))

			if got != want {
				t.Errorf("%s scaled %v moved (%v,%v): got %v, want %v",
					name, tr.scale, tr.dx, tr.dy, got, want)
			}
		}
	}
}

func TestClassifyRuleClauses(t *testing.T) {
	c := newTestClassifier(t)

	// wrists clear the shoulder margin but stay below the nose
	handsBelowNose := handsUpFrame()
	handsBelowNose.Points[Nose] = KeyPoint{X: 300, Y: 100, Score: 0.9}
	handsBelowNose.Points[LeftWrist] = KeyPoint{X: 360, Y: 120, Score: 0.8}
	handsBelowNose.Points[RightWrist] = KeyPoint{X: 240, Y: 120, Score: 0.8}

	// wrists exactly the margin above the shoulders with the head tilted down
	handsAtMargin := handsUpFrame()
	handsAtMargin.Points[Nose] = KeyPoint{X: 300, Y: 160, Score: 0.9}
	handsAtMargin.Points[LeftWrist] = KeyPoint{X: 360, Y: 150, Score: 0.8}
	handsAtMargin.Points[RightWrist] = KeyPoint{X: 240, Y: 150, Score: 0.8}

	handsUnderMargin := handsUpFrame()
	handsUnderMargin.Points[Nose] = KeyPoint{X: 300, Y: 160, Score: 0.9}
	handsUnderMargin.Points[LeftWrist] = KeyPoint{X: 360, Y: 151, Score: 0.8}
	handsUnderMargin.Points[RightWrist] = KeyPoint{X: 240, Y: 150, Score: 0.8}

	// wrists level with the shoulders but not reaching out far enough
	armsShort := tPoseFrame()
	armsShort.Points[LeftWrist] = KeyPoint{X: 420, Y: 205, Score: 0.8}
	armsShort.Points[RightWrist] = KeyPoint{X: 180, Y: 195, Score: 0.8}

	// one arm reaches out but hangs below the band
	armLow := tPoseFrame()
	armLow.Points[RightWrist] = KeyPoint{X: 130, Y: 240, Score: 0.8}

	// knees at hip height with straight legs
	straightLegs := squatFrame()
	straightLegs.Points[LeftAnkle] = KeyPoint{X: 430, Y: 510, Score: 0.8}
	straightLegs.Points[RightAnkle] = KeyPoint{X: 170, Y: 510, Score: 0.8}

	// one knee well below the hips
	kneeLow := squatFrame()
	kneeLow.Points[RightKnee] = KeyPoint{X: 220, Y: 540, Score: 0.8}

	tests := []struct {
		name  string
		frame Frame
		kind  Kind
		want  bool
	}{
		{"hands below nose", handsBelowNose, HandsUp, false},
		{"hands at margin", handsAtMargin, HandsUp, true},
		{"hands under margin", handsUnderMargin, HandsUp, false},
		{"arms not extended", armsShort, TPose, false},
		{"arm below band", armLow, TPose, false},
		{"straight legs", straightLegs, Squat, false},
		{"knee below hips", kneeLow, Squat, false},
	}

	for _, tc := range tests {
		if got := c.Matches(tc.frame, tc.kind); got != tc.want {
			t.Errorf("%s: Matches(%v) = %v, want %v", tc.name, tc.kind, got, tc.want)
		}
	}
}

func TestClassifyDegenerateBody(t *testing.T) {
	c := newTestClassifier(t)

	// every joint collapsed onto a single point
	f := transform(tPoseFrame(), 0, 10, 10)

	if got := c.Classify(f); got != SetOf() {
		t.Errorf("collapsed body classified as %v", got)
	}
}

func TestClassifyCalibratedSquat(t *testing.T) {
	c := newTestClassifier(t)

	cal, ok := Calibrate(standingFrame(), c.Params().MinScore)

	if !ok {
		t.Fatal("Calibrate failed on standing frame")
	}

	if cal.HipY != 400 || cal.Torso != 200 {
		t.Errorf("calibration %+v, want HipY 400 Torso 200", cal)
	}

	cc := c.WithCalibration(cal)

	if !cc.Calibrated() || c.Calibrated() {
		t.Error("WithCalibration should return a calibrated copy")
	}

	// ankles are not needed once calibrated
	f := squatFrame()
	delete(f.Points, LeftAnkle)
	delete(f.Points, RightAnkle)

	if !cc.Matches(f, Squat) {
		t.Error("calibrated squat not matched without ankles")
	}

	if c.Matches(f, Squat) {
		t.Error("uncalibrated squat matched without ankles")
	}

	// knees raised to hip height without the hips dropping
	f = standingFrame()
	f.Points[LeftKnee] = KeyPoint{X: 380, Y: 405, Score: 0.9}
	f.Points[RightKnee] = KeyPoint{X: 220, Y: 405, Score: 0.9}

	if cc.Matches(f, Squat) {
		t.Error("calibrated squat matched without a hip drop")
	}
}

func TestCalibrateMissingJoints(t *testing.T) {
	f := standingFrame()
	delete(f.Points, RightHip)

	if _, ok := Calibrate(f, 0.3); ok {
		t.Error("Calibrate succeeded without right hip")
	}

	if _, ok := Calibrate(EmptyFrame(epoch), 0.3); ok {
		t.Error("Calibrate succeeded on empty frame")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}

	bad := []func(*Params){
		func(p *Params) { p.MinScore = -0.1 },
		func(p *Params) { p.MinScore = 1.5 },
		func(p *Params) { p.HandsUpMargin = -1 },
		func(p *Params) { p.TPoseVerticalTolerance = math.NaN() },
		func(p *Params) { p.TPoseMinExtension = math.Inf(1) },
		func(p *Params) { p.SquatKneeMargin = -0.2 },
		func(p *Params) { p.SquatMaxKneeAngle = 0 },
		func(p *Params) { p.SquatMaxKneeAngle = 181 },
		func(p *Params) { p.SquatMinDrop = -1 },
	}

	for i, mutate := range bad {
		p := DefaultParams()
		mutate(&p)

		_, err := NewClassifier(p)

		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("case %d: err %v, want ErrInvalidParams", i, err)
		}
	}
}

func TestJointAngle(t *testing.T) {
	c := newTestClassifier(t)
	pts, _ := c.points(standingFrame(), LeftHip, LeftKnee, LeftAnkle)

	angle, ok := jointAngle(pts[0], pts[1], pts[2])

	if !ok || math.Abs(angle-180) > 1e-9 {
		t.Errorf("straight leg angle %v (%v), want 180", angle, ok)
	}

	if _, ok := jointAngle(pts[1], pts[1], pts[2]); ok {
		t.Error("zero length limb should not produce an angle")
	}
}
