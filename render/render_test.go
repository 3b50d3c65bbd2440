package render

import (
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/pose"
)

// blank returns a black BGR image
func blank(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
}

// lit reports whether the BGR pixel at x,y is not black
func lit(img gocv.Mat, x, y int) bool {
	v := img.GetVecbAt(y, x)
	return v[0] != 0 || v[1] != 0 || v[2] != 0
}

func TestLabel(t *testing.T) {
	tests := map[pose.Kind]string{
		pose.HandsUp: "HANDS UP",
		pose.TPose:   "T POSE",
		pose.Squat:   "SQUAT",
	}

	for k, want := range tests {
		if got := Label(k); got != want {
			t.Errorf("Label(%v) = %q, want %q", k, got, want)
		}
	}
}

func TestSkeleton(t *testing.T) {
	img := blank(200, 200)
	defer img.Close()

	f := pose.Frame{
		Timestamp: time.Now(),
		Points: map[pose.Joint]pose.KeyPoint{
			pose.LeftShoulder:  {X: 150, Y: 50, Score: 0.9},
			pose.RightShoulder: {X: 50, Y: 50, Score: 0.9},
			// below the score threshold so neither joint nor limb is drawn
			pose.LeftElbow: {X: 150, Y: 150, Score: 0.1},
		},
	}

	Skeleton(&img, f, 0.3, 2)

	if !lit(img, 100, 50) {
		t.Error("shoulder limb not drawn")
	}

	if !lit(img, 50, 50) || !lit(img, 150, 50) {
		t.Error("shoulder joints not drawn")
	}

	if lit(img, 150, 150) || lit(img, 150, 100) {
		t.Error("low confidence elbow was drawn")
	}
}

func TestHUDDraw(t *testing.T) {
	hud, err := NewHUD()

	if err != nil {
		t.Fatalf("NewHUD: %v", err)
	}

	defer hud.Banner.Close()

	snaps := []game.Snapshot{
		{Round: game.RoundState{Status: game.NotStarted, Target: pose.HandsUp, Remaining: time.Minute},
			RemainingSeconds: 60},
		{Round: game.RoundState{Status: game.Running, Target: pose.TPose, Score: 20},
			RemainingSeconds: 5.5, Matched: pose.SetOf(pose.TPose), Calibrated: true,
			Hold: 250 * time.Millisecond, HoldThreshold: 500 * time.Millisecond},
		{Round: game.RoundState{Status: game.Ended, Target: pose.Squat, Score: 30}},
	}

	for _, snap := range snaps {
		img := blank(240, 320)

		if err := hud.Draw(&img, snap); err != nil {
			t.Errorf("%v: Draw: %v", snap.Round.Status, err)
		}

		if snap.Round.Status == game.Running {
			// half the hold bar is filled
			y := hud.BarHeight + hud.ProgressHeight/2
			v := img.GetVecbAt(y, 80)

			if v[1] != Green.G || v[2] != Green.R {
				t.Errorf("progress bar at 25%% width is %v, want green", v)
			}

			v = img.GetVecbAt(y, 240)

			if v[1] != Grey.G {
				t.Errorf("progress bar at 75%% width is %v, want grey", v)
			}
		}

		img.Close()
	}
}

func TestTTFFontClipsAtEdges(t *testing.T) {
	ttf, err := DefaultTTFFont(32)

	if err != nil {
		t.Fatalf("DefaultTTFFont: %v", err)
	}

	defer ttf.Close()

	size := ttf.Measure("Time up!")

	if size.X <= 0 || size.Y <= 0 {
		t.Fatalf("Measure = %v", size)
	}

	img := blank(100, 100)
	defer img.Close()

	for _, pt := range []image.Point{{0, 0}, {100, 100}, {50, 50}, {500, 500}} {
		if err := ttf.PutText(&img, "Time up!", pt); err != nil {
			t.Errorf("PutText at %v: %v", pt, err)
		}
	}
}
