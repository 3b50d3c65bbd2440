package pose

import "gonum.org/v1/gonum/spatial/r2"

// Calibration records the player's standing posture so a squat can be
// measured as a drop of the hips rather than from knee angles alone
type Calibration struct {
	// HipY is the y coordinate of the hip centre while standing
	HipY float64
	// Torso is the distance between the shoulder centre and hip centre
	// while standing
	Torso float64
}

// Calibrate measures a Calibration from a frame of the player standing
// upright.  It returns false if the shoulders or hips are not confidently
// detected or the torso has no length.
func Calibrate(f Frame, minScore float64) (Calibration, bool) {

	joints := []Joint{LeftShoulder, RightShoulder, LeftHip, RightHip}
	pts := make([]r2.Vec, len(joints))

	for i, j := range joints {
		kp, ok := f.Point(j, minScore)

		if !ok {
			return Calibration{}, false
		}

		pts[i] = r2.Vec{X: kp.X, Y: kp.Y}
	}

	shoulders := r2.Scale(0.5, r2.Add(pts[0], pts[1]))
	hips := r2.Scale(0.5, r2.Add(pts[2], pts[3]))
	torso := dist(shoulders, hips)

	if torso < minBodyScale {
		return Calibration{}, false
	}

	return Calibration{HipY: hips.Y, Torso: torso}, true
}
