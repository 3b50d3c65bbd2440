package render

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/swdee/go-posegame/pose"
)

// Skeleton renders the player's joints and the limbs between them.  Joints
// scoring below minScore are left out along with their limbs.
func Skeleton(img *gocv.Mat, f pose.Frame, minScore float64, lineThickness int) {

	// draw skeleton lines
	for i, limb := range pose.Limbs {
		a, ok := f.Point(limb[0], minScore)

		if !ok {
			continue
		}

		b, ok := f.Point(limb[1], minScore)

		if !ok {
			continue
		}

		gocv.Line(img, toPoint(a), toPoint(b), limbColors[i], lineThickness)
	}

	// draw circles at skeleton joints
	for j := pose.Joint(0); j < pose.NumJoints; j++ {
		kp, ok := f.Point(j, minScore)

		if !ok {
			continue
		}

		gocv.Circle(img, toPoint(kp), 3, keyPointColors[j], -1)
	}
}

func toPoint(kp pose.KeyPoint) image.Point {
	return image.Pt(int(math.Round(kp.X)), int(math.Round(kp.Y)))
}
