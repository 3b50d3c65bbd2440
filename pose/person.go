package pose

import (
	"image"
	"time"
)

// Person is a single body found by a detector
type Person struct {
	// Box is the bounding box of the body in image pixels
	Box image.Rectangle
	// Points are the keypoints in COCO order, each holding x, y and score
	Points [][3]float64
}

// PrimaryFrame returns the frame of the player among the detected people.  The
// player is the person with the largest bounding box, being the one nearest
// the camera.  Ties keep the earlier person.  No people is an empty frame.
func PrimaryFrame(ts time.Time, people []Person) Frame {

	best := -1
	bestArea := -1

	for i, p := range people {
		size := p.Box.Canon().Size()
		area := size.X * size.Y

		if area > bestArea {
			best = i
			bestArea = area
		}
	}

	if best < 0 {
		return EmptyFrame(ts)
	}

	return FrameFromCOCO(ts, people[best].Points)
}
