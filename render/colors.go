package render

import (
	"image/color"

	"github.com/swdee/go-posegame/pose"
)

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red    = color.RGBA{R: 255, G: 51, B: 51, A: 255}
	Grey   = color.RGBA{R: 96, G: 96, B: 96, A: 255}

	// posePalette are the colors used for the skeleton/pose
	posePalette = []color.RGBA{
		{R: 255, G: 128, B: 0, A: 255},  // legs
		{R: 255, G: 51, B: 255, A: 255}, // torso
		{R: 51, G: 153, B: 255, A: 255}, // arms
		{R: 0, G: 255, B: 0, A: 255},    // head
	}

	// keyPointColors are the colors of the joint circles, indexed by joint
	keyPointColors = [pose.NumJoints]color.RGBA{
		posePalette[3], posePalette[3], posePalette[3], posePalette[3], posePalette[3],
		posePalette[2], posePalette[2], posePalette[2], posePalette[2], posePalette[2],
		posePalette[2], posePalette[0], posePalette[0], posePalette[0], posePalette[0],
		posePalette[0], posePalette[0],
	}

	// limbColors are the colors of the lines drawn between joints, indexed
	// as pose.Limbs
	limbColors = [len(pose.Limbs)]color.RGBA{
		posePalette[0], posePalette[0], posePalette[0], posePalette[0], posePalette[1],
		posePalette[1], posePalette[1], posePalette[1], posePalette[2], posePalette[2],
		posePalette[2], posePalette[2], posePalette[3], posePalette[3], posePalette[3],
		posePalette[3], posePalette[3], posePalette[3], posePalette[3],
	}

	// kindColors highlight each target pose in the HUD
	kindColors = [len(pose.Kinds)]color.RGBA{
		pose.HandsUp: {R: 255, G: 178, B: 29, A: 255},
		pose.TPose:   {R: 0, G: 194, B: 255, A: 255},
		pose.Squat:   {R: 203, G: 56, B: 255, A: 255},
	}
)
