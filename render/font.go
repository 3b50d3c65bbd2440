package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text relative to the x position it is placed at
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.7,
		Color:     White,
		Thickness: 2,
		LineType:  gocv.LineAA,
		LeftPad:   8,
		RightPad:  8,
		TopPad:    8,
		BottomPad: 8,
		Alignment: Left,
	}
}

// putText draws text with its baseline at pt, aligned horizontally on pt.X
// by the font alignment, and returns the area covered
func putText(img *gocv.Mat, text string, pt image.Point, f Font) image.Rectangle {

	size := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)

	switch f.Alignment {
	case Center:
		pt.X -= size.X / 2

	case Right:
		pt.X -= size.X
	}

	gocv.PutTextWithParams(img, text, pt, f.Face, f.Scale, f.Color, f.Thickness,
		f.LineType, false)

	return image.Rect(pt.X, pt.Y-size.Y, pt.X+size.X, pt.Y)
}

// TTFFont renders anti-aliased TrueType text, used for large banner text the
// Hershey fonts render poorly
type TTFFont struct {
	face font.Face
	// Color is the text color
	Color color.RGBA
}

// NewTTFFont parses a TrueType or OpenType font and creates a face of the
// given point size
func NewTTFFont(fontBytes []byte, size float64) (*TTFFont, error) {

	// parse the font
	f, err := opentype.Parse(fontBytes)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	// create a type face
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create type face: %w", err)
	}

	return &TTFFont{face: face, Color: White}, nil
}

// DefaultTTFFont returns the Go Regular font at the given point size
func DefaultTTFFont(size float64) (*TTFFont, error) {
	return NewTTFFont(goregular.TTF, size)
}

// Measure returns the pixel size of text
func (t *TTFFont) Measure(text string) image.Point {
	metrics := t.face.Metrics()

	return image.Pt(
		font.MeasureString(t.face, text).Ceil(),
		(metrics.Ascent + metrics.Descent).Ceil(),
	)
}

// PutText draws text centered on center.  The text is drawn to an RGBA image
// which is then added onto the BGR image, so it brightens rather than covers
// what is underneath.
func (t *TTFFont) PutText(img *gocv.Mat, text string, center image.Point) error {

	size := t.Measure(text)

	if size.X == 0 || size.Y == 0 {
		return nil
	}

	area := image.Rect(center.X-size.X/2, center.Y-size.Y/2,
		center.X-size.X/2+size.X, center.Y-size.Y/2+size.Y)
	area = area.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if area.Empty() {
		return nil
	}

	// create transparent image with text writing
	rgba := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))

	dr := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(t.Color),
		Face: t.face,
		Dot: fixed.Point26_6{
			X: 0,
			Y: t.face.Metrics().Ascent,
		},
	}
	dr.DrawString(text)

	// Convert image.RGBA to gocv.Mat
	textMat, err := gocv.NewMatFromBytes(size.Y, size.X, gocv.MatTypeCV8UC4, rgba.Pix)

	if err != nil || textMat.Empty() {
		return fmt.Errorf("error creating Mat from RGBA: %v", err)
	}

	defer textMat.Close()

	gocv.CvtColor(textMat, &textMat, gocv.ColorRGBAToBGR)

	// clip the text to the part that lands on the image
	offset := area.Min.Sub(image.Pt(center.X-size.X/2, center.Y-size.Y/2))
	src := textMat.Region(image.Rectangle{Min: offset, Max: offset.Add(area.Size())})
	defer src.Close()

	dst := img.Region(area)
	defer dst.Close()

	gocv.AddWeighted(dst, 1.0, src, 1.0, 0, &dst)

	return nil
}

// Close releases the font face
func (t *TTFFont) Close() error {
	return t.face.Close()
}
