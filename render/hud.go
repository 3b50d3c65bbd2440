package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	"gocv.io/x/gocv"

	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/pose"
)

// HUD draws the game overlay of score, target pose, time left and hold
// progress onto video frames
type HUD struct {
	// Font is used for the status bar text
	Font Font
	// Banner is used for the large centered messages, nil disables them
	Banner *TTFFont
	// BarHeight is the height of the status bar across the top of the image
	BarHeight int
	// ProgressHeight is the height of the hold progress bar under the status
	// bar
	ProgressHeight int
}

// NewHUD returns a HUD with the default fonts
func NewHUD() (*HUD, error) {

	banner, err := DefaultTTFFont(48)

	if err != nil {
		return nil, err
	}

	return &HUD{
		Font:           DefaultFont(),
		Banner:         banner,
		BarHeight:      44,
		ProgressHeight: 10,
	}, nil
}

// Label returns the display name of a pose such as "HANDS UP"
func Label(k pose.Kind) string {
	return strings.ToUpper(strings.ReplaceAll(k.String(), "_", " "))
}

// Draw renders the game state from snap onto img
func (h *HUD) Draw(img *gocv.Mat, snap game.Snapshot) error {

	width := img.Cols()
	st := snap.Round

	// status bar background
	gocv.Rectangle(img, image.Rect(0, 0, width, h.BarHeight), Black, -1)

	baseline := h.BarHeight - h.Font.BottomPad - h.Font.TopPad/2

	left := h.Font
	left.Alignment = Left
	putText(img, fmt.Sprintf("Score: %d", st.Score), image.Pt(h.Font.LeftPad, baseline), left)

	right := h.Font
	right.Alignment = Right
	secs := int(math.Ceil(snap.RemainingSeconds))

	if st.Status == game.Running && secs <= 10 {
		right.Color = Red
	}

	putText(img, fmt.Sprintf("Time: %ds", secs), image.Pt(width-h.Font.RightPad, baseline), right)

	center := h.Font
	center.Alignment = Center

	if st.Target.Valid() {
		center.Color = kindColors[st.Target]
	}

	putText(img, "Target: "+Label(st.Target), image.Pt(width/2, baseline), center)

	if st.Status == game.Running {
		h.drawProgress(img, snap)
	}

	h.drawMatched(img, snap)

	if h.Banner == nil {
		return nil
	}

	var banner string

	switch st.Status {
	case game.NotStarted:
		banner = "Get ready"
	case game.Ended:
		banner = fmt.Sprintf("Time up! Score %d", st.Score)
	}

	if banner == "" {
		return nil
	}

	return h.Banner.PutText(img, banner, image.Pt(width/2, img.Rows()/2))
}

// drawProgress draws how far the target pose has been held towards scoring
func (h *HUD) drawProgress(img *gocv.Mat, snap game.Snapshot) {

	top := h.BarHeight
	width := img.Cols()

	gocv.Rectangle(img, image.Rect(0, top, width, top+h.ProgressHeight), Grey, -1)

	if snap.Hold <= 0 || snap.HoldThreshold <= 0 {
		return
	}

	frac := float64(snap.Hold) / float64(snap.HoldThreshold)

	if frac > 1 {
		frac = 1
	}

	fill := int(frac * float64(width))
	gocv.Rectangle(img, image.Rect(0, top, fill, top+h.ProgressHeight), Green, -1)
}

// drawMatched lists the poses the player is currently making along the
// bottom of the image
func (h *HUD) drawMatched(img *gocv.Mat, snap game.Snapshot) {

	f := h.Font
	f.Alignment = Left
	x := f.LeftPad
	y := img.Rows() - f.BottomPad

	if snap.Calibrated {
		f.Color = Grey
		area := putText(img, "calibrated", image.Pt(x, y), f)
		x = area.Max.X + f.LeftPad + f.RightPad
	}

	for _, k := range snap.Matched.Kinds() {
		f.Color = kindColors[k]
		area := putText(img, Label(k), image.Pt(x, y), f)
		x = area.Max.X + f.LeftPad + f.RightPad
	}
}
