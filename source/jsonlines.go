// Package source reads player keypoints produced by an external pose
// estimation pipeline, such as the Hailo rpicam-hello post processor, which
// writes one JSON document per video frame.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/pose"
)

// maxLineSize is the longest JSON line accepted from a pipeline
const maxLineSize = 1 * 1024 * 1024

// document is a single line of pipeline output
type document struct {
	Poses []struct {
		// Keypoints are in COCO order, each entry holds x, y and an optional
		// score
		Keypoints [][]float64 `json:"keypoints"`
	} `json:"poses"`
}

// JSONLines decodes newline delimited pose documents of the form
// {"poses":[{"keypoints":[[x,y,score],...]}]} into frames.  The first pose in
// each document is the player, frames are stamped with the clock when read.
type JSONLines struct {
	scanner *bufio.Scanner
	clock   game.Clock
	line    int
}

// NewJSONLines returns a JSONLines reading from r
func NewJSONLines(r io.Reader, clock game.Clock) *JSONLines {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	if clock == nil {
		clock = game.SystemClock{}
	}

	return &JSONLines{
		scanner: scanner,
		clock:   clock,
	}
}

// Next blocks until the next line is available and returns its frame.  A line
// that can not be decoded is logged and returned as an empty frame so the
// game sees the player as undetected.  io.EOF is returned once the input is
// exhausted.
func (j *JSONLines) Next() (pose.Frame, error) {

	for j.scanner.Scan() {
		j.line++
		data := j.scanner.Bytes()

		if len(data) == 0 {
			continue
		}

		ts := j.clock.Now()
		f, err := Decode(data, ts)

		if err != nil {
			game.Logf("source: line %d: %v", j.line, err)
			return pose.EmptyFrame(ts), nil
		}

		return f, nil
	}

	if err := j.scanner.Err(); err != nil {
		return pose.Frame{}, fmt.Errorf("failed to read pose line %d: %w", j.line+1, err)
	}

	return pose.Frame{}, io.EOF
}

// Decode parses a single pose document into a frame stamped ts.  A document
// without poses is an empty frame.
func Decode(data []byte, ts time.Time) (pose.Frame, error) {

	var doc document

	if err := json.Unmarshal(data, &doc); err != nil {
		return pose.Frame{}, fmt.Errorf("invalid pose JSON: %w", err)
	}

	if len(doc.Poses) == 0 {
		return pose.EmptyFrame(ts), nil
	}

	raw := doc.Poses[0].Keypoints
	points := make([][3]float64, len(raw))

	for i, kp := range raw {
		switch len(kp) {
		case 2:
			points[i] = [3]float64{kp[0], kp[1], 1}
		case 3:
			points[i] = [3]float64{kp[0], kp[1], kp[2]}
		default:
			// treated as undetected
			points[i] = [3]float64{math.NaN(), math.NaN(), math.NaN()}
		}
	}

	return pose.FrameFromCOCO(ts, points), nil
}
