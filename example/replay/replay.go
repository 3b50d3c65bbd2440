/*
Headless replay of a recorded pose session.  Reads JSON lines of keypoints, as
written by the Hailo rpicam-hello pose pipeline, plays them through a game
round at a fixed frame rate and prints the round events and final state.
*/
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/swdee/go-posegame/config"
	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/source"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	inFile := flag.String("i", "-", "JSON lines file of recorded poses, - for stdin")
	configFile := flag.String("c", "", "JSON file of game settings")
	fps := flag.Float64("f", 30, "Frame rate the poses were recorded at")
	calibrate := flag.Bool("calibrate", true, "Calibrate the squat rule from the first frame")

	flag.Parse()

	if *fps <= 0 {
		log.Fatalf("Frame rate must be positive, got %v", *fps)
	}

	params := game.DefaultSessionParams()

	if *configFile != "" {
		cfg, err := config.Load(*configFile)

		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}

		params, err = cfg.SessionParams()

		if err != nil {
			log.Fatalf("Error applying config: %v", err)
		}
	}

	var in io.Reader = os.Stdin

	if *inFile != "-" {
		f, err := os.Open(*inFile)

		if err != nil {
			log.Fatalf("Error opening poses: %v", err)
		}

		defer f.Close()
		in = f
	}

	session, err := game.NewSession(params)

	if err != nil {
		log.Fatalf("Error creating game session: %v", err)
	}

	session.Subscribe(func(ev game.Event) {
		switch ev.Type {
		case game.EventScore:
			log.Printf("%8.2fs  %-11s %s held %v, score %d, next %s",
				elapsed(ev.State, params.Round.Duration), ev.Type, ev.Match.Pose, ev.Match.Held,
				ev.State.Score, ev.State.Target)
		default:
			log.Printf("%8.2fs  %-11s score %d",
				elapsed(ev.State, params.Round.Duration), ev.Type, ev.State.Score)
		}
	})

	// frames are stamped on a replay clock so results do not depend on how
	// fast the file is read
	interval := time.Duration(float64(time.Second) / *fps)
	clock := game.NewManualClock(time.Unix(0, 0).UTC())
	lines := source.NewJSONLines(in, clock)

	frames := 0

	for {
		f, err := lines.Next()

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			log.Fatalf("Error reading poses: %v", err)
		}

		if frames == 0 {
			if *calibrate && !session.Calibrate(f) {
				log.Printf("First frame could not be used to calibrate")
			}

			if err := session.Start(f.Timestamp); err != nil {
				log.Fatalf("Error starting round: %v", err)
			}
		}

		res := session.ProcessFrame(f)
		frames++
		clock.Advance(interval)

		if res.State.Status == game.Ended {
			break
		}
	}

	// run the round clock out if the recording was shorter than the round
	if st := session.State(); st.Status == game.Running {
		if err := session.Tick(st.StartedAt.Add(params.Round.Duration)); err != nil {
			log.Printf("Error ticking round: %v", err)
		}
	}

	log.Printf("Replayed %d frames", frames)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(session.Snapshot()); err != nil {
		log.Fatalf("Error writing result: %v", err)
	}
}

// elapsed returns the seconds played in a round of the given length
func elapsed(st game.RoundState, length time.Duration) float64 {
	return (length - st.Remaining).Seconds()
}
