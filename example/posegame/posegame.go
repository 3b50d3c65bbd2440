/*
Pose matching game played in front of a camera.  Each frame has the player's
pose estimated, either on the Rockchip NPU with a YOLOv8-pose model or by an
external Hailo rpicam-hello pipeline, and the annotated video is served over
HTTP along with the game controls.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/swdee/go-rknnlite"
	"gocv.io/x/gocv"

	"github.com/swdee/go-posegame/config"
	"github.com/swdee/go-posegame/detect"
	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/pose"
	"github.com/swdee/go-posegame/render"
	"github.com/swdee/go-posegame/server"
	"github.com/swdee/go-posegame/source"
	"github.com/swdee/go-posegame/tracker"
)

const (
	// ModeNPU runs pose estimation on the Rockchip NPU
	ModeNPU = "npu"
	// ModeHailo reads poses from the Hailo rpicam-hello pipeline
	ModeHailo = "hailo"
	// tickInterval is how often the round clock is advanced when no frames
	// arrive
	tickInterval = 100 * time.Millisecond
)

// Game wires a frame source to a game session, renderer and HTTP server
type Game struct {
	session *game.Session
	hud     *render.HUD
	srv     *server.Server
	// minScore is the keypoint confidence below which joints are not drawn
	minScore float64
	// autoStart starts the first round when a player is first seen
	autoStart bool
}

// NewGame creates the session and HTTP surface from the loaded settings
func NewGame(params game.SessionParams, autoStart bool) (*Game, error) {

	session, err := game.NewSession(params)

	if err != nil {
		return nil, fmt.Errorf("error creating game session: %w", err)
	}

	hud, err := render.NewHUD()

	if err != nil {
		return nil, fmt.Errorf("error creating HUD: %w", err)
	}

	g := &Game{
		session:   session,
		hud:       hud,
		srv:       server.New(session, game.SystemClock{}),
		minScore:  params.Classifier.MinScore,
		autoStart: autoStart,
	}

	session.OnScore(func(ev tracker.MatchEvent, st game.RoundState) {
		log.Printf("Scored %s, score %d, next target %s", ev.Pose, st.Score, st.Target)
	})

	session.OnRoundEnd(func(st game.RoundState) {
		log.Printf("Round over, final score %d", st.Score)
	})

	return g, nil
}

// Close releases the HUD fonts
func (g *Game) Close() error {
	return g.hud.Banner.Close()
}

// Tick advances the round clock until ctx is cancelled
func (g *Game) Tick(ctx context.Context) {

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			err := g.session.Tick(now)

			if err != nil && !errors.Is(err, game.ErrRoundNotStarted) {
				log.Printf("Error ticking round: %v", err)
			}
		}
	}
}

// Present processes a frame, annotates img with the result and publishes
// it to video viewers
func (g *Game) Present(img *gocv.Mat, f pose.Frame) {

	g.session.ProcessFrame(f)

	if g.autoStart && !f.Empty() {
		g.autoStart = false

		if err := g.session.Start(f.Timestamp); err != nil {
			log.Printf("Error starting round: %v", err)
		} else {
			log.Printf("Player detected, round started")
		}
	}

	// skip rendering when nobody is watching
	if g.srv.Viewers() == 0 {
		return
	}

	render.Skeleton(img, f, g.minScore, 2)

	if err := g.hud.Draw(img, g.session.Snapshot()); err != nil {
		log.Printf("Error drawing HUD: %v", err)
	}

	// Encode the image to JPEG format
	buf, err := gocv.IMEncode(".jpg", *img)

	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return
	}

	jpeg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	g.srv.PublishFrame(jpeg)
}

// RunCamera captures frames from a camera or video file and estimates poses
// on the NPU
func (g *Game) RunCamera(ctx context.Context, capture *gocv.VideoCapture,
	detector *detect.Detector) error {

	img := gocv.NewMat()
	defer img.Close()

	for ctx.Err() == nil {

		if ok := capture.Read(&img); !ok || img.Empty() {
			return errors.New("video capture closed")
		}

		ts := time.Now()
		f, err := detector.Detect(img, ts)

		if err != nil {
			log.Printf("Error detecting pose: %v", err)
			f = pose.EmptyFrame(ts)
		}

		g.Present(&img, f)
	}

	return nil
}

// RunPipeline reads poses from the Hailo pipeline.  The pipeline owns the
// camera so the skeleton is drawn on a blank canvas.
func (g *Game) RunPipeline(ctx context.Context, width, height int) error {

	pipe, err := source.StartPipeline(ctx, source.HailoPipeline[0], source.HailoPipeline[1:]...)

	if err != nil {
		return err
	}

	defer pipe.Close()

	canvas := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	for ctx.Err() == nil {
		f, err := pipe.Next()

		if err != nil {
			return fmt.Errorf("pose pipeline ended: %w", err)
		}

		canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
		g.Present(&canvas, f)
	}

	return nil
}

// openCapture opens a camera device by number or a video file by path
func openCapture(src string) (*gocv.VideoCapture, error) {

	if id, err := strconv.Atoi(src); err == nil {
		return gocv.OpenVideoCapture(id)
	}

	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("video source not found: %w", err)
	}

	return gocv.VideoCaptureFile(src)
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	mode := flag.String("p", ModeNPU, "Pose estimation pipeline [npu|hailo]")
	modelFile := flag.String("m", "../data/yolov8n-pose-640-640-rk3588.rknn", "RKNN compiled YOLOv8 pose model file")
	videoSrc := flag.String("v", "0", "Camera device number or video file to play the game on")
	configFile := flag.String("c", "", "JSON file of game settings")
	httpAddr := flag.String("a", "localhost:8080", "HTTP Address to run server on, format address:port")
	canvasSize := flag.String("s", "640x480", "Canvas size used to draw hailo poses, format widthxheight")
	autoStart := flag.Bool("autostart", true, "Start the first round when a player is detected, otherwise wait for POST /round/start")

	flag.Parse()

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

	g, err := NewGame(params, *autoStart)

	if err != nil {
		log.Fatalf("Error creating game: %v", err)
	}

	defer g.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go g.Tick(ctx)

	go func() {
		log.Printf("Open browser and view video at http://%s/stream", *httpAddr)

		if err := g.srv.ListenAndServe(ctx, *httpAddr); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	switch *mode {
	case ModeHailo:
		var size image.Point

		if _, err := fmt.Sscanf(*canvasSize, "%dx%d", &size.X, &size.Y); err != nil {
			log.Fatalf("Invalid canvas size %q: %v", *canvasSize, err)
		}

		err = g.RunPipeline(ctx, size.X, size.Y)

	case ModeNPU:
		if err := rknnlite.SetCPUAffinity(rknnlite.RK3588FastCores); err != nil {
			log.Printf("Failed to set CPU Affinity: %v", err)
		}

		detector, derr := detect.NewDetector(detect.DefaultParams(*modelFile))

		if derr != nil {
			log.Fatalf("Error creating detector: %v", derr)
		}

		defer detector.Close()

		capture, cerr := openCapture(*videoSrc)

		if cerr != nil {
			log.Fatalf("Error opening video capture: %v", cerr)
		}

		defer capture.Close()

		err = g.RunCamera(ctx, capture, detector)

	default:
		log.Fatalf("Unknown pipeline %q, use %q or %q", *mode, ModeNPU, ModeHailo)
	}

	if err != nil && ctx.Err() == nil {
		log.Printf("Game stopped: %v", err)
	}
}
