// Package server exposes a game Session over HTTP: the annotated camera video
// as an MJPEG stream, the round state as JSON, round events as Server Sent
// Events and controls to start, reset and calibrate the game.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/tracker"
)

const (
	// mjpegBoundary separates the JPEG parts of the video stream
	mjpegBoundary = "posegameframe"
	// keepAliveInterval is how often an idle event stream is sent a comment
	keepAliveInterval = 25 * time.Second
)

// eventPayload is the JSON data of a Server Sent Event
type eventPayload struct {
	Type  string              `json:"type"`
	Match *tracker.MatchEvent `json:"match,omitempty"`
	State game.RoundState     `json:"state"`
}

// errorPayload is the JSON body of a failed request
type errorPayload struct {
	Error string `json:"error"`
}

// Server serves a single game Session
type Server struct {
	session *game.Session
	clock   game.Clock
	events  *Broadcaster[game.Event]
	frames  *Broadcaster[[]byte]
	router  chi.Router
}

// New returns a Server for session.  Control requests are timestamped with
// clock.
func New(session *game.Session, clock game.Clock) *Server {

	if clock == nil {
		clock = game.SystemClock{}
	}

	s := &Server{
		session: session,
		clock:   clock,
		events:  NewBroadcaster[game.Event](16),
		frames:  NewBroadcaster[[]byte](2),
	}

	session.Subscribe(s.events.Publish)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// streams are long lived so only the request/response routes time out
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Get("/state", s.state)
		r.Post("/round/start", s.startRound)
		r.Post("/round/reset", s.resetRound)
		r.Post("/calibrate", s.calibrate)
	})

	r.Get("/events", s.stream)
	r.Get("/stream", s.video)

	s.router = r

	return s
}

// Handler returns the HTTP handler serving the game
func (s *Server) Handler() http.Handler {
	return s.router
}

// PublishFrame sends a JPEG encoded video frame to the connected video
// viewers.  The data must not be modified afterwards.
func (s *Server) PublishFrame(jpeg []byte) {
	s.frames.Publish(jpeg)
}

// Viewers returns the number of connected video viewers so callers can skip
// encoding frames nobody watches
func (s *Server) Viewers() int {
	return s.frames.Len()
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)

	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		return nil
	}
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) startRound(w http.ResponseWriter, r *http.Request) {

	err := s.session.Start(s.clock.Now())

	if errors.Is(err, game.ErrRoundRunning) {
		writeJSON(w, http.StatusConflict, errorPayload{Error: err.Error()})
		return
	}

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) resetRound(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) calibrate(w http.ResponseWriter, r *http.Request) {

	if !s.session.CalibrateLast() {
		writeJSON(w, http.StatusUnprocessableEntity,
			errorPayload{Error: "no standing player visible to calibrate from"})
		return
	}

	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// stream sends round events as Server Sent Events, starting with the current
// state
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {

	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	writeSSE(w, "state", s.session.Snapshot())
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case ev := <-sub:
			writeSSE(w, ev.Type.String(), eventPayload{
				Type:  ev.Type.String(),
				Match: ev.Match,
				State: ev.State,
			})
			flusher.Flush()

		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

// video streams published frames as multipart MJPEG
func (s *Server) video(w http.ResponseWriter, r *http.Request) {

	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "close")

	sub := s.frames.Subscribe()
	defer s.frames.Unsubscribe(sub)

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return

		case jpeg := <-sub:
			if err := writeJPEGPart(w, jpeg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJPEGPart(w http.ResponseWriter, jpeg []byte) error {

	header := "--" + mjpegBoundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.Itoa(len(jpeg)) + "\r\n\r\n"

	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}

	if _, err := w.Write(jpeg); err != nil {
		return err
	}

	_, err := w.Write([]byte("\r\n"))

	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSSE(w http.ResponseWriter, event string, payload any) {

	data, err := json.Marshal(payload)

	if err != nil {
		game.Logf("server: failed to encode %s event: %v", event, err)
		return
	}

	_, _ = w.Write([]byte("event: " + event + "\n"))
	_, _ = w.Write([]byte("data: " + string(data) + "\n\n"))
}
