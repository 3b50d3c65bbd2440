package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/pose"
	"github.com/swdee/go-posegame/tracker"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	p, err := (&Config{}).SessionParams()
	if err != nil {
		t.Fatalf("SessionParams: %v", err)
	}

	if p.Classifier != pose.DefaultParams() {
		t.Errorf("Classifier %+v, want defaults", p.Classifier)
	}
	if p.Match != tracker.DefaultMatchParams() {
		t.Errorf("Match %+v, want defaults", p.Match)
	}
	if p.Round != game.DefaultRoundParams() {
		t.Errorf("Round %+v, want defaults", p.Round)
	}
	if _, ok := p.Selector.(game.CycleSelector); !ok {
		t.Errorf("Selector %T, want CycleSelector", p.Selector)
	}
	if p.Smoothing != nil {
		t.Error("smoothing should be disabled by default")
	}
	if p.AutoCalibrate {
		t.Error("auto calibrate should be disabled by default")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "game.json", `{
  "min_score": 0.5,
  "hands_up_margin": 0.25,
  "hold_threshold": "750ms",
  "cooldown": "2s",
  "round_duration": "90s",
  "points_per_match": 5,
  "target_order": "random",
  "seed": 7,
  "auto_calibrate": true,
  "smoothing": true,
  "smoothing_max_gap": "1s"
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p, err := cfg.SessionParams()
	if err != nil {
		t.Fatalf("SessionParams: %v", err)
	}

	if p.Classifier.MinScore != 0.5 || p.Classifier.HandsUpMargin != 0.25 {
		t.Errorf("Classifier %+v", p.Classifier)
	}
	if p.Classifier.TPoseMinExtension != pose.DefaultParams().TPoseMinExtension {
		t.Errorf("unset field changed: %v", p.Classifier.TPoseMinExtension)
	}
	if p.Match.HoldThreshold != 750*time.Millisecond || p.Match.Cooldown != 2*time.Second {
		t.Errorf("Match %+v", p.Match)
	}
	if p.Round.Duration != 90*time.Second || p.Round.Points != 5 {
		t.Errorf("Round %+v", p.Round)
	}
	if _, ok := p.Selector.(*game.RandomSelector); !ok {
		t.Errorf("Selector %T, want *RandomSelector", p.Selector)
	}
	if !p.AutoCalibrate {
		t.Error("AutoCalibrate not applied")
	}
	if p.Smoothing == nil {
		t.Fatal("smoothing not enabled")
	}
	if p.Smoothing.MaxGap != time.Second || p.Smoothing.MinScore != 0.5 {
		t.Errorf("Smoothing %+v", *p.Smoothing)
	}

	if _, err := game.NewSession(p); err != nil {
		t.Errorf("NewSession: %v", err)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"extension", "game.yaml", `{}`, ".json extension"},
		{"syntax", "game.json", `{"min_score":`, "failed to parse"},
		{"unknown field", "game.json", `{"min_scroe": 0.2}`, "unknown field"},
		{"duration", "game.json", `{"cooldown": "soon"}`, "invalid cooldown"},
		{"target order", "game.json", `{"target_order": "alphabetical"}`, "target_order"},
		{"points", "game.json", `{"points_per_match": 0}`, "points"},
	}

	for _, tc := range tests {
		path := writeConfig(t, tc.file, tc.body)

		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err %v, want containing %q", tc.name, err, tc.want)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseWrapsComponentErrors(t *testing.T) {
	_, err := Parse([]byte(`{"min_score": 1.5}`))
	if !errors.Is(err, pose.ErrInvalidParams) {
		t.Errorf("min_score: err %v, want pose.ErrInvalidParams", err)
	}

	_, err = Parse([]byte(`{"hold_threshold": "-1s"}`))
	if !errors.Is(err, tracker.ErrInvalidParams) {
		t.Errorf("hold_threshold: err %v, want tracker.ErrInvalidParams", err)
	}

	_, err = Parse([]byte(`{"round_duration": "0s"}`))
	if !errors.Is(err, game.ErrInvalidParams) {
		t.Errorf("round_duration: err %v, want game.ErrInvalidParams", err)
	}

	_, err = Parse([]byte(`{"smoothing": true, "smoothing_position_weight": 0}`))
	if !errors.Is(err, tracker.ErrInvalidParams) {
		t.Errorf("smoothing: err %v, want tracker.ErrInvalidParams", err)
	}

	// smoothing params are ignored while smoothing is off
	if _, err := Parse([]byte(`{"smoothing_position_weight": 0}`)); err != nil {
		t.Errorf("disabled smoothing validated: %v", err)
	}
}
