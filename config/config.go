// Package config loads game settings from a JSON file.  Fields left out of the
// file keep their default values so partial files are safe.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/swdee/go-posegame/game"
	"github.com/swdee/go-posegame/tracker"
)

const (
	// TargetOrderCycle asks for the poses in a fixed repeating order
	TargetOrderCycle = "cycle"
	// TargetOrderRandom asks for a random pose other than the last one
	TargetOrderRandom = "random"
)

// maxFileSize is the largest config file accepted
const maxFileSize = 1 * 1024 * 1024

// Config holds the tunable game settings.  Nil fields use the defaults of the
// component they configure.
type Config struct {
	// Classifier params
	MinScore               *float64 `json:"min_score,omitempty"`
	HandsUpMargin          *float64 `json:"hands_up_margin,omitempty"`
	TPoseVerticalTolerance *float64 `json:"t_pose_vertical_tolerance,omitempty"`
	TPoseMinExtension      *float64 `json:"t_pose_min_extension,omitempty"`
	SquatKneeMargin        *float64 `json:"squat_knee_margin,omitempty"`
	SquatMaxKneeAngle      *float64 `json:"squat_max_knee_angle,omitempty"`
	SquatMinDrop           *float64 `json:"squat_min_drop,omitempty"`
	AutoCalibrate          *bool    `json:"auto_calibrate,omitempty"`

	// Match tracker params
	HoldThreshold *string `json:"hold_threshold,omitempty"` // duration string like "500ms"
	Cooldown      *string `json:"cooldown,omitempty"`

	// Round params
	RoundDuration  *string `json:"round_duration,omitempty"`
	PointsPerMatch *int    `json:"points_per_match,omitempty"`
	TargetOrder    *string `json:"target_order,omitempty"` // "cycle" or "random"
	Seed           *int64  `json:"seed,omitempty"`

	// Keypoint smoothing params
	Smoothing               *bool    `json:"smoothing,omitempty"`
	SmoothingPositionWeight *float64 `json:"smoothing_position_weight,omitempty"`
	SmoothingVelocityWeight *float64 `json:"smoothing_velocity_weight,omitempty"`
	SmoothingMaxGap         *string  `json:"smoothing_max_gap,omitempty"`
}

// Load reads a Config from a JSON file.  The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {

	cleanPath := filepath.Clean(path)

	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)

	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}

	return cfg, nil
}

// Parse decodes and validates a JSON config.  Unknown fields are rejected so
// typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configured values can be turned into SessionParams
func (c *Config) Validate() error {
	_, err := c.SessionParams()
	return err
}

// SessionParams builds the game session parameters, applying the configured
// values over the defaults and validating every component
func (c *Config) SessionParams() (game.SessionParams, error) {

	p := game.DefaultSessionParams()

	setFloat(&p.Classifier.MinScore, c.MinScore)
	setFloat(&p.Classifier.HandsUpMargin, c.HandsUpMargin)
	setFloat(&p.Classifier.TPoseVerticalTolerance, c.TPoseVerticalTolerance)
	setFloat(&p.Classifier.TPoseMinExtension, c.TPoseMinExtension)
	setFloat(&p.Classifier.SquatKneeMargin, c.SquatKneeMargin)
	setFloat(&p.Classifier.SquatMaxKneeAngle, c.SquatMaxKneeAngle)
	setFloat(&p.Classifier.SquatMinDrop, c.SquatMinDrop)

	if c.AutoCalibrate != nil {
		p.AutoCalibrate = *c.AutoCalibrate
	}

	if err := p.Classifier.Validate(); err != nil {
		return p, err
	}

	durations := []struct {
		name string
		val  *string
		dst  *time.Duration
	}{
		{"hold_threshold", c.HoldThreshold, &p.Match.HoldThreshold},
		{"cooldown", c.Cooldown, &p.Match.Cooldown},
		{"round_duration", c.RoundDuration, &p.Round.Duration},
	}

	for _, d := range durations {
		if err := setDuration(d.dst, d.name, d.val); err != nil {
			return p, err
		}
	}

	if err := p.Match.Validate(); err != nil {
		return p, err
	}

	if c.PointsPerMatch != nil {
		p.Round.Points = *c.PointsPerMatch
	}

	if err := p.Round.Validate(); err != nil {
		return p, err
	}

	order := TargetOrderCycle

	if c.TargetOrder != nil {
		order = strings.ToLower(strings.TrimSpace(*c.TargetOrder))
	}

	switch order {
	case TargetOrderCycle, "":
		p.Selector = game.CycleSelector{}

	case TargetOrderRandom:
		seed := time.Now().UnixNano()

		if c.Seed != nil {
			seed = *c.Seed
		}

		p.Selector = game.NewRandomSelector(rand.New(rand.NewSource(seed)))

	default:
		return p, fmt.Errorf("target_order must be %q or %q, got %q",
			TargetOrderCycle, TargetOrderRandom, order)
	}

	if c.Smoothing == nil || !*c.Smoothing {
		return p, nil
	}

	sp := tracker.DefaultSmootherParams()
	sp.MinScore = p.Classifier.MinScore
	setFloat(&sp.StdWeightPosition, c.SmoothingPositionWeight)
	setFloat(&sp.StdWeightVelocity, c.SmoothingVelocityWeight)

	if err := setDuration(&sp.MaxGap, "smoothing_max_gap", c.SmoothingMaxGap); err != nil {
		return p, err
	}

	if err := sp.Validate(); err != nil {
		return p, err
	}

	p.Smoothing = &sp

	return p, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, name string, v *string) error {

	if v == nil || *v == "" {
		return nil
	}

	d, err := time.ParseDuration(*v)

	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}

	*dst = d

	return nil
}
