// Package config holds the tunables of a posecam run and the layering of
// defaults, persisted settings, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/ayusman/posecam/internal/pose"
)

// Setting keys. They double as persisted settings names, flag names and,
// upper-cased with an EnvPrefix, environment variable names.
const (
	KeyCamera         = "camera"
	KeyFrameWidth     = "frame-width"
	KeyFrameHeight    = "frame-height"
	KeyModelTopology  = "model-topology"
	KeyModelWeights   = "model-weights"
	KeyInputWidth     = "input-width"
	KeyInputHeight    = "input-height"
	KeyParts          = "parts"
	KeyThreshold      = "threshold"
	KeyRadius         = "radius"
	KeyTitle          = "title"
	KeySkeleton       = "skeleton"
	KeyPosture        = "posture"
	KeyStillThreshold = "still-threshold"
	KeyPluginDir      = "plugin-dir"
	KeyAlertTimeout   = "alert-timeout"
	KeyListen         = "listen"
	KeyLogLevel       = "log-level"
	KeyRetryDelay     = "retry-delay"
	KeyMaxFrames      = "max-frames"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "POSECAM_"

var (
	// ErrUnknownKey is returned for a setting name posecam does not know.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalid is wrapped by every Validate failure.
	ErrInvalid = errors.New("invalid config")
)

// Config is the full set of options for one run.
type Config struct {
	Camera      int
	FrameWidth  int
	FrameHeight int

	ModelTopology string
	ModelWeights  string
	InputWidth    int
	InputHeight   int
	Parts         int

	Threshold float64
	Radius    int
	Title     string
	Skeleton  bool
	Posture   bool

	// StillThreshold is the change percentage at or below which a frame
	// reuses the previous keypoints. 0 disables the check.
	StillThreshold float64

	PluginDir    string
	AlertTimeout time.Duration

	Listen   string
	LogLevel string

	// RetryDelay is slept after a failed frame acquisition.
	RetryDelay time.Duration
	// MaxFrames ends the run after that many frames. 0 never does.
	MaxFrames int
}

// Default returns the stock configuration.
func Default() Config {
	model := pose.DefaultConfig()
	return Config{
		Camera:         0,
		FrameWidth:     640,
		FrameHeight:    480,
		ModelTopology:  model.Topology,
		ModelWeights:   model.Weights,
		InputWidth:     model.InputWidth,
		InputHeight:    model.InputHeight,
		Parts:          pose.NumParts,
		Threshold:      0.1,
		Radius:         5,
		Title:          "Pose Estimation",
		Skeleton:       false,
		Posture:        true,
		StillThreshold: 0,
		AlertTimeout:   5 * time.Second,
		LogLevel:       "info",
		RetryDelay:     10 * time.Millisecond,
	}
}

type field struct {
	get func(c *Config) any
	set func(c *Config, v string) error
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func floatField(p func(c *Config) *float64) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = f
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			b, err := cast.ToBoolE(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
	}
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			*p(c) = v
			return nil
		},
	}
}

func durationField(p func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			d, err := cast.ToDurationE(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = d
			return nil
		},
	}
}

var fields = map[string]field{
	KeyCamera:         intField(func(c *Config) *int { return &c.Camera }),
	KeyFrameWidth:     intField(func(c *Config) *int { return &c.FrameWidth }),
	KeyFrameHeight:    intField(func(c *Config) *int { return &c.FrameHeight }),
	KeyModelTopology:  stringField(func(c *Config) *string { return &c.ModelTopology }),
	KeyModelWeights:   stringField(func(c *Config) *string { return &c.ModelWeights }),
	KeyInputWidth:     intField(func(c *Config) *int { return &c.InputWidth }),
	KeyInputHeight:    intField(func(c *Config) *int { return &c.InputHeight }),
	KeyParts:          intField(func(c *Config) *int { return &c.Parts }),
	KeyThreshold:      floatField(func(c *Config) *float64 { return &c.Threshold }),
	KeyRadius:         intField(func(c *Config) *int { return &c.Radius }),
	KeyTitle:          stringField(func(c *Config) *string { return &c.Title }),
	KeySkeleton:       boolField(func(c *Config) *bool { return &c.Skeleton }),
	KeyPosture:        boolField(func(c *Config) *bool { return &c.Posture }),
	KeyStillThreshold: floatField(func(c *Config) *float64 { return &c.StillThreshold }),
	KeyPluginDir:      stringField(func(c *Config) *string { return &c.PluginDir }),
	KeyAlertTimeout:   durationField(func(c *Config) *time.Duration { return &c.AlertTimeout }),
	KeyListen:         stringField(func(c *Config) *string { return &c.Listen }),
	KeyLogLevel:       stringField(func(c *Config) *string { return &c.LogLevel }),
	KeyRetryDelay:     durationField(func(c *Config) *time.Duration { return &c.RetryDelay }),
	KeyMaxFrames:      intField(func(c *Config) *int { return &c.MaxFrames }),
}

// Keys returns every setting name in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Known reports whether key names a setting.
func Known(key string) bool {
	_, ok := fields[key]
	return ok
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Set parses value into the field named by key.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Get returns the current value of key formatted as a string.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return cast.ToStringE(f.get(c))
}

// Apply sets every key in values. All failures are reported together.
func (c *Config) Apply(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		err = multierr.Append(err, c.Set(k, values[k]))
	}
	return err
}

// ApplyEnv overlays every setting whose environment variable is set.
// lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	values := make(map[string]string)
	for _, k := range Keys() {
		if v, ok := lookup(EnvName(k)); ok {
			values[k] = v
		}
	}
	return c.Apply(values)
}

// Validate checks the ranges of every option.
func (c Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Camera < 0 {
		invalid("camera index %d is negative", c.Camera)
	}
	if c.FrameWidth < 0 || c.FrameHeight < 0 {
		invalid("frame size %dx%d is negative", c.FrameWidth, c.FrameHeight)
	}
	if c.ModelTopology == "" {
		invalid("model topology path is empty")
	}
	if c.ModelWeights == "" {
		invalid("model weights path is empty")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		invalid("input size %dx%d must be positive", c.InputWidth, c.InputHeight)
	}
	if c.Parts <= 0 {
		invalid("parts %d must be positive", c.Parts)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		invalid("threshold %g outside [0,1]", c.Threshold)
	}
	if c.Radius <= 0 {
		invalid("radius %d must be positive", c.Radius)
	}
	if c.StillThreshold < 0 || c.StillThreshold > 100 {
		invalid("still threshold %g outside [0,100]", c.StillThreshold)
	}
	if c.AlertTimeout <= 0 {
		invalid("alert timeout %s must be positive", c.AlertTimeout)
	}
	if c.RetryDelay < 0 {
		invalid("retry delay %s is negative", c.RetryDelay)
	}
	if c.MaxFrames < 0 {
		invalid("max frames %d is negative", c.MaxFrames)
	}
	return err
}

// Pose returns the network settings for pose.NewOpenPose.
func (c Config) Pose() pose.Config {
	model := pose.DefaultConfig()
	model.Topology = c.ModelTopology
	model.Weights = c.ModelWeights
	model.InputWidth = c.InputWidth
	model.InputHeight = c.InputHeight
	return model
}
