package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/ayusman/posecam/internal/config"
	"github.com/ayusman/posecam/internal/store"
)

var flagUsage = map[string]string{
	config.KeyCamera:         "camera device index",
	config.KeyFrameWidth:     "requested capture width, 0 keeps the camera default",
	config.KeyFrameHeight:    "requested capture height, 0 keeps the camera default",
	config.KeyModelTopology:  "OpenPose network description (.prototxt)",
	config.KeyModelWeights:   "OpenPose trained weights (.caffemodel)",
	config.KeyInputWidth:     "network input width",
	config.KeyInputHeight:    "network input height",
	config.KeyParts:          "number of body parts read from the network output",
	config.KeyThreshold:      "confidence a keypoint must exceed to be drawn",
	config.KeyRadius:         "marker radius in pixels",
	config.KeyTitle:          "display window title",
	config.KeySkeleton:       "draw limbs between visible joints",
	config.KeyPosture:        "label lying down and alert plugins",
	config.KeyStillThreshold: "changed pixel percentage under which a frame reuses the last keypoints, 0 disables",
	config.KeyPluginDir:      "directory scanned for alert plugins",
	config.KeyAlertTimeout:   "time limit for one plugin run",
	config.KeyListen:         "address of the local status server, empty disables it",
	config.KeyLogLevel:       "debug, info, warn or error",
	config.KeyRetryDelay:     "pause after a failed frame read",
	config.KeyMaxFrames:      "stop after this many frames, 0 runs until the window closes",
}

// runFlags returns the flags accepted both before and after "run".
func runFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:  flagDataDir,
			Usage: "directory holding the settings database and plugins (default ~/.posecam)",
		},
	}, settingFlags()...)
}

// lookupFlag returns the value of name from the innermost command that was
// given it, so "posecam --threshold 0.2 run" and "posecam run --threshold 0.2"
// both apply.
func lookupFlag(c *cli.Context, name string) (string, bool) {
	for _, ctx := range c.Lineage() {
		if ctx.App == nil {
			continue
		}
		if ctx.IsSet(name) {
			return ctx.String(name), true
		}
	}
	return "", false
}

// settingFlags returns one string flag per setting. Values are parsed by
// config.Set so flags, environment and stored settings accept the same text.
func settingFlags() []cli.Flag {
	defaults := config.Default()
	flags := make([]cli.Flag, 0, len(config.Keys()))
	for _, key := range config.Keys() {
		def, _ := defaults.Get(key)
		flags = append(flags, &cli.StringFlag{
			Name:        key,
			Usage:       flagUsage[key],
			DefaultText: def,
		})
	}
	return flags
}

func dataDirectory(c *cli.Context) (string, error) {
	dir, _ := lookupFlag(c, flagDataDir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		dir = filepath.Join(home, ".posecam")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

func openStore(dataDir string) (*store.Store, error) {
	st, err := store.New(filepath.Join(dataDir, "posecam.db"))
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return st, nil
}

func defaultPluginDir(dataDir string) string {
	return filepath.Join(dataDir, "plugins")
}

// loadConfig layers defaults, stored settings, the environment and the
// flags given on the command line, in that order.
func loadConfig(c *cli.Context, st *store.Store, lookup func(string) (string, bool)) (config.Config, error) {
	cfg := config.Default()

	stored, err := st.Settings().All()
	if err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	}
	stored = lo.PickBy(stored, func(key, _ string) bool { return config.Known(key) })
	if err := cfg.Apply(stored); err != nil {
		return cfg, fmt.Errorf("stored settings: %w", err)
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}

	flags := make(map[string]string)
	for _, key := range config.Keys() {
		if v, ok := lookupFlag(c, key); ok {
			flags[key] = v
		}
	}
	if err := cfg.Apply(flags); err != nil {
		return cfg, fmt.Errorf("flags: %w", err)
	}

	return cfg, cfg.Validate()
}
