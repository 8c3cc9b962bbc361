// Command posecam draws body keypoints estimated by an OpenPose network onto
// a live camera feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ayusman/posecam/internal/app"
	"github.com/ayusman/posecam/internal/capture"
	"github.com/ayusman/posecam/internal/config"
	"github.com/ayusman/posecam/internal/logging"
	"github.com/ayusman/posecam/internal/plugin"
	"github.com/ayusman/posecam/internal/pose"
	"github.com/ayusman/posecam/internal/render"
	"github.com/ayusman/posecam/internal/server"
)

const flagDataDir = "data-dir"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "posecam",
		Usage: "draw body keypoints on a live camera feed",
		Flags:  runFlags(),
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "open the camera and annotate frames until the window closes",
				Flags:  runFlags(),
				Action: runAction,
			},
			settingsCommand(),
		},
	}
}

func runAction(c *cli.Context) error {
	dataDir, err := dataDirectory(c)
	if err != nil {
		return err
	}
	st, err := openStore(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg, err := loadConfig(c, st, nil)
	if err != nil {
		return err
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = defaultPluginDir(dataDir)
	}

	logger, err := logging.New("posecam", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	session := uuid.NewString()
	logger = logger.With("session", session)

	engine, err := pose.NewOpenPose(cfg.Pose())
	if err != nil {
		logger.Errorw("failed to load pose model", "topology", cfg.ModelTopology, "weights", cfg.ModelWeights, "error", err)
		return cli.Exit(fmt.Sprintf("load model: %v", err), 1)
	}

	manager := plugin.NewManager(cfg.PluginDir)
	if err := manager.Discover(); err != nil {
		logger.Warnw("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}
	logger.Infow("plugins discovered", "dir", manager.PluginDir(), "count", len(manager.List()))
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(cfg.AlertTimeout), logger.Named("plugins"))
	defer dispatcher.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{
		app.WithLogger(logger.Named("annotator")),
		app.WithSession(session),
		app.WithAlerter(dispatcher),
	}

	var annotator *app.Annotator
	var srv *server.Server
	if cfg.Listen != "" {
		srv = server.New(server.Config{
			Session: session,
			Stats:   func() any { return statusSnapshot(annotator, manager, dispatcher) },
			Store:   st,
			Logger:  logger.Named("server"),
		})
		opts = append(opts, app.WithPublisher(srv))
	}

	camera := capture.NewCamera(cfg.Camera, cfg.FrameWidth, cfg.FrameHeight)
	window := render.NewWindow(cfg.Title)
	logger.Infow("starting", "window", window.Title(), "settings", st.Path(), "camera", cfg.Camera)
	annotator = app.New(annotatorConfig(cfg), camera, engine, window, opts...)
	defer func() {
		if err := annotator.Close(); err != nil {
			logger.Warnw("release failed", "error", err)
		}
	}()

	if srv != nil {
		if _, err := srv.Start(cfg.Listen); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warnw("status server shutdown", "error", err)
			}
		}()
	}

	err = annotator.Run(ctx)
	launched, failed := dispatcher.Counts()
	logger.Infow("plugin alerts", "launched", launched, "failed", failed)
	if err != nil {
		if errors.Is(err, capture.ErrCameraOpen) {
			logger.Errorw("failed to open camera", "camera", cfg.Camera, "error", err)
		}
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// status is the /api/stats payload: run counters plus plugin alert counts.
type status struct {
	app.Snapshot
	Alerts alertStatus `json:"alerts"`
}

type alertStatus struct {
	PluginDir string `json:"plugin_dir"`
	Plugins   int    `json:"plugins"`
	Launched  int    `json:"launched"`
	Failed    int    `json:"failed"`
}

func statusSnapshot(annotator *app.Annotator, manager *plugin.Manager, dispatcher *plugin.Dispatcher) status {
	launched, failed := dispatcher.Counts()
	return status{
		Snapshot: annotator.Stats().Snapshot(),
		Alerts: alertStatus{
			PluginDir: manager.PluginDir(),
			Plugins:   len(manager.List()),
			Launched:  launched,
			Failed:    failed,
		},
	}
}

// annotatorConfig maps run options onto the annotation loop.
func annotatorConfig(cfg config.Config) app.Config {
	style := render.DefaultStyle()
	style.Threshold = cfg.Threshold
	style.Radius = cfg.Radius
	style.Skeleton = cfg.Skeleton

	return app.Config{
		Parts:          cfg.Parts,
		Style:          style,
		Posture:        cfg.Posture,
		StillThreshold: cfg.StillThreshold,
		RetryDelay:     cfg.RetryDelay,
		MaxFrames:      cfg.MaxFrames,
	}
}
