// Package app runs the live pose annotation loop: read a frame, infer body
// keypoints, draw them and show the result until the display closes.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/posecam/internal/capture"
	"github.com/ayusman/posecam/internal/plugin"
	"github.com/ayusman/posecam/internal/pose"
	"github.com/ayusman/posecam/internal/render"
)

// Config holds the per-frame options of the annotator.
type Config struct {
	// Parts is the number of heatmap channels read, pose.NumParts for MPI.
	Parts int
	// Style controls marker threshold, radius, color and the skeleton.
	Style render.Style
	// Posture enables the lying-down label and alerts.
	Posture bool
	// StillThreshold enables still-frame reuse when positive.
	StillThreshold float64
	// RetryDelay is slept after a failed frame acquisition.
	RetryDelay time.Duration
	// MaxFrames stops the loop after this many iterations. 0 runs until
	// the sink closes or the context ends.
	MaxFrames int
}

// DefaultConfig returns the MPI defaults with posture labels on.
func DefaultConfig() Config {
	return Config{
		Parts:      pose.NumParts,
		Style:      render.DefaultStyle(),
		Posture:    true,
		RetryDelay: 10 * time.Millisecond,
	}
}

// Alerter delivers posture alerts off the capture loop.
type Alerter interface {
	Dispatch(req *plugin.Request) int
	Wait()
}

// Publisher receives every frame Result.
type Publisher interface {
	Publish(v any)
}

// Result describes one processed frame.
type Result struct {
	Frame     int             `json:"frame"`
	Timestamp time.Time       `json:"timestamp"`
	Keypoints []pose.Keypoint `json:"keypoints"`
	Markers   int             `json:"markers"`
	Posture   pose.Posture    `json:"posture"`
	// Still is set when the previous keypoints were reused.
	Still bool  `json:"still"`
	Err   error `json:"-"`
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(a *Annotator) { a.logger = logger }
}

// WithClock sets the clock used for stats and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(a *Annotator) { a.clock = clk }
}

// WithAlerter sends posture alerts through alerter.
func WithAlerter(alerter Alerter) Option {
	return func(a *Annotator) { a.alerter = alerter }
}

// WithPublisher publishes every frame Result.
func WithPublisher(publisher Publisher) Option {
	return func(a *Annotator) { a.publisher = publisher }
}

// WithSession sets the run id. A random one is used otherwise.
func WithSession(session string) Option {
	return func(a *Annotator) { a.session = session }
}

// Annotator owns the camera, the engine and the sink for one run.
type Annotator struct {
	config  Config
	camera  capture.Camera
	engine  pose.Engine
	sink    render.Sink
	overlay *render.Overlay
	motion  *capture.MotionDetector

	logger    *zap.SugaredLogger
	clock     clock.Clock
	alerter   Alerter
	publisher Publisher
	session   string
	stats     *Stats

	frame   int
	last    []pose.Keypoint
	posture pose.Posture
	closed  bool
}

// New creates an Annotator. It does not open the camera.
func New(config Config, camera capture.Camera, engine pose.Engine, sink render.Sink, opts ...Option) *Annotator {
	if config.Parts <= 0 {
		config.Parts = pose.NumParts
	}

	a := &Annotator{
		config:  config,
		camera:  camera,
		engine:  engine,
		sink:    sink,
		overlay: render.NewOverlay(config.Style),
		logger:  zap.NewNop().Sugar(),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.session == "" {
		a.session = uuid.NewString()
	}
	if config.StillThreshold > 0 {
		a.motion = capture.NewMotionDetector(config.StillThreshold)
	}
	a.stats = NewStats(a.clock)
	return a
}

// Session returns the run id.
func (a *Annotator) Session() string {
	return a.session
}

// Stats returns the run counters.
func (a *Annotator) Stats() *Stats {
	return a.stats
}

// Posture returns the last classified posture other than unknown.
func (a *Annotator) Posture() pose.Posture {
	return a.posture
}

// Run opens the camera, unless the caller already did, and processes frames
// until the sink is no longer visible, ctx is done or MaxFrames is reached.
// Failing to open the camera is returned as an error wrapping
// capture.ErrCameraOpen. Failed frames are counted and skipped.
func (a *Annotator) Run(ctx context.Context) error {
	if !a.camera.IsOpen() {
		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}
	a.stats.Start()

	still := 0.0
	if a.motion != nil {
		still = a.motion.Threshold()
	}
	a.logger.Infow("annotator started",
		"parts", a.config.Parts,
		"threshold", a.config.Style.Threshold,
		"still_threshold", still,
	)

	for a.running(ctx) {
		a.Step(ctx)
	}

	snap := a.stats.Snapshot()
	a.logger.Infow("annotator stopped",
		"frames", snap.Frames,
		"acquisition_failures", snap.AcquisitionFailures,
		"inference_failures", snap.InferenceFailures,
		"still_skips", snap.StillSkips,
		"markers", snap.Markers,
		"fps", fmt.Sprintf("%.1f", snap.FPS),
		"latency_mean_ms", fmt.Sprintf("%.1f", snap.LatencyMeanMs),
		"latency_p95_ms", fmt.Sprintf("%.1f", snap.LatencyP95Ms),
	)
	return nil
}

func (a *Annotator) running(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if a.config.MaxFrames > 0 && a.frame >= a.config.MaxFrames {
		return false
	}
	return a.sink.Visible()
}

// Step runs one loop iteration: acquire, annotate, show. A failed or empty
// acquisition advances the frame counter and shows nothing.
func (a *Annotator) Step(ctx context.Context) Result {
	a.frame++
	a.stats.Frame()

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.stats.AcquisitionFailed()
		a.logger.Debugw("frame acquisition failed", "frame", a.frame, "error", err)
		a.wait(ctx, a.config.RetryDelay)
		return Result{Frame: a.frame, Timestamp: a.clock.Now(), Err: err}
	}
	defer frame.Close()

	if frame.Empty() {
		a.stats.AcquisitionFailed()
		a.logger.Debugw("empty frame", "frame", a.frame)
		a.wait(ctx, a.config.RetryDelay)
		return Result{Frame: a.frame, Timestamp: a.clock.Now(), Err: capture.ErrEmptyFrame}
	}

	result := a.ProcessFrame(frame)
	a.sink.Show(*frame)

	if a.publisher != nil {
		a.publisher.Publish(result)
	}
	return result
}

func (a *Annotator) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ProcessFrame infers keypoints for frame and draws them onto it. Inference
// failures leave the frame untouched.
func (a *Annotator) ProcessFrame(frame *gocv.Mat) Result {
	result := Result{Frame: a.frame, Timestamp: a.clock.Now()}

	var keypoints []pose.Keypoint
	if a.motion != nil {
		if moved, _ := a.motion.Detect(frame); !moved && a.last != nil {
			keypoints = a.last
			result.Still = true
			a.stats.StillSkipped()
		}
	}

	if keypoints == nil {
		var err error
		keypoints, err = a.infer(*frame)
		if err != nil {
			a.stats.InferenceFailed()
			a.logger.Warnw("inference failed", "frame", a.frame, "error", err)
			// The next frame must run inference instead of reusing keypoints
			// from before the failure.
			if a.motion != nil {
				a.motion.Reset()
			}
			result.Err = err
			return result
		}
		a.last = keypoints
	}

	result.Markers = a.overlay.Draw(frame, keypoints)
	result.Keypoints = pose.Visible(keypoints, a.config.Style.Threshold)
	a.stats.Markers(result.Markers)

	if a.config.Posture {
		result.Posture = pose.ClassifyPosture(keypoints, frame.Rows(), a.config.Style.Threshold)
		a.overlay.DrawPosture(frame, result.Posture)
		a.updatePosture(result.Posture)
	}

	return result
}

func (a *Annotator) infer(frame gocv.Mat) ([]pose.Keypoint, error) {
	start := a.clock.Now()
	stack, err := a.engine.Infer(frame)
	a.stats.Inferred(a.clock.Since(start))
	if err != nil {
		return nil, err
	}
	return pose.Extract(stack, a.config.Parts, pose.FrameSize(frame))
}

// updatePosture remembers the last known posture and alerts on the
// transition into lying.
func (a *Annotator) updatePosture(p pose.Posture) {
	if p == pose.PostureUnknown || p == a.posture {
		return
	}
	prev := a.posture
	a.posture = p
	a.logger.Infow("posture changed", "from", prev.String(), "to", p.String())

	if p != pose.PostureLying || a.alerter == nil {
		return
	}
	n := a.alerter.Dispatch(&plugin.Request{
		Action:    plugin.ActionPostureChanged,
		Session:   a.session,
		Posture:   p.String(),
		Previous:  prev.String(),
		Timestamp: a.clock.Now(),
	})
	a.logger.Debugw("posture alert dispatched", "plugins", n)
}

// Close releases the camera, the engine and the sink, and waits for
// pending alerts. Calling it twice is a no-op.
func (a *Annotator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if a.alerter != nil {
		a.alerter.Wait()
	}
	if a.motion != nil {
		a.motion.Close()
	}
	return multierr.Combine(
		a.camera.Close(),
		a.engine.Close(),
		a.sink.Close(),
	)
}
