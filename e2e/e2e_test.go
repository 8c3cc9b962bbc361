package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/posecam/internal/app"
	"github.com/ayusman/posecam/internal/capture"
	"github.com/ayusman/posecam/internal/config"
	"github.com/ayusman/posecam/internal/plugin"
	"github.com/ayusman/posecam/internal/pose"
	"github.com/ayusman/posecam/internal/render"
	"github.com/ayusman/posecam/internal/server"
	"github.com/ayusman/posecam/internal/store"
)

// lyingStack puts a confident head and weaker torso and leg joints in a
// flat band.
func lyingStack() pose.Stack {
	peaks := map[int]pose.Peak{
		int(pose.Head): {X: 10, Y: 10, Value: 0.9},
	}
	for i, part := range []pose.BodyPart{
		pose.RightShoulder, pose.LeftShoulder,
		pose.RightHip, pose.LeftHip,
		pose.RightKnee, pose.LeftKnee,
		pose.RightAnkle, pose.LeftAnkle,
	} {
		peaks[int(part)] = pose.Peak{X: 5 + 4*i, Y: 30 + i%3, Value: 0.3}
	}
	return pose.PeakStack(pose.NumParts, 46, 46, peaks)
}

type frameMessage struct {
	Frame     int    `json:"frame"`
	Markers   int    `json:"markers"`
	Posture   string `json:"posture"`
	Keypoints []struct {
		Part string `json:"part"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
	} `json:"keypoints"`
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()

	// Stored settings feed the run configuration.
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	if err := s.Settings().Set(config.KeyThreshold, "0.5"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	stored, err := s.Settings().All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	cfg := config.Default()
	if err := cfg.Apply(stored); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// A plugin records any posture alert it receives.
	pluginDir := filepath.Join(tmpDir, "plugins", "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	received := filepath.Join(tmpDir, "alert.json")
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["` + plugin.ActionPostureChanged + `"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	script := "#!/bin/sh\ncat > '" + received + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	manager := plugin.NewManager(filepath.Dir(pluginDir))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(5*time.Second), zap.NewNop().Sugar())
	defer dispatcher.Close()

	// Camera, network and window are replaced by mocks.
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	camera := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	engine := pose.NewMockEngine(lyingStack())
	sink := render.NewMockSink(0)

	style := render.DefaultStyle()
	style.Threshold = cfg.Threshold
	runCfg := app.DefaultConfig()
	runCfg.Style = style
	runCfg.MaxFrames = 3

	var annotator *app.Annotator
	srv := server.New(server.Config{
		Session: "e2e",
		Stats:   func() any { return annotator.Stats().Snapshot() },
		Store:   s,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(t.Context())

	annotator = app.New(runCfg, camera, engine, sink,
		app.WithSession("e2e"),
		app.WithAlerter(dispatcher),
		app.WithPublisher(srv),
	)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/keypoints", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Keypoints().Clients() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("feed client not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("Run", func(t *testing.T) {
		if err := annotator.Run(t.Context()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if sink.Shown() != 3 {
			t.Errorf("Shown() = %d, want 3", sink.Shown())
		}
	})

	t.Run("KeypointFeed", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg frameMessage
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("ReadJSON() error = %v", err)
			}
			if msg.Frame != want {
				t.Errorf("frame = %d, want %d", msg.Frame, want)
			}
			// The stored 0.5 threshold hides every joint but the head.
			if msg.Markers != 1 || len(msg.Keypoints) != 1 {
				t.Errorf("markers = %d keypoints = %d, want 1 and 1", msg.Markers, len(msg.Keypoints))
			}
			if len(msg.Keypoints) == 1 && (msg.Keypoints[0].X != 139 || msg.Keypoints[0].Y != 104) {
				t.Errorf("head at (%d,%d), want (139,104)", msg.Keypoints[0].X, msg.Keypoints[0].Y)
			}
		}
	})

	t.Run("Stats", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/stats")
		if err != nil {
			t.Fatalf("GET /api/stats error = %v", err)
		}
		defer resp.Body.Close()

		var snap app.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if snap.Frames != 3 || snap.Inferences != 3 || snap.Markers != 3 {
			t.Errorf("stats = %+v", snap)
		}
	})

	t.Run("Settings", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/settings/" + config.KeyThreshold)
		if err != nil {
			t.Fatalf("GET /api/settings error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var setting struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&setting); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if setting.Value != "0.5" {
			t.Errorf("value = %q, want 0.5", setting.Value)
		}
	})

	t.Run("Close", func(t *testing.T) {
		if err := annotator.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !engine.Closed() || sink.Visible() {
			t.Error("engine or sink still open after Close")
		}
		// Hidden joints leave the posture unknown, so nothing alerts.
		if launched, _ := dispatcher.Counts(); launched != 0 {
			t.Errorf("launched %d plugins, want 0", launched)
		}
		if _, err := os.Stat(received); !os.IsNotExist(err) {
			t.Errorf("alert recorded unexpectedly: %v", err)
		}
	})
}

func TestE2E_PostureAlert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	pluginDir := filepath.Join(tmpDir, "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	received := filepath.Join(tmpDir, "alert.json")
	manifest := `{"name":"recorder","executable":"run.sh","actions":["` + plugin.ActionPostureChanged + `"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	script := "#!/bin/sh\ncat > '" + received + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	manager := plugin.NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(5*time.Second), zap.NewNop().Sugar())
	defer dispatcher.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	runCfg := app.DefaultConfig()
	runCfg.MaxFrames = 2
	annotator := app.New(runCfg,
		capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		pose.NewMockEngine(lyingStack()),
		render.NewMockSink(0),
		app.WithSession("alert-run"),
		app.WithAlerter(dispatcher),
	)

	if err := annotator.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := annotator.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if launched, failed := dispatcher.Counts(); launched != 1 || failed != 0 {
		t.Fatalf("Counts() = (%d, %d), want (1, 0)", launched, failed)
	}

	data, err := os.ReadFile(received)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	var req plugin.Request
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Session != "alert-run" || req.Posture != "lying" || req.Previous != "unknown" {
		t.Errorf("request = %+v", req)
	}
}
