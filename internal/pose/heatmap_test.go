package pose

import (
	"errors"
	"image"
	"testing"
)

func TestHeatmap_Peak(t *testing.T) {
	tests := []struct {
		name      string
		heatmap   Heatmap
		wantPoint image.Point
		wantValue float32
	}{
		{
			name: "single maximum",
			heatmap: Heatmap{Width: 3, Height: 2, Data: []float32{
				0.1, 0.2, 0.1,
				0.3, 0.9, 0.0,
			}},
			wantPoint: image.Pt(1, 1),
			wantValue: 0.9,
		},
		{
			name: "tie resolves to first in row-major order",
			heatmap: Heatmap{Width: 3, Height: 3, Data: []float32{
				0.0, 0.0, 0.0,
				0.0, 0.0, 0.7,
				0.7, 0.0, 0.0,
			}},
			wantPoint: image.Pt(2, 1),
			wantValue: 0.7,
		},
		{
			name: "tie within one row picks leftmost",
			heatmap: Heatmap{Width: 4, Height: 1, Data: []float32{
				0.0, 0.5, 0.5, 0.5,
			}},
			wantPoint: image.Pt(1, 0),
			wantValue: 0.5,
		},
		{
			name: "all negative",
			heatmap: Heatmap{Width: 2, Height: 2, Data: []float32{
				-0.5, -0.2,
				-0.1, -0.3,
			}},
			wantPoint: image.Pt(0, 1),
			wantValue: -0.1,
		},
		{
			name:      "empty",
			heatmap:   Heatmap{},
			wantPoint: image.Pt(0, 0),
			wantValue: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, v := tt.heatmap.Peak()
			if p != tt.wantPoint {
				t.Errorf("Peak() point = %v, want %v", p, tt.wantPoint)
			}
			if v != tt.wantValue {
				t.Errorf("Peak() value = %f, want %f", v, tt.wantValue)
			}
		})
	}
}

func TestHeatmap_At(t *testing.T) {
	h := Heatmap{Width: 2, Height: 2, Data: []float32{1, 2, 3, 4}}
	if got := h.At(1, 0); got != 2 {
		t.Errorf("At(1,0) = %f, want 2", got)
	}
	if got := h.At(0, 1); got != 3 {
		t.Errorf("At(0,1) = %f, want 3", got)
	}
}

func TestNewStack(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s, err := NewStack(2, 3, 4, make([]float32, 24))
		if err != nil {
			t.Fatalf("NewStack() error = %v", err)
		}
		if s.Size() != image.Pt(4, 3) {
			t.Errorf("Size() = %v, want (4,3)", s.Size())
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewStack(2, 3, 4, make([]float32, 23))
		if !errors.Is(err, ErrStackShape) {
			t.Errorf("expected ErrStackShape, got %v", err)
		}
	})

	t.Run("zero dimension", func(t *testing.T) {
		_, err := NewStack(0, 3, 4, nil)
		if !errors.Is(err, ErrStackShape) {
			t.Errorf("expected ErrStackShape, got %v", err)
		}
	})
}

func TestStack_Channel(t *testing.T) {
	s := PeakStack(3, 2, 2, map[int]Peak{
		0: {X: 0, Y: 0, Value: 0.1},
		2: {X: 1, Y: 1, Value: 0.8},
	})

	if got := s.Channel(0).At(0, 0); got != 0.1 {
		t.Errorf("channel 0 (0,0) = %f, want 0.1", got)
	}
	if got := s.Channel(2).At(1, 1); got != 0.8 {
		t.Errorf("channel 2 (1,1) = %f, want 0.8", got)
	}
	if _, v := s.Channel(1).Peak(); v != 0 {
		t.Errorf("channel 1 peak = %f, want 0", v)
	}

	defer func() {
		if recover() == nil {
			t.Error("Channel(3) should panic")
		}
	}()
	s.Channel(3)
}
