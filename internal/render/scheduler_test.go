package render

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
)

// doubleTask is a point operation: every sample is doubled in place.
type doubleTask struct{}

func (doubleTask) InputArea(out geom.Rect) geom.Rect {
	return out
}

func (doubleTask) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	for row := tile.Top; row < tile.Bottom; row++ {
		for col := tile.Left; col < tile.Right; col++ {
			dst.SetSample(row, col, 0, src.Sample(row, col, 0)*2)
		}
	}
	return nil
}

// blurTask is a padded operation: 3-tap horizontal box average with edge
// replication.
type blurTask struct{}

func (blurTask) InputArea(out geom.Rect) geom.Rect {
	return out.Pad(0, 1)
}

func (blurTask) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	for row := tile.Top; row < tile.Bottom; row++ {
		for col := tile.Left; col < tile.Right; col++ {
			sum := src.ConstrainedSample(row, col-1, 0) +
				src.Sample(row, col, 0) +
				src.ConstrainedSample(row, col+1, 0)
			dst.SetSample(row, col, 0, sum/3)
		}
	}
	return nil
}

type failTask struct{ err error }

func (failTask) InputArea(out geom.Rect) geom.Rect {
	return out
}

func (f failTask) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	if tile.Top >= 32 {
		return f.err
	}
	return nil
}

func rampBuffer(t *testing.T, bounds geom.Rect) *pixel.Buffer {
	t.Helper()
	b, err := pixel.NewBuffer(bounds, 1, pixel.Float32)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	for row := bounds.Top; row < bounds.Bottom; row++ {
		for col := bounds.Left; col < bounds.Right; col++ {
			b.SetSample(row, col, 0, float64(row*131+col*7))
		}
	}
	return b
}

func buffersEqual(t *testing.T, a, b *pixel.Buffer) {
	t.Helper()
	bounds := a.Bounds()
	if b.Bounds() != bounds {
		t.Fatalf("bounds differ: %+v vs %+v", bounds, b.Bounds())
	}
	for row := bounds.Top; row < bounds.Bottom; row++ {
		for col := bounds.Left; col < bounds.Right; col++ {
			av := a.Sample(row, col, 0)
			bv := b.Sample(row, col, 0)
			if av != bv {
				t.Fatalf("sample (%d, %d): %v vs %v", row, col, av, bv)
			}
		}
	}
}

func TestSchedulerInPlacePointTask(t *testing.T) {
	bounds := geom.NewRect(100, 60)
	buf := rampBuffer(t, bounds)

	s := &Scheduler{MaxTileWidth: 16, MaxTileHeight: 16, Workers: 1}
	if err := s.Run(context.Background(), doubleTask{}, buf, buf, bounds); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for row := bounds.Top; row < bounds.Bottom; row++ {
		for col := bounds.Left; col < bounds.Right; col++ {
			want := float64(row*131+col*7) * 2
			if got := buf.Sample(row, col, 0); got != want {
				t.Fatalf("sample (%d, %d) = %v, want %v", row, col, got, want)
			}
		}
	}
}

// Rendering with one whole-image tile and rendering with any smaller tile
// grid must agree sample for sample, for any worker count.
func TestSchedulerSeamConsistency(t *testing.T) {
	bounds := geom.NewRect(97, 53)
	src := rampBuffer(t, bounds)

	reference, err := pixel.NewBuffer(bounds, 1, pixel.Float32)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	whole := &Scheduler{MaxTileWidth: 1024, MaxTileHeight: 1024, Workers: 1}
	if err := whole.Run(context.Background(), blurTask{}, src, reference, bounds); err != nil {
		t.Fatalf("whole-image Run: %v", err)
	}

	configs := []Scheduler{
		{MaxTileWidth: 8, MaxTileHeight: 8, Workers: 1},
		{MaxTileWidth: 17, MaxTileHeight: 11, Workers: 1},
		{MaxTileWidth: 8, MaxTileHeight: 8, Workers: 4},
		{MaxTileWidth: 32, MaxTileHeight: 5, Workers: 8},
	}
	for _, cfg := range configs {
		dst, err := pixel.NewBuffer(bounds, 1, pixel.Float32)
		if err != nil {
			t.Fatalf("NewBuffer: %v", err)
		}
		if err := cfg.Run(context.Background(), blurTask{}, src, dst, bounds); err != nil {
			t.Fatalf("tiled Run (%dx%d, %d workers): %v",
				cfg.MaxTileWidth, cfg.MaxTileHeight, cfg.Workers, err)
		}
		cfg.Close()
		buffersEqual(t, reference, dst)
	}
}

func TestSchedulerCancellation(t *testing.T) {
	bounds := geom.NewRect(64, 64)
	src := rampBuffer(t, bounds)
	dst, err := pixel.NewBuffer(bounds, 1, pixel.Float32)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Scheduler{MaxTileWidth: 8, MaxTileHeight: 8, Workers: 4}
	defer s.Close()
	err = s.Run(ctx, doubleTask{}, src, dst, bounds)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run on cancelled context: error = %v, want context.Canceled", err)
	}
}

func TestSchedulerTaskErrorAbortsPass(t *testing.T) {
	bounds := geom.NewRect(64, 64)
	src := rampBuffer(t, bounds)
	dst, err := pixel.NewBuffer(bounds, 1, pixel.Float32)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	sentinel := errors.New("bad tile")
	for _, workers := range []int{1, 4} {
		s := &Scheduler{MaxTileWidth: 16, MaxTileHeight: 16, Workers: workers}
		err := s.Run(context.Background(), failTask{err: sentinel}, src, dst, bounds)
		if !errors.Is(err, sentinel) {
			t.Errorf("Run with %d workers: error = %v, want wrapped sentinel", workers, err)
		}
		s.Close()
	}
}

// One scheduler serves many Run calls on a single worker pool, and keeps
// working (sequentially) even after Close.
func TestSchedulerPoolReuse(t *testing.T) {
	bounds := geom.NewRect(40, 40)
	buf := rampBuffer(t, bounds)

	s := &Scheduler{MaxTileWidth: 8, MaxTileHeight: 8, Workers: 4}
	for pass := 0; pass < 3; pass++ {
		if err := s.Run(context.Background(), doubleTask{}, buf, buf, bounds); err != nil {
			t.Fatalf("Run pass %d: %v", pass, err)
		}
	}
	s.Close()
	if err := s.Run(context.Background(), doubleTask{}, buf, buf, bounds); err != nil {
		t.Fatalf("Run after Close: %v", err)
	}
	s.Close()

	for row := bounds.Top; row < bounds.Bottom; row++ {
		for col := bounds.Left; col < bounds.Right; col++ {
			want := float64(row*131+col*7) * 16
			if got := buf.Sample(row, col, 0); got != want {
				t.Fatalf("sample (%d, %d) = %v, want %v", row, col, got, want)
			}
		}
	}
}

func TestSchedulerEmptyBounds(t *testing.T) {
	bounds := geom.NewRect(16, 16)
	src := rampBuffer(t, bounds)

	s := &Scheduler{Workers: 1}
	if err := s.Run(context.Background(), doubleTask{}, src, src, geom.Rect{}); err != nil {
		t.Fatalf("Run over empty bounds: %v", err)
	}
}

func BenchmarkSchedulerRun(b *testing.B) {
	bounds := geom.NewRect(1024, 1024)
	src, err := pixel.NewBuffer(bounds, 1, pixel.Float32)
	if err != nil {
		b.Fatalf("NewBuffer: %v", err)
	}
	src.Fill(0.5)

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers-%d", workers), func(b *testing.B) {
			s := &Scheduler{Workers: workers}
			defer s.Close()
			for i := 0; i < b.N; i++ {
				if err := s.Run(context.Background(), doubleTask{}, src, src, bounds); err != nil {
					b.Fatalf("Run: %v", err)
				}
			}
		})
	}
}

func TestInPlaceDetection(t *testing.T) {
	if !InPlace(doubleTask{}) {
		t.Error("InPlace(point task) = false")
	}
	if InPlace(blurTask{}) {
		t.Error("InPlace(padded task) = true")
	}
}
