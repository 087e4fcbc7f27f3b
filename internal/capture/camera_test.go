package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantFPS    int
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "zero options use defaults",
			opts:       Options{},
			wantFPS:    DefaultFPS,
			wantWidth:  DefaultWidth,
			wantHeight: DefaultHeight,
		},
		{
			name:       "explicit options",
			opts:       Options{DeviceID: 1, Width: 640, Height: 480, FPS: 30},
			wantFPS:    30,
			wantWidth:  640,
			wantHeight: 480,
		},
		{
			name:       "partial size falls back to default size",
			opts:       Options{DeviceID: 2, Width: 640},
			wantFPS:    DefaultFPS,
			wantWidth:  DefaultWidth,
			wantHeight: DefaultHeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.opts)

			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}

			w, h := cam.Size()
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("Size() = %dx%d, want %dx%d", w, h, tt.wantWidth, tt.wantHeight)
			}

			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 10", fps: 10, wantFPS: 10},
		{name: "set to 30", fps: 30, wantFPS: 30},
		{name: "set to 1", fps: 1, wantFPS: 1},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 1},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultOptions())

	err := cam.Open()
	if err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		w, h := cam.Size()
		if mat.Cols() != w || mat.Rows() != h {
			t.Errorf("Size() = %dx%d but frame is %dx%d", w, h, mat.Cols(), mat.Rows())
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}

	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}

func TestMirror(t *testing.T) {
	mat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV8U)
	defer mat.Close()
	mat.SetUCharAt(0, 0, 200)

	Mirror(&mat)

	if got := mat.GetUCharAt(0, 2); got != 200 {
		t.Errorf("expected pixel moved to the right edge, got %d", got)
	}
	if got := mat.GetUCharAt(0, 0); got != 0 {
		t.Errorf("expected left edge cleared, got %d", got)
	}

	// nil and empty mats are ignored
	Mirror(nil)
	empty := gocv.NewMat()
	defer empty.Close()
	Mirror(&empty)
}

func TestEncodeJPEG(t *testing.T) {
	t.Run("encodes a frame", func(t *testing.T) {
		mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		defer mat.Close()

		data, err := EncodeJPEG(&mat)
		if err != nil {
			t.Fatalf("EncodeJPEG() error = %v", err)
		}
		// JPEG SOI marker
		if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
			t.Errorf("expected JPEG header, got % x", data[:min(len(data), 4)])
		}
	})

	t.Run("rejects empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()

		if _, err := EncodeJPEG(&empty); !errors.Is(err, ErrEmptyFrame) {
			t.Errorf("expected ErrEmptyFrame, got %v", err)
		}
	})
}
