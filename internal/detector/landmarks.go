// Package detector provides the hand-tracking seam: landmark types, the
// Detector interface and its MediaPipe and mock implementations.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Fingertips lists the landmarks that can be pressed against the thumb tip.
var Fingertips = []int{IndexTip, MiddleTip, RingTip, PinkyTip}

// FingerName returns a human-readable name for a fingertip landmark.
func FingerName(id int) string {
	switch id {
	case ThumbTip:
		return "thumb"
	case IndexTip:
		return "index"
	case MiddleTip:
		return "middle"
	case RingTip:
		return "ring"
	case PinkyTip:
		return "pinky"
	default:
		return "landmark"
	}
}

// ValidLandmark reports whether id addresses one of the 21 hand landmarks.
func ValidLandmark(id int) bool {
	return id >= 0 && id < NumLandmarks
}

// Point3D represents a 3D point in space with x, y, z coordinates.
// X and Y are normalized to [0,1] of the frame size; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Pixel returns the landmark's (x, y) position scaled to a frame of the
// given pixel size. ok is false for an unknown id or a non-finite position.
func (h *HandLandmarks) Pixel(id, width, height int) (x, y float64, ok bool) {
	if h == nil || !ValidLandmark(id) {
		return 0, 0, false
	}
	p := h.Points[id]
	x = p.X * float64(width)
	y = p.Y * float64(height)
	if !finite(x) || !finite(y) {
		return 0, 0, false
	}
	return x, y, true
}

// PixelDistance returns the 2D distance in pixels between two landmarks.
// ok is false when either landmark cannot be placed in the frame.
func (h *HandLandmarks) PixelDistance(a, b, width, height int) (float64, bool) {
	ax, ay, ok := h.Pixel(a, width, height)
	if !ok {
		return 0, false
	}
	bx, by, ok := h.Pixel(b, width, height)
	if !ok {
		return 0, false
	}
	dx := ax - bx
	dy := ay - by
	return math.Sqrt(dx*dx + dy*dy), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
