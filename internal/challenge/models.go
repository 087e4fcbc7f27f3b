// Package challenge implements the scoring game: timed note challenges, the
// player's running statistics, and the result shown after each attempt.
package challenge

import (
	"fmt"
	"time"

	"github.com/ayusman/gestosongs/internal/gesture"
)

// Game rules.
const (
	BasePoints    = 100
	PerfectWindow = 500 * time.Millisecond
	Cooldown      = time.Second
	LevelEvery    = 5

	maxTimeLimit  = 3500 * time.Millisecond
	minTimeLimit  = 1500 * time.Millisecond
	levelStep     = 200 * time.Millisecond
	bonusInterval = 10 * time.Millisecond
)

// DefaultResultDisplay is how long a result stays on screen.
const DefaultResultDisplay = time.Second

// TimeLimit returns the time allowed for a challenge at the given level:
// 3.5s shrinking by 0.2s per level, never below 1.5s.
func TimeLimit(level int) time.Duration {
	limit := maxTimeLimit - time.Duration(level)*levelStep
	if limit < minTimeLimit {
		return minTimeLimit
	}
	if limit > maxTimeLimit {
		return maxTimeLimit
	}
	return limit
}

// Challenge is a note the player must play with a given hand before the time
// limit runs out.
type Challenge struct {
	Note      string        `json:"note"`
	FingerID  int           `json:"finger_id"`
	Hand      gesture.Hand  `json:"hand"`
	StartTime time.Time     `json:"start_time"`
	TimeLimit time.Duration `json:"time_limit"`
}

// Stats are the player's running totals.
type Stats struct {
	Score           int `json:"score" yaml:"score"`
	TotalChallenges int `json:"total_challenges" yaml:"total_challenges"`
	CorrectHits     int `json:"correct_hits" yaml:"correct_hits"`
	Streak          int `json:"streak" yaml:"streak"`
	MaxStreak       int `json:"max_streak" yaml:"max_streak"`
	Level           int `json:"level" yaml:"level"`
	PerfectHits     int `json:"perfect_hits" yaml:"perfect_hits"`
}

// NewStats returns the stats of a fresh game.
func NewStats() Stats {
	return Stats{Level: 1}
}

// Accuracy is the percentage of challenges completed, 0 before the first.
func (s Stats) Accuracy() float64 {
	if s.TotalChallenges == 0 {
		return 0
	}
	return float64(s.CorrectHits) / float64(s.TotalChallenges) * 100
}

// ResultKind classifies a Result.
type ResultKind string

const (
	KindPerfect ResultKind = "perfect"
	KindPoints  ResultKind = "points"
	KindLevelUp ResultKind = "level_up"
	KindMissed  ResultKind = "missed"
)

// Result describes how the last challenge ended. It stays set until the
// caller clears it with Engine.ClearResult.
type Result struct {
	Kind      ResultKind `json:"kind"`
	Text      string     `json:"text"`
	Points    int        `json:"points"`
	Timestamp time.Time  `json:"timestamp"`

	Challenge Challenge     `json:"challenge"`
	Elapsed   time.Duration `json:"elapsed"`
	Perfect   bool          `json:"perfect"`
	Level     int           `json:"level"`
}

// Hit reports whether the challenge was completed.
func (r Result) Hit() bool {
	return r.Kind != KindMissed
}

const (
	textPerfect = "PERFECT!"
	textMissed  = "MISSED!"
)

func pointsText(points int) string {
	return fmt.Sprintf("+%d", points)
}

func levelUpText(level int) string {
	return fmt.Sprintf("LEVEL UP! %d", level)
}
