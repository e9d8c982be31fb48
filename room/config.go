package room

import (
	"time"

	"github.com/wfunc/triviaserver/config"
	"github.com/wfunc/triviaserver/question"
)

// Config is the immutable per-room game setup.
type Config struct {
	MaxPlayers       int
	MaxLives         int
	MaxRounds        int
	PointsPerCorrect int
	AskingTimeout    time.Duration
	RevealDelay      time.Duration
	RoundEndDelay    time.Duration
	NextRoundDelay   time.Duration
	AutoResetDelay   time.Duration
	TypeMix          question.TypeMix
	// SourceTimeout bounds the synchronous pack fetch done by Start.
	SourceTimeout time.Duration
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		MaxPlayers:       8,
		MaxLives:         3,
		MaxRounds:        10,
		PointsPerCorrect: 100,
		AskingTimeout:    20 * time.Second,
		RevealDelay:      1500 * time.Millisecond,
		RoundEndDelay:    5 * time.Second,
		NextRoundDelay:   3 * time.Second,
		AutoResetDelay:   30 * time.Second,
		TypeMix: question.TypeMix{
			question.KindTrivia:    0.60,
			question.KindWhoSaidIt: 0.15,
			question.KindChaos:     0.15,
			question.KindRoast:     0.10,
		},
		SourceTimeout: 5 * time.Second,
	}
}

// ConfigFrom converts the loaded game section, keeping defaults for unset
// values.
func ConfigFrom(gc config.GameConfig) Config {
	cfg := DefaultConfig()
	if gc.MaxPlayers > 0 {
		cfg.MaxPlayers = gc.MaxPlayers
	}
	if gc.MaxLives > 0 {
		cfg.MaxLives = gc.MaxLives
	}
	if gc.MaxRounds > 0 {
		cfg.MaxRounds = gc.MaxRounds
	}
	if gc.PointsPerCorrect > 0 {
		cfg.PointsPerCorrect = gc.PointsPerCorrect
	}
	if gc.AskingTimeout > 0 {
		cfg.AskingTimeout = gc.AskingTimeout
	}
	if gc.RevealDelay > 0 {
		cfg.RevealDelay = gc.RevealDelay
	}
	if gc.RoundEndDelay > 0 {
		cfg.RoundEndDelay = gc.RoundEndDelay
	}
	if gc.NextRoundDelay > 0 {
		cfg.NextRoundDelay = gc.NextRoundDelay
	}
	if gc.AutoResetDelay > 0 {
		cfg.AutoResetDelay = gc.AutoResetDelay
	}
	if mix := question.ParseMix(gc.TypeMix); len(mix) > 0 {
		cfg.TypeMix = mix
	}
	return cfg
}
