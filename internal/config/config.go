// Package config loads game and server settings from the environment and
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Game holds the read-only rules of a single game.
type Game struct {
	HumanPlayers    int `env:"TRIPLECLAIM_HUMAN_PLAYERS" envDefault:"1"`
	ComputerPlayers int `env:"TRIPLECLAIM_COMPUTER_PLAYERS" envDefault:"3"`

	BoardSize int `env:"TRIPLECLAIM_BOARD_SIZE" envDefault:"12"`
	// FeatureSize is the number of items in a valid claim. The built-in rules
	// also use it as the number of values each feature can take.
	FeatureSize  int `env:"TRIPLECLAIM_FEATURE_SIZE" envDefault:"3"`
	FeatureCount int `env:"TRIPLECLAIM_FEATURE_COUNT" envDefault:"4"`
	UniverseSize int `env:"TRIPLECLAIM_UNIVERSE_SIZE" envDefault:"81"`

	TurnTimeout        time.Duration `env:"TRIPLECLAIM_TURN_TIMEOUT" envDefault:"60s"`
	TurnTimeoutWarning time.Duration `env:"TRIPLECLAIM_TURN_TIMEOUT_WARNING" envDefault:"5s"`
	PointFreeze        time.Duration `env:"TRIPLECLAIM_POINT_FREEZE" envDefault:"1s"`
	PenaltyFreeze      time.Duration `env:"TRIPLECLAIM_PENALTY_FREEZE" envDefault:"3s"`
	EndGamePause       time.Duration `env:"TRIPLECLAIM_END_GAME_PAUSE" envDefault:"5s"`

	// RulesScript points at a Lua file defining is_match(items). Empty selects
	// the built-in feature rules.
	RulesScript string `env:"TRIPLECLAIM_RULES_SCRIPT"`
}

// Players returns the total number of players, humans first.
func (g Game) Players() int {
	return g.HumanPlayers + g.ComputerPlayers
}

// Validate reports every illegal setting at once.
func (g Game) Validate() error {
	var errs []error
	if g.HumanPlayers < 0 || g.ComputerPlayers < 0 {
		errs = append(errs, errors.New("player counts must not be negative"))
	}
	if g.Players() < 1 {
		errs = append(errs, errors.New("at least one player is required"))
	}
	if g.BoardSize < 1 {
		errs = append(errs, fmt.Errorf("board size %d must be positive", g.BoardSize))
	}
	if g.FeatureSize < 1 {
		errs = append(errs, fmt.Errorf("feature size %d must be positive", g.FeatureSize))
	}
	if g.FeatureSize > g.BoardSize {
		errs = append(errs, fmt.Errorf("feature size %d exceeds board size %d", g.FeatureSize, g.BoardSize))
	}
	if g.UniverseSize < g.FeatureSize {
		errs = append(errs, fmt.Errorf("universe size %d is smaller than feature size %d", g.UniverseSize, g.FeatureSize))
	}
	if g.TurnTimeout <= 0 {
		errs = append(errs, fmt.Errorf("turn timeout %s must be positive", g.TurnTimeout))
	}
	if g.TurnTimeoutWarning < 0 {
		errs = append(errs, fmt.Errorf("turn timeout warning %s must not be negative", g.TurnTimeoutWarning))
	}
	if g.PointFreeze < 0 {
		errs = append(errs, fmt.Errorf("point freeze %s must not be negative", g.PointFreeze))
	}
	if g.PenaltyFreeze <= g.PointFreeze {
		errs = append(errs, fmt.Errorf("penalty freeze %s must be longer than point freeze %s", g.PenaltyFreeze, g.PointFreeze))
	}
	if g.EndGamePause < 0 {
		errs = append(errs, fmt.Errorf("end game pause %s must not be negative", g.EndGamePause))
	}
	return errors.Join(errs...)
}

// Server holds the transport settings.
type Server struct {
	Port            int      `env:"PORT" envDefault:"8080"`
	OriginAllowlist []string `env:"ORIGIN_ALLOWLIST" envSeparator:","`
	Dev             bool     `env:"TRIPLECLAIM_DEV"`
}

// Config is the full process configuration.
type Config struct {
	Game   Game
	Server Server
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseConfig loads defaults from the environment, applies flag overrides and
// validates the result.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	g := &cfg.Game
	fs.IntVar(&g.HumanPlayers, "humans", g.HumanPlayers, "Number of human players")
	fs.IntVar(&g.ComputerPlayers, "computers", g.ComputerPlayers, "Number of computer players")
	fs.IntVar(&g.BoardSize, "board-size", g.BoardSize, "Number of slots on the board")
	fs.IntVar(&g.FeatureSize, "feature-size", g.FeatureSize, "Items per valid claim")
	fs.IntVar(&g.FeatureCount, "feature-count", g.FeatureCount, "Features per item for the built-in rules")
	fs.IntVar(&g.UniverseSize, "universe-size", g.UniverseSize, "Number of distinct items")
	fs.DurationVar(&g.TurnTimeout, "turn-timeout", g.TurnTimeout, "Time before the board is reshuffled")
	fs.DurationVar(&g.TurnTimeoutWarning, "turn-timeout-warning", g.TurnTimeoutWarning, "Countdown warning window")
	fs.DurationVar(&g.PointFreeze, "point-freeze", g.PointFreeze, "Freeze after an accepted claim")
	fs.DurationVar(&g.PenaltyFreeze, "penalty-freeze", g.PenaltyFreeze, "Freeze after a rejected claim")
	fs.DurationVar(&g.EndGamePause, "end-game-pause", g.EndGamePause, "Pause before winners are announced")
	fs.StringVar(&g.RulesScript, "rules", g.RulesScript, "Lua rules script (empty for built-in rules)")

	s := &cfg.Server
	fs.IntVar(&s.Port, "port", s.Port, "The server port")
	fs.BoolVar(&s.Dev, "dev", s.Dev, "Development logging")
	origins := fs.String("origins", strings.Join(s.OriginAllowlist, ","), "Comma separated websocket origin allowlist")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	s.OriginAllowlist = splitList(*origins)
	if len(s.OriginAllowlist) == 0 {
		port := fmt.Sprint(s.Port)
		s.OriginAllowlist = []string{"http://localhost:" + port, "http://127.0.0.1:" + port}
	}

	if err := cfg.Game.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid game config: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
