package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the root configuration for the duel client and the practice server.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Rules     RulesConfig     `mapstructure:"rules"`
	AI        AIConfig        `mapstructure:"ai"`
	GameOver  GameOverConfig  `mapstructure:"game_over"`
	Transport TransportConfig `mapstructure:"transport"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Practice  PracticeConfig  `mapstructure:"practice"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds the per-mode server endpoints.
type ServerConfig struct {
	AIURL   string `mapstructure:"ai_url"`
	RoomURL string `mapstructure:"room_url"`
}

// ModeDefaults are the starting values applied when a session is reset.
type ModeDefaults struct {
	PlayerHealth    int `mapstructure:"player_health"`
	OpponentHealth  int `mapstructure:"opponent_health"`
	MaxHealth       int `mapstructure:"max_health"`
	PlayerMana      int `mapstructure:"player_mana"`
	PlayerMaxMana   int `mapstructure:"player_max_mana"`
	OpponentMana    int `mapstructure:"opponent_mana"`
	OpponentMaxMana int `mapstructure:"opponent_max_mana"`
}

// RulesConfig carries the mana economy and deck sizing used by the offline game.
type RulesConfig struct {
	Offline  ModeDefaults `mapstructure:"offline"`
	OnlineAI ModeDefaults `mapstructure:"online_ai"`
	Room     ModeDefaults `mapstructure:"room"`

	ManaGrowth   int `mapstructure:"mana_growth"`
	ManaCap      int `mapstructure:"mana_cap"`
	ManaRegen    int `mapstructure:"mana_regen"`
	DeckSize     int `mapstructure:"deck_size"`
	StartingHand int `mapstructure:"starting_hand"`
}

// AIConfig paces the local opponent.
type AIConfig struct {
	ThinkDelay  time.Duration `mapstructure:"think_delay"`
	ActionDelay time.Duration `mapstructure:"action_delay"`
}

// GameOverConfig bounds the game-over sequence.
type GameOverConfig struct {
	PreDelay         time.Duration `mapstructure:"pre_delay"`
	AnimationTimeout time.Duration `mapstructure:"animation_timeout"`
}

// TransportConfig tunes the WebSocket client.
type TransportConfig struct {
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	WriteRate      float64       `mapstructure:"write_rate"`
	WriteBurst     int           `mapstructure:"write_burst"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// JournalConfig enables the on-disk session journal.
type JournalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// PracticeConfig configures the local practice server.
type PracticeConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads configuration from path (any format viper understands) layered over
// defaults and SPELLCLASH_* environment variables. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}
	return decode(v)
}

// Watch reloads the file behind path whenever it changes and hands the new
// configuration to onChange. Invalid edits are reported through onError and
// otherwise ignored.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SPELLCLASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.ai_url", "ws://localhost:8080/ws/ai")
	v.SetDefault("server.room_url", "ws://localhost:8080/ws/room")

	v.SetDefault("rules.offline.player_health", 30)
	v.SetDefault("rules.offline.opponent_health", 30)
	v.SetDefault("rules.offline.max_health", 30)
	v.SetDefault("rules.offline.player_mana", 10)
	v.SetDefault("rules.offline.player_max_mana", 10)
	v.SetDefault("rules.offline.opponent_mana", 1)
	v.SetDefault("rules.offline.opponent_max_mana", 1)

	v.SetDefault("rules.online_ai.player_health", 30)
	v.SetDefault("rules.online_ai.opponent_health", 30)
	v.SetDefault("rules.online_ai.max_health", 30)
	v.SetDefault("rules.online_ai.player_mana", 1)
	v.SetDefault("rules.online_ai.player_max_mana", 1)
	v.SetDefault("rules.online_ai.opponent_mana", 1)
	v.SetDefault("rules.online_ai.opponent_max_mana", 1)

	v.SetDefault("rules.room.player_health", 30)
	v.SetDefault("rules.room.opponent_health", 30)
	v.SetDefault("rules.room.max_health", 30)
	v.SetDefault("rules.room.player_mana", 1)
	v.SetDefault("rules.room.player_max_mana", 1)
	v.SetDefault("rules.room.opponent_mana", 1)
	v.SetDefault("rules.room.opponent_max_mana", 1)

	v.SetDefault("rules.mana_growth", 1)
	v.SetDefault("rules.mana_cap", 10)
	v.SetDefault("rules.mana_regen", 2)
	v.SetDefault("rules.deck_size", 30)
	v.SetDefault("rules.starting_hand", 5)

	v.SetDefault("ai.think_delay", time.Second)
	v.SetDefault("ai.action_delay", time.Second)

	v.SetDefault("game_over.pre_delay", 200*time.Millisecond)
	v.SetDefault("game_over.animation_timeout", 7*time.Second)

	v.SetDefault("transport.dial_timeout", 10*time.Second)
	v.SetDefault("transport.max_retries", 3)
	v.SetDefault("transport.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("transport.write_rate", 20.0)
	v.SetDefault("transport.write_burst", 5)
	v.SetDefault("transport.ping_period", 30*time.Second)
	v.SetDefault("transport.send_buffer", 64)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.directory", "journal")

	v.SetDefault("practice.address", ":8080")
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// Validate rejects values the game logic cannot run with.
func (c *Config) Validate() error {
	for name, d := range map[string]ModeDefaults{
		"offline":   c.Rules.Offline,
		"online_ai": c.Rules.OnlineAI,
		"room":      c.Rules.Room,
	} {
		if d.PlayerMaxMana < 0 || d.OpponentMaxMana < 0 {
			return fmt.Errorf("rules.%s: max mana must not be negative", name)
		}
		if d.PlayerMana > d.PlayerMaxMana || d.OpponentMana > d.OpponentMaxMana {
			return fmt.Errorf("rules.%s: starting mana exceeds max mana", name)
		}
	}
	if c.Rules.ManaCap <= 0 {
		return fmt.Errorf("rules.mana_cap must be positive, got %d", c.Rules.ManaCap)
	}
	if c.Rules.DeckSize < c.Rules.StartingHand {
		return fmt.Errorf("rules.deck_size (%d) smaller than rules.starting_hand (%d)", c.Rules.DeckSize, c.Rules.StartingHand)
	}
	if c.AI.ThinkDelay < 0 || c.AI.ActionDelay < 0 {
		return errors.New("ai delays must not be negative")
	}
	if c.GameOver.AnimationTimeout <= 0 {
		return errors.New("game_over.animation_timeout must be positive")
	}
	if c.Transport.WriteRate <= 0 || c.Transport.WriteBurst <= 0 {
		return errors.New("transport.write_rate and transport.write_burst must be positive")
	}
	return nil
}
