package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration. The bot assumes a single-process
// deployment: join caches and voice sessions are process-local and would
// under-count if the bot were sharded across instances.
type Config struct {
	DiscordToken      string            `yaml:"discord_token"`
	DatabasePath      string            `yaml:"database_path"`
	LogLevel          string            `yaml:"log_level"`
	DefaultLogChannel string            `yaml:"default_log_channel"`
	RetentionDays     int               `yaml:"retention_days"`
	Operators         []string          `yaml:"operators"`
	Health            HealthConfig      `yaml:"health"`
	Abuse             AbuseConfig       `yaml:"abuse"`
	Spam              SpamConfig        `yaml:"spam"`
	Progression       ProgressionConfig `yaml:"progression"`
	Lockdown          LockdownConfig    `yaml:"lockdown"`
	Escalation        EscalationConfig  `yaml:"escalation"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AbuseConfig holds per-action rate thresholds. A threshold of zero disables
// the check for that action.
type AbuseConfig struct {
	Enabled                    bool `yaml:"enabled"`
	BanThreshold               int  `yaml:"ban_threshold"`
	BanWindowSeconds           int  `yaml:"ban_window_seconds"`
	KickThreshold              int  `yaml:"kick_threshold"`
	KickWindowSeconds          int  `yaml:"kick_window_seconds"`
	ChannelDeleteThreshold     int  `yaml:"channel_delete_threshold"`
	ChannelDeleteWindowSeconds int  `yaml:"channel_delete_window_seconds"`
	RoleDeleteThreshold        int  `yaml:"role_delete_threshold"`
	RoleDeleteWindowSeconds    int  `yaml:"role_delete_window_seconds"`
	JoinThreshold              int  `yaml:"join_threshold"`
	JoinWindowSeconds          int  `yaml:"join_window_seconds"`
	JoinPruneSeconds           int  `yaml:"join_prune_seconds"`
}

type SpamConfig struct {
	Messages      int `yaml:"messages"`
	WindowSeconds int `yaml:"window_seconds"`
}

type ProgressionConfig struct {
	MessageXP         int64          `yaml:"message_xp"`
	CooldownSeconds   int            `yaml:"cooldown_seconds"`
	VoiceXPPerMinute  int64          `yaml:"voice_xp_per_minute"`
	VoiceFlushSeconds int            `yaml:"voice_flush_seconds"`
	LevelRoles        map[int]string `yaml:"level_roles"`
}

type LockdownConfig struct {
	Minutes int `yaml:"minutes"`
}

// EscalationConfig decides what happens when the abuse detector trips.
// Mode is one of strip_roles, ban, kick. Dedupe is "once" (one escalation per
// burst) or "every" (re-escalate on each event past the threshold).
type EscalationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"`
	Dedupe  string `yaml:"dedupe"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:      "/data/guildwarden.db",
		LogLevel:          "info",
		RetentionDays:     14,
		DefaultLogChannel: "",
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Abuse: AbuseConfig{
			Enabled:                    true,
			BanThreshold:               5,
			BanWindowSeconds:           60,
			KickThreshold:              5,
			KickWindowSeconds:          60,
			ChannelDeleteThreshold:     3,
			ChannelDeleteWindowSeconds: 30,
			RoleDeleteThreshold:        3,
			RoleDeleteWindowSeconds:    30,
			JoinThreshold:              6,
			JoinWindowSeconds:          10,
			JoinPruneSeconds:           30,
		},
		Spam: SpamConfig{Messages: 6, WindowSeconds: 8},
		Progression: ProgressionConfig{
			MessageXP:         15,
			CooldownSeconds:   60,
			VoiceXPPerMinute:  2,
			VoiceFlushSeconds: 300,
			LevelRoles:        map[int]string{},
		},
		Lockdown:   LockdownConfig{Minutes: 10},
		Escalation: EscalationConfig{Enabled: true, Mode: "strip_roles", Dedupe: "once"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	cfg.Escalation.Mode = normalizeMode(cfg.Escalation.Mode)
	cfg.Escalation.Dedupe = normalizeDedupe(cfg.Escalation.Dedupe)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Abuse.Enabled = envBool("ABUSE_ENABLED", cfg.Abuse.Enabled)
	cfg.Abuse.BanThreshold = envInt("ABUSE_BAN_THRESHOLD", cfg.Abuse.BanThreshold)
	cfg.Abuse.BanWindowSeconds = envInt("ABUSE_BAN_WINDOW_SECONDS", cfg.Abuse.BanWindowSeconds)
	cfg.Abuse.KickThreshold = envInt("ABUSE_KICK_THRESHOLD", cfg.Abuse.KickThreshold)
	cfg.Abuse.KickWindowSeconds = envInt("ABUSE_KICK_WINDOW_SECONDS", cfg.Abuse.KickWindowSeconds)
	cfg.Abuse.ChannelDeleteThreshold = envInt("ABUSE_CHANNEL_DELETE_THRESHOLD", cfg.Abuse.ChannelDeleteThreshold)
	cfg.Abuse.ChannelDeleteWindowSeconds = envInt("ABUSE_CHANNEL_DELETE_WINDOW_SECONDS", cfg.Abuse.ChannelDeleteWindowSeconds)
	cfg.Abuse.RoleDeleteThreshold = envInt("ABUSE_ROLE_DELETE_THRESHOLD", cfg.Abuse.RoleDeleteThreshold)
	cfg.Abuse.RoleDeleteWindowSeconds = envInt("ABUSE_ROLE_DELETE_WINDOW_SECONDS", cfg.Abuse.RoleDeleteWindowSeconds)
	cfg.Abuse.JoinThreshold = envInt("ABUSE_JOIN_THRESHOLD", cfg.Abuse.JoinThreshold)
	cfg.Abuse.JoinWindowSeconds = envInt("ABUSE_JOIN_WINDOW_SECONDS", cfg.Abuse.JoinWindowSeconds)
	cfg.Spam.Messages = envInt("SPAM_MESSAGES", cfg.Spam.Messages)
	cfg.Spam.WindowSeconds = envInt("SPAM_WINDOW_SECONDS", cfg.Spam.WindowSeconds)
	cfg.Progression.MessageXP = envInt64("MESSAGE_XP", cfg.Progression.MessageXP)
	cfg.Progression.CooldownSeconds = envInt("XP_COOLDOWN_SECONDS", cfg.Progression.CooldownSeconds)
	cfg.Progression.VoiceXPPerMinute = envInt64("VOICE_XP_PER_MINUTE", cfg.Progression.VoiceXPPerMinute)
	cfg.Progression.VoiceFlushSeconds = envInt("VOICE_FLUSH_SECONDS", cfg.Progression.VoiceFlushSeconds)
	cfg.Lockdown.Minutes = envInt("LOCKDOWN_MINUTES", cfg.Lockdown.Minutes)
	cfg.Escalation.Enabled = envBool("ESCALATION_ENABLED", cfg.Escalation.Enabled)
	cfg.Escalation.Mode = envString("ESCALATION_MODE", cfg.Escalation.Mode)
	cfg.Escalation.Dedupe = envString("ESCALATION_DEDUPE", cfg.Escalation.Dedupe)

	if raw := os.Getenv("OPERATOR_IDS"); raw != "" {
		cfg.Operators = splitList(raw)
	}
	if raw := os.Getenv("LEVEL_ROLES"); raw != "" {
		if parsed := parseLevelRoles(raw); len(parsed) > 0 {
			cfg.Progression.LevelRoles = parsed
		}
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseLevelRoles parses "5:roleA,10:roleB" pairs.
func parseLevelRoles(raw string) map[int]string {
	out := map[int]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil || level <= 0 {
			continue
		}
		roleID := strings.TrimSpace(kv[1])
		if roleID == "" {
			continue
		}
		out[level] = roleID
	}
	return out
}

func normalizeMode(value string) string {
	switch strings.ToLower(value) {
	case "ban":
		return "ban"
	case "kick":
		return "kick"
	default:
		return "strip_roles"
	}
}

func normalizeDedupe(value string) string {
	switch strings.ToLower(value) {
	case "every":
		return "every"
	default:
		return "once"
	}
}
