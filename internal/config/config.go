package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind        string `yaml:"bind"`
	Port        int    `yaml:"port"`
	StaticDir   string `yaml:"static_dir"`
	AllowOrigin string `yaml:"allow_origin"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// SpeechConfig holds the pronunciation-assessment engine credentials.
// Missing credentials are not an error: the service degrades to
// simulated scoring so practice never blocks on configuration.
type SpeechConfig struct {
	Key       string `yaml:"key"`
	Region    string `yaml:"region"`
	Language  string `yaml:"language"`
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

func (c SpeechConfig) Configured() bool {
	return strings.TrimSpace(c.Key) != "" && strings.TrimSpace(c.Region) != ""
}

type TranscodeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Command   string `yaml:"command"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TranslateConfig struct {
	Key         string `yaml:"key"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	DefaultFrom string `yaml:"default_from"`
	DefaultTo   string `yaml:"default_to"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

func (c TranslateConfig) Configured() bool {
	return strings.TrimSpace(c.Key) != ""
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxAttempts   int    `yaml:"max_attempts"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Speech      SpeechConfig    `yaml:"speech"`
	Transcode   TranscodeConfig `yaml:"transcode"`
	Translate   TranslateConfig `yaml:"translate"`
	History     HistoryConfig   `yaml:"history"`
}

func Default() Config {
	return Config{
		RuntimeName: "tonetutor-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:        "0.0.0.0",
			Port:        8000,
			AllowOrigin: "*",
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Speech: SpeechConfig{
			Language:  "zh-CN",
			TimeoutMS: 60000,
		},
		Transcode: TranscodeConfig{
			Enabled:   true,
			Command:   "ffmpeg",
			TimeoutMS: 30000,
		},
		Translate: TranslateConfig{
			Endpoint:    "https://api.cognitive.microsofttranslator.com",
			Region:      "westus",
			DefaultFrom: "en",
			DefaultTo:   "zh-Hans",
			TimeoutMS:   15000,
		},
		History: HistoryConfig{
			Path:          "./data/tonetutor-attempts.db",
			RetentionMode: "persistent",
			RetentionDays: 90,
			MaxAttempts:   50000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "TONETUTOR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "TONETUTOR_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "TONETUTOR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "TONETUTOR_HTTP_PORT")
	overrideString(&cfg.HTTP.StaticDir, "TONETUTOR_HTTP_STATIC_DIR")
	overrideString(&cfg.HTTP.AllowOrigin, "TONETUTOR_HTTP_ALLOW_ORIGIN")
	overrideString(&cfg.Telemetry.LogLevel, "TONETUTOR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "TONETUTOR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "TONETUTOR_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "TONETUTOR_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "TONETUTOR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "TONETUTOR_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "TONETUTOR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "TONETUTOR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "TONETUTOR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "TONETUTOR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "TONETUTOR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "TONETUTOR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Speech.Key, "AZURE_SPEECH_KEY")
	overrideString(&cfg.Speech.Region, "AZURE_SPEECH_REGION")
	overrideString(&cfg.Speech.Language, "TONETUTOR_SPEECH_LANGUAGE")
	overrideString(&cfg.Speech.Endpoint, "TONETUTOR_SPEECH_ENDPOINT")
	overrideInt(&cfg.Speech.TimeoutMS, "TONETUTOR_SPEECH_TIMEOUT_MS")
	overrideBool(&cfg.Transcode.Enabled, "TONETUTOR_TRANSCODE_ENABLED")
	overrideString(&cfg.Transcode.Command, "TONETUTOR_TRANSCODE_COMMAND")
	overrideInt(&cfg.Transcode.TimeoutMS, "TONETUTOR_TRANSCODE_TIMEOUT_MS")
	overrideString(&cfg.Translate.Key, "AZURE_TRANSLATOR_KEY")
	overrideString(&cfg.Translate.Region, "AZURE_TRANSLATOR_REGION")
	overrideString(&cfg.Translate.Endpoint, "TONETUTOR_TRANSLATE_ENDPOINT")
	overrideString(&cfg.Translate.DefaultFrom, "TONETUTOR_TRANSLATE_DEFAULT_FROM")
	overrideString(&cfg.Translate.DefaultTo, "TONETUTOR_TRANSLATE_DEFAULT_TO")
	overrideInt(&cfg.Translate.TimeoutMS, "TONETUTOR_TRANSLATE_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "TONETUTOR_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "TONETUTOR_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "TONETUTOR_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxAttempts, "TONETUTOR_HISTORY_MAX_ATTEMPTS")
	overrideBool(&cfg.History.VacuumOnStart, "TONETUTOR_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Speech.Language == "" {
		return errors.New("speech.language must not be empty")
	}
	if cfg.Speech.TimeoutMS <= 0 {
		return errors.New("speech.timeout_ms must be positive")
	}
	if cfg.Transcode.Enabled && cfg.Transcode.Command == "" {
		return errors.New("transcode.command must be set when transcoding is enabled")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}
