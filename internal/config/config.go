package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the study assistant.
type Config struct {
	Gemini   GeminiConfig
	TTS      TTSConfig
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Voice    VoiceConfig
	Request  RequestConfig
	Rules    RulesConfig
	HTTP     HTTPConfig
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type TTSConfig struct {
	APIKey       string
	BaseURL      string
	VoiceName    string
	LanguageCode string
	Gender       string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	LocalTTSCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type VoiceConfig struct {
	Name   string
	Locale string
	Rate   float64
	Pitch  float64
	Volume float64
}

type RequestConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxImages     int
	MinTranscript int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type HTTPConfig struct {
	Addr    string
	Metrics bool
}

// Load resolves configuration from an optional .env file, environment
// variables and defaults. Missing credentials are not an error; see Warnings.
func Load() (Config, error) {
	if err := loadDotEnv(envOrDefault("STUDYSYNC_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	rulesPath := strings.TrimSpace(os.Getenv("STUDYSYNC_RULES_FILE"))
	if rulesPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			rulesPath = firstExisting(filepath.Join(home, ".config", "studysync", "transcript.rules"))
		}
	}

	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:  geminiKey,
			BaseURL: envOrDefault("GEMINI_API_BASE", "https://generativelanguage.googleapis.com/v1beta"),
			Model:   envOrDefault("GEMINI_MODEL", "gemini-2.5-flash-preview-09-2025"),
			Timeout: time.Duration(envOrDefaultInt("GEMINI_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		TTS: TTSConfig{
			APIKey:       firstNonEmpty(os.Getenv("STUDYSYNC_TTS_API_KEY"), geminiKey),
			BaseURL:      envOrDefault("STUDYSYNC_TTS_API_BASE", "https://texttospeech.googleapis.com/v1"),
			VoiceName:    envOrDefault("STUDYSYNC_TTS_VOICE", "en-US-Neural2-C"),
			LanguageCode: envOrDefault("STUDYSYNC_TTS_LANGUAGE", "en-US"),
			Gender:       envOrDefault("STUDYSYNC_TTS_GENDER", "FEMALE"),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    envOrDefault("DEEPGRAM_LANGUAGE", "en-US"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("STUDYSYNC_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("STUDYSYNC_PLAYER_COMMAND", "ffplay"),
			LocalTTSCommand: envOrDefault("STUDYSYNC_LOCAL_TTS_COMMAND", "espeak-ng"),
			InputFormat:     envOrDefault("STUDYSYNC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("STUDYSYNC_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("STUDYSYNC_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("STUDYSYNC_CHANNELS", 1),
		},
		Voice: VoiceConfig{
			Name:   strings.TrimSpace(os.Getenv("STUDYSYNC_VOICE_NAME")),
			Locale: envOrDefault("STUDYSYNC_VOICE_LOCALE", "en-US"),
			Rate:   envOrDefaultFloat("STUDYSYNC_VOICE_RATE", 0.85),
			Pitch:  envOrDefaultFloat("STUDYSYNC_VOICE_PITCH", 0.95),
			Volume: envOrDefaultFloat("STUDYSYNC_VOICE_VOLUME", 1.0),
		},
		Request: RequestConfig{
			MaxAttempts:   envOrDefaultInt("STUDYSYNC_RETRY_ATTEMPTS", 3),
			BaseDelay:     time.Duration(envOrDefaultInt("STUDYSYNC_RETRY_BASE_MS", 1000)) * time.Millisecond,
			MaxImages:     envOrDefaultInt("STUDYSYNC_MAX_IMAGES", 8),
			MinTranscript: envOrDefaultInt("STUDYSYNC_MIN_TRANSCRIPT", 10),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("STUDYSYNC_RULE_ITERATION_LIMIT", 30),
		},
		HTTP: HTTPConfig{
			Addr:    envOrDefault("STUDYSYNC_HTTP_ADDR", "127.0.0.1:5000"),
			Metrics: envOrDefaultBool("STUDYSYNC_METRICS", true),
		},
	}

	if cfg.Gemini.Timeout <= 0 {
		cfg.Gemini.Timeout = 60 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Voice.Rate <= 0 {
		cfg.Voice.Rate = 0.85
	}
	if cfg.Voice.Pitch <= 0 {
		cfg.Voice.Pitch = 0.95
	}
	if cfg.Voice.Volume <= 0 {
		cfg.Voice.Volume = 1.0
	}
	if cfg.Request.MaxAttempts <= 0 {
		cfg.Request.MaxAttempts = 3
	}
	if cfg.Request.BaseDelay < 0 {
		cfg.Request.BaseDelay = time.Second
	}
	if cfg.Request.MinTranscript <= 0 {
		cfg.Request.MinTranscript = 10
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}

	return cfg, nil
}

// Warnings lists capabilities that run degraded because a credential is
// missing.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Gemini.APIKey == "" {
		warnings = append(warnings, "GEMINI_API_KEY is not set; tutor requests will be rejected")
	}
	if c.TTS.APIKey == "" {
		warnings = append(warnings, "no text-to-speech key is set; using the local voice only")
	}
	if c.Deepgram.APIKey == "" {
		warnings = append(warnings, "DEEPGRAM_API_KEY is not set; speech recognition is unavailable")
	}
	return warnings
}

// loadDotEnv loads path without overriding variables that are already set.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
