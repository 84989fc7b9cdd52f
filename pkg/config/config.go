package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

type Config struct {
	Server     ServerConfig
	Pipeline   PipelineConfig
	Classifier ClassifierConfig
	Timeline   TimelineConfig
	Alerts     AlertsConfig
	Pace       PaceConfig

	StoragePath string
	LogLevel    string
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PipelineConfig struct {
	Workers            int
	QueueSize          int
	MinWordsToClassify int
}

type ClassifierConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

type TimelineConfig struct {
	MaxEntries    int
	MaxAgeSeconds float64
}

type AlertsConfig struct {
	PaceEnabled     bool
	PaceTooSlow     int
	PaceTooFast     int
	FillerEnabled   bool
	FillerThreshold int

	SustainedEnabled       bool
	SustainedWindowSeconds float64
	ConcerningStates       []models.EmotionalState
}

type PaceConfig struct {
	FillerWords []string
}

// Load reads configuration from the environment, after loading .env if one
// is present. Every value has a default so a bare environment still works.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}

	return &Config{
		Server: ServerConfig{
			Address:      getString("SERVER_ADDR", ":3002"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:            getInt("PIPELINE_WORKERS", 4),
			QueueSize:          getInt("PIPELINE_QUEUE_SIZE", 256),
			MinWordsToClassify: getInt("MIN_WORDS_FOR_ANALYSIS", 10),
		},
		Classifier: ClassifierConfig{
			URL:     getString("CLASSIFIER_URL", "http://localhost:11434"),
			Model:   getString("CLASSIFIER_MODEL", "gemma2:2b"),
			Timeout: getDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
		},
		Timeline: TimelineConfig{
			MaxEntries:    getInt("TIMELINE_MAX_ENTRIES", 50),
			MaxAgeSeconds: getFloat("TIMELINE_MAX_AGE_SECONDS", 300),
		},
		Alerts: AlertsConfig{
			PaceEnabled:            getBool("PACE_ALERTS_ENABLED", true),
			PaceTooSlow:            getInt("PACE_TOO_SLOW", 100),
			PaceTooFast:            getInt("PACE_TOO_FAST", 180),
			FillerEnabled:          getBool("FILLER_ALERTS_ENABLED", true),
			FillerThreshold:        getInt("FILLER_ALERT_THRESHOLD", 5),
			SustainedEnabled:       getBool("SUSTAINED_ALERTS_ENABLED", true),
			SustainedWindowSeconds: getFloat("SUSTAINED_WINDOW_SECONDS", 30),
			ConcerningStates:       getStates("CONCERNING_STATES", defaultConcerningStates),
		},
		Pace: PaceConfig{
			FillerWords: getList("FILLER_WORDS", defaultFillerWords),
		},
		StoragePath: getString("STORAGE_PATH", "./data"),
		LogLevel:    getString("LOG_LEVEL", "info"),
	}
}

var defaultFillerWords = []string{
	"um", "uh", "like", "you know", "basically", "actually", "literally",
}

var defaultConcerningStates = []models.EmotionalState{
	models.StateOverwhelmed, models.StateIntense, models.StateOverlyCritical,
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.WithField("key", key).Warnf("invalid integer %q, using default %d", v, def)
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.WithField("key", key).Warnf("invalid number %q, using default %g", v, def)
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.WithField("key", key).Warnf("invalid boolean %q, using default %t", v, def)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.WithField("key", key).Warnf("invalid duration %q, using default %s", v, def)
	}
	return def
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getStates(key string, def []models.EmotionalState) []models.EmotionalState {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []models.EmotionalState
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, models.ParseEmotionalState(item))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
