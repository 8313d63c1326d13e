package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SHOTTIME"

type Config struct {
	Port   string
	DBPath string

	TimeURL         string
	TimeZone        string
	TimeSyncTimeout time.Duration

	GoogleVisionKey string
	VisionEndpoint  string
	MinConfidence   float64
	MaxFaces        int

	CaptureFormat string
	CaptureInput  string
	AutoCapture   bool

	SlotsFile            string
	AutoGrantDirectory   bool
	DesktopNotifications bool
	DownloadQueueSize    int
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./shottime.db")
	v.SetDefault("time_url", "https://worldtimeapi.org/api/timezone/Asia/Seoul")
	// empty means the host's local zone
	v.SetDefault("time_zone", "")
	v.SetDefault("time_sync_timeout", 5*time.Second)
	v.SetDefault("google_vision_key", "")
	v.SetDefault("vision_endpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("min_confidence", 0.3)
	v.SetDefault("max_faces", 100)
	v.SetDefault("capture_format", "")
	v.SetDefault("capture_input", "")
	v.SetDefault("auto_capture", true)
	v.SetDefault("slots_file", "")
	v.SetDefault("auto_grant_directory", true)
	v.SetDefault("desktop_notifications", true)
	v.SetDefault("download_queue_size", 20)
}

// Load reads .env (if present), then an optional YAML config file, then
// SHOTTIME_* environment variables, which win.
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath == "" {
		dotEnvPath = ".env"
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config.godotenv(%s): %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.os.Stat(%s): %w", dotEnvPath, err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shottime")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	cfg := &Config{
		Port:                 v.GetString("port"),
		DBPath:               v.GetString("db_path"),
		TimeURL:              v.GetString("time_url"),
		TimeZone:             v.GetString("time_zone"),
		TimeSyncTimeout:      v.GetDuration("time_sync_timeout"),
		GoogleVisionKey:      v.GetString("google_vision_key"),
		VisionEndpoint:       v.GetString("vision_endpoint"),
		MinConfidence:        v.GetFloat64("min_confidence"),
		MaxFaces:             v.GetInt("max_faces"),
		CaptureFormat:        v.GetString("capture_format"),
		CaptureInput:         v.GetString("capture_input"),
		AutoCapture:          v.GetBool("auto_capture"),
		SlotsFile:            v.GetString("slots_file"),
		AutoGrantDirectory:   v.GetBool("auto_grant_directory"),
		DesktopNotifications: v.GetBool("desktop_notifications"),
		DownloadQueueSize:    v.GetInt("download_queue_size"),
	}

	// GOOGLE_VISION_API_KEY is accepted without the prefix.
	if cfg.GoogleVisionKey == "" {
		cfg.GoogleVisionKey = os.Getenv("GOOGLE_VISION_API_KEY")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0,1], got %v", c.MinConfidence)
	}
	if c.MaxFaces <= 0 {
		return fmt.Errorf("max_faces must be positive, got %d", c.MaxFaces)
	}
	if c.TimeSyncTimeout <= 0 {
		return fmt.Errorf("time_sync_timeout must be positive, got %s", c.TimeSyncTimeout)
	}
	return nil
}
