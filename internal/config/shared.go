package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Storage struct {
		Provider     string `mapstructure:"provider"` // "s3" or "local"
		KeyID        string `mapstructure:"key_id"`
		AppKey       string `mapstructure:"app_key"`
		Endpoint     string `mapstructure:"endpoint"`
		Region       string `mapstructure:"region"`
		BucketFilm   string `mapstructure:"bucket_film"`
		LocalStorage string `mapstructure:"local_storage"`
	} `mapstructure:"storage"`
	Server struct {
		Port        string `mapstructure:"port"`
		TempDir     string `mapstructure:"temp_dir"`
		MetricsPort string `mapstructure:"metrics_port"`
		LogLevel    string `mapstructure:"log_level"`
		JWTSecret   string `mapstructure:"jwt_secret"`
	} `mapstructure:"server"`
	Database struct {
		Driver   string `mapstructure:"driver"` // "postgres" or "sqlite"
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		Path     string `mapstructure:"path"` // sqlite file
	} `mapstructure:"database"`
	Vision struct {
		APIKey         string `mapstructure:"api_key"`
		Model          string `mapstructure:"model"`
		Endpoint       string `mapstructure:"endpoint"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"vision"`
	Search struct {
		Ratio          float64 `mapstructure:"ratio"`        // VOD seconds per game second
		Tolerance      float64 `mapstructure:"tolerance"`    // game seconds
		RelaxFactor    float64 `mapstructure:"relax_factor"` // best-match acceptance = relax * tolerance
		MaxIterations  int     `mapstructure:"max_iterations"`
		ReadRetries    int     `mapstructure:"read_retries"`
		RetryStep      float64 `mapstructure:"retry_step"`   // seconds between retry frames
		QuarterJump    float64 `mapstructure:"quarter_jump"` // VOD seconds per quarter of gap
		CoarseRatio    float64 `mapstructure:"coarse_ratio"` // in-quarter adjustment on quarter jumps
		BlindStep      float64 `mapstructure:"blind_step"`   // advance when no clock anywhere nearby
		DeadZoneMargin float64 `mapstructure:"dead_zone_margin"`
		DampThreshold  float64 `mapstructure:"damp_threshold"`
		DampFactor     float64 `mapstructure:"damp_factor"`
		StallSpan      float64 `mapstructure:"stall_span"`
	} `mapstructure:"search"`
	Index struct {
		SampleInterval int     `mapstructure:"sample_interval_seconds"`
		HalftimeGap    float64 `mapstructure:"halftime_gap_seconds"`
		QuarterSpan    float64 `mapstructure:"quarter_span_seconds"` // fallback range for the last known quarter
	} `mapstructure:"index"`
	Clips struct {
		PreRoll   float64 `mapstructure:"pre_roll_seconds"`
		RulesPath string  `mapstructure:"rules_path"`
	} `mapstructure:"clips"`
}

func Load() *Config {
	viper.SetEnvPrefix("COACH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("storage.provider")
	viper.BindEnv("storage.key_id")
	viper.BindEnv("storage.app_key")
	viper.BindEnv("storage.endpoint")
	viper.BindEnv("storage.region")
	viper.BindEnv("storage.bucket_film")
	viper.BindEnv("storage.local_storage")

	viper.BindEnv("server.port")
	viper.BindEnv("server.temp_dir")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.log_level")
	viper.BindEnv("server.jwt_secret")

	viper.BindEnv("database.driver")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")
	viper.BindEnv("database.path")

	viper.BindEnv("vision.api_key")
	viper.BindEnv("vision.model")
	viper.BindEnv("vision.endpoint")
	viper.BindEnv("vision.timeout_seconds")

	// Defaults
	viper.SetDefault("storage.provider", "s3")
	viper.SetDefault("storage.bucket_film", "game-film")
	viper.SetDefault("storage.local_storage", "./data")

	viper.SetDefault("server.port", ":8081")
	viper.SetDefault("server.temp_dir", "/tmp/")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.log_level", "info")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "./clipcoach.db")
	viper.SetDefault("database.port", "5432")

	viper.SetDefault("vision.model", "gemini-2.0-flash")
	viper.SetDefault("vision.endpoint", "https://generativelanguage.googleapis.com")
	viper.SetDefault("vision.timeout_seconds", 30)

	// Search Tuning Defaults
	// Every knob the search uses lives here so the algorithm carries no inline literals.
	viper.SetDefault("search.ratio", 1.3)
	viper.SetDefault("search.tolerance", 3)
	viper.SetDefault("search.relax_factor", 2)
	viper.SetDefault("search.max_iterations", 20)
	viper.SetDefault("search.read_retries", 2)
	viper.SetDefault("search.retry_step", 2)
	viper.SetDefault("search.quarter_jump", 2000)
	viper.SetDefault("search.coarse_ratio", 1.2)
	viper.SetDefault("search.blind_step", 30)
	viper.SetDefault("search.dead_zone_margin", 5)
	viper.SetDefault("search.damp_threshold", 100)
	viper.SetDefault("search.damp_factor", 0.5)
	viper.SetDefault("search.stall_span", 15)

	viper.SetDefault("index.sample_interval_seconds", 300)
	viper.SetDefault("index.halftime_gap_seconds", 300)
	viper.SetDefault("index.quarter_span_seconds", 2700)

	viper.SetDefault("clips.pre_roll_seconds", 5)
	viper.SetDefault("clips.rules_path", "./clip_rules.yaml")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.Vision.APIKey == "" {
		log.Fatal("Critical: Vision API key is missing (COACH_VISION_API_KEY)")
	}

	return &cfg
}
