package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all server configuration
type Config struct {
	HTTPAddress    string `mapstructure:"http_address"`
	ModelName      string `mapstructure:"model_name"`
	ModelDir       string `mapstructure:"model_dir"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	CacheSize      int    `mapstructure:"cache_size"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	MaxImagePixels int64  `mapstructure:"max_image_pixels"`
	LogLevel       string `mapstructure:"log_level"`
}

// Load reads defaults, then animal_config.yaml if present, then environment
// variables (ANIMAL_MODEL_NAME etc.). PORT overrides the listen port.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("animal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("animal_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.animal-api")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		config.HTTPAddress = ":" + port
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_address", ":8080")
	v.SetDefault("model_name", "resnet34")
	v.SetDefault("model_dir", "models")
	v.SetDefault("ort_library_path", "")
	v.SetDefault("cache_size", 256)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("max_image_pixels", 40_000_000)
	v.SetDefault("log_level", "info")
}

func (c *Config) Validate() error {
	var problems []string

	if c.ModelName == "" {
		problems = append(problems, "model_name is empty")
	}
	if c.CacheSize < 0 {
		problems = append(problems, "cache_size must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "max_upload_bytes must be positive")
	}
	if c.MaxImagePixels <= 0 {
		problems = append(problems, "max_image_pixels must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
	}
	return nil
}
