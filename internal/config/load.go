package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config.yaml next to the binary or in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with PODCAST_ prefix override file values,
	// e.g. PODCAST_DATABASE_URL, PODCAST_LLM_GEMINI_API_KEY.
	v.SetEnvPrefix("PODCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.prompt_max_chars", 100000)
	v.SetDefault("task.worker_count", 3)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("media.root", "./data/media")
	v.SetDefault("transcription.timeout_seconds", 600)
}

// bindEnvKeys registers every config key with viper so AutomaticEnv picks up
// variables for keys that have no default and appear in no config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port",
		"server.log_level",
		"database.url",
		"llm.gemini_api_key",
		"llm.model_name",
		"llm.max_retries",
		"llm.retry_delay_seconds",
		"llm.prompt_max_chars",
		"task.worker_count",
		"task.queue_size",
		"media.root",
		"transcription.endpoint",
		"transcription.timeout_seconds",
	}
	for _, key := range keys {
		// BindEnv only errors on empty input.
		_ = v.BindEnv(key)
	}
}
