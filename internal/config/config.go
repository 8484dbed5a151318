package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"        validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"      validate:"required"`
	LLM           LLMConfig           `mapstructure:"llm"           validate:"required"`
	Task          TaskConfig          `mapstructure:"task"          validate:"required"`
	Media         MediaConfig         `mapstructure:"media"         validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// LLMConfig contains all LLM integration related settings. MaxRetries and
// RetryDelaySeconds tune the model client's transport backoff only.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=60"`
	PromptMaxChars    int    `mapstructure:"prompt_max_chars"    validate:"gte=0"`
}

// TaskConfig contains background task engine settings.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0,lte=32"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`
}

// MediaConfig contains audio storage settings.
type MediaConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}

// TranscriptionConfig contains transcription backend settings.
type TranscriptionConfig struct {
	// Endpoint of the transcription backend. Empty disables backend
	// transcription; episodes then need an official transcript URL.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	// TimeoutSeconds bounds one transcription call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gte=0"`
}
