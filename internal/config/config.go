package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName is used for the config file name, search path and env prefix.
const AppName = "therapychat"

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Ollama     OllamaConfig     `mapstructure:"ollama"`
	VectorDB   VectorDBConfig   `mapstructure:"vectordb"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// OllamaConfig stores the model server connection.
type OllamaConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	ChatModel        string        `mapstructure:"chat_model"`
	EmbeddingModel   string        `mapstructure:"embedding_model"`
	ChatTimeout      time.Duration `mapstructure:"chat_timeout"`
	EmbedTimeout     time.Duration `mapstructure:"embed_timeout"`
	EmbedConcurrency int           `mapstructure:"embed_concurrency"`
}

// VectorDBConfig stores the vector index location.
type VectorDBConfig struct {
	Path       string `mapstructure:"path"` // empty selects the in-memory store
	Collection string `mapstructure:"collection"`
}

// RetrievalConfig stores the passage selection policy.
type RetrievalConfig struct {
	TopK     int  `mapstructure:"top_k"`
	Rank     int  `mapstructure:"rank"`     // zero-based
	Fallback bool `mapstructure:"fallback"` // use the top result when fewer than rank+1 exist
}

// ClassifierConfig stores the routing keywords.
type ClassifierConfig struct {
	Keywords []string `mapstructure:"keywords"`
}

// AssistantConfig stores the persona.
type AssistantConfig struct {
	Referral     string `mapstructure:"referral"`
	SystemPrompt string `mapstructure:"system_prompt"` // overrides the built-in prompt
}

// SpeechConfig stores the transcription service.
type SpeechConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AudioConfig stores the capture command.
type AudioConfig struct {
	RecordCommand string `mapstructure:"record_command"`
}

// IngestConfig stores knowledge-base chunking.
type IngestConfig struct {
	Dir          string `mapstructure:"dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// ServerConfig stores the HTTP surface.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxSessions  int           `mapstructure:"max_sessions"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	MaxAudioSize int64         `mapstructure:"max_audio_bytes"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoadConfig reads configuration from file or environment variables. A
// missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
		v.AddConfigPath(filepath.Join("/etc", AppName))
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.chat_model", "llama3.1")
	v.SetDefault("ollama.embedding_model", "mxbai-embed-large:latest")
	v.SetDefault("ollama.chat_timeout", "300s")
	v.SetDefault("ollama.embed_timeout", "60s")
	v.SetDefault("ollama.embed_concurrency", 4)

	v.SetDefault("vectordb.path", "rag/psycho_db")
	v.SetDefault("vectordb.collection", "rag-chroma")

	v.SetDefault("retrieval.top_k", 4)
	v.SetDefault("retrieval.rank", 1)
	v.SetDefault("retrieval.fallback", true)

	v.SetDefault("classifier.keywords", []string{})

	v.SetDefault("assistant.referral", "Moroccan health services")
	v.SetDefault("assistant.system_prompt", "")

	v.SetDefault("speech.enabled", true)
	v.SetDefault("speech.base_url", "http://localhost:8080/v1")
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.model", "whisper-1")
	v.SetDefault("speech.language", "")
	v.SetDefault("speech.timeout", "60s")

	v.SetDefault("audio.record_command", "arecord -q -f S16_LE -r 16000 -c 1 -d 5 -t wav -")

	v.SetDefault("ingest.dir", "documents")
	v.SetDefault("ingest.chunk_size", 500)
	v.SetDefault("ingest.chunk_overlap", 50)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.max_sessions", 1024)
	v.SetDefault("server.session_ttl", "2h")
	v.SetDefault("server.max_audio_bytes", 10<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch {
	case c.Retrieval.Rank < 0:
		return fmt.Errorf("retrieval.rank must be >= 0, got %d", c.Retrieval.Rank)
	case c.Retrieval.TopK < 0:
		return fmt.Errorf("retrieval.top_k must be >= 0, got %d", c.Retrieval.TopK)
	case c.Ingest.ChunkSize < 0 || c.Ingest.ChunkOverlap < 0:
		return errors.New("ingest.chunk_size and ingest.chunk_overlap must be >= 0")
	case c.Ollama.BaseURL == "":
		return errors.New("ollama.base_url is required")
	}
	return nil
}
