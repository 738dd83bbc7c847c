package types

import "time"

// ServerConfig holds settings for the HTTP adapter.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// AllowedOrigins lists CORS origins for the browser UI.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StorageConfig holds settings for the project store.
type StorageConfig struct {
	// DataDir is the directory holding miranda.db when Durable is set.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// Durable enables the SQLite persister. When false the store lives only
	// for the process lifetime.
	Durable bool `json:"durable" yaml:"durable" mapstructure:"durable"`
}

// IngestConfig holds settings for document ingestion.
type IngestConfig struct {
	// MaxUploadBytes is the largest accepted upload (default 10 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// QueueSize bounds the ingestion queue (default 256).
	QueueSize int `json:"queue_size" yaml:"queue_size" mapstructure:"queue_size"`

	// ConvertBinary enables markitdown conversion of binary documents
	// through a container runtime.
	ConvertBinary bool `json:"convert_binary" yaml:"convert_binary" mapstructure:"convert_binary"`

	// ContainerRuntime pins the converter runtime to docker or podman.
	// Empty picks the first one available.
	ContainerRuntime string `json:"container_runtime" yaml:"container_runtime" mapstructure:"container_runtime"`
}

// IndexConfig holds settings for the semantic index and retrieval engine.
type IndexConfig struct {
	// WorkDir holds one working scope directory per project.
	WorkDir string `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`

	// DefaultMode is the query mode used when a request names none.
	DefaultMode QueryMode `json:"default_mode" yaml:"default_mode" mapstructure:"default_mode"`

	// TopK is the number of passages fed to synthesis (default 6).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// ChunkSize and ChunkOverlap control passage splitting, in characters.
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap" mapstructure:"chunk_overlap"`

	// ReconcileInterval is how often the background indexer rescans for
	// pending documents (default 30s).
	ReconcileInterval time.Duration `json:"reconcile_interval" yaml:"reconcile_interval" mapstructure:"reconcile_interval"`
}

// AIProvider names the completion backend.
type AIProvider string

const (
	ProviderOpenAI    AIProvider = "openai"
	ProviderAnthropic AIProvider = "anthropic"
)

// Valid reports whether p is a known provider.
func (p AIProvider) Valid() bool {
	return p == ProviderOpenAI || p == ProviderAnthropic
}

// AIConfig holds shared settings for calls to the LLM and embedding APIs.
type AIConfig struct {
	// Provider selects the completion backend: openai or anthropic.
	// Embeddings always use the OpenAI API.
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the completion model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// EmbedModel is the embedding model (default "text-embedding-3-small").
	EmbedModel string `json:"embed_model" yaml:"embed_model" mapstructure:"embed_model"`

	// APIKey authenticates completion calls.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// EmbedAPIKey authenticates embedding calls. Falls back to APIKey when the
	// provider is openai.
	EmbedAPIKey string `json:"embed_api_key,omitempty" yaml:"embed_api_key,omitempty" mapstructure:"embed_api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout is the per-request HTTP timeout (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RequestsPerSecond caps outbound provider calls (default 5).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries is the number of 429 retries for embedding calls (default 3).
	// Completion calls are never retried.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig selects the logger mode: "dev" or "prod".
type LogConfig struct {
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// Config groups all settings.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Ingest  IngestConfig  `json:"ingest" yaml:"ingest" mapstructure:"ingest"`
	Index   IndexConfig   `json:"index" yaml:"index" mapstructure:"index"`
	AI      AIConfig      `json:"ai" yaml:"ai" mapstructure:"ai"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultMaxUploadBytes is the default upload limit.
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

// Defaults returns a Config with every default applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8000",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:5173",
				"http://127.0.0.1:5173",
				"http://localhost:8080",
				"http://127.0.0.1:8080",
			},
		},
		Storage: StorageConfig{DataDir: "data", Durable: true},
		Ingest:  IngestConfig{MaxUploadBytes: DefaultMaxUploadBytes, QueueSize: 256},
		Index: IndexConfig{
			WorkDir:      "data/index",
			DefaultMode:  ModeHybrid,
			TopK:         6,
			ChunkSize:    1000,
			ChunkOverlap: 200,

			ReconcileInterval: 30 * time.Second,
		},
		AI: AIConfig{
			Provider:          ProviderOpenAI,
			Model:             "gpt-4o-mini",
			EmbedModel:        "text-embedding-3-small",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
			MaxRetries:        3,
		},
		Log: LogConfig{Mode: "dev"},
	}
}
