package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	LLM           LLM           `mapstructure:"llm"`
	Chunking      Chunking      `mapstructure:"chunking"`
	Retrieval     Retrieval     `mapstructure:"retrieval"`
	Upload        Upload        `mapstructure:"upload"`
	Storage       Storage       `mapstructure:"storage"`
	Auth          Auth          `mapstructure:"auth"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Elasticsearch holds vector index connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Embeddings holds embedding API configuration.
type Embeddings struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BatchSize  int           `mapstructure:"batch_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLM holds answer-generation model configuration.
type LLM struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	SummaryModel string        `mapstructure:"summary_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Chunking holds text chunking configuration.
type Chunking struct {
	MaxChunkTokens int    `mapstructure:"max_chunk_tokens"`
	OverlapTokens  int    `mapstructure:"overlap_tokens"`
	Encoding       string `mapstructure:"encoding"`
}

// Retrieval holds ask-time retrieval configuration.
type Retrieval struct {
	TopK     int     `mapstructure:"top_k"`
	MinScore float64 `mapstructure:"min_score"`
}

// Upload holds file upload limits and temp storage configuration.
type Upload struct {
	TempDir       string `mapstructure:"temp_dir"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// Storage holds S3/MinIO archive configuration for raw uploads.
type Storage struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Auth holds authentication store and token configuration.
type Auth struct {
	DBPath        string        `mapstructure:"db_path"`
	TokenSecret   string        `mapstructure:"token_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	RememberedTTL time.Duration `mapstructure:"remembered_ttl"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// MaxFileSizeBytes returns the upload size limit in bytes.
func (u Upload) MaxFileSizeBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "docqa-chunks",
		},
		Embeddings: Embeddings{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  100,
			Timeout:    30 * time.Second,
		},
		LLM: LLM{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			SummaryModel: "gpt-4o-mini",
			Timeout:      2 * time.Minute,
		},
		Chunking: Chunking{
			MaxChunkTokens: 500,
			OverlapTokens:  100,
			Encoding:       "cl100k_base",
		},
		Retrieval: Retrieval{
			TopK:     5,
			MinScore: 0.3,
		},
		Upload: Upload{
			TempDir:       "", // empty means os.TempDir
			MaxFileSizeMB: 50,
		},
		Storage: Storage{
			Enabled:         false, // Disabled by default, requires MinIO setup
			Endpoint:        "localhost:9000",
			Bucket:          "docqa",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Auth: Auth{
			DBPath:        "./docqa.db",
			SessionTTL:    24 * time.Hour,
			RememberedTTL: 7 * 24 * time.Hour,
		},
		MCP: MCP{
			Name:    "docqa",
			Version: "1.0.0",
		},
	}
}
