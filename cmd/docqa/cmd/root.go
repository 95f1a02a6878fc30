package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hackhunters/docqa/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "docqa: document question answering over uploaded files",
	Long: `docqa ingests PDF, DOCX, and TXT documents, chunks and embeds their
text into Elasticsearch, and answers questions grounded strictly in the
uploaded content.

Commands:
  serve   Start the HTTP API server
  mcp     Start the MCP server over stdio
  ingest  Process a local file into the index
  ask     Ask a question about an ingested document`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/docqa")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// DOCQA_ELASTICSEARCH_ADDRESSES -> elasticsearch.addresses
	viper.SetEnvPrefix("DOCQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("server.host", "DOCQA_SERVER_HOST")
	viper.BindEnv("server.port", "DOCQA_SERVER_PORT")
	viper.BindEnv("elasticsearch.addresses", "DOCQA_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "DOCQA_ELASTICSEARCH_INDEX")
	viper.BindEnv("elasticsearch.username", "DOCQA_ELASTICSEARCH_USERNAME")
	viper.BindEnv("elasticsearch.password", "DOCQA_ELASTICSEARCH_PASSWORD")
	viper.BindEnv("embeddings.base_url", "DOCQA_EMBEDDINGS_BASE_URL")
	viper.BindEnv("embeddings.api_key", "DOCQA_EMBEDDINGS_API_KEY")
	viper.BindEnv("embeddings.model", "DOCQA_EMBEDDINGS_MODEL")
	viper.BindEnv("embeddings.dimensions", "DOCQA_EMBEDDINGS_DIMENSIONS")
	viper.BindEnv("llm.base_url", "DOCQA_LLM_BASE_URL")
	viper.BindEnv("llm.api_key", "DOCQA_LLM_API_KEY")
	viper.BindEnv("llm.model", "DOCQA_LLM_MODEL")
	viper.BindEnv("llm.summary_model", "DOCQA_LLM_SUMMARY_MODEL")
	viper.BindEnv("storage.enabled", "DOCQA_STORAGE_ENABLED")
	viper.BindEnv("storage.endpoint", "DOCQA_STORAGE_ENDPOINT")
	viper.BindEnv("storage.bucket", "DOCQA_STORAGE_BUCKET")
	viper.BindEnv("storage.access_key_id", "DOCQA_STORAGE_ACCESS_KEY_ID")
	viper.BindEnv("storage.secret_access_key", "DOCQA_STORAGE_SECRET_ACCESS_KEY")
	viper.BindEnv("auth.db_path", "DOCQA_AUTH_DB_PATH")
	viper.BindEnv("auth.token_secret", "DOCQA_AUTH_TOKEN_SECRET")
	viper.BindEnv("mcp.name", "DOCQA_MCP_NAME")
	viper.BindEnv("mcp.version", "DOCQA_MCP_VERSION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("DOCQA_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
