package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const apiKeyPlaceholder = "your-api-key-here"

// ServerConfig holds the HTTP front-end listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig points at an OpenAI-compatible endpoint for one model.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

// RAGConfig tunes chunking, retrieval and context assembly.
type RAGConfig struct {
	ChunkSize         int `yaml:"chunk_size"`
	ChunkOverlap      int `yaml:"chunk_overlap"`
	PageGroup         int `yaml:"page_group"`
	CSVBatchRows      int `yaml:"csv_batch_rows"`
	TopK              int `yaml:"top_k"`
	MaxContextChars   int `yaml:"max_context_chars"`
	BatchSize         int `yaml:"batch_size"`
	MaxRetries        int `yaml:"max_retries"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
}

// PostgresConfig holds the pgvector backend connection details.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend    string         `yaml:"backend"` // chromem or postgres
	Path       string         `yaml:"path"`
	Compress   bool           `yaml:"compress"`
	VectorSize int            `yaml:"vector_size"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type Config struct {
	Server    ServerConfig `yaml:"server"`
	EmbedLLM  LLMConfig    `yaml:"embed_llm"`
	ChatLLM   LLMConfig    `yaml:"chat_llm"`
	RAG       RAGConfig    `yaml:"rag"`
	Store     StoreConfig  `yaml:"store"`
	DataDir   string       `yaml:"data_dir"`
	BookPath  string       `yaml:"book_path"`
	RulesPath string       `yaml:"rules_path"`
}

// LoadConfig reads the YAML config and overlays environment variables.
// A missing config file is not an error; defaults plus the environment
// are enough to run.
func LoadConfig(path string) (*Config, error) {
	// .env is optional, same as the config file
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.EmbedLLM.Key == "" {
			c.EmbedLLM.Key = key
		}
		if c.ChatLLM.Key == "" {
			c.ChatLLM.Key = key
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if path := os.Getenv("BOOK_PATH"); path != "" {
		c.BookPath = path
	}
	if path := os.Getenv("RULES_PATH"); path != "" {
		c.RulesPath = path
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = "text-embedding-ada-002"
	}
	if c.ChatLLM.Model == "" {
		c.ChatLLM.Model = "gpt-4-turbo-preview"
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 300
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 30
	}
	if c.RAG.PageGroup == 0 {
		c.RAG.PageGroup = 5
	}
	if c.RAG.CSVBatchRows == 0 {
		c.RAG.CSVBatchRows = 50
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 3
	}
	if c.RAG.MaxContextChars == 0 {
		c.RAG.MaxContextChars = 3000
	}
	if c.RAG.BatchSize == 0 {
		c.RAG.BatchSize = 5
	}
	if c.RAG.MaxRetries == 0 {
		c.RAG.MaxRetries = 3
	}
	if c.RAG.RetryDelaySeconds == 0 {
		c.RAG.RetryDelaySeconds = 1
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "chromem"
	}
	if c.Store.VectorSize == 0 {
		c.Store.VectorSize = 1536
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Store.Path == "" {
		c.Store.Path = c.DataDir + "/chromemdb"
	}
}

// ValidateBackend reports whether the LLM backend is usable. A missing or
// placeholder key blocks backend initialization but not the process.
func (c *Config) ValidateBackend() error {
	if c.EmbedLLM.Key == "" || c.EmbedLLM.Key == apiKeyPlaceholder {
		return fmt.Errorf("OPENAI_API_KEY not set; add it to the .env file")
	}
	return nil
}
