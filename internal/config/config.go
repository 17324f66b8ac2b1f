package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Project and user config file names.
const (
	ProjectConfigFile = ".docsift.yaml"
	EnvPrefix         = "DOCSIFT"
)

// Config is the complete docsift configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version" ignored:"true"`
	Paths      PathsConfig      `yaml:"paths" json:"paths" envconfig:"PATHS"`
	Manifest   ManifestConfig   `yaml:"manifest" json:"manifest" ignored:"true"`
	Acquire    AcquireConfig    `yaml:"acquire" json:"acquire" envconfig:"ACQUIRE"`
	Extract    ExtractConfig    `yaml:"extract" json:"extract" envconfig:"EXTRACT"`
	OCR        OCRConfig        `yaml:"ocr" json:"ocr" envconfig:"OCR"`
	Index      IndexConfig      `yaml:"index" json:"index" envconfig:"INDEX"`
	Group      GroupConfig      `yaml:"group" json:"group" envconfig:"GROUP"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings" envconfig:"EMBEDDINGS"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging" envconfig:"LOG"`
}

// PathsConfig is the on-disk layout of a pipeline workspace.
type PathsConfig struct {
	Downloads string `yaml:"downloads" json:"downloads" envconfig:"DOWNLOADS"`
	Text      string `yaml:"text" json:"text" envconfig:"TEXT"`
	Output    string `yaml:"output" json:"output" envconfig:"OUTPUT"`
	Logs      string `yaml:"logs" json:"logs" envconfig:"LOGS"`
	Database  string `yaml:"database" json:"database" envconfig:"DATABASE"`
	// Manifest is the default metadata CSV used by index and group.
	Manifest string `yaml:"manifest" json:"manifest" envconfig:"MANIFEST"`
}

// ColumnsConfig lists accepted header aliases per manifest field. Matching is
// case-insensitive and whitespace-trimmed.
type ColumnsConfig struct {
	DocumentID   []string `yaml:"document_id" json:"document_id"`
	Attachments  []string `yaml:"attachments" json:"attachments"`
	Organization []string `yaml:"organization" json:"organization"`
	Category     []string `yaml:"category" json:"category"`
	Comment      []string `yaml:"comment" json:"comment"`
}

// ManifestConfig configures manifest parsing.
type ManifestConfig struct {
	Columns      ColumnsConfig `yaml:"columns" json:"columns"`
	URLSeparator string        `yaml:"url_separator" json:"url_separator"`
}

// AcquireConfig configures downloads.
type AcquireConfig struct {
	MaxRetries     int           `yaml:"max_retries" json:"max_retries" envconfig:"MAX_RETRIES"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" envconfig:"TIMEOUT"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff" envconfig:"INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff" envconfig:"MAX_BACKOFF"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent" envconfig:"USER_AGENT"`
	// GCSCredentialsFile is a service-account key for gs:// URLs; empty uses application default credentials.
	GCSCredentialsFile string `yaml:"gcs_credentials_file" json:"gcs_credentials_file" envconfig:"GCS_CREDENTIALS_FILE"`
}

// ExtractConfig configures text extraction and PDF routing.
type ExtractConfig struct {
	ClassifyPages int    `yaml:"classify_pages" json:"classify_pages" envconfig:"CLASSIFY_PAGES"`
	MinTextChars  int    `yaml:"min_text_chars" json:"min_text_chars" envconfig:"MIN_TEXT_CHARS"`
	DPI           int    `yaml:"dpi" json:"dpi" envconfig:"DPI"`
	RenderWorkers int    `yaml:"render_workers" json:"render_workers" envconfig:"RENDER_WORKERS"`
	// PDFBackend selects the text-layer reader: "auto", "ledongthuc" or "pdfcpu".
	PDFBackend string `yaml:"pdf_backend" json:"pdf_backend" envconfig:"PDF_BACKEND"`
	// IDPattern extracts a document id from a file name; the stem is used when it does not match.
	IDPattern     string        `yaml:"id_pattern" json:"id_pattern" envconfig:"ID_PATTERN"`
	RenderTimeout time.Duration `yaml:"render_timeout" json:"render_timeout" envconfig:"RENDER_TIMEOUT"`
	PdftoppmPath  string        `yaml:"pdftoppm_path" json:"pdftoppm_path" envconfig:"PDFTOPPM_PATH"`
}

// OCRConfig configures the local engine and the remote fallback.
type OCRConfig struct {
	TesseractPath   string        `yaml:"tesseract_path" json:"tesseract_path" envconfig:"TESSERACT_PATH"`
	Language        string        `yaml:"language" json:"language" envconfig:"LANGUAGE"`
	LocalTimeout    time.Duration `yaml:"local_timeout" json:"local_timeout" envconfig:"LOCAL_TIMEOUT"`
	DisableLocal    bool          `yaml:"disable_local" json:"disable_local" envconfig:"DISABLE_LOCAL"`
	RemoteEndpoint  string        `yaml:"remote_endpoint" json:"remote_endpoint" envconfig:"REMOTE_ENDPOINT"`
	APIKey          string        `yaml:"api_key" json:"-" envconfig:"API_KEY"`
	RemoteLanguage  string        `yaml:"remote_language" json:"remote_language" envconfig:"REMOTE_LANGUAGE"`
	RemoteTimeout   time.Duration `yaml:"remote_timeout" json:"remote_timeout" envconfig:"REMOTE_TIMEOUT"`
	RemoteAttempts  int           `yaml:"remote_attempts" json:"remote_attempts" envconfig:"REMOTE_ATTEMPTS"`
	CircuitFailures int           `yaml:"circuit_failures" json:"circuit_failures" envconfig:"CIRCUIT_FAILURES"`
	DisableRemote   bool          `yaml:"disable_remote" json:"disable_remote" envconfig:"DISABLE_REMOTE"`
}

// IndexConfig configures the search store.
type IndexConfig struct {
	// Backend is "sqlite" (single-file FTS5, default) or "bleve".
	Backend        string `yaml:"backend" json:"backend" envconfig:"BACKEND"`
	HighlightOpen  string `yaml:"highlight_open" json:"highlight_open" envconfig:"HIGHLIGHT_OPEN"`
	HighlightClose string `yaml:"highlight_close" json:"highlight_close" envconfig:"HIGHLIGHT_CLOSE"`
	SnippetTokens  int    `yaml:"snippet_tokens" json:"snippet_tokens" envconfig:"SNIPPET_TOKENS"`
	DefaultLimit   int    `yaml:"default_limit" json:"default_limit" envconfig:"DEFAULT_LIMIT"`
}

// GroupConfig configures clustering.
type GroupConfig struct {
	Method         string   `yaml:"method" json:"method" envconfig:"METHOD"`
	MinK           int      `yaml:"min_k" json:"min_k" envconfig:"MIN_K"`
	MaxK           int      `yaml:"max_k" json:"max_k" envconfig:"MAX_K"`
	MaxFeatures    int      `yaml:"max_features" json:"max_features" envconfig:"MAX_FEATURES"`
	MinDF          int      `yaml:"min_df" json:"min_df" envconfig:"MIN_DF"`
	MaxDF          float64  `yaml:"max_df" json:"max_df" envconfig:"MAX_DF"`
	NInit          int      `yaml:"n_init" json:"n_init" envconfig:"N_INIT"`
	MaxIter        int      `yaml:"max_iter" json:"max_iter" envconfig:"MAX_ITER"`
	LDAIterations  int      `yaml:"lda_iterations" json:"lda_iterations" envconfig:"LDA_ITERATIONS"`
	Seed           int64    `yaml:"seed" json:"seed" envconfig:"SEED"`
	MinTopicSize   int      `yaml:"min_topic_size" json:"min_topic_size" envconfig:"MIN_TOPIC_SIZE"`
	ReduceDims     int      `yaml:"reduce_dims" json:"reduce_dims" envconfig:"REDUCE_DIMS"`
	SummaryChars   int      `yaml:"summary_chars" json:"summary_chars" envconfig:"SUMMARY_CHARS"`
	ExtraStopWords []string `yaml:"extra_stop_words" json:"extra_stop_words" envconfig:"EXTRA_STOP_WORDS"`
}

// EmbeddingsConfig configures the embedder used by the embedding clustering method.
type EmbeddingsConfig struct {
	// Provider is "static" (hash embeddings, always available), "ollama" or "" (disabled).
	Provider  string        `yaml:"provider" json:"provider" envconfig:"PROVIDER"`
	Model     string        `yaml:"model" json:"model" envconfig:"MODEL"`
	Host      string        `yaml:"host" json:"host" envconfig:"HOST"`
	BatchSize int           `yaml:"batch_size" json:"batch_size" envconfig:"BATCH_SIZE"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" envconfig:"TIMEOUT"`
	CacheSize int           `yaml:"cache_size" json:"cache_size" envconfig:"CACHE_SIZE"`
}

// LoggingConfig configures the structured log.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level" envconfig:"LEVEL"`
	File      string `yaml:"file" json:"file" envconfig:"FILE"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxFiles  int    `yaml:"max_files" json:"max_files" envconfig:"MAX_FILES"`
}

// NewConfig returns a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Downloads: "downloads",
			Text:      "text",
			Output:    "output",
			Logs:      "logs",
			Database:  filepath.Join("output", "document_index.db"),
			Manifest:  filepath.Join("input", "comment_links.csv"),
		},
		Manifest: ManifestConfig{
			Columns: ColumnsConfig{
				DocumentID:   []string{"Document ID", "document_id", "id"},
				Attachments:  []string{"Attachment Files", "attachments", "attachment_urls", "urls", "url"},
				Organization: []string{"Organization Name", "organization", "org"},
				Category:     []string{"Category", "category"},
				Comment:      []string{"Comment", "comment"},
			},
			URLSeparator: ",",
		},
		Acquire: AcquireConfig{
			MaxRetries:     3,
			Timeout:        30 * time.Second,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     8 * time.Second,
			UserAgent:      "docsift/1.0 (+https://github.com/Aman-CERP/docsift)",
		},
		Extract: ExtractConfig{
			ClassifyPages: 3,
			MinTextChars:  50,
			DPI:           300,
			RenderWorkers: 4,
			PDFBackend:    "auto",
			IDPattern:     `[A-Z]{2,10}-\d{4}-\d{4}-\d{4}`,
			RenderTimeout: 2 * time.Minute,
			PdftoppmPath:  "pdftoppm",
		},
		OCR: OCRConfig{
			TesseractPath:   "tesseract",
			Language:        "eng",
			LocalTimeout:    2 * time.Minute,
			RemoteEndpoint:  "https://api.ocr.space/parse/image",
			RemoteLanguage:  "eng",
			RemoteTimeout:   30 * time.Second,
			RemoteAttempts:  2,
			CircuitFailures: 5,
		},
		Index: IndexConfig{
			Backend:        "sqlite",
			HighlightOpen:  "<mark>",
			HighlightClose: "</mark>",
			SnippetTokens:  64,
			DefaultLimit:   20,
		},
		Group: GroupConfig{
			Method:        "tfidf_kmeans",
			MinK:          3,
			MaxK:          10,
			MaxFeatures:   1000,
			MinDF:         2,
			MaxDF:         0.8,
			NInit:         10,
			MaxIter:       300,
			LDAIterations: 100,
			Seed:          42,
			MinTopicSize:  2,
			ReduceDims:    5,
			SummaryChars:  500,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Model:     "nomic-embed-text",
			Host:      "http://localhost:11434",
			BatchSize: 32,
			Timeout:   60 * time.Second,
			CacheSize: 1000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/docsift/config.yaml or ~/.config/docsift/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsift", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docsift", "config.yaml")
	}
	return filepath.Join(home, ".config", "docsift", "config.yaml")
}

// Load builds the configuration for a workspace directory, in increasing precedence:
//  1. defaults
//  2. user config (~/.config/docsift/config.yaml)
//  3. project config (.docsift.yaml in dir)
//  4. dir/.env (never overrides variables already set)
//  5. DOCSIFT_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if err := cfg.loadYAML(filepath.Join(dir, ProjectConfigFile)); err != nil {
		return nil, err
	}

	envFile := filepath.Join(dir, ".env")
	if fileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. A missing file is not an error.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays DOCSIFT_* variables (e.g. DOCSIFT_OCR_API_KEY, DOCSIFT_GROUP_MAX_K).
// Variables that are not set leave the current value untouched.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	// OCR_SPACE_API_KEY is the name the OCR.space docs use.
	if c.OCR.APIKey == "" {
		c.OCR.APIKey = os.Getenv("OCR_SPACE_API_KEY")
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Acquire.MaxRetries < 1 {
		return fmt.Errorf("acquire.max_retries must be at least 1, got %d", c.Acquire.MaxRetries)
	}
	if c.Acquire.Timeout <= 0 {
		return fmt.Errorf("acquire.timeout must be positive, got %s", c.Acquire.Timeout)
	}
	if c.Extract.ClassifyPages < 1 {
		return fmt.Errorf("extract.classify_pages must be at least 1, got %d", c.Extract.ClassifyPages)
	}
	if c.Extract.MinTextChars < 0 {
		return fmt.Errorf("extract.min_text_chars must be non-negative, got %d", c.Extract.MinTextChars)
	}
	if c.Extract.DPI < 72 || c.Extract.DPI > 1200 {
		return fmt.Errorf("extract.dpi must be between 72 and 1200, got %d", c.Extract.DPI)
	}
	if c.Extract.RenderWorkers < 1 {
		return fmt.Errorf("extract.render_workers must be at least 1, got %d", c.Extract.RenderWorkers)
	}
	if !oneOf(c.Extract.PDFBackend, "auto", "ledongthuc", "pdfcpu") {
		return fmt.Errorf("extract.pdf_backend must be 'auto', 'ledongthuc' or 'pdfcpu', got %s", c.Extract.PDFBackend)
	}
	if _, err := regexp.Compile(c.Extract.IDPattern); err != nil {
		return fmt.Errorf("extract.id_pattern is not a valid regular expression: %w", err)
	}
	if !oneOf(c.Index.Backend, "sqlite", "bleve") {
		return fmt.Errorf("index.backend must be 'sqlite' or 'bleve', got %s", c.Index.Backend)
	}
	if c.Index.SnippetTokens < 1 || c.Index.SnippetTokens > 64 {
		return fmt.Errorf("index.snippet_tokens must be between 1 and 64, got %d", c.Index.SnippetTokens)
	}
	if !oneOf(c.Group.Method, "tfidf_kmeans", "lda", "embedding") {
		return fmt.Errorf("group.method must be 'tfidf_kmeans', 'lda' or 'embedding', got %s", c.Group.Method)
	}
	if c.Group.MinK < 1 || c.Group.MinK > c.Group.MaxK {
		return fmt.Errorf("group.min_k must be between 1 and max_k (%d), got %d", c.Group.MaxK, c.Group.MinK)
	}
	if c.Group.MaxDF <= 0 || c.Group.MaxDF > 1 {
		return fmt.Errorf("group.max_df must be in (0, 1], got %f", c.Group.MaxDF)
	}
	if c.Group.MinTopicSize < 2 {
		return fmt.Errorf("group.min_topic_size must be at least 2, got %d", c.Group.MinTopicSize)
	}
	if c.Embeddings.Provider != "" && !oneOf(c.Embeddings.Provider, "static", "ollama") {
		return fmt.Errorf("embeddings.provider must be 'static', 'ollama' or empty, got %s", c.Embeddings.Provider)
	}
	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if len(c.Manifest.Columns.DocumentID) == 0 || len(c.Manifest.Columns.Attachments) == 0 {
		return fmt.Errorf("manifest.columns.document_id and manifest.columns.attachments need at least one alias")
	}
	return nil
}

// Resolve makes every relative path absolute against dir.
func (c *Config) Resolve(dir string) {
	for _, p := range []*string{
		&c.Paths.Downloads, &c.Paths.Text, &c.Paths.Output,
		&c.Paths.Logs, &c.Paths.Database, &c.Paths.Manifest,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(v)
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
