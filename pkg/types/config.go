package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "medpaper/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LiteratureConfig holds settings for the literature agent's search backends.
type LiteratureConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the maximum number of references kept per search (default 25).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	EnablePubMed         bool `json:"enable_pubmed" yaml:"enable_pubmed" mapstructure:"enable_pubmed"`
	EnableClinicalTrials bool `json:"enable_clinical_trials" yaml:"enable_clinical_trials" mapstructure:"enable_clinical_trials"`
	EnableOpenAlex       bool `json:"enable_openalex" yaml:"enable_openalex" mapstructure:"enable_openalex"`

	// NCBIAPIKey raises the E-utilities rate limit from 3 to 10 requests/s.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`

	// Email is sent to NCBI (tool contact) and OpenAlex (polite pool).
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// RecencyBiasWindow boosts papers published within the window (0 disables).
	RecencyBiasWindow time.Duration `json:"recency_bias_window" yaml:"recency_bias_window" mapstructure:"recency_bias_window"`
}

// LLMProvider identifies the completion backend.
type LLMProvider string

const (
	ProviderClaude LLMProvider = "claude"
	ProviderGemini LLMProvider = "gemini"
	ProviderOllama LLMProvider = "ollama"
)

// LLMConfig holds settings for the completion provider used by the agents.
type LLMConfig struct {
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for hosted providers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Host is the Ollama server URL.
	Host string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`

	// MaxRetries is the number of provider-level retries for malformed
	// structured output (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens caps completion length (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SupervisorConfig holds routing limits.
type SupervisorConfig struct {
	// MaxRevisions caps automatic compliance-driven revision rounds (default 3).
	MaxRevisions int `json:"max_revisions" yaml:"max_revisions" mapstructure:"max_revisions"`

	// AgentTimeout bounds each sub-agent call. Zero disables the per-call timeout.
	AgentTimeout time.Duration `json:"agent_timeout" yaml:"agent_timeout" mapstructure:"agent_timeout"`
}

// StoreConfig holds the task and audit-trail database location.
type StoreConfig struct {
	// Path is the SQLite database file (default "data/medpaper.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// TracingConfig selects the OpenTelemetry exporter.
type TracingConfig struct {
	// Exporter is "none" or "stdout".
	Exporter string `json:"exporter" yaml:"exporter" mapstructure:"exporter"`

	// ServiceName is the resource service.name attribute.
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
}

// Config groups every configuration section read from medpaper.yaml.
type Config struct {
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor" mapstructure:"supervisor"`
	LLM        LLMConfig        `json:"llm" yaml:"llm" mapstructure:"llm"`
	Literature LiteratureConfig `json:"literature" yaml:"literature" mapstructure:"literature"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Supervisor: SupervisorConfig{MaxRevisions: 3},
		LLM: LLMConfig{
			Provider:   ProviderClaude,
			Model:      "claude-sonnet-4-5-20250929",
			MaxRetries: 2,
			MaxTokens:  4096,
		},
		Literature: LiteratureConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "medpaper/0.1",
			},
			MaxResults:           25,
			EnablePubMed:         true,
			EnableClinicalTrials: true,
			EnableOpenAlex:       true,
		},
		Store:   StoreConfig{Path: "data/medpaper.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{Exporter: "none", ServiceName: "medpaper"},
	}
}
