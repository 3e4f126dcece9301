// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "specgraph/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// FetchConfig holds settings for obtaining the source document.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the location of the published document.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// CachePath is the local copy written after a download and read otherwise.
	CachePath string `json:"cache_path" yaml:"cache_path" mapstructure:"cache_path"`

	// Download selects a fresh fetch over the cached copy.
	Download bool `json:"download" yaml:"download" mapstructure:"download"`
}

// PruneConfig lists the content removed from the tree before extraction.
type PruneConfig struct {
	// Classes are class names of non-defining blocks (examples, notes, IDL).
	Classes []string `json:"classes" yaml:"classes" mapstructure:"classes"`

	// SectionID is the heading anchor of a section removed as a whole.
	// Empty disables section removal.
	SectionID string `json:"section_id" yaml:"section_id" mapstructure:"section_id"`
}

// ConsumeMode selects what happens to content once it has been attributed
// to a concept.
type ConsumeMode string

const (
	// ConsumeMark records the node in a processed set and leaves the tree intact.
	ConsumeMark ConsumeMode = "mark"
	// ConsumeRemove detaches the node from the tree.
	ConsumeRemove ConsumeMode = "remove"
	// ConsumeComment replaces the node with a comment holding its markup.
	ConsumeComment ConsumeMode = "comment"
)

// RedefinitionPolicy decides which definition survives when an identifier
// is defined more than once.
type RedefinitionPolicy string

const (
	RedefineLastWins  RedefinitionPolicy = "last"
	RedefineFirstWins RedefinitionPolicy = "first"
)

// ExtractionConfig holds the tag and attribute vocabulary of the document
// and the policies of the extraction engine.
type ExtractionConfig struct {
	// MarkerTag is the element introducing a defining occurrence (dfn).
	MarkerTag string `json:"marker_tag" yaml:"marker_tag" mapstructure:"marker_tag"`

	// LinkTag and LinkAttr identify cross-reference links (a / href).
	LinkTag  string `json:"link_tag" yaml:"link_tag" mapstructure:"link_tag"`
	LinkAttr string `json:"link_attr" yaml:"link_attr" mapstructure:"link_attr"`

	// IdentityAttr carries identifiers on markers or their ancestors (id).
	IdentityAttr string `json:"identity_attr" yaml:"identity_attr" mapstructure:"identity_attr"`

	// ScopeAttr points a scoped marker at the concept it belongs to (data-dfn-for).
	ScopeAttr string `json:"scope_attr" yaml:"scope_attr" mapstructure:"scope_attr"`

	// ConceptPrefix marks incidental glossary markers (concept).
	ConceptPrefix string `json:"concept_prefix" yaml:"concept_prefix" mapstructure:"concept_prefix"`

	// Connective is the word allowed between co-equal markers (and).
	Connective string `json:"connective" yaml:"connective" mapstructure:"connective"`

	// ListTags are sibling shapes defining a concept as a list (ol, ul, dl).
	ListTags []string `json:"list_tags" yaml:"list_tags" mapstructure:"list_tags"`

	// ProseTags are sibling shapes that end a prose definition (p).
	ProseTags []string `json:"prose_tags" yaml:"prose_tags" mapstructure:"prose_tags"`

	// Consume selects the consumption handler.
	Consume ConsumeMode `json:"consume" yaml:"consume" mapstructure:"consume"`

	// Redefinition selects the redefinition policy of the registry.
	Redefinition RedefinitionPolicy `json:"redefinition" yaml:"redefinition" mapstructure:"redefinition"`
}

// WithDefaults returns a copy of c with every empty field set to the
// vocabulary of the WHATWG HTML standard.
func (c ExtractionConfig) WithDefaults() ExtractionConfig {
	if c.MarkerTag == "" {
		c.MarkerTag = "dfn"
	}
	if c.LinkTag == "" {
		c.LinkTag = "a"
	}
	if c.LinkAttr == "" {
		c.LinkAttr = "href"
	}
	if c.IdentityAttr == "" {
		c.IdentityAttr = "id"
	}
	if c.ScopeAttr == "" {
		c.ScopeAttr = "data-dfn-for"
	}
	if c.ConceptPrefix == "" {
		c.ConceptPrefix = "concept"
	}
	if c.Connective == "" {
		c.Connective = "and"
	}
	if len(c.ListTags) == 0 {
		c.ListTags = []string{"ol", "ul", "dl"}
	}
	if len(c.ProseTags) == 0 {
		c.ProseTags = []string{"p"}
	}
	if c.Consume == "" {
		c.Consume = ConsumeMark
	}
	if c.Redefinition == "" {
		c.Redefinition = RedefineLastWins
	}
	return c
}

// OracleBackend identifies the reasoning oracle implementation.
type OracleBackend string

const (
	OracleNone     OracleBackend = "none"
	OracleClaude   OracleBackend = "claude"
	OracleTerminal OracleBackend = "terminal"
)

// ContextFormat selects how document content is shown to the oracle.
type ContextFormat string

const (
	ContextHTML     ContextFormat = "html"
	ContextMarkdown ContextFormat = "markdown"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens bounds each reply (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OracleConfig holds settings for the classification and interpreter stages.
type OracleConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the oracle: none, claude or terminal.
	Backend OracleBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// ContextFormat selects html or markdown for classification prompts.
	ContextFormat ContextFormat `json:"context_format" yaml:"context_format" mapstructure:"context_format"`

	// Classify enables the classification pass.
	Classify bool `json:"classify" yaml:"classify" mapstructure:"classify"`

	// Resolve enables the command interpreter for ambiguous parents.
	Resolve bool `json:"resolve" yaml:"resolve" mapstructure:"resolve"`
}

// InterpreterConfig bounds the command interpreter.
type InterpreterConfig struct {
	// MaxSteps is the number of oracle replies allowed per session (default 10).
	MaxSteps int `json:"max_steps" yaml:"max_steps" mapstructure:"max_steps"`
}

// OutputConfig names the files written after a run.
type OutputConfig struct {
	// Dir is the directory receiving graph.json, concepts.json and unused.html.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MetricsFile, when set, receives the run metrics in Prometheus text format.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// StoreConfig holds settings for the SQLite concept store.
type StoreConfig struct {
	// Enabled saves every run into the store.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir contains the database file (specgraph.db) and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// GraphDBConfig holds the Neo4j connection used for graph export.
// An empty URI disables the export.
type GraphDBConfig struct {
	URI      string        `json:"uri" yaml:"uri" mapstructure:"uri"`
	User     string        `json:"user" yaml:"user" mapstructure:"user"`
	Password string        `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	Database string        `json:"database" yaml:"database" mapstructure:"database"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ServeConfig holds settings for the read-only graph service.
type ServeConfig struct {
	// Addr is the listen address (default ":5000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// DataDir holds graph.json and concepts.json.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// StaticDir is served under /static.
	StaticDir string `json:"static_dir" yaml:"static_dir" mapstructure:"static_dir"`

	// Watch invalidates cached files when they change on disk.
	Watch bool `json:"watch" yaml:"watch" mapstructure:"watch"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	// Mode is "development" (console) or "production" (JSON).
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// PipelineConfig groups all stage configurations for one run.
type PipelineConfig struct {
	Fetch       FetchConfig       `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Prune       PruneConfig       `json:"prune" yaml:"prune" mapstructure:"prune"`
	Extraction  ExtractionConfig  `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Oracle      OracleConfig      `json:"oracle" yaml:"oracle" mapstructure:"oracle"`
	Interpreter InterpreterConfig `json:"interpreter" yaml:"interpreter" mapstructure:"interpreter"`
	Output      OutputConfig      `json:"output" yaml:"output" mapstructure:"output"`
	Store       StoreConfig       `json:"store" yaml:"store" mapstructure:"store"`
	GraphDB     GraphDBConfig     `json:"graphdb" yaml:"graphdb" mapstructure:"graphdb"`
	Serve       ServeConfig       `json:"serve" yaml:"serve" mapstructure:"serve"`
	Log         LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
}
