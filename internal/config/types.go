package config

import "time"

// Config holds all configuration for the fabric node.
type Config struct {
	Role      string          `yaml:"role" mapstructure:"role"` // dispatcher, router, computer, state, client
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Processor ProcessorConfig `yaml:"processor" mapstructure:"processor"`
	Estimator EstimatorConfig `yaml:"estimator" mapstructure:"estimator"`
	Client    ClientConfig    `yaml:"client" mapstructure:"client"`
	Computer  ComputerConfig  `yaml:"computer" mapstructure:"computer"`
	State     StateConfig     `yaml:"state" mapstructure:"state"`
	Table     TableConfig     `yaml:"table" mapstructure:"table"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ProcessorConfig configures the lambda processor pipeline.
type ProcessorConfig struct {
	Type              string        `yaml:"type" mapstructure:"type"` // dispatcher or router
	MaxPendingClients int           `yaml:"max_pending_clients" mapstructure:"max_pending_clients"`
	MinForwardTime    time.Duration `yaml:"min_forward_time" mapstructure:"min_forward_time"`
	MaxForwardTime    time.Duration `yaml:"max_forward_time" mapstructure:"max_forward_time"`
	Fake              bool          `yaml:"fake" mapstructure:"fake"`
	Controller        string        `yaml:"controller" mapstructure:"controller"`
	CommandsEndpoint  string        `yaml:"commands_endpoint" mapstructure:"commands_endpoint"`
}

// EstimatorConfig configures the processing-time estimator family.
type EstimatorConfig struct {
	Type            string        `yaml:"type" mapstructure:"type"` // rtt, util, delay, probe
	WindowSize      int           `yaml:"window_size" mapstructure:"window_size"`
	StalePeriod     time.Duration `yaml:"stale_period" mapstructure:"stale_period"`
	UtilLoadTimeout time.Duration `yaml:"util_load_timeout" mapstructure:"util_load_timeout"`
	UtilWindowSize  int           `yaml:"util_window_size" mapstructure:"util_window_size"`
	MaxClients      int           `yaml:"max_clients" mapstructure:"max_clients"`
	Output          string        `yaml:"output" mapstructure:"output"`
}

// ClientConfig configures outbound lambda clients, and the request driver
// when the node runs in client role.
type ClientConfig struct {
	// Persistence is the per-request probability of adding each non-primary
	// destination to the fan-out set of a multi-destination client.
	Persistence       float64       `yaml:"persistence" mapstructure:"persistence"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" mapstructure:"connection_timeout"`
	ResponseTimeout   time.Duration `yaml:"response_timeout" mapstructure:"response_timeout"`

	// driver settings, client role only
	Endpoints        []string      `yaml:"endpoints" mapstructure:"endpoints"`
	Lambda           string        `yaml:"lambda" mapstructure:"lambda"`
	MaxRequests      int           `yaml:"max_requests" mapstructure:"max_requests"`
	InterRequestTime time.Duration `yaml:"inter_request_time" mapstructure:"inter_request_time"`
	InputSize        int           `yaml:"input_size" mapstructure:"input_size"`
	ChainFile        string        `yaml:"chain_file" mapstructure:"chain_file"`
	DagFile          string        `yaml:"dag_file" mapstructure:"dag_file"`
	StateEndpoint    string        `yaml:"state_endpoint" mapstructure:"state_endpoint"`
	Dry              bool          `yaml:"dry" mapstructure:"dry"`
}

// ComputerConfig configures the edge computer.
type ComputerConfig struct {
	Type       string                  `yaml:"type" mapstructure:"type"` // simulator or faas
	NumWorkers int                     `yaml:"num_workers" mapstructure:"num_workers"`
	Lambdas    []LambdaConfig          `yaml:"lambdas" mapstructure:"lambdas"`
	Gateway    GatewayConfig           `yaml:"gateway" mapstructure:"gateway"`
	Namespace  string                  `yaml:"namespace" mapstructure:"namespace"`
}

// LambdaConfig declares a lambda servable by the local simulator. The
// processing time grows linearly with the input size at the configured speed.
type LambdaConfig struct {
	Name        string  `yaml:"name" mapstructure:"name"`
	FixedOps    float64 `yaml:"fixed_ops" mapstructure:"fixed_ops"`
	OpsPerByte  float64 `yaml:"ops_per_byte" mapstructure:"ops_per_byte"`
}

// GatewayConfig configures the external HTTP FaaS gateway mode.
type GatewayConfig struct {
	URL        string        `yaml:"url" mapstructure:"url"`
	NumClients int           `yaml:"num_clients" mapstructure:"num_clients"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StateConfig configures the state store.
type StateConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Backend  string `yaml:"backend" mapstructure:"backend"` // memory or sqlite
	Path     string `yaml:"path" mapstructure:"path"`
}

// TableConfig seeds the destination tables.
type TableConfig struct {
	Entries []TableEntryConfig `yaml:"entries" mapstructure:"entries"`
}

// TableEntryConfig is one static lambda -> destination row.
type TableEntryConfig struct {
	Lambda      string  `yaml:"lambda" mapstructure:"lambda"`
	Destination string  `yaml:"destination" mapstructure:"destination"`
	Weight      float64 `yaml:"weight" mapstructure:"weight"`
	Final       bool    `yaml:"final" mapstructure:"final"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Theme      string `yaml:"theme" mapstructure:"theme"`
	LogDir     string `yaml:"log_dir" mapstructure:"log_dir"`
	FileOutput bool   `yaml:"file_output" mapstructure:"file_output"`
	PrettyLogs bool   `yaml:"pretty_logs" mapstructure:"pretty_logs"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}
