package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultPort = 6473
	DefaultHost = "localhost"
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Role: "dispatcher",
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Processor: ProcessorConfig{
			Type:              "dispatcher",
			MaxPendingClients: 2,
			MinForwardTime:    0,
			MaxForwardTime:    0,
			Fake:              false,
		},
		Estimator: EstimatorConfig{
			Type:            "rtt",
			WindowSize:      30,
			StalePeriod:     10 * time.Second,
			UtilLoadTimeout: 5 * time.Second,
			UtilWindowSize:  30,
			MaxClients:      2,
		},
		Client: ClientConfig{
			Persistence:       0.05,
			ConnectionTimeout: 5 * time.Second,
			ResponseTimeout:   60 * time.Second,
			Lambda:            "clambda0",
			MaxRequests:       1,
			InputSize:         100,
		},
		Computer: ComputerConfig{
			Type:       "simulator",
			NumWorkers: 4,
			Namespace:  "default",
			Lambdas: []LambdaConfig{
				{Name: "clambda0", FixedOps: 1e6, OpsPerByte: 1e4},
			},
			Gateway: GatewayConfig{
				NumClients: 4,
				Timeout:    60 * time.Second,
			},
		},
		State: StateConfig{
			Backend: "memory",
			Path:    "ferry-state.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			LogDir:     "./logs",
			FileOutput: false,
			PrettyLogs: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from file and environment variables, watching for
// changes when a callback is provided.
func Load(onConfigChange func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("FERRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// it's okay if the config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("FERRY_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			// debounce rapid-fire editor writes
			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return
			}
			lastReload = now

			onConfigChange()
		})
	}

	return config, nil
}

// Validate rejects configurations the fabric cannot run with.
func (c *Config) Validate() error {
	switch c.Role {
	case "dispatcher", "router", "computer", "state", "client":
	default:
		return fmt.Errorf("invalid role: %s", c.Role)
	}
	if c.Role == "client" {
		if len(c.Client.Endpoints) == 0 {
			return fmt.Errorf("client role requires at least one endpoint")
		}
		if c.Client.ChainFile != "" && c.Client.DagFile != "" {
			return fmt.Errorf("cannot specify both a chain and a DAG")
		}
	}
	if c.Client.Persistence < 0 || c.Client.Persistence > 1 {
		return fmt.Errorf("invalid configuration: persistence probability (%v) cannot be < 0 or > 1", c.Client.Persistence)
	}
	if c.Processor.MaxForwardTime < c.Processor.MinForwardTime {
		return fmt.Errorf("invalid forward time range: [%v, %v]", c.Processor.MinForwardTime, c.Processor.MaxForwardTime)
	}
	if c.Processor.MaxPendingClients < 0 {
		return fmt.Errorf("invalid max_pending_clients: %d", c.Processor.MaxPendingClients)
	}
	if c.Role == "computer" && c.Computer.Type == "faas" && c.Computer.Gateway.URL == "" {
		return fmt.Errorf("faas computer requires a gateway url")
	}
	return nil
}

// ListenAddress is the host:port the node binds.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
