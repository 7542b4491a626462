// Package config loads taskmanagerd's layered configuration: built-in
// defaults, an optional YAML file, then environment variables, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration tree for a taskmanagerd process.
type Config struct {
	DataDirectory string               `mapstructure:"dataDirectory"`
	Scheduling    SchedulingConfig     `mapstructure:"scheduling"`
	RDD           RDDConfig            `mapstructure:"rdd"`
	Orchestration OrchestrationConfig  `mapstructure:"orchestration"`
	Prompts       PromptsConfig        `mapstructure:"prompts"`
	Server        ServerConfig         `mapstructure:"server"`
}

// SchedulingConfig tunes the scheduler engine.
type SchedulingConfig struct {
	Algorithm           string             `mapstructure:"algorithm"`
	MaxConcurrentTasks  int                `mapstructure:"maxConcurrentTasks"`
	MaxMemoryMB         int                `mapstructure:"maxMemoryMB"`
	MaxCPUUtilization   float64            `mapstructure:"maxCpuUtilization"`
	AvailableAgents     int                `mapstructure:"availableAgents"`
	BatchSize           int                `mapstructure:"batchSize"`
	SchedulingInterval  time.Duration      `mapstructure:"schedulingInterval"`
	PriorityWeights     PriorityWeights    `mapstructure:"priorityWeights"`
}

// PriorityWeights maps a task's declared priority to a scoring weight.
type PriorityWeights struct {
	Low      float64 `mapstructure:"low"`
	Medium   float64 `mapstructure:"medium"`
	High     float64 `mapstructure:"high"`
	Critical float64 `mapstructure:"critical"`
}

// RDDConfig bounds recursive decomposition.
type RDDConfig struct {
	MaxDepth      int     `mapstructure:"maxDepth"`
	MaxSubTasks   int     `mapstructure:"maxSubTasks"`
	MinConfidence float64 `mapstructure:"minConfidence"`
}

// RecoveryConfig controls automatic retry of failed executions.
type RecoveryConfig struct {
	AutoRetry  bool          `mapstructure:"autoRetry"`
	MaxRetries int           `mapstructure:"maxRetries"`
	RetryDelay time.Duration `mapstructure:"retryDelay"`
}

// OrchestrationConfig tunes the orchestration engine's periodic timers.
type OrchestrationConfig struct {
	HeartbeatInterval time.Duration  `mapstructure:"heartbeatInterval"`
	HeartbeatTimeout  time.Duration  `mapstructure:"heartbeatTimeout"`
	WatchdogInterval  time.Duration  `mapstructure:"watchdogInterval"`
	DefaultTimeout    time.Duration  `mapstructure:"defaultTimeout"`
	Recovery          RecoveryConfig `mapstructure:"recovery"`
}

// PromptsConfig locates the prompt template directory.
type PromptsConfig struct {
	Directory string `mapstructure:"directory"`
}

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads configuration from configPath (if non-empty and present),
// layering environment variables (prefixed TASKMANAGER_, nested keys
// joined with underscores) over file values over defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TASKMANAGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envReplacer{})

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	} else {
		v.SetConfigName("taskmanager")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taskmanager/")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read default locations: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataDirectory", "./data")

	v.SetDefault("scheduling.algorithm", "hybrid_optimal")
	v.SetDefault("scheduling.maxConcurrentTasks", 10)
	v.SetDefault("scheduling.maxMemoryMB", 8192)
	v.SetDefault("scheduling.maxCpuUtilization", 0.8)
	v.SetDefault("scheduling.availableAgents", 5)
	v.SetDefault("scheduling.batchSize", 20)
	v.SetDefault("scheduling.schedulingInterval", 5*time.Second)
	v.SetDefault("scheduling.priorityWeights.low", 0.25)
	v.SetDefault("scheduling.priorityWeights.medium", 0.5)
	v.SetDefault("scheduling.priorityWeights.high", 0.75)
	v.SetDefault("scheduling.priorityWeights.critical", 1.0)

	v.SetDefault("rdd.maxDepth", 3)
	v.SetDefault("rdd.maxSubTasks", 5)
	v.SetDefault("rdd.minConfidence", 0.7)

	v.SetDefault("orchestration.heartbeatInterval", 15*time.Second)
	v.SetDefault("orchestration.heartbeatTimeout", 45*time.Second)
	v.SetDefault("orchestration.watchdogInterval", 10*time.Second)
	v.SetDefault("orchestration.defaultTimeout", 10*time.Minute)
	v.SetDefault("orchestration.recovery.autoRetry", true)
	v.SetDefault("orchestration.recovery.maxRetries", 3)
	v.SetDefault("orchestration.recovery.retryDelay", 5*time.Second)

	v.SetDefault("prompts.directory", "./prompts")
	v.SetDefault("server.address", ":8090")
}

func validate(cfg *Config) error {
	if cfg.RDD.MaxDepth < 1 {
		return fmt.Errorf("config: rdd.maxDepth must be >= 1")
	}
	if cfg.RDD.MaxSubTasks < 1 {
		return fmt.Errorf("config: rdd.maxSubTasks must be >= 1")
	}
	if cfg.RDD.MinConfidence < 0 || cfg.RDD.MinConfidence > 1 {
		return fmt.Errorf("config: rdd.minConfidence must be within [0,1]")
	}
	if cfg.Scheduling.MaxConcurrentTasks < 1 {
		return fmt.Errorf("config: scheduling.maxConcurrentTasks must be >= 1")
	}
	switch cfg.Scheduling.Algorithm {
	case "priority_first", "earliest_deadline", "shortest_job", "critical_path", "resource_aware", "hybrid_optimal":
	default:
		return fmt.Errorf("config: unknown scheduling.algorithm %q", cfg.Scheduling.Algorithm)
	}
	if cfg.DataDirectory == "" {
		return fmt.Errorf("config: dataDirectory must not be empty")
	}
	if _, err := os.Stat(cfg.DataDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
			return fmt.Errorf("config: create dataDirectory: %w", err)
		}
	}
	return nil
}

type envReplacer struct{}

func (envReplacer) Replace(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '.' {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
