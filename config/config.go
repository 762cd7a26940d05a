// Package config loads application configuration from a config.json file
// and DATACHAT_* environment variables, with env taking precedence.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// LLMConfig holds the OpenAI-compatible endpoint used for the reasoning
// loop and chart generation.
type LLMConfig struct {
	APIKey    string `json:"apiKey" mapstructure:"api_key"`
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	ModelName string `json:"modelName" mapstructure:"model_name"`
	MaxTokens int    `json:"maxTokens" mapstructure:"max_tokens"`
}

// DefaultMySQL describes the optional environment-derived connection that
// seeds an empty registry at startup. Host and Database must both be set
// for seeding to happen.
type DefaultMySQL struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// Config structure
type Config struct {
	ListenAddr      string       `json:"listenAddr" mapstructure:"listen_addr"`
	LogDir          string       `json:"logDir" mapstructure:"log_dir"`
	DataDir         string       `json:"dataDir" mapstructure:"data_dir"`
	ConnectionsFile string       `json:"connectionsFile" mapstructure:"connections_file"`
	LLM             LLMConfig    `json:"llm" mapstructure:"llm"`
	MySQL           DefaultMySQL `json:"mysql" mapstructure:"mysql"`
	DetailedLog     bool         `json:"detailedLog" mapstructure:"detailed_log"`
}

// Load reads configuration from configDir/config.json (if present) merged
// with DATACHAT_* environment variables. A missing config file is not an
// error; defaults plus env are enough to run.
func Load(configDir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("DATACHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every struct key needs a default, even an empty one: AutomaticEnv
	// only resolves keys viper already knows, so an env-only key without
	// a default would never reach Unmarshal.
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("log_dir", "./logs")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("connections_file", "connections.json")
	v.SetDefault("detailed_log", false)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("llm.model_name", "qwen3-max")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
