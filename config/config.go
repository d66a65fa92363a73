package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort     string        `mapstructure:"HTTPPort"`
		Timeout      time.Duration `mapstructure:"HTTPTimeout"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
		// CORS origins allowed to call the API.
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
			MaxConns          int32  `mapstructure:"maxConns"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Qloo struct {
		BaseURL        string        `mapstructure:"baseURL"`
		APIKey         string        `mapstructure:"apiKey"`
		Timeout        time.Duration `mapstructure:"timeout"`
		Take           int           `mapstructure:"take"`
		SignalCacheTTL time.Duration `mapstructure:"signalCacheTTL"`
	} `mapstructure:"qloo"`
	LLM struct {
		// Provider is "openai" (any OpenAI-compatible chat-completions server) or "gemini".
		Provider    string        `mapstructure:"provider"`
		BaseURL     string        `mapstructure:"baseURL"`
		APIKey      string        `mapstructure:"apiKey"`
		Model       string        `mapstructure:"model"`
		MaxTokens   int           `mapstructure:"maxTokens"`
		Temperature float32       `mapstructure:"temperature"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"llm"`
	RateLimit struct {
		Requests int           `mapstructure:"requests"`
		Window   time.Duration `mapstructure:"window"`
	} `mapstructure:"rateLimit"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsPort string `mapstructure:"metricsPort"`
	} `mapstructure:"observability"`
}

// DefaultTemperature applies when llm.temperature is absent from every source.
const DefaultTemperature = 0.7

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()
	v.SetDefault("llm.temperature", DefaultTemperature)

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// QLOO_APIKEY overrides qloo.apiKey, LLM_BASEURL overrides llm.baseURL, etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate fills defaults and rejects configs the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Qloo.APIKey) == "" {
		return fmt.Errorf("qloo.apiKey is not defined (set QLOO_APIKEY)")
	}
	if c.Qloo.BaseURL == "" {
		c.Qloo.BaseURL = "https://hackathon.api.qloo.com"
	}
	if c.Qloo.Timeout <= 0 {
		c.Qloo.Timeout = 15 * time.Second
	}
	if c.Qloo.Take <= 0 || c.Qloo.Take > 50 {
		c.Qloo.Take = 15
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 180
	}
	if c.LLM.Temperature < 0 {
		c.LLM.Temperature = DefaultTemperature
	}
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "3000"
	}
	return nil
}
