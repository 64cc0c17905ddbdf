package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	LLM struct {
		Model       string  `mapstructure:"model"`
		Temperature float64 `mapstructure:"temperature"`
	} `mapstructure:"llm"`
	Places struct {
		BaseURL string        `mapstructure:"baseURL"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"places"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// PipelineConfig carries the tunable knobs of the generation pipeline.
// Thresholds are config-driven so the property tests can exercise them
// instead of relying on hard-coded constants.
type PipelineConfig struct {
	TotalBudget         time.Duration `mapstructure:"totalBudget"`
	DayBudget           time.Duration `mapstructure:"dayBudget"`
	GapThreshold        time.Duration `mapstructure:"gapThreshold"`
	SimilarityThreshold float64       `mapstructure:"similarityThreshold"`
	MealProximityMeters float64       `mapstructure:"mealProximityMeters"`
	SearchRadiusMeters  int           `mapstructure:"searchRadiusMeters"`
	WidenedRadiusMeters int           `mapstructure:"widenedRadiusMeters"`
	MaxRegenAttempts    int           `mapstructure:"maxRegenAttempts"`
	MaxLLMAttempts      int           `mapstructure:"maxLLMAttempts"`
	CacheTTL            time.Duration `mapstructure:"cacheTTL"`
}

// DefaultPipelineConfig mirrors the values shipped in config.yml; tests and
// callers that do not load a file start from here.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TotalBudget:         90 * time.Second,
		DayBudget:           30 * time.Second,
		GapThreshold:        3 * time.Hour,
		SimilarityThreshold: 0.8,
		MealProximityMeters: 1000,
		SearchRadiusMeters:  3000,
		WidenedRadiusMeters: 10000,
		MaxRegenAttempts:    1,
		MaxLLMAttempts:      2,
		CacheTTL:            24 * time.Hour,
	}
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
