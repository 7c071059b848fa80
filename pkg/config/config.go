package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	API        APIConfig
	Socket     SocketConfig
	Map        MapConfig
	Extraction ExtractionConfig
	Training   TrainingConfig
	Deployment DeploymentConfig
	Panels     PanelsConfig
	Settings   SettingsConfig
	Status     StatusConfig
	Logging    LoggingConfig
}

type APIConfig struct {
	BaseURL    string
	TimeoutSec int
}

type SocketConfig struct {
	URL string
}

type MapConfig struct {
	Style       string
	AccessToken string
	CenterLng   float64
	CenterLat   float64
	Zoom        float64
}

type ExtractionConfig struct {
	Collection     string
	ChipSize       int
	ClearThreshold float64
}

type TrainingConfig struct {
	BatchSize    int
	Epochs       int
	TestSplit    float64
	Augmentation bool
}

type DeploymentConfig struct {
	PredThreshold  float64
	ClearThreshold float64
	TileSize       int
	TilePadding    int
	BatchSize      int
	Tries          int
}

// PanelsConfig maps panel names to their sidebar button identifiers.
type PanelsConfig struct {
	Buttons map[string]string
}

type SettingsConfig struct {
	Path string
}

type StatusConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/geo-workbench")

	viper.SetEnvPrefix("WORKBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("api.baseURL", "http://localhost:5001")
	viper.SetDefault("api.timeoutSec", 30)

	viper.SetDefault("socket.url", "ws://localhost:5001/events")

	viper.SetDefault("map.style", "mapbox://styles/mapbox/satellite-streets-v12")
	viper.SetDefault("map.accessToken", "")
	viper.SetDefault("map.centerLng", 0.0)
	viper.SetDefault("map.centerLat", 20.0)
	viper.SetDefault("map.zoom", 2.0)

	viper.SetDefault("extraction.collection", "S2")
	viper.SetDefault("extraction.chipSize", 64)
	viper.SetDefault("extraction.clearThreshold", 0.75)

	viper.SetDefault("training.batchSize", 32)
	viper.SetDefault("training.epochs", 10)
	viper.SetDefault("training.testSplit", 0.2)
	viper.SetDefault("training.augmentation", true)

	viper.SetDefault("deployment.predThreshold", 0.5)
	viper.SetDefault("deployment.clearThreshold", 0.75)
	viper.SetDefault("deployment.tileSize", 576)
	viper.SetDefault("deployment.tilePadding", 24)
	viper.SetDefault("deployment.batchSize", 500)
	viper.SetDefault("deployment.tries", 2)

	viper.SetDefault("panels.buttons", map[string]string{
		"control-panel":       "draw-points-btn",
		"extract-panel":       "extract-data-btn",
		"visualization-panel": "visualize-data-btn",
		"project-modal":       "project-btn",
		"training-panel":      "train-model-btn",
		"deployment-panel":    "deploy-model-btn",
		"map-imagery-panel":   "map-imagery-btn",
	})

	viper.SetDefault("settings.path", "./data/workbench.db")

	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.host", "127.0.0.1")
	viper.SetDefault("status.port", 8090)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
