package config

import (
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/labelhive/labelhive/internal"
)

// We're bootstrapping so avoid any imports from other packages
var log = logrus.New()

// defaultConfig is merged into whatever the config file and ENV provide.
var defaultConfig = Config{
	Selector: SelectorConfig{
		Metric:      "cosine",
		Aggregation: "max",
		Shards:      1,
	},
	Consensus: ConsensusConfig{
		DisputeThreshold:     0.7,
		MinWorkers:           2,
		MinVotes:             2,
		MinVoteProportion:    0.5,
		ReliabilityThreshold: 0.8,
	},
	Manifest: ManifestConfig{
		GroupSize:          20,
		OtherCategoryLabel: "Other",
	},
	Callback: CallbackConfig{
		TimeoutSeconds: 10,
		MaxRetries:     3,
	},
	Server: ServerConfig{
		Port: 8000,
	},
	Log: LogConfig{
		Level: "info",
	},
}

// LoadConfig loads the config file and ENV variables into a Config struct
func LoadConfig(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LABELHIVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Warn("no config file found, using defaults and ENV")
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	if err := viper.BindEnv("auth.secret", "LABELHIVE_AUTH_SECRET"); err != nil {
		log.Fatalf("Error binding environment variable: %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := mergo.Merge(&cfg, defaultConfig); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Debug(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	log.Info("Log level set to: ", level)
}
