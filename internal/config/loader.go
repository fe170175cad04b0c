package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first,
// so API credentials can live there.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("WOWHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wowharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".wowharvest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.namespace", cfg.API.Namespace)
	v.SetDefault("api.locale", cfg.API.Locale)
	v.SetDefault("api.token_url", cfg.API.TokenURL)
	v.SetDefault("api.client_id", cfg.API.ClientID)
	v.SetDefault("api.client_secret", cfg.API.ClientSecret)
	v.SetDefault("api.request_timeout", cfg.API.RequestTimeout)
	v.SetDefault("api.concurrency", cfg.API.Concurrency)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("api.max_body_size", cfg.API.MaxBodySize)

	v.SetDefault("paths.spells_index", cfg.Paths.SpellsIndex)
	v.SetDefault("paths.spells", cfg.Paths.Spells)
	v.SetDefault("paths.spells_csv", cfg.Paths.SpellsCSV)
	v.SetDefault("paths.pve_talents_index", cfg.Paths.PvETalentsIndex)
	v.SetDefault("paths.pve_talents", cfg.Paths.PvETalents)
	v.SetDefault("paths.pve_talents_csv", cfg.Paths.PvETalentsCSV)
	v.SetDefault("paths.pvp_talents_index", cfg.Paths.PvPTalentsIndex)
	v.SetDefault("paths.pvp_talents", cfg.Paths.PvPTalents)
	v.SetDefault("paths.pvp_talents_csv", cfg.Paths.PvPTalentsCSV)
	v.SetDefault("paths.talent_tree_index", cfg.Paths.TalentTreeIndex)
	v.SetDefault("paths.talent_tree_csv", cfg.Paths.TalentTreeCSV)
	v.SetDefault("paths.tree_nodes_dir", cfg.Paths.TreeNodesDir)
	v.SetDefault("paths.spec_trees_dir", cfg.Paths.SpecTreesDir)
	v.SetDefault("paths.trees_csv_dir", cfg.Paths.TreesCSVDir)
	v.SetDefault("paths.all_abilities", cfg.Paths.AllAbilities)
	v.SetDefault("paths.cleaned_dataset", cfg.Paths.CleanedDataset)

	v.SetDefault("processing.fill_value", cfg.Processing.FillValue)
	v.SetDefault("processing.missing_pvp", cfg.Processing.MissingPvP)
	v.SetDefault("processing.drop_columns", cfg.Processing.DropColumns)
	v.SetDefault("processing.excluded_extensions", cfg.Processing.ExcludedExtensions)

	v.SetDefault("forums.allowed_domains", cfg.Forums.AllowedDomains)
	v.SetDefault("forums.max_pages", cfg.Forums.MaxPages)
	v.SetDefault("forums.politeness_delay", cfg.Forums.PolitenessDelay)
	v.SetDefault("forums.collection", cfg.Forums.Collection)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
