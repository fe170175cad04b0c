package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for WoWHarvest.
type Config struct {
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Paths      PathsConfig      `mapstructure:"paths"      yaml:"paths"`
	Processing ProcessingConfig `mapstructure:"processing" yaml:"processing"`
	Forums     ForumsConfig     `mapstructure:"forums"     yaml:"forums"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// APIConfig controls the Game Data API client.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"        yaml:"base_url"`
	Namespace      string        `mapstructure:"namespace"       yaml:"namespace"`
	Locale         string        `mapstructure:"locale"          yaml:"locale"`
	TokenURL       string        `mapstructure:"token_url"       yaml:"token_url"`
	ClientID       string        `mapstructure:"client_id"       yaml:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"   yaml:"client_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Concurrency    int           `mapstructure:"concurrency"     yaml:"concurrency"`
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
}

// PathsConfig names every intermediate and output file.
type PathsConfig struct {
	SpellsIndex     string `mapstructure:"spells_index"      yaml:"spells_index"`
	Spells          string `mapstructure:"spells"            yaml:"spells"`
	SpellsCSV       string `mapstructure:"spells_csv"        yaml:"spells_csv"`
	PvETalentsIndex string `mapstructure:"pve_talents_index" yaml:"pve_talents_index"`
	PvETalents      string `mapstructure:"pve_talents"       yaml:"pve_talents"`
	PvETalentsCSV   string `mapstructure:"pve_talents_csv"   yaml:"pve_talents_csv"`
	PvPTalentsIndex string `mapstructure:"pvp_talents_index" yaml:"pvp_talents_index"`
	PvPTalents      string `mapstructure:"pvp_talents"       yaml:"pvp_talents"`
	PvPTalentsCSV   string `mapstructure:"pvp_talents_csv"   yaml:"pvp_talents_csv"`
	TalentTreeIndex string `mapstructure:"talent_tree_index" yaml:"talent_tree_index"`
	TalentTreeCSV   string `mapstructure:"talent_tree_csv"   yaml:"talent_tree_csv"`
	TreeNodesDir    string `mapstructure:"tree_nodes_dir"    yaml:"tree_nodes_dir"`
	SpecTreesDir    string `mapstructure:"spec_trees_dir"    yaml:"spec_trees_dir"`
	TreesCSVDir     string `mapstructure:"trees_csv_dir"     yaml:"trees_csv_dir"`
	AllAbilities    string `mapstructure:"all_abilities"     yaml:"all_abilities"`
	CleanedDataset  string `mapstructure:"cleaned_dataset"   yaml:"cleaned_dataset"`
}

// ProcessingConfig controls flattening and cleaning.
type ProcessingConfig struct {
	FillValue          string            `mapstructure:"fill_value"          yaml:"fill_value"`
	MissingPvP         string            `mapstructure:"missing_pvp"         yaml:"missing_pvp"`
	DropColumns        []string          `mapstructure:"drop_columns"        yaml:"drop_columns"`
	ExcludedExtensions []string          `mapstructure:"excluded_extensions" yaml:"excluded_extensions"`
	Classes            map[string]string `mapstructure:"classes"             yaml:"classes"`

	// Rename overrides are merged over the built-in frame merge renames.
	// Column names contain dots, so they are listed as pairs rather than
	// as map keys.
	SpellNodeRenames  []Rename `mapstructure:"spell_node_renames"  yaml:"spell_node_renames"`
	ChoiceNodeRenames []Rename `mapstructure:"choice_node_renames" yaml:"choice_node_renames"`
}

// Rename maps one flattened column name to its canonical name.
type Rename struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to"   yaml:"to"`
}

// RenameMap converts rename pairs to a lookup map. Later pairs win.
func RenameMap(pairs []Rename) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]string, len(pairs))
	for _, r := range pairs {
		m[r.From] = r.To
	}
	return m
}

// ForumsConfig controls the forum comment collector.
type ForumsConfig struct {
	TopicURLs       []string      `mapstructure:"topic_urls"       yaml:"topic_urls"`
	AllowedDomains  []string      `mapstructure:"allowed_domains"  yaml:"allowed_domains"`
	MaxPages        int           `mapstructure:"max_pages"        yaml:"max_pages"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	Rules           []ParseRule   `mapstructure:"rules"            yaml:"rules"`
	Collection      string        `mapstructure:"collection"       yaml:"collection"`
}

// ParseRule defines a single XPath extraction rule.
type ParseRule struct {
	Name      string `mapstructure:"name"      yaml:"name"`
	Selector  string `mapstructure:"selector"  yaml:"selector"`
	Attribute string `mapstructure:"attribute" yaml:"attribute"`
}

// StorageConfig controls where tables and comments are written.
type StorageConfig struct {
	Type          string `mapstructure:"type"           yaml:"type"`
	MongoURI      string `mapstructure:"mongo_uri"      yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultClasses maps class talent-tree ids to class names.
func DefaultClasses() map[string]string {
	return map[string]string{
		"658": "Mage",
		"720": "Warlock",
		"781": "Hunter",
		"786": "Shaman",
		"790": "Paladin",
		"793": "Druid",
		"795": "Priest",
		"812": "Death Knight",
		"852": "Rogue",
		"853": "Monk",
		"854": "Demon Hunter",
		"872": "Evoker",
		"912": "Warrior",
	}
}

// DefaultDropColumns lists the link-only and noisy columns removed by the
// final clean step.
func DefaultDropColumns() []string {
	return []string{
		"media.key.href", "media.id", "spell_tooltip.range",
		"tooltip_range", "default_points", "_links_self_href",
		"spell_key_href", "playable_class_key_href",
		"playable_specialization_key_href",
	}
}

// DefaultForumRules are the XPath rules for Discourse topic pages as served
// to crawlers.
func DefaultForumRules() []ParseRule {
	return []ParseRule{
		{Name: "forum_name", Selector: `//*[@id="topic-title"]/div/span[2]/a/span[2]/span`},
		{Name: "player_name", Selector: `//span[@class="creator" and @itemprop="author"]/a/span[@itemprop="name"]`},
		{Name: "content", Selector: `//div[@class="post"]`},
		{Name: "likes", Selector: `//span[contains(text(),"Likes")]`},
		{Name: "date", Selector: `//span[@class="crawler-post-infos"]/time[@itemprop="datePublished"]`, Attribute: "datetime"},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://us.api.blizzard.com/data/wow/",
			Namespace:      "static-us",
			Locale:         "en_US",
			TokenURL:       "https://oauth.battle.net/token",
			RequestTimeout: 30 * time.Second,
			Concurrency:    1,
			UserAgent:      "WoWHarvest/" + Version,
			MaxBodySize:    50 * 1024 * 1024, // 50MB
		},
		Paths: PathsConfig{
			SpellsIndex:     "data/spells/spell_index.json",
			Spells:          "data/spells/spells.json",
			SpellsCSV:       "data/spells/spells.csv",
			PvETalentsIndex: "data/talents/pve_talents_index.json",
			PvETalents:      "data/talents/pve_talents.json",
			PvETalentsCSV:   "data/talents/pve_talents.csv",
			PvPTalentsIndex: "data/talents/pvp_talents_index.json",
			PvPTalents:      "data/talents/pvp_talents.json",
			PvPTalentsCSV:   "data/talents/pvp_talents.csv",
			TalentTreeIndex: "data/talent_trees/index.json",
			TalentTreeCSV:   "data/talent_trees/index.csv",
			TreeNodesDir:    "data/talent_trees/nodes",
			SpecTreesDir:    "data/talent_trees/specs",
			TreesCSVDir:     "data/talent_trees_csv",
			AllAbilities:    "data/all_abilities.csv",
			CleanedDataset:  "data/cleaned_dataset.csv",
		},
		Processing: ProcessingConfig{
			FillValue:          "N/A",
			MissingPvP:         "N/A",
			DropColumns:        DefaultDropColumns(),
			ExcludedExtensions: []string{"json", "csv"},
			Classes:            DefaultClasses(),
		},
		Forums: ForumsConfig{
			AllowedDomains:  []string{"us.forums.blizzard.com"},
			MaxPages:        20,
			PolitenessDelay: 1 * time.Second,
			Rules:           DefaultForumRules(),
			Collection:      "forums",
		},
		Storage: StorageConfig{
			Type:          "csv",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "wow_test",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
