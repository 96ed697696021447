package config

// Config holds the configuration of the application
// Use cmd.NewConfig to create a new instance
type Config struct {
	Selector  SelectorConfig  `mapstructure:"selector"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Callback  CallbackConfig  `mapstructure:"callback"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// SelectorConfig configures the candidate selector engine.
type SelectorConfig struct {
	// Metric is the similarity metric: "cosine" or "dot".
	Metric string `mapstructure:"metric"`
	// Aggregation is how a candidate's per-seed scores collapse to one
	// score: "max" or "mean".
	Aggregation string `mapstructure:"aggregation"`
	// Shards is the number of concurrent scoring shards. <= 1 scores
	// sequentially.
	Shards int `mapstructure:"shards"`
}

// ConsensusConfig configures label aggregation.
type ConsensusConfig struct {
	// DisputeThreshold is the agreement score below which a consensus
	// label is flagged disputed.
	DisputeThreshold float64 `mapstructure:"dispute_threshold"`
	// MinWorkers is the default distinct-worker floor for campaign-wide
	// consensus listings.
	MinWorkers int `mapstructure:"min_workers"`
	// MinVotes and MinVoteProportion define when a consensus is certain
	// enough to score worker reliability against. The winning label needs
	// at least MinVotes votes and strictly more than
	// MinVoteProportion * total votes.
	MinVotes          int     `mapstructure:"min_votes"`
	MinVoteProportion float64 `mapstructure:"min_vote_proportion"`
	// ReliabilityThreshold is the minimum majority-agreement rate for a
	// worker to be considered reliable (strictly greater than).
	ReliabilityThreshold float64 `mapstructure:"reliability_threshold"`
	// WeightedVotes switches vote counting from unit votes to sums of the
	// workers' per-label confidence.
	WeightedVotes bool `mapstructure:"weighted_votes"`
}

// ManifestConfig configures labelling-task manifest generation.
type ManifestConfig struct {
	// GroupSize is how many images go into a single labelling task.
	GroupSize int `mapstructure:"group_size"`
	// OtherCategoryLabel is the catch-all category shown to labellers.
	OtherCategoryLabel string `mapstructure:"other_category_label"`
}

// CallbackConfig configures the dispute webhook. Disabled when URL is empty.
type CallbackConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}
