package config

// Config is the complete runtime configuration of payoutd.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Port                   int        `mapstructure:"port"`
	Environment            string     `mapstructure:"environment"` // development, production
	ReadTimeoutSeconds     int        `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int        `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int        `mapstructure:"shutdown_timeout_seconds"`
	CORS                   CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins  []string `mapstructure:"allow_origins"`
	MaxAgeSeconds int      `mapstructure:"max_age_seconds"`
}

type DatabaseConfig struct {
	Path        string `mapstructure:"path"` // ":memory:" for an in-memory database
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	KeyPrefix           string `mapstructure:"key_prefix"`
	TTLSeconds          int    `mapstructure:"ttl_seconds"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`        // e.g. "logs/payoutd.log"
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after N MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type RewardsConfig struct {
	PolicyFile string `mapstructure:"policy_file"` // JSON or YAML; empty uses the built-in policy
	Timezone   string `mapstructure:"timezone"`    // overrides the policy file, e.g. "Asia/Tokyo"
	MonthsBack int    `mapstructure:"months_back"`
}

type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	MonthsBack      int  `mapstructure:"months_back"`
}
