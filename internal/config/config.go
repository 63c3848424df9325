package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/openshelf/shelfcast/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Auth       AuthConfig       `yaml:"auth"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Library    LibraryConfig    `yaml:"library"`
	Outreach   OutreachConfig   `yaml:"outreach"`
	Suggestion SuggestionConfig `yaml:"suggestion"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Platforms  PlatformsConfig  `yaml:"platforms"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type AuthConfig struct {
	// TriggerSecret is the shared-secret bearer token the cron caller sends
	// to the job trigger endpoints.
	TriggerSecret string `yaml:"trigger_secret"`
	// TOTPSecret guards the manual admin trigger endpoints.
	TOTPSecret string `yaml:"totp_secret"`
}

type SchedulerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	DailyCron         string `yaml:"daily_cron"`
	QuarterHourlyCron string `yaml:"quarter_hourly_cron"`
}

type LibraryConfig struct {
	// Name and BaseURL identify the library the attribution footer links to.
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

type OutreachConfig struct {
	DailyReplyCap    int `yaml:"daily_reply_cap"`
	MaxRepliesPerRun int `yaml:"max_replies_per_run"`
	ChunkCap         int `yaml:"chunk_cap"`
	CooldownDays     int `yaml:"cooldown_days"`
}

type SuggestionConfig struct {
	Subreddit       string  `yaml:"subreddit"`
	Limit           int     `yaml:"limit"`
	OverFetchFactor int     `yaml:"over_fetch_factor"`
	MinScore        float64 `yaml:"min_score"`
	MaxTitles       int     `yaml:"max_titles"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type PlatformsConfig struct {
	Reddit   RedditConfig   `yaml:"reddit"`
	X        XConfig        `yaml:"x"`
	LinkedIn LinkedInConfig `yaml:"linkedin"`
	Facebook FacebookConfig `yaml:"facebook"`
}

type RedditConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	UserAgent    string `yaml:"user_agent"`
	Subreddit    string `yaml:"subreddit"`
	FlairID      string `yaml:"flair_id"`
}

type XConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearer_token"`
	AccessToken string `yaml:"access_token"`
	Hashtags    string `yaml:"hashtags"`
}

type LinkedInConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AccessToken string `yaml:"access_token"`
	OwnerURN    string `yaml:"owner_urn"`
}

type FacebookConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PageID      string `yaml:"page_id"`
	AccessToken string `yaml:"access_token"`
	// LinkMode switches the page from quote posts back to plain link posts.
	LinkMode bool `yaml:"link_mode"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5335
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Scheduler.DailyCron == "" {
		cfg.Scheduler.DailyCron = "0 8 * * *"
	}
	if cfg.Scheduler.QuarterHourlyCron == "" {
		cfg.Scheduler.QuarterHourlyCron = "*/15 * * * *"
	}
	if cfg.Library.Name == "" {
		cfg.Library.Name = "Public Domain Library"
	}
	if cfg.Outreach.DailyReplyCap == 0 {
		cfg.Outreach.DailyReplyCap = 90
	}
	if cfg.Outreach.MaxRepliesPerRun == 0 {
		cfg.Outreach.MaxRepliesPerRun = 10
	}
	if cfg.Outreach.ChunkCap == 0 {
		cfg.Outreach.ChunkCap = 50
	}
	if cfg.Outreach.CooldownDays == 0 {
		cfg.Outreach.CooldownDays = 30
	}
	if cfg.Suggestion.Subreddit == "" {
		cfg.Suggestion.Subreddit = "suggestmeabook"
	}
	if cfg.Suggestion.Limit == 0 {
		cfg.Suggestion.Limit = 8
	}
	if cfg.Suggestion.OverFetchFactor == 0 {
		cfg.Suggestion.OverFetchFactor = 5
	}
	if cfg.Suggestion.MinScore == 0 {
		cfg.Suggestion.MinScore = 3.4
	}
	if cfg.Suggestion.MaxTitles == 0 {
		cfg.Suggestion.MaxTitles = 3
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-5-mini"
	}
	if cfg.Platforms.Reddit.UserAgent == "" {
		cfg.Platforms.Reddit.UserAgent = "shelfcast/0.1"
	}

	return cfg, nil
}
