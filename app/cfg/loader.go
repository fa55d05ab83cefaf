package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/newsmux.db" description:"Path to the SQLite database file"`

	// Application configuration
	ChannelsDir  string `long:"channels-dir" env:"CHANNELS_DIR" default:"./channels" description:"Directory containing channel configuration files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	TickInterval int    `long:"tick-interval" env:"TICK_INTERVAL" default:"300" description:"Pipeline tick interval in seconds"`
	MessageLimit int    `long:"message-limit" env:"MESSAGE_LIMIT" default:"100" description:"Maximum items fetched per channel per tick"`

	// Pipeline configuration
	SimilarityThreshold  float64 `long:"similarity-threshold" env:"SIMILARITY_THRESHOLD" default:"0.3" description:"Fast-filter similarity threshold for duplicate candidates (0-1)"`
	DedupWindowHours     int     `long:"dedup-window-hours" env:"DEDUP_WINDOW_HOURS" default:"96" description:"Time window for duplicate detection in hours"`
	ReactionWindowDays   int     `long:"reaction-window-days" env:"REACTION_WINDOW_DAYS" default:"14" description:"Time window for engagement refresh in days"`
	SendConcurrency      int     `long:"send-concurrency" env:"SEND_CONCURRENCY" default:"3" description:"Maximum concurrent delivery calls"`
	SummarizeConcurrency int     `long:"summarize-concurrency" env:"SUMMARIZE_CONCURRENCY" default:"4" description:"Maximum concurrent summarization calls"`
	DigestSize           int     `long:"digest-size" env:"DIGEST_SIZE" default:"10" description:"Number of items in the daily digest"`
	MinItemLength        int     `long:"min-item-length" env:"MIN_ITEM_LENGTH" default:"100" description:"Minimum cleaned text length for an item to enter the pipeline"`
	ExcludedTag          string  `long:"excluded-tag" env:"EXCLUDED_TAG" default:"#ad" description:"Items carrying this tag are skipped"`

	// Oracle configuration
	OracleEndpoint string `long:"oracle-endpoint" env:"ORACLE_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"Chat completions endpoint for the summarization oracle"`
	OracleModel    string `long:"oracle-model" env:"ORACLE_MODEL" default:"gpt-4.1-mini" description:"Oracle model name"`
	OracleAPIKey   string `long:"oracle-api-key" env:"ORACLE_API_KEY" description:"Oracle API key"`

	// Transport configuration
	BotToken      string `long:"bot-token" env:"BOT_TOKEN" description:"Bot token for the delivery transport"`
	OutputChannel string `long:"output-channel" env:"OUTPUT_CHANNEL" description:"Output channel identifier (e.g. @mychannel)"`
	Mock          bool   `long:"mock" env:"MOCK" description:"Log outgoing deliveries instead of calling the transport"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Newsmux/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		ChannelsDir:          raw.ChannelsDir,
		Port:                 raw.Port,
		APIAccessKey:         raw.APIAccessKey,
		TickInterval:         raw.TickInterval,
		MessageLimit:         raw.MessageLimit,
		SimilarityThreshold:  raw.SimilarityThreshold,
		DedupWindowHours:     raw.DedupWindowHours,
		ReactionWindowDays:   raw.ReactionWindowDays,
		SendConcurrency:      raw.SendConcurrency,
		SummarizeConcurrency: raw.SummarizeConcurrency,
		DigestSize:           raw.DigestSize,
		MinItemLength:        raw.MinItemLength,
		ExcludedTag:          raw.ExcludedTag,
		OracleEndpoint:       raw.OracleEndpoint,
		OracleModel:          raw.OracleModel,
		OracleAPIKey:         raw.OracleAPIKey,
		BotToken:             raw.BotToken,
		OutputChannel:        raw.OutputChannel,
		Mock:                 raw.Mock,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Used by tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
