package channel

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache loads and caches source-channel configurations from YAML files.
type ConfigCache struct {
	channelsDir string
	cache       map[string]*Config
	mu          sync.RWMutex
}

func NewConfigCache(channelsDir string) *ConfigCache {
	return &ConfigCache{
		channelsDir: channelsDir,
		cache:       make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.channelsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.channelsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		channelID := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(channelID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Channel configuration loaded", "channel", channelID, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(channelID string) (*Config, error) {
	configFile := filepath.Join(cc.channelsDir, channelID+".yml")
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.ID = channelID
	if config.Name == "" {
		config.Name = channelID
	}

	if config.URL == "" {
		return nil, fmt.Errorf("invalid config %s: url is required", configFile)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.ID] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(channelID string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[channelID]
	if !ok {
		return nil, fmt.Errorf("channel config with id '%s' not found", channelID)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return &config, nil
}
