package channel

// Config describes a single source channel, loaded from a YAML file in the
// channels directory. The channel id is derived from the filename.
type Config struct {
	ID       string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Name     string         `yaml:"name"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
}
