package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	ChannelsDir  string
	Port         string
	APIAccessKey string
	TickInterval int
	MessageLimit int

	// Pipeline configuration
	SimilarityThreshold  float64
	DedupWindowHours     int
	ReactionWindowDays   int
	SendConcurrency      int
	SummarizeConcurrency int
	DigestSize           int
	MinItemLength        int
	ExcludedTag          string

	// Oracle configuration
	OracleEndpoint string
	OracleModel    string
	OracleAPIKey   string

	// Transport configuration
	BotToken      string
	OutputChannel string
	Mock          bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
