package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Cache configuration
	RedisURL string

	// Application configuration
	RulesDir     string
	Port         string
	WorkerCount  int
	PollInterval int
	APIAccessKey string
	LinkBaseUrl  string
	Locale       string

	// Marketplace source
	SourceURL         string
	SourceAPIKey      string
	SourceCategories  []string
	SourceMinDiscount int
	SourceMinReviews  int
	SourceTimeout     int

	// Generative model provider
	ModelEndpoint string
	ModelAPIKey   string
	ModelTimeout  int

	// Copy generation
	CopyTTLHours      int
	DefaultDailyQuota int

	// Scoring weights
	WeightDiscount   float64
	WeightPopularity float64
	WeightQuality    float64
	DiscountCap      int
	ReviewFloor      int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
