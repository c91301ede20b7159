package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Storage
	ImagesBaseDir string
	RootPolicy    string // unique | stem
	JPEGQuality   int

	// Rendering and partitioning
	RenderDPI       float64
	OutlineSource   string // fitz | pdfcpu
	PartitionPolicy string // contiguous | single
	OutlineOrder    string // clamp | reject

	// Auth
	APIKey string

	// Generative analysis
	GenerativeAPIKey     string
	GenerativeModel      string
	GenerativeBaseURL    string
	AnalysisRPS          float64
	AnalysisInlineImages bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

// Load reads configuration from the environment, after applying an optional
// .env file from the working directory. Variables already set win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8000"),

		ImagesBaseDir: envOr("IMAGES_BASE_DIR", "images"),
		RootPolicy:    envOr("ROOT_POLICY", "unique"),
		JPEGQuality:   envInt("JPEG_QUALITY", 90),

		RenderDPI:       envFloat("RENDER_DPI", 150),
		OutlineSource:   envOr("OUTLINE_SOURCE", "fitz"),
		PartitionPolicy: envOr("PARTITION_POLICY", "contiguous"),
		OutlineOrder:    envOr("OUTLINE_ORDER", "clamp"),

		APIKey: os.Getenv("API_KEY"),

		GenerativeAPIKey:     os.Getenv("GENERATIVE_API_KEY"),
		GenerativeModel:      envOr("GENERATIVE_MODEL", "gemini-1.5-flash"),
		GenerativeBaseURL:    envOr("GENERATIVE_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		AnalysisRPS:          envFloat("ANALYSIS_RPS", 1),
		AnalysisInlineImages: envBool("ANALYSIS_INLINE_IMAGES", false),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 50),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 150
	}
	if cfg.AnalysisRPS <= 0 {
		cfg.AnalysisRPS = 1
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate rejects values Load cannot repair. The generative API key is
// optional; analysis routes report an error when it is missing.
func (c Config) Validate() error {
	if c.ImagesBaseDir == "" {
		return fmt.Errorf("IMAGES_BASE_DIR must not be empty")
	}
	if err := oneOf("ROOT_POLICY", c.RootPolicy, "unique", "stem"); err != nil {
		return err
	}
	if err := oneOf("OUTLINE_SOURCE", c.OutlineSource, "fitz", "pdfcpu"); err != nil {
		return err
	}
	if err := oneOf("PARTITION_POLICY", c.PartitionPolicy, "contiguous", "single"); err != nil {
		return err
	}
	if err := oneOf("OUTLINE_ORDER", c.OutlineOrder, "clamp", "reject"); err != nil {
		return err
	}
	if c.RenderDPI > 600 {
		return fmt.Errorf("RENDER_DPI %.0f exceeds 600", c.RenderDPI)
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v, got %q", key, allowed, value)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
