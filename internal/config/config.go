package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Publishing: "supabase", "s3" or "" to keep outputs local only
	StorageBackend        string
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string
	S3Bucket              string
	S3Prefix              string
	SignedURLTTLSeconds   int

	// Text generation: "openai" or "gemini"
	TextProvider string
	OpenAIKey    string
	GeminiKey    string

	// Background image generation for api backgrounds without a URL: "gemini", "openai" or "none"
	ImageProvider             string
	GeminiStyleReferenceImage string
	ImageAspectRatio          string // requested from image providers: 16:9, 9:16 or 1:1

	// Speech: "elevenlabs", "openai" or "cartesia"; empty picks the first configured key
	TTSProvider       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaURL       string
	CartesiaVoiceID   string

	// Rendering
	FFmpegPath          string
	FFprobePath         string
	FFmpegVerbose       bool
	CacheDir            string
	TempDir             string
	OutputDir           string
	FontDir             string
	BackgroundMusicPath string // default music bed for service renders (empty = no music)
	MusicVolume         float64

	// Worker
	MaxConcurrentJobs int
	RenderWorkers     int // per-job scene parallelism (0 = sized from CPU and memory)
}

// Load reads the service configuration and validates what the API and worker need.
func Load() (*Config, error) {
	cfg := LoadLocal()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.validateProviders(); err != nil {
		return nil, err
	}
	switch cfg.StorageBackend {
	case "supabase":
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
	case "":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	return cfg, nil
}

// LoadLocal reads the same variables without requiring the service dependencies.
// The CLI uses it; missing provider keys only disable the matching features.
func LoadLocal() *Config {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:                   getEnv("API_PORT", "8080"),
		WorkerEnabled:             getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:             getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:        getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		RedisURL:                  getEnv("REDIS_URL", "redis://localhost:6379"),
		StorageBackend:            strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		SupabaseURL:               getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:        getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:     getEnv("SUPABASE_STORAGE_BUCKET", "faceless-videos"),
		S3Bucket:                  getEnv("S3_BUCKET", ""),
		S3Prefix:                  getEnv("S3_PREFIX", "renders"),
		SignedURLTTLSeconds:       getEnvInt("SIGNED_URL_TTL_SECONDS", 3600),
		TextProvider:              strings.ToLower(getEnv("TEXT_PROVIDER", "openai")),
		OpenAIKey:                 getEnv("OPENAI_API_KEY", ""),
		GeminiKey:                 getEnv("GEMINI_API_KEY", ""),
		ImageProvider:             strings.ToLower(getEnv("IMAGE_PROVIDER", "gemini")),
		GeminiStyleReferenceImage: getEnv("GEMINI_STYLE_REFERENCE_IMAGE", ""),
		ImageAspectRatio:          getEnv("IMAGE_ASPECT_RATIO", "16:9"),
		TTSProvider:               strings.ToLower(getEnv("TTS_PROVIDER", "")),
		ElevenLabsKey:             getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:         getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:               getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:               getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:           getEnv("CARTESIA_VOICE_ID", ""),
		FFmpegPath:                getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:               getEnv("FFPROBE_PATH", "ffprobe"),
		FFmpegVerbose:             getEnvBool("FFMPEG_VERBOSE", false),
		CacheDir:                  getEnv("CACHE_DIR", ".cache/faceless"),
		TempDir:                   getEnv("TEMP_DIR", ""),
		OutputDir:                 getEnv("OUTPUT_DIR", "output"),
		FontDir:                   getEnv("FONT_DIR", "assets/fonts"),
		BackgroundMusicPath:       getEnv("BACKGROUND_MUSIC_PATH", ""),
		MusicVolume:               getEnvFloat("MUSIC_VOLUME", 0),
		MaxConcurrentJobs:         getEnvInt("MAX_CONCURRENT_JOBS", 2),
		RenderWorkers:             getEnvInt("RENDER_WORKERS", 0),
	}
	if cfg.TTSProvider == "" {
		cfg.TTSProvider = cfg.defaultTTSProvider()
	}
	return cfg
}

func (c *Config) defaultTTSProvider() string {
	switch {
	case c.ElevenLabsKey != "":
		return "elevenlabs"
	case c.CartesiaKey != "":
		return "cartesia"
	case c.OpenAIKey != "":
		return "openai"
	}
	return ""
}

func (c *Config) validateProviders() error {
	switch c.TextProvider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TEXT_PROVIDER=openai")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when TEXT_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown TEXT_PROVIDER %q", c.TextProvider)
	}

	switch c.TTSProvider {
	case "elevenlabs":
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case "cartesia":
		if c.CartesiaKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
		}
	case "":
		return fmt.Errorf("one of ELEVENLABS_API_KEY, CARTESIA_API_KEY or OPENAI_API_KEY is required for TTS")
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	switch c.ImageProvider {
	case "gemini", "openai", "none":
	default:
		return fmt.Errorf("unknown IMAGE_PROVIDER %q", c.ImageProvider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
