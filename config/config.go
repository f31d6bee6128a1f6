package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Variant selects which combine pipeline runs.
type Variant string

const (
	// VariantQuad merges all four cameras into a 2x2 tiled frame.
	VariantQuad Variant = "quad"
	// VariantFront keeps only the front camera and crops the bottom edge.
	VariantFront Variant = "front"
)

// Config contains all configuration for the combiner. It is built once by
// LoadConfig and never mutated afterwards; every component receives it by
// value or as a read-only pointer.
type Config struct {
	// Paths
	InputDir    string // root with YYYY-MM-DD_HH-MM-SS folders
	OutputDir   string // final per-date files and _work_<date> dirs
	FFmpegPath  string
	FFprobePath string

	// Pipeline variant
	Variant Variant

	// Encoding Configuration
	OutputFPS    int
	CRF          int
	Preset       string
	TileWidth    int // quad: per-camera tile size before stacking
	TileHeight   int
	CropBottomPx int // front: rows removed from the bottom edge

	// Timestamp overlay
	DrawTimestamp       bool
	TimestampShiftHours int
	FontFile            string // explicit .ttf path, empty = auto-discover
	FontName            string // fallback font name when no file is found
	FontSize            int
	TimestampPaddingY   int
	TimestampBox        bool
	TimestampBoxBorder  int
	TimestampBoxOpacity float64

	// Process monitoring
	FFmpegLogLevel    string
	ShowCommand       bool
	HeartbeatInterval time.Duration
	TTYMinInterval    time.Duration
	NonTTYMinInterval time.Duration
	NonTTYMinPctStep  float64

	// Fallback duration (seconds) used only for progress display when a
	// segment cannot be probed.
	FallbackDuration float64

	// Reuse already-built segment outputs instead of re-encoding them.
	SkipExisting bool

	// Database Configuration
	DatabasePath string

	// Scheduling: cron spec; empty means run once and exit.
	CombineSchedule string

	// Minimum free space on the output volume before a run is allowed.
	MinFreeSpaceGB int

	// Archive upload (S3-compatible, e.g. Cloudflare R2)
	UploadEnabled bool
	S3AccessKey   string
	S3SecretKey   string
	S3AccountID   string
	S3Endpoint    string
	S3Bucket      string
	S3Region      string
	S3BaseURL     string // public URL for uploaded files
	S3PathPrefix  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		InputDir:    getEnv("DVR_INPUT_DIR", "./dvr_input"),
		OutputDir:   getEnv("DVR_OUTPUT_DIR", "./dvr_output"),
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		Variant: Variant(getEnv("PIPELINE_VARIANT", string(VariantQuad))),

		OutputFPS:    getEnvInt("OUTPUT_FPS", 30),
		CRF:          getEnvInt("CRF", 20),
		Preset:       getEnv("PRESET", "veryfast"),
		TileWidth:    getEnvInt("TILE_WIDTH", 1920),
		TileHeight:   getEnvInt("TILE_HEIGHT", 1080),
		CropBottomPx: getEnvInt("CROP_BOTTOM_PX", 170),

		DrawTimestamp:       getEnvBool("DRAW_TIMESTAMP", true),
		TimestampShiftHours: getEnvInt("TIMESTAMP_SHIFT_HOURS", -5),
		FontFile:            getEnv("TIMESTAMP_FONTFILE", ""),
		FontName:            getEnv("TIMESTAMP_FONT_NAME", "Arial"),
		FontSize:            getEnvInt("TIMESTAMP_FONT_SIZE", 0),
		TimestampPaddingY:   getEnvInt("TIMESTAMP_PADDING_Y", 24),
		TimestampBox:        getEnvBool("TIMESTAMP_BOX", true),
		TimestampBoxBorder:  getEnvInt("TIMESTAMP_BOX_BORDER", 0),
		TimestampBoxOpacity: getEnvFloat("TIMESTAMP_BOX_OPACITY", 0.35),

		FFmpegLogLevel:    getEnv("FFMPEG_LOGLEVEL", "info"),
		ShowCommand:       getEnvBool("SHOW_FFMPEG_CMD", true),
		HeartbeatInterval: getEnvSeconds("HEARTBEAT_SEC", 10),
		TTYMinInterval:    getEnvMillis("TTY_MIN_INTERVAL_MS", 500),
		NonTTYMinInterval: getEnvMillis("NON_TTY_MIN_INTERVAL_MS", 3000),
		NonTTYMinPctStep:  getEnvFloat("NON_TTY_MIN_PCT_STEP", 3.0),

		FallbackDuration: getEnvFloat("FALLBACK_DURATION_SEC", 60.0),
		SkipExisting:     getEnvBool("SKIP_EXISTING_SEGMENTS", false),

		DatabasePath: getEnv("DATABASE_PATH", "./data/dvrmerge.db"),

		CombineSchedule: getEnv("COMBINE_SCHEDULE", ""),
		MinFreeSpaceGB:  getEnvInt("MIN_FREE_SPACE_GB", 5),

		UploadEnabled: getEnvBool("UPLOAD_ENABLED", false),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
		S3AccountID:   getEnv("S3_ACCOUNT_ID", ""),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", "auto"),
		S3BaseURL:     getEnv("S3_BASE_URL", ""),
		S3PathPrefix:  getEnv("S3_PATH_PREFIX", "dvr"),
	}

	// The quad overlay sits on a 4K frame and needs a larger font than the
	// single-camera crop output.
	if cfg.FontSize == 0 {
		if cfg.Variant == VariantFront {
			cfg.FontSize = 50
		} else {
			cfg.FontSize = 100
		}
	}

	return cfg
}

// Validate checks option combinations that would produce a broken run.
func (cfg Config) Validate() error {
	switch cfg.Variant {
	case VariantQuad, VariantFront:
	default:
		return fmt.Errorf("unknown PIPELINE_VARIANT %q (expected %q or %q)", cfg.Variant, VariantQuad, VariantFront)
	}
	if cfg.OutputFPS <= 0 {
		return fmt.Errorf("OUTPUT_FPS must be positive, got %d", cfg.OutputFPS)
	}
	if cfg.Variant == VariantFront && cfg.CropBottomPx%2 != 0 {
		// Odd output heights are rejected by the encoder.
		return fmt.Errorf("CROP_BOTTOM_PX must be even, got %d", cfg.CropBottomPx)
	}
	if cfg.TileWidth <= 0 || cfg.TileHeight <= 0 {
		return fmt.Errorf("tile geometry must be positive, got %dx%d", cfg.TileWidth, cfg.TileHeight)
	}
	return nil
}

// VariantTag is embedded in the final output filename, e.g.
// 2025-11-17_4CAM_4K.mp4 or 2025-11-17_FRONT_CROP170.mp4.
func (cfg Config) VariantTag() string {
	if cfg.Variant == VariantFront {
		return fmt.Sprintf("FRONT_CROP%d", cfg.CropBottomPx)
	}
	return "4CAM_4K"
}

// WorkDir returns the per-date working directory for intermediate segments.
func (cfg Config) WorkDir(date string) string {
	return filepath.Join(cfg.OutputDir, "_work_"+date)
}

// DateOutputPath returns the final artifact path for a date.
func (cfg Config) DateOutputPath(date string) string {
	return filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.mp4", date, cfg.VariantTag()))
}

// LogSummary prints the effective settings once at startup.
func (cfg Config) LogSummary() {
	log.Printf("Input dir:  %s", cfg.InputDir)
	log.Printf("Output dir: %s", cfg.OutputDir)
	log.Printf("FFmpeg:     %s", cfg.FFmpegPath)
	log.Printf("FFprobe:    %s", cfg.FFprobePath)
	log.Printf("Variant:    %s (tag %s)", cfg.Variant, cfg.VariantTag())
	log.Printf("Output FPS: %d (CFR), CRF %d, preset %s", cfg.OutputFPS, cfg.CRF, cfg.Preset)
	if cfg.Variant == VariantFront {
		log.Printf("Crop: %d px off the bottom (output height = ih-%d)", cfg.CropBottomPx, cfg.CropBottomPx)
	} else {
		log.Printf("Tile: %dx%d, output %dx%d", cfg.TileWidth, cfg.TileHeight, 2*cfg.TileWidth, 2*cfg.TileHeight)
	}
	log.Printf("Timestamp overlay: %v (shift %+dh)", cfg.DrawTimestamp, cfg.TimestampShiftHours)
	log.Printf("Skip existing segments: %v", cfg.SkipExisting)
	if cfg.CombineSchedule != "" {
		log.Printf("Schedule: %s", cfg.CombineSchedule)
	}
	log.Printf("Upload enabled: %v", cfg.UploadEnabled)
}

// EnsurePaths creates necessary paths
func EnsurePaths(cfg Config) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Printf("Failed to create output directory %s: %v", cfg.OutputDir, err)
	}
	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Printf("Failed to create database directory %s: %v", dbDir, err)
	}
}

// getEnv returns environment variable or fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s: %q, using %d", key, value, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Warning: invalid number for %s: %q, using %g", key, value, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid boolean for %s: %q, using %v", key, value, fallback)
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
