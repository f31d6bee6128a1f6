package main

import (
	"log"
	"os/exec"
	"strings"

	"github.com/joho/godotenv"

	"dvrmerge/config"
	"dvrmerge/cron"
	"dvrmerge/database"
	"dvrmerge/monitoring"
	"dvrmerge/service"
)

func main() {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logFFmpegVersion(cfg.FFmpegPath)
	cfg.LogSummary()
	config.EnsurePaths(cfg)

	if err := monitoring.CheckFreeSpace(cfg.OutputDir, float64(cfg.MinFreeSpaceGB)); err != nil {
		log.Fatalf("Disk space check failed: %v", err)
	}

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open run catalog: %v", err)
	}
	defer db.Close()

	pipeline, err := service.NewPipeline(cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	if cfg.CombineSchedule == "" {
		if err := pipeline.Run(); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	if err := cron.StartCombineCron(cfg.CombineSchedule, pipeline.Run); err != nil {
		log.Fatalf("Failed to start schedule: %v", err)
	}
}

// logFFmpegVersion prints the encoder's version banner so logs record exactly
// which build produced the outputs.
func logFFmpegVersion(binary string) {
	out, err := exec.Command(binary, "-version").Output()
	if err != nil {
		log.Printf("Warning: could not run %s -version: %v", binary, err)
		return
	}
	if lines := strings.SplitN(string(out), "\n", 2); len(lines) > 0 {
		log.Printf("Using %s", strings.TrimSpace(lines[0]))
	}
}
