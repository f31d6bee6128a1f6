package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"dvrmerge/config"
)

// Number of attempts for UploadFile retry loop
const maxUploadAttempts = 3

// Uploader pushes finished per-date videos to an archive. Implemented by
// S3Storage; the pipeline only depends on this interface.
type Uploader interface {
	UploadDateVideo(localPath, date string) (string, error)
}

// S3Storage handles uploads to an S3-compatible archive (AWS S3, Cloudflare R2)
type S3Storage struct {
	cfg      config.Config
	session  *session.Session
	uploader *s3manager.Uploader
}

// NewS3Storage creates a new S3Storage instance
func NewS3Storage(cfg config.Config) (*S3Storage, error) {
	endpoint := cfg.S3Endpoint
	if endpoint == "" && cfg.S3AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.S3AccountID)
	}

	region := cfg.S3Region
	if region == "" {
		region = "auto"
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Endpoint:    aws.String(endpoint),
		Region:      aws.String(region),
		// Force path style addressing for compatibility with S3 API
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	// PartSize 10 MB with Concurrency 1 keeps multipart uploads sequential,
	// so a large daily video never saturates limited upstream bandwidth.
	uploader := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 1
	})

	return &S3Storage{
		cfg:      cfg,
		session:  sess,
		uploader: uploader,
	}, nil
}

// UploadFile uploads a single file and returns its public URL
func (s *S3Storage) UploadFile(localPath, remotePath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %v", localPath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %v", err)
	}

	contentType := "application/octet-stream"
	if strings.EqualFold(filepath.Ext(localPath), ".mp4") {
		contentType = "video/mp4"
	}

	metadata := map[string]*string{
		"OriginalFileName": aws.String(filepath.Base(localPath)),
		"UploadedAt":       aws.String(time.Now().Format(time.RFC3339)),
		"FileSize":         aws.String(fmt.Sprintf("%d", fileInfo.Size())),
	}

	log.Printf("Uploading file (%.2f MB): %s", float64(fileInfo.Size())/1024/1024, localPath)

	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		// Start reading from the beginning each attempt
		if _, err := file.Seek(0, 0); err != nil {
			return "", fmt.Errorf("failed to seek to beginning of file: %v", err)
		}

		_, lastErr = s.uploader.Upload(&s3manager.UploadInput{
			Bucket:      aws.String(s.cfg.S3Bucket),
			Key:         aws.String(remotePath),
			Body:        file,
			ContentType: aws.String(contentType),
			Metadata:    metadata,
		})

		if lastErr == nil {
			break
		}

		log.Printf("Upload attempt %d/%d failed for %s: %v", attempt, maxUploadAttempts, localPath, lastErr)
		// Exponential backoff: 2s, 4s, ...
		time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to upload file after %d attempts: %v", maxUploadAttempts, lastErr)
	}

	publicURL := fmt.Sprintf("%s/%s", s.GetBaseURL(), remotePath)
	log.Printf("File uploaded successfully, public URL: %s", publicURL)

	return publicURL, nil
}

// UploadDateVideo uploads one finished per-date video under the configured
// path prefix and returns its public URL.
func (s *S3Storage) UploadDateVideo(localPath, date string) (string, error) {
	remotePath := fmt.Sprintf("%s/%s/%s", s.cfg.S3PathPrefix, date, filepath.Base(localPath))
	remotePath = strings.TrimPrefix(remotePath, "/")
	return s.UploadFile(localPath, remotePath)
}

// GetBaseURL returns the public base URL for uploaded files
func (s *S3Storage) GetBaseURL() string {
	if s.cfg.S3BaseURL != "" {
		return s.cfg.S3BaseURL
	}

	endpoint := s.cfg.S3Endpoint
	if endpoint == "" && s.cfg.S3AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.cfg.S3AccountID)
	}
	return fmt.Sprintf("%s/%s", endpoint, s.cfg.S3Bucket)
}
