// Package storage saves export artifacts to a Supabase bucket, falling back
// to the local data directory outside production.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"harvester/internal/logger"

	supabase "github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"
)

var ErrNotConfigured = errors.New("supabase storage is required in production")

type Config struct {
	AppEnv     string
	URL        string
	ServiceKey string
	Bucket     string
	DataDir    string
	// SignedURLTTL is how long returned download links stay valid.
	SignedURLTTL time.Duration
}

type Store struct {
	cfg    Config
	log    *logger.Logger
	client *supabase.Client
	http   *http.Client
}

func New(cfg Config) (*Store, error) {
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 24 * time.Hour
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	s := &Store{cfg: cfg, log: logger.New("Storage"), http: &http.Client{Timeout: 15 * time.Second}}

	if cfg.URL != "" && cfg.ServiceKey != "" && cfg.Bucket != "" {
		client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, nil)
		if err != nil {
			if cfg.AppEnv == "production" {
				return nil, fmt.Errorf("init supabase client: %w", err)
			}
			s.log.LogWarnf("Supabase client unavailable, using local storage: %v", err)
		} else {
			s.client = client
		}
	}
	if s.client == nil && cfg.AppEnv == "production" {
		return nil, ErrNotConfigured
	}
	return s, nil
}

// Remote reports whether artifacts go to the Supabase bucket.
func (s *Store) Remote() bool { return s.client != nil }

// Save stores data under exports/name and returns where it can be fetched:
// a signed URL for the bucket, or a file path for the local fallback.
func (s *Store) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	name = sanitize(name)
	if s.client != nil {
		loc, err := s.upload(ctx, name, contentType, data)
		if err == nil {
			return loc, nil
		}
		if s.cfg.AppEnv == "production" {
			return "", err
		}
		s.log.LogWarnf("Supabase upload of %s failed, writing locally: %v", name, err)
	}
	return s.saveLocal(name, data)
}

func (s *Store) upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	objectPath := path.Join("exports", name)
	upsert := true
	if _, err := s.client.Storage.UploadFile(s.cfg.Bucket, objectPath, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	signed, err := s.sign(ctx, objectPath)
	if err != nil {
		return "", err
	}
	s.log.LogDebugf("Uploaded %s to bucket %s", objectPath, s.cfg.Bucket)
	return signed, nil
}

// sign asks the storage REST API for a signed download URL.
func (s *Store) sign(ctx context.Context, objectPath string) (string, error) {
	base := strings.TrimRight(s.cfg.URL, "/")
	endpoint := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", base, s.cfg.Bucket, objectPath)

	body, _ := json.Marshal(map[string]int{"expiresIn": int(s.cfg.SignedURLTTL.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.ServiceKey)
	req.Header.Set("apikey", s.cfg.ServiceKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", objectPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sign %s: status %d", objectPath, resp.StatusCode)
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	p := signed.SignedURL
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasPrefix(p, "/storage/v1/") {
		p = "/storage/v1" + p
	}
	return base + p, nil
}

func (s *Store) saveLocal(name string, data []byte) (string, error) {
	dir := filepath.Join(s.cfg.DataDir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return p, nil
}

func sanitize(name string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "?", "-", "&", "-", "#", "-", "..", "-")
	return r.Replace(strings.TrimSpace(name))
}
