// Package artifacts publishes rendered videos somewhere a reviewer can open them.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"reddit-shorts-pipeline/config"
)

// Store makes a local file reachable and returns its URL.
type Store interface {
	Name() string
	Put(ctx context.Context, localPath string) (string, error)
}

// New builds the store selected by artifacts.backend.
func New(ctx context.Context, cfg config.ArtifactsConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return LocalStore{}, nil
	case "drive":
		return NewDriveStore(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Backend)
}

// LocalStore leaves the video where it was rendered and reports its absolute path.
type LocalStore struct{}

func (LocalStore) Name() string { return "local" }

func (LocalStore) Put(_ context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("artifact %s is a directory", localPath)
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	return abs, nil
}
