package visuals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
)

// minClipBytes rejects responses that are an error page rather than footage.
const minClipBytes = 1024

// Downloader fetches background clips over HTTP into the backgrounds directory.
type Downloader struct {
	httpClient *http.Client
	dir        string
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(dir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		dir:        dir,
		attempts:   3,
		backoff:    3 * time.Second,
		logger:     logging.Component(logger, "visuals"),
	}
}

// DownloadResult reports what happened to one source.
type DownloadResult struct {
	Name    string
	Path    string
	Skipped bool
	Err     error
}

// DownloadAll fetches every source, skipping files that already exist.
// Failures are reported per source; the returned error joins them.
func (d *Downloader) DownloadAll(ctx context.Context, sources []config.BackgroundSource) ([]DownloadResult, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, fmt.Errorf("create backgrounds dir: %w", err)
	}

	results := make([]DownloadResult, 0, len(sources))
	var errs []error
	for _, src := range sources {
		res := DownloadResult{Name: src.Name, Path: filepath.Join(d.dir, filepath.Base(src.Name))}
		if _, err := os.Stat(res.Path); err == nil {
			d.logger.Info("clip already present", "name", src.Name)
			res.Skipped = true
			results = append(results, res)
			continue
		}

		res.Err = d.fetch(ctx, src.URL, res.Path)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (d *Downloader) fetch(ctx context.Context, url, outFile string) error {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		err = d.download(ctx, url, outFile)
		if err == nil {
			d.logger.Info("downloaded clip", "path", outFile)
			return nil
		}
		d.logger.Warn("download attempt failed", "attempt", attempt, "url", url, "err", err)
		if attempt == d.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * d.backoff):
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", d.attempts, err)
}

func (d *Downloader) download(ctx context.Context, url, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; RedditShortsPipeline/1.0)")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	// write beside the target so a partial download never looks like a clip
	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n < minClipBytes {
		return fmt.Errorf("response too small (%d bytes)", n)
	}
	return os.Rename(tmp.Name(), outFile)
}
