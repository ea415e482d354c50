package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
)

// DriveStore uploads videos to a Google Drive folder and returns their web link.
type DriveStore struct {
	svc      *drive.Service
	folderID string
	logger   *slog.Logger
}

func NewDriveStore(ctx context.Context, cfg config.ArtifactsConfig, logger *slog.Logger) (*DriveStore, error) {
	client, err := oauthClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("drive auth: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return NewDriveStoreWithService(svc, cfg.DriveFolderID, logger), nil
}

func NewDriveStoreWithService(svc *drive.Service, folderID string, logger *slog.Logger) *DriveStore {
	return &DriveStore{svc: svc, folderID: folderID, logger: logging.Component(logger, "artifacts")}
}

func (d *DriveStore) Name() string { return "drive" }

func (d *DriveStore) Put(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		d.logger.Info("uploading video", "file", filepath.Base(localPath), "size_mb", float64(fi.Size())/1024/1024)
	}

	meta := &drive.File{Name: filepath.Base(localPath), MimeType: "video/mp4"}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	uploaded, err := d.svc.Files.Create(meta).
		Media(f).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}

	link := uploaded.WebViewLink
	if link == "" {
		link = fmt.Sprintf("https://drive.google.com/file/d/%s/view", uploaded.Id)
	}
	d.logger.Info("uploaded video", "file_id", uploaded.Id, "url", link)
	return link, nil
}

// oauthClient builds an HTTP client from a stored refresh token.
func oauthClient(ctx context.Context, cfg config.ArtifactsConfig) (*http.Client, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRefreshToken == "" {
		return nil, fmt.Errorf("%w: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET or GOOGLE_REFRESH_TOKEN not set", config.ErrMissingCredential)
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	token := &oauth2.Token{
		RefreshToken: cfg.GoogleRefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.Client(ctx, token), nil
}
