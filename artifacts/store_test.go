package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"reddit-shorts-pipeline/config"
)

func TestLocalStorePut(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	url, err := LocalStore{}.Put(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(url) || filepath.Base(url) != "video.mp4" {
		t.Fatalf("url = %q", url)
	}

	if _, err := (LocalStore{}).Put(context.Background(), filepath.Join(dir, "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := (LocalStore{}).Put(context.Background(), dir); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := New(ctx, config.ArtifactsConfig{Backend: "local"}, nil)
	if err != nil || s.Name() != "local" {
		t.Fatalf("local backend: %v, %v", s, err)
	}
	if _, err := New(ctx, config.ArtifactsConfig{Backend: "s3"}, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := New(ctx, config.ArtifactsConfig{Backend: "drive"}, nil); !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("drive without credentials: got %v", err)
	}
}

func TestDriveStorePut(t *testing.T) {
	t.Parallel()

	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}
		uploaded, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"file123"}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := drive.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("fake-mp4-payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	url, err := NewDriveStoreWithService(svc, "folder-1", nil).Put(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://drive.google.com/file/d/file123/view" {
		t.Fatalf("url = %q", url)
	}
	if !bytes.Contains(uploaded, []byte("fake-mp4-payload")) || !strings.Contains(string(uploaded), "folder-1") {
		t.Fatalf("upload body missing media or parent folder: %q", uploaded)
	}
}
