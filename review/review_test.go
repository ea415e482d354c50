package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/storage"
	"reddit-shorts-pipeline/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type memStore struct {
	mu      sync.Mutex
	videos  map[string]types.VideoListing
	pingErr error
}

func newMemStore(videos ...types.VideoListing) *memStore {
	m := &memStore{videos: map[string]types.VideoListing{}}
	for _, v := range videos {
		m.videos[v.ID] = v
	}
	return m
}

func (m *memStore) VideosByStatus(_ context.Context, status types.VideoStatus, _ int) ([]types.VideoListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.VideoListing
	for _, v := range m.videos {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) VideoByID(_ context.Context, id string) (types.VideoListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return v, fmt.Errorf("%w: video %s", storage.ErrNotFound, id)
	}
	return v, nil
}

func (m *memStore) DecideVideo(_ context.Context, id string, d types.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return fmt.Errorf("%w: video %s", storage.ErrNotFound, id)
	}
	if err := types.CanDecide(v.Status, d.Status); err != nil {
		return err
	}
	v.Status = d.Status
	if d.Status == types.VideoApproved {
		v.ApprovedBy = d.Actor
		at := d.At
		v.ApprovedAt = &at
	} else {
		v.RejectionReason = d.Reason
	}
	m.videos[id] = v
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func pendingVideo(id, title string) types.VideoListing {
	return types.VideoListing{
		VideoArtifact: types.VideoArtifact{
			ID:              id,
			StoryID:         "s-" + id,
			Path:            "output/" + id + ".mp4",
			URL:             "https://drive.example/" + id,
			DurationSeconds: 42.25,
			Status:          types.VideoPending,
			CreatedAt:       time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		},
		RedditID:      "r" + id,
		StoryTitle:    title,
		StoryBody:     strings.Repeat("x", 600),
		ViralityScore: 72.75,
	}
}

func newTestServer(store *memStore) *Server {
	cfg := config.Default().Review
	return NewServer(NewService(store, cfg, nil), cfg, nil)
}

func do(t *testing.T, h http.Handler, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootRedirects(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(newMemStore()).Handler(), http.MethodGet, "/", "", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestDashboardListsPendingVideos(t *testing.T) {
	t.Parallel()

	store := newMemStore(pendingVideo("v1", "My wife cheated"), pendingVideo("v2", "Found a letter"))
	approved := pendingVideo("v3", "Old story")
	approved.Status = types.VideoApproved
	store.videos["v3"] = approved

	rec := do(t, newTestServer(store).Handler(), http.MethodGet, "/dashboard", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	cards := doc.Find("article.video")
	if cards.Length() != 2 {
		t.Fatalf("found %d cards, want 2", cards.Length())
	}
	card := doc.Find("#video-v1")
	if got := card.Find(".score").Text(); got != "Score 72.75" {
		t.Fatalf("score = %q", got)
	}
	if got := card.Find(".duration").Text(); got != "42.2s" && got != "42.3s" {
		t.Fatalf("duration = %q", got)
	}
	if got := card.Find(".created").Text(); got != "2024-05-02 09:30" {
		t.Fatalf("created = %q", got)
	}
	if got := card.Find(".preview").Text(); len(got) != 503 || !strings.HasSuffix(got, "...") {
		t.Fatalf("preview not truncated to 500 chars: %d", len(got))
	}
	if action, _ := card.Find("form.approve").Attr("action"); action != "/videos/v1/approve" {
		t.Fatalf("approve action = %q", action)
	}
}

func TestDashboardEmpty(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(newMemStore()).Handler(), http.MethodGet, "/dashboard", "", "")
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Find(".empty").Length() != 1 {
		t.Fatal("expected empty state")
	}
}

func TestApproveForm(t *testing.T) {
	t.Parallel()

	store := newMemStore(pendingVideo("v1", "t"))
	h := newTestServer(store).Handler()

	form := url.Values{"actor": {"alice"}}.Encode()
	rec := do(t, h, http.MethodPost, "/videos/v1/approve", form, "application/x-www-form-urlencoded")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	v := store.videos["v1"]
	if v.Status != types.VideoApproved || v.ApprovedBy != "alice" || v.ApprovedAt == nil {
		t.Fatalf("video = %+v", v)
	}

	rec = do(t, h, http.MethodPost, "/videos/v1/reject", url.Values{"reason": {"late"}}.Encode(), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second decision status %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/approved", "", "")
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc.Find("#video-v1 .approver").Text(), "alice") {
		t.Fatal("approved page should show the approver")
	}
}

func TestRejectFormDefaultsReason(t *testing.T) {
	t.Parallel()

	store := newMemStore(pendingVideo("v1", "t"))
	h := newTestServer(store).Handler()

	rec := do(t, h, http.MethodPost, "/videos/v1/reject", url.Values{"reason": {"  "}}.Encode(), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status %d", rec.Code)
	}
	if got := store.videos["v1"].RejectionReason; got != DefaultRejectReason {
		t.Fatalf("reason = %q", got)
	}

	rec = do(t, h, http.MethodPost, "/videos/missing/reject", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing video status %d", rec.Code)
	}
}

func TestAPI(t *testing.T) {
	t.Parallel()

	store := newMemStore(pendingVideo("v1", "t"), pendingVideo("v2", "u"))
	h := newTestServer(store).Handler()

	rec := do(t, h, http.MethodGet, "/api/videos", "", "")
	var list []types.VideoListing
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 2 {
		t.Fatalf("list = %s (%v)", rec.Body, err)
	}

	rec = do(t, h, http.MethodPost, "/api/videos/v1/reject", `{"reason":"bad audio"}`, "application/json")
	var got types.VideoListing
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || got.Status != types.VideoRejected || got.RejectionReason != "bad audio" {
		t.Fatalf("reject: %d %+v", rec.Code, got)
	}

	rec = do(t, h, http.MethodPost, "/api/videos/v2/approve", "", "")
	if rec.Code != http.StatusOK || store.videos["v2"].ApprovedBy != "reviewer" {
		t.Fatalf("approve with defaults: %d %+v", rec.Code, store.videos["v2"])
	}

	rec = do(t, h, http.MethodGet, "/api/videos?status=bogus", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status: %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/videos/v2/approve", "", "")
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusConflict || body["error"] == "" {
		t.Fatalf("repeat approve: %d %s", rec.Code, rec.Body)
	}
}

func TestAPIRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	store := newMemStore(pendingVideo("v1", "t"), pendingVideo("v2", "u"))
	h := newTestServer(store).Handler()

	rec := do(t, h, http.MethodPost, "/api/videos/v1/reject", `{"reason": "bad au`, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed reject: %d %s", rec.Code, rec.Body)
	}
	if store.videos["v1"].Status != types.VideoPending {
		t.Fatalf("malformed body must not decide the video: %+v", store.videos["v1"])
	}

	rec = do(t, h, http.MethodPost, "/api/videos/v2/approve", `not json`, "application/json")
	if rec.Code != http.StatusBadRequest || store.videos["v2"].Status != types.VideoPending {
		t.Fatalf("malformed approve: %d %+v", rec.Code, store.videos["v2"])
	}

	rec = do(t, h, http.MethodPost, "/api/videos/v2/reject", "", "")
	if rec.Code != http.StatusOK || store.videos["v2"].RejectionReason != DefaultRejectReason {
		t.Fatalf("empty body should use defaults: %d %+v", rec.Code, store.videos["v2"])
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	h := newTestServer(store).Handler()
	if rec := do(t, h, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy status %d", rec.Code)
	}

	store.pingErr = errors.New("connection refused")
	if rec := do(t, h, http.MethodGet, "/health", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status %d", rec.Code)
	}
}

func TestRunCLI(t *testing.T) {
	t.Parallel()

	store := newMemStore(pendingVideo("v1", "a"), pendingVideo("v2", "b"), pendingVideo("v3", "c"))
	svc := NewService(store, config.Default().Review, nil)

	in := strings.NewReader("x\na\nr\n\ns\n")
	var out bytes.Buffer
	sum, err := svc.RunCLI(context.Background(), in, &out, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Approved != 1 || sum.Rejected != 1 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v\n%s", sum, out.String())
	}
	if !strings.Contains(out.String(), "please answer") {
		t.Fatal("invalid answer should re-prompt")
	}

	var approvedBy, reason string
	for _, v := range store.videos {
		if v.Status == types.VideoApproved {
			approvedBy = v.ApprovedBy
		}
		if v.Status == types.VideoRejected {
			reason = v.RejectionReason
		}
	}
	if approvedBy != "carol" || reason != DefaultRejectReason {
		t.Fatalf("approvedBy=%q reason=%q", approvedBy, reason)
	}
}

func TestRunCLINothingPending(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemStore(), config.Default().Review, nil)
	var out bytes.Buffer
	if _, err := svc.RunCLI(context.Background(), strings.NewReader(""), &out, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No videos pending") {
		t.Fatalf("output = %q", out.String())
	}
}
