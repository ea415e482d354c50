package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/types"
)

func openTest(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), config.StorageConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo
}

func story(id, redditID string, score float64) types.ScoredStory {
	return types.ScoredStory{
		ID: id,
		RawPost: types.RawPost{
			RedditID:    redditID,
			Subreddit:   "tifu",
			Title:       "Title " + id,
			Body:        "Body of " + id,
			CreatedAt:   time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC),
			Upvotes:     1200,
			Comments:    300,
			UpvoteRatio: 0.95,
		},
		WordCount:     3,
		ViralityScore: score,
	}
}

func TestStoryLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTest(t)

	for _, s := range []types.ScoredStory{story("a", "r1", 40), story("b", "r2", 90), story("c", "r3", 65)} {
		if err := repo.InsertStory(ctx, s); err != nil {
			t.Fatalf("insert %s: %v", s.ID, err)
		}
	}
	if err := repo.InsertStory(ctx, story("dup", "r1", 10)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := repo.StoriesByStatus(ctx, types.StoryScraped, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Upvotes != 1200 || got[0].Status != types.StoryScraped || got[0].CreatedAt.Hour() != 8 {
		t.Fatalf("round trip lost fields: %+v", got[0])
	}

	if err := repo.UpdateStoryStatus(ctx, "b", types.StorySelected); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := repo.UpdateStoryStatus(ctx, "b", types.StorySelected); err != nil {
		t.Fatalf("repeat select should be a no-op: %v", err)
	}
	if err := repo.UpdateStoryStatus(ctx, "b", types.StoryScraped); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("backwards move: got %v", err)
	}
	if err := repo.UpdateStoryStatus(ctx, "missing", types.StorySelected); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing story: got %v", err)
	}

	s, err := repo.StoryByID(ctx, "b")
	if err != nil || s.Status != types.StorySelected {
		t.Fatalf("story b = %+v, %v", s, err)
	}
}

func TestRecordVideoAndDecide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTest(t)

	if err := repo.InsertStory(ctx, story("s1", "r1", 70)); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStoryStatus(ctx, "s1", types.StorySelected); err != nil {
		t.Fatal(err)
	}

	v := types.VideoArtifact{ID: "v1", StoryID: "s1", Path: "output/v1.mp4", DurationSeconds: 42.5, SizeBytes: 1024}
	if err := repo.RecordVideo(ctx, v); err != nil {
		t.Fatalf("record: %v", err)
	}

	s, _ := repo.StoryByID(ctx, "s1")
	if s.Status != types.StoryProcessed {
		t.Fatalf("story status = %s", s.Status)
	}

	pending, err := repo.VideosByStatus(ctx, types.VideoPending, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].StoryTitle != "Title s1" || pending[0].ViralityScore != 70 {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.DecideVideo(ctx, "v1", types.Decision{Status: types.VideoApproved, Actor: "alice"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := repo.VideoByID(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.VideoApproved || got.ApprovedBy != "alice" || got.ApprovedAt == nil {
		t.Fatalf("approved video = %+v", got)
	}

	err = repo.DecideVideo(ctx, "v1", types.Decision{Status: types.VideoRejected, Reason: "late"})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("second decision: got %v", err)
	}
	if err := repo.DecideVideo(ctx, "nope", types.Decision{Status: types.VideoRejected}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing video: got %v", err)
	}
}

func TestRecordVideoRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTest(t)

	if err := repo.InsertStory(ctx, story("s1", "r1", 70)); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStoryStatus(ctx, "s1", types.StoryRejected); err != nil {
		t.Fatal(err)
	}

	err := repo.RecordVideo(ctx, types.VideoArtifact{ID: "v1", StoryID: "s1", Path: "x.mp4", DurationSeconds: 1})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if _, err := repo.VideoByID(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("video must not persist after rollback: %v", err)
	}
}

func TestRejectRecordsReason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTest(t)

	if err := repo.InsertStory(ctx, story("s1", "r1", 70)); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertVideo(ctx, types.VideoArtifact{ID: "v1", StoryID: "s1", Path: "x.mp4", DurationSeconds: 3}); err != nil {
		t.Fatal(err)
	}
	if err := repo.DecideVideo(ctx, "v1", types.Decision{Status: types.VideoRejected, Reason: "audio clipped"}); err != nil {
		t.Fatal(err)
	}

	rejected, err := repo.VideosByStatus(ctx, types.VideoRejected, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 1 || rejected[0].RejectionReason != "audio clipped" || rejected[0].ApprovedAt != nil {
		t.Fatalf("rejected = %+v", rejected)
	}
}

func TestPlatformPosts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTest(t)

	if err := repo.InsertStory(ctx, story("s1", "r1", 70)); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertVideo(ctx, types.VideoArtifact{ID: "v1", StoryID: "s1", Path: "x.mp4", DurationSeconds: 3}); err != nil {
		t.Fatal(err)
	}

	yt, err := repo.InsertPlatformPost(ctx, types.PlatformPost{VideoID: "v1", Platform: "youtube"})
	if err != nil {
		t.Fatal(err)
	}
	tt, err := repo.InsertPlatformPost(ctx, types.PlatformPost{VideoID: "v1", Platform: "tiktok"})
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.UpdatePlatformPostStatus(ctx, yt, types.PostPublished, "https://youtu.be/abc"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdatePlatformPostStatus(ctx, tt, types.PostFailed, "quota exceeded"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdatePlatformPostStatus(ctx, "missing", types.PostFailed, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing post: got %v", err)
	}

	posts, err := repo.PlatformPostsByVideo(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts = %+v", posts)
	}
	if posts[0].Status != types.PostPublished || posts[0].URL != "https://youtu.be/abc" || posts[0].PublishedAt == nil {
		t.Fatalf("published post = %+v", posts[0])
	}
	if posts[1].Status != types.PostFailed || posts[1].Error != "quota exceeded" {
		t.Fatalf("failed post = %+v", posts[1])
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), config.StorageConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPlaceholderDialect(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		driver string
		want   string
	}{
		{"postgres", "id = $1"},
		{"sqlite", "id = ?"},
	} {
		r := New(nil, tc.driver)
		query, args, err := r.sb.Select("id").From("stories").Where(sq.Eq{"id": "a"}).ToSql()
		if err != nil {
			t.Fatalf("%s: %v", tc.driver, err)
		}
		if !strings.Contains(query, tc.want) || len(args) != 1 {
			t.Fatalf("%s: query = %q args = %v", tc.driver, query, args)
		}
	}
}
