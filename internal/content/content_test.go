package content

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/model"
)

type fakeBackend struct {
	posts []model.BlogPost
	faqs  []model.FAQ
	post  *model.BlogPost
	err   error
	calls int
}

func (f *fakeBackend) Blogs(context.Context) ([]model.BlogPost, error) {
	f.calls++
	return f.posts, f.err
}

func (f *fakeBackend) Blog(_ context.Context, slug string) (*model.BlogPost, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.post == nil || f.post.Slug != slug {
		return nil, &api.Error{Kind: api.KindHTTP, Status: 404, Message: "Post not found"}
	}
	return f.post, nil
}

func (f *fakeBackend) FAQs(context.Context) ([]model.FAQ, error) {
	f.calls++
	return f.faqs, f.err
}

func newTestService(b Backend, ttl time.Duration) (*Service, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }
	svc := NewService(b, cache, ttl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestPostsCachedWhileFresh(t *testing.T) {
	b := &fakeBackend{posts: []model.BlogPost{{ID: "1", Title: "A"}}}
	svc, now := newTestService(b, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := svc.Posts(context.Background()); err != nil {
			t.Fatalf("posts: %v", err)
		}
	}
	if b.calls != 1 {
		t.Errorf("backend calls = %d, want 1", b.calls)
	}

	*now = now.Add(2 * time.Minute)
	if _, err := svc.Posts(context.Background()); err != nil {
		t.Fatalf("posts: %v", err)
	}
	if b.calls != 2 {
		t.Errorf("backend calls = %d, want 2 after expiry", b.calls)
	}
}

func TestPostsStaleOnError(t *testing.T) {
	b := &fakeBackend{posts: []model.BlogPost{{ID: "1", Title: "A"}}}
	svc, now := newTestService(b, time.Minute)

	if _, err := svc.Posts(context.Background()); err != nil {
		t.Fatalf("posts: %v", err)
	}

	*now = now.Add(time.Hour)
	b.err = errors.New("backend down")
	posts, err := svc.Posts(context.Background())
	if err != nil {
		t.Fatalf("posts with stale cache: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "A" {
		t.Errorf("posts = %+v, want stale copy", posts)
	}
}

func TestPostsErrorWithoutCache(t *testing.T) {
	b := &fakeBackend{err: errors.New("backend down")}
	svc, _ := newTestService(b, time.Minute)

	if _, err := svc.Posts(context.Background()); err == nil {
		t.Error("expected error with empty cache")
	}
}

func TestPostNotFound(t *testing.T) {
	b := &fakeBackend{post: &model.BlogPost{Slug: "hello"}}
	svc, _ := newTestService(b, time.Minute)

	if _, err := svc.Post(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	post, err := svc.Post(context.Background(), "hello")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if post.Slug != "hello" {
		t.Errorf("slug = %q", post.Slug)
	}
}

func TestFAQsSortedByOrder(t *testing.T) {
	b := &fakeBackend{faqs: []model.FAQ{
		{ID: "a", Order: 3},
		{ID: "b", Order: 1},
		{ID: "c", Order: 2},
	}}
	svc, _ := newTestService(b, time.Minute)

	faqs, err := svc.FAQs(context.Background())
	if err != nil {
		t.Fatalf("faqs: %v", err)
	}
	var ids string
	for _, f := range faqs {
		ids += f.ID
	}
	if ids != "bca" {
		t.Errorf("order = %q, want bca", ids)
	}
}

func TestBuildIndex(t *testing.T) {
	posts := []model.BlogPost{
		{ID: "1", Category: "strategies"},
		{ID: "2", Category: "ai-visibility", Featured: true},
		{ID: "3", Category: "case-studies", Featured: true},
		{ID: "4", Category: "strategies"},
	}

	idx := BuildIndex(posts, "")
	if idx.Featured == nil || idx.Featured.ID != "2" {
		t.Fatalf("featured = %+v, want post 2", idx.Featured)
	}
	if len(idx.Posts) != 3 {
		t.Errorf("posts = %d, want 3 (featured excluded)", len(idx.Posts))
	}
	if idx.Category != CategoryAll {
		t.Errorf("category = %q, want all", idx.Category)
	}
	if len(idx.Categories) != 3 || idx.Categories[0] != "ai-visibility" {
		t.Errorf("categories = %v", idx.Categories)
	}

	idx = BuildIndex(posts, "strategies")
	if len(idx.Posts) != 2 {
		t.Errorf("strategies posts = %d, want 2", len(idx.Posts))
	}
}

func TestBlocks(t *testing.T) {
	content := "Intro paragraph.\n\n## Why it matters\n\nBody text\nspanning lines.\n\n\n### Detail\n\n   \n\nLast."
	got := Blocks(content)
	want := []Block{
		{"p", "Intro paragraph."},
		{"h2", "Why it matters"},
		{"p", "Body text\nspanning lines."},
		{"h3", "Detail"},
		{"p", "Last."},
	}
	if len(got) != len(want) {
		t.Fatalf("blocks = %+v, want %d", got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBlocksEmpty(t *testing.T) {
	if got := Blocks("\n\n  \n"); len(got) != 0 {
		t.Errorf("blocks = %+v, want none", got)
	}
}
