// Package content serves the published blog posts and FAQs shown on the
// public pages.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/model"
)

// Backend is the slice of *api.Client the service reads from.
type Backend interface {
	Blogs(ctx context.Context) ([]model.BlogPost, error)
	Blog(ctx context.Context, slug string) (*model.BlogPost, error)
	FAQs(ctx context.Context) ([]model.FAQ, error)
}

// ErrNotFound is returned for a post the backend does not know.
var ErrNotFound = errors.New("post not found")

// CategoryAll disables the blog category filter.
const CategoryAll = "all"

type Service struct {
	backend Backend
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(b Backend, cache Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{backend: b, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// cached answers from the cache while fresh, otherwise calls fetch. When fetch
// fails, stale cached data is returned instead of the error.
func cached[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	var out T

	data, fetchedAt, cerr := s.cache.Get(ctx, key)
	if cerr == nil && s.now().Sub(fetchedAt) < s.ttl {
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}
	if cerr != nil && !errors.Is(cerr, ErrMiss) {
		s.logger.Warn("content cache read", "key", key, "error", cerr)
	}

	fresh, err := fetch(ctx)
	if err != nil {
		if cerr == nil {
			var stale T
			if json.Unmarshal(data, &stale) == nil {
				s.logger.Warn("serving stale content", "key", key, "error", err)
				return stale, nil
			}
		}
		return out, err
	}

	if buf, err := json.Marshal(fresh); err == nil {
		if err := s.cache.Set(ctx, key, buf); err != nil {
			s.logger.Warn("content cache write", "key", key, "error", err)
		}
	}
	return fresh, nil
}

func (s *Service) Posts(ctx context.Context) ([]model.BlogPost, error) {
	posts, err := cached(ctx, s, "blogs", s.backend.Blogs)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	return posts, nil
}

func (s *Service) Post(ctx context.Context, slug string) (*model.BlogPost, error) {
	post, err := cached(ctx, s, "blog:"+slug, func(ctx context.Context) (*model.BlogPost, error) {
		return s.backend.Blog(ctx, slug)
	})
	if api.StatusOf(err) == 404 {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load post %q: %w", slug, err)
	}
	return post, nil
}

// FAQs returns the published FAQs in display order.
func (s *Service) FAQs(ctx context.Context) ([]model.FAQ, error) {
	faqs, err := cached(ctx, s, "faqs", s.backend.FAQs)
	if err != nil {
		return nil, fmt.Errorf("load faqs: %w", err)
	}
	out := slices.Clone(faqs)
	slices.SortStableFunc(out, func(a, b model.FAQ) int { return a.Order - b.Order })
	return out, nil
}

// Index is the blog landing page: the featured post plus the rest, filtered
// by category.
type Index struct {
	Featured   *model.BlogPost
	Posts      []model.BlogPost
	Categories []string
	Category   string
}

// BuildIndex picks the first featured post and lists the others matching
// category. The featured post is never repeated in the list.
func BuildIndex(posts []model.BlogPost, category string) Index {
	category = strings.TrimSpace(category)
	if category == "" {
		category = CategoryAll
	}
	idx := Index{Category: category, Posts: []model.BlogPost{}}

	seen := map[string]bool{}
	for i := range posts {
		p := posts[i]
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			idx.Categories = append(idx.Categories, p.Category)
		}
		if idx.Featured == nil && p.Featured {
			idx.Featured = &posts[i]
			continue
		}
		if category != CategoryAll && p.Category != category {
			continue
		}
		idx.Posts = append(idx.Posts, p)
	}
	slices.Sort(idx.Categories)
	return idx
}
