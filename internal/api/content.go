package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dukerupert/aivis/internal/model"
)

func (c *Client) Blogs(ctx context.Context) ([]model.BlogPost, error) {
	resp, err := c.call(ctx, http.MethodGet, "/content/blogs", nil, "", "Failed to load posts")
	if err != nil {
		return nil, err
	}
	var out struct {
		Posts []model.BlogPost `json:"posts"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// Blog returns the published post with slug. A missing post is an *Error with
// Status 404.
func (c *Client) Blog(ctx context.Context, slug string) (*model.BlogPost, error) {
	resp, err := c.call(ctx, http.MethodGet, "/content/blogs/"+url.PathEscape(slug), nil, "", "Post not found")
	if err != nil {
		return nil, err
	}
	var out struct {
		Post *model.BlogPost `json:"post"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Post == nil {
		return nil, &Error{Kind: KindHTTP, Status: http.StatusNotFound, Message: "Post not found"}
	}
	return out.Post, nil
}

func (c *Client) FAQs(ctx context.Context) ([]model.FAQ, error) {
	resp, err := c.call(ctx, http.MethodGet, "/content/faqs", nil, "", "Failed to load FAQs")
	if err != nil {
		return nil, err
	}
	var out struct {
		FAQs []model.FAQ `json:"faqs"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.FAQs, nil
}
