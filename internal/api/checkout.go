package api

import (
	"context"
	"net/http"
)

// PrecheckURL asks the backend to normalize and validate a website URL before
// payment. It returns the URL to pay for.
func (c *Client) PrecheckURL(ctx context.Context, siteURL string) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/precheck-url", map[string]string{"url": siteURL}, "", "That website could not be reached")
	if err != nil {
		return "", err
	}
	var out struct {
		FinalURL      string `json:"finalUrl"`
		NormalizedURL string `json:"normalizedUrl"`
	}
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	switch {
	case out.FinalURL != "":
		return out.FinalURL, nil
	case out.NormalizedURL != "":
		return out.NormalizedURL, nil
	}
	return siteURL, nil
}

type CheckoutRequest struct {
	URL   string `json:"url"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CreateCheckoutSession returns the hosted payment page URL for req.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/create-checkout-session", req, "", "Payment initiation failed. Please try again.")
	if err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &Error{Kind: KindHTTP, Status: resp.Status, Message: "Payment initiation failed. Please try again."}
	}
	return out.URL, nil
}
