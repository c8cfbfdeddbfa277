package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dukerupert/aivis/internal/model"
)

// QuickScanData is the payload of a successful quick scan.
type QuickScanData struct {
	URL             string   `json:"url"`
	FinalScore      float64  `json:"finalScore"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

func (c *Client) QuickScan(ctx context.Context, siteURL, email string) (*QuickScanData, error) {
	body := map[string]string{"url": siteURL, "email": email}
	resp, err := c.call(ctx, http.MethodPost, "/quick-scan", body, "", "Quick scan failed")
	if err != nil {
		return nil, err
	}
	var out struct {
		Data *QuickScanData `json:"data"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, &Error{Kind: KindHTTP, Status: resp.Status, Message: "Quick scan failed"}
	}
	return out.Data, nil
}

// AnalyzeAck acknowledges a queued full analysis.
type AnalyzeAck struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

func (c *Client) Analyze(ctx context.Context, siteURL, email string) (*AnalyzeAck, error) {
	body := map[string]string{"url": siteURL, "email": email}
	resp, err := c.call(ctx, http.MethodPost, "/analyze", body, "", "Failed to start analysis")
	if err != nil {
		return nil, err
	}
	var out AnalyzeAck
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalysisStatus lists the jobs requested for email.
func (c *Client) AnalysisStatus(ctx context.Context, email string) ([]model.AnalysisJob, error) {
	resp, err := c.call(ctx, http.MethodGet, "/analysis-status?email="+url.QueryEscape(email), nil, "", "Failed to load analysis status")
	if err != nil {
		return nil, err
	}
	var out struct {
		Tasks []model.AnalysisJob `json:"tasks"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}
