// Package scan runs the free quick scan and grades its score.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/model"
)

// ErrScanFailed is the only error a visitor sees. No partial result is ever
// returned alongside it.
var ErrScanFailed = errors.New("Failed to run scan. Please try again.")

var ErrMissingFields = errors.New("Please enter both your website URL and email.")

// Scanner is the slice of *api.Client the service needs.
type Scanner interface {
	QuickScan(ctx context.Context, siteURL, email string) (*api.QuickScanData, error)
}

type Service struct {
	api    Scanner
	logger *slog.Logger
}

func NewService(s Scanner, logger *slog.Logger) *Service {
	return &Service{api: s, logger: logger}
}

// Run submits url and email and returns the graded result.
func (s *Service) Run(ctx context.Context, url, email string) (*model.ScanResult, error) {
	url = strings.TrimSpace(url)
	email = strings.TrimSpace(email)
	if url == "" || email == "" {
		return nil, ErrMissingFields
	}

	data, err := s.api.QuickScan(ctx, url, email)
	if err != nil {
		s.logger.Warn("quick scan failed", "url", url, "kind", api.KindOf(err).String(), "error", err)
		return nil, ErrScanFailed
	}

	res := &model.ScanResult{
		URL:             data.URL,
		Score:           clamp(data.FinalScore),
		Summary:         data.Summary,
		Recommendations: data.Recommendations,
		Email:           email,
	}
	if res.URL == "" {
		res.URL = url
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	return res, nil
}

func clamp(score float64) int {
	n := int(math.Round(score))
	return max(0, min(100, n))
}

// Label names the band a score falls in.
func Label(score int) string {
	switch {
	case score >= 80:
		return "Excellent AI Visibility"
	case score >= 60:
		return "Good AI Visibility"
	case score >= 40:
		return "Room to Improve"
	default:
		return "Significant Room for Improvement"
	}
}

// Tone is a CSS modifier for the score badge.
func Tone(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 60:
		return "fair"
	default:
		return "poor"
	}
}

// SummaryText is the sentence shown above the recommendations.
func SummaryText(score int) string {
	lead := fmt.Sprintf("Your website scored %d out of 100 on our AI Visibility scale.", score)
	switch {
	case score >= 80:
		return lead + " You're in a great position for AI-driven search, but there may be a few areas to further strengthen your presence. Below are the top findings from our analysis."
	case score >= 60:
		return lead + " You're doing well, but there's still room to boost your visibility and become the top answer. Here are the most impactful opportunities we found."
	case score >= 40:
		return lead + " There's room to improve your AI findability. Below are the key areas to focus on for better results."
	default:
		return lead + " This means there's significant room for improvement. Below are the top findings from our analysis."
	}
}
