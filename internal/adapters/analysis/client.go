// Package analysis implements ports.AnalysisService against the remote
// feasibility analysis engine's JSON API.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/httpx"
)

// Client talks to the analysis service. All calls go through the resilient
// request primitive; the client keeps no state between calls.
type Client struct {
	http  *httpx.Client
	base  string
	token string
}

// New creates a Client. base is the API root (e.g. http://host/api/v1);
// token is optional bearer auth.
func New(base, token string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		http:  httpx.New(timeout, maxRetries),
		base:  base,
		token: token,
	}
}

type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AreaKm2   float64 `json:"area_km2"`
}

func location(aoi domain.AreaOfInterest) locationPayload {
	return locationPayload{
		Latitude:  aoi.Coordinate.Lat,
		Longitude: aoi.Coordinate.Lon,
		AreaKm2:   aoi.AreaKm2,
	}
}

// AnalyzeSite runs the site-analysis stage.
func (c *Client) AnalyzeSite(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error) {
	req := struct {
		Location      locationPayload `json:"location"`
		ProjectType   string          `json:"project_type"`
		AnalysisDepth string          `json:"analysis_depth"`
	}{location(aoi), aoi.ProjectType, "comprehensive"}

	var env struct {
		Success  bool            `json:"success"`
		Analysis json.RawMessage `json:"analysis"`
		Message  string          `json:"message"`
	}
	if err := c.post(ctx, "/site-analysis", req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("site analysis rejected: %s", env.Message)
	}

	var site domain.SiteAnalysis
	if err := json.Unmarshal(env.Analysis, &site); err != nil {
		return nil, fmt.Errorf("decode site analysis: %w", err)
	}
	site.Raw = env.Analysis
	return &site, nil
}

// EstimateResources runs the resource-estimation stage, carrying the
// capacity estimated by site analysis in the system configuration.
func (c *Client) EstimateResources(ctx context.Context, aoi domain.AreaOfInterest, capacityMW float64) (*domain.ResourceEstimate, error) {
	req := struct {
		Location     locationPayload `json:"location"`
		ResourceType string          `json:"resource_type"`
		SystemConfig map[string]any  `json:"system_config"`
	}{location(aoi), aoi.ProjectType, map[string]any{"estimated_capacity_mw": capacityMW}}

	var env struct {
		Success    bool            `json:"success"`
		Estimation json.RawMessage `json:"estimation"`
		Message    string          `json:"message"`
	}
	if err := c.post(ctx, "/resource-estimation", req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("resource estimation rejected: %s", env.Message)
	}

	var est domain.ResourceEstimate
	if err := json.Unmarshal(env.Estimation, &est); err != nil {
		return nil, fmt.Errorf("decode resource estimation: %w", err)
	}
	est.Raw = env.Estimation
	return &est, nil
}

// EvaluateCosts runs the cost-evaluation stage.
func (c *Client) EvaluateCosts(ctx context.Context, project map[string]any, params domain.FinancialParams) (*domain.CostEvaluation, error) {
	req := struct {
		ProjectData     map[string]any         `json:"project_data"`
		FinancialParams domain.FinancialParams `json:"financial_params"`
	}{project, params}

	var env struct {
		Success    bool            `json:"success"`
		Evaluation json.RawMessage `json:"evaluation"`
		Message    string          `json:"message"`
	}
	if err := c.post(ctx, "/cost-evaluation", req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("cost evaluation rejected: %s", env.Message)
	}

	var eval domain.CostEvaluation
	if err := json.Unmarshal(env.Evaluation, &eval); err != nil {
		return nil, fmt.Errorf("decode cost evaluation: %w", err)
	}
	eval.Raw = env.Evaluation
	return &eval, nil
}

// GenerateReport runs the report-generation stage.
func (c *Client) GenerateReport(ctx context.Context, project map[string]any) (*domain.Report, error) {
	req := struct {
		ProjectData map[string]any `json:"project_data"`
	}{project}

	var env struct {
		Success     bool   `json:"success"`
		Report      string `json:"report"`
		GeneratedAt string `json:"generated_at"`
		Message     string `json:"message"`
	}
	if err := c.post(ctx, "/generate-report", req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("report generation rejected: %s", env.Message)
	}

	return &domain.Report{Content: env.Report, GeneratedAt: env.GeneratedAt}, nil
}

// SystemStatus fetches the service health document.
func (c *Client) SystemStatus(ctx context.Context) (map[string]any, error) {
	resp, err := c.http.Do(ctx, httpx.Request{
		Method:  http.MethodGet,
		URL:     c.base + "/system-status",
		Headers: c.headers(),
	})
	if err != nil {
		return nil, err
	}

	var status map[string]any
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("decode system status: %w", err)
	}
	return status, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	resp, err := c.http.Do(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     c.base + path,
		Headers: c.headers(),
		Body:    payload,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}
