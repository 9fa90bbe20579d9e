package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"badge-engine/utils"

	"go.uber.org/zap"
)

// currentSeasonResponse is the body of the season service's current endpoint.
type currentSeasonResponse struct {
	SeasonID string `json:"season_id"`
	Name     string `json:"name,omitempty"`
}

// HTTPSeasonSource asks the season service which season is running.
type HTTPSeasonSource struct {
	BaseURL      string // e.g. "http://localhost:8600"
	EndpointPath string // e.g. "/api/v1/seasons/current"
	ServiceToken string
	Client       *http.Client
	Log          *zap.Logger
}

func NewHTTPSeasonSource(baseURL, endpointPath, serviceToken string, log *zap.Logger) *HTTPSeasonSource {
	return &HTTPSeasonSource{
		BaseURL:      baseURL,
		EndpointPath: endpointPath,
		ServiceToken: serviceToken,
		Client:       utils.HTTPClient,
		Log:          log,
	}
}

// CurrentSeason returns the running season id, or "" between seasons
// (the service answers 204).
func (s *HTTPSeasonSource) CurrentSeason(ctx context.Context) (string, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid season service URL '%s': %w", s.BaseURL, err)
	}
	finalURL := base.JoinPath(s.EndpointPath).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", s.ServiceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("season service request failed: %w", err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return "", nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.Log.Warn("[SEASON] season service error",
			zap.String("url", finalURL),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return "", fmt.Errorf("season service non-200 response: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out currentSeasonResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode season service response: %w", err)
	}
	return strings.TrimSpace(out.SeasonID), nil
}
