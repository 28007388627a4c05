package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/reliability"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("weather api key not configured")

var tracer = observability.Tracer("weather")

// Report is the subset of current conditions the assistant speaks aloud.
type Report struct {
	City        string
	Temperature float64
	Description string
}

// Client queries OpenWeatherMap's current-weather endpoint.
type Client struct {
	apiKey  string
	baseURL string
	lang    string
	timeout time.Duration
	http    *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Lang    string
	Timeout time.Duration
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = observability.HTTPClient(nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openweathermap.org"
	}
	if cfg.Lang == "" {
		cfg.Lang = "ru"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		lang:    cfg.Lang,
		timeout: cfg.Timeout,
		http:    httpClient,
	}
}

// Current fetches metric conditions for city.
func (c *Client) Current(ctx context.Context, city string) (report Report, err error) {
	if c == nil || c.apiKey == "" {
		return Report{}, ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "fetch current weather")
	span.SetAttributes(attribute.String("weather.city", city))
	defer func() { observability.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", c.lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return Report{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Report{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Report{}, &reliability.StatusError{Provider: "openweathermap", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		Name string `json:"name"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Report{}, fmt.Errorf("decode weather response: %w", err)
	}
	report = Report{City: payload.Name, Temperature: payload.Main.Temp}
	if len(payload.Weather) > 0 {
		report.Description = payload.Weather[0].Description
	}
	return report, nil
}
