package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/medleyhq/medley/pkg/logger"
	"golang.org/x/time/rate"
)

var log = logger.Get("Provider")

const (
	listEndpointTemplate = "%s?ac=videolist&pg=%d"

	defaultRequestIntervalMS = 500
	defaultMaxPages          = 50
	requestTimeout           = time.Second * 30
)

type (
	// StationConfig describes one upstream resource station.
	StationConfig struct {
		Label             string `yaml:"label" validate:"required"`
		BaseURL           string `yaml:"base_url" validate:"required,url"`
		Priority          int    `yaml:"priority"`
		RequestIntervalMS int    `yaml:"request_interval_ms"`
		MaxPages          int    `yaml:"max_pages"`
	}

	// Client fetches title records from a single resource station. Requests
	// are paced with a fixed inter-request interval so that a large catalog
	// sync never hammers one provider.
	Client struct {
		station    StationConfig
		httpClient *http.Client
		limiter    *rate.Limiter
	}
)

func NewClient(station StationConfig) *Client {
	intervalMS := station.RequestIntervalMS
	if intervalMS <= 0 {
		intervalMS = defaultRequestIntervalMS
	}

	return &Client{
		station:    station,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Duration(intervalMS)*time.Millisecond), 1),
	}
}

func (client *Client) Label() string { return client.station.Label }

func (client *Client) Priority() int { return client.station.Priority }

// FetchPage requests a single page of the stations videolist endpoint.
func (client *Client) FetchPage(ctx context.Context, page int) (*ListResponse, error) {
	if err := client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf(listEndpointTemplate, client.station.BaseURL, page)
	var response ListResponse
	if err := client.getJSONResponse(ctx, path, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// FetchAll walks the stations list endpoint page by page, accumulating every
// title record reported. A failed page is skipped (logged, not fatal) so one
// flaky response never aborts a whole station sync; an error is only returned
// if the very first page cannot be fetched, since that indicates the station
// itself is unreachable.
func (client *Client) FetchAll(ctx context.Context) ([]RawTitle, error) {
	first, err := client.FetchPage(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("station %s is unreachable: %w", client.station.Label, err)
	}

	pageCount64, _ := first.PageCount.Int64()
	pageCount := int(pageCount64)
	maxPages := client.station.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if pageCount > maxPages {
		log.Emit(logger.WARNING, "Station %s reports %d pages, clamping to %d\n", client.station.Label, pageCount, maxPages)
		pageCount = maxPages
	}

	titles := first.List
	for page := 2; page <= pageCount; page++ {
		response, err := client.FetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return titles, ctx.Err()
			}

			log.Emit(logger.WARNING, "Station %s page %d failed (%v), skipping\n", client.station.Label, page, err)
			continue
		}

		titles = append(titles, response.List...)
	}

	return titles, nil
}

func (client *Client) getJSONResponse(ctx context.Context, urlPath string, target any) error {
	if _, err := url.Parse(urlPath); err != nil {
		return &UnknownRequestError{fmt.Sprintf("station URL %s is malformed: %s", urlPath, err.Error())}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to construct GET(%s): %s", urlPath, err.Error())}
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s): %s", urlPath, err.Error())}
	}

	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if response.StatusCode != http.StatusOK {
		return &FailedRequestError{httpCode: response.StatusCode, message: string(body)}
	}

	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

type (
	FailedRequestError struct {
		httpCode int
		message  string
	}
	UnknownRequestError struct{ reason string }
)

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("request failure (HTTP %d): %s", err.httpCode, err.message)
}

func (err *FailedRequestError) StatusCode() int { return err.httpCode }

func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with station: %s", err.reason)
}
