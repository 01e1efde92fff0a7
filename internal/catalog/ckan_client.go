package catalog

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

	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-announcer/internal/models"
)

// ErrNotFound is returned when the catalog does not know the dataset
var ErrNotFound = errors.New("dataset not found")

const notFoundErrorType = "Not Found Error"

// APIError is a failed catalog action call
type APIError struct {
	Action     string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s failed with status %d: %s: %s", e.Action, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Action, e.StatusCode, e.Message)
}

// Unwrap maps the catalog's own not-found error onto ErrNotFound. A 404
// without a CKAN error envelope (wrong base URL, proxy page) is not a missing
// dataset.
func (e *APIError) Unwrap() error {
	if e.Type == notFoundErrorType {
		return ErrNotFound
	}
	return nil
}

// actionResponse is the envelope of every CKAN action API response
type actionResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CKANClient handles communication with a CKAN action API
type CKANClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewCKANClient creates a new catalog API client
func NewCKANClient(baseURL, apiToken string, timeout time.Duration) *CKANClient {
	return &CKANClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Show fetches the current snapshot of a dataset by id or name
func (c *CKANClient) Show(ctx context.Context, idOrName string) (*models.DatasetSnapshot, error) {
	var dataset models.DatasetSnapshot
	if err := c.call(ctx, "package_show", idOrName, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// ActivityList fetches the recorded activity of a dataset
func (c *CKANClient) ActivityList(ctx context.Context, idOrName string) ([]models.ActivityRecord, error) {
	var activities []models.ActivityRecord
	if err := c.call(ctx, "package_activity_list", idOrName, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

func (c *CKANClient) call(ctx context.Context, action, id string, result interface{}) error {
	endpoint := fmt.Sprintf("%s/api/3/action/%s?%s", c.baseURL, action, url.Values{"id": {id}}.Encode())

	ac := ActionContextFrom(ctx)
	token := c.apiToken
	if ac.APIToken != "" {
		token = ac.APIToken
	}

	log.Debug().
		Str("action", action).
		Str("id", id).
		Str("user", ac.User).
		Msg("Calling catalog action")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}

	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", action, err)
	}

	var envelope actionResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Action: action, StatusCode: resp.StatusCode, Message: string(body)}
		}
		return fmt.Errorf("failed to unmarshal %s response: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		apiErr := &APIError{Action: action, StatusCode: resp.StatusCode}
		if envelope.Error != nil {
			apiErr.Type = envelope.Error.Type
			apiErr.Message = envelope.Error.Message
		}
		log.Debug().
			Int("status", resp.StatusCode).
			Str("action", action).
			Str("error_type", apiErr.Type).
			Msg("Catalog action failed")
		return apiErr
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", action, err)
	}
	return nil
}
