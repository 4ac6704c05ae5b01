package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPClient implements StatusClient and DetailClient against the
// executor's REST surface.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *HTTPClient) ExecutionStatus(ctx context.Context, executionID string) (*ExecutionStatus, error) {
	var status ExecutionStatus
	if err := c.getJSON(ctx, fmt.Sprintf("%s/executions/%s/status", c.baseURL, executionID), &status); err != nil {
		return nil, err
	}

	return &status, nil
}

func (c *HTTPClient) ExecutionDetail(ctx context.Context, executionID string) (*ExecutionDetail, error) {
	var detail ExecutionDetail
	if err := c.getJSON(ctx, fmt.Sprintf("%s/executions/%s", c.baseURL, executionID), &detail); err != nil {
		return nil, err
	}

	return &detail, nil
}

// CancelExecution sends an advisory stop request. It does not wait for
// or guarantee remote termination.
func (c *HTTPClient) CancelExecution(ctx context.Context, executionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/executions/%s/cancel", c.baseURL, executionID), nil)
	if err != nil {
		return err
	}

	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cancel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("cancel request rejected: %s", resp.Status)
	}

	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("status query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status query returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode status response: %w", err)
	}

	return nil
}
