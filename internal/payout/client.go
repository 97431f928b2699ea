package payout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"intersell-bot/internal/models"
)

// Client talks to the external UPI settlement provider. The bot only
// hands withdrawal records over; moving the money is the provider's job.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) doRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	url := fmt.Sprintf("%s%s", c.BaseURL, endpoint)
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api error: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	return respBody, nil
}

// Submit hands one pending withdrawal to the provider and returns its
// acknowledgement.
func (c *Client) Submit(w *models.Withdrawal) (*SubmitResponse, error) {
	reqBody := SubmitRequest{
		Reference:   w.ID,
		UPIAddress:  w.Destination,
		AmountINR:   w.Amount,
		Description: "Internet Sell App referral earnings",
	}

	resp, err := c.doRequest("POST", "/payouts", reqBody)
	if err != nil {
		return nil, err
	}

	var ack SubmitResponse
	if err := json.Unmarshal(resp, &ack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &ack, nil
}
