package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

const (
	transferTimeout = 10 * time.Second
	refundTimeout   = 8 * time.Second
)

// Client talks to the banking provider's transfer API. Transfers and refunds
// share the instruction shape; refunds post to the /refund sub-resource.
type Client struct {
	transferURL string
	apiKey      string
	httpClient  *http.Client
}

func NewClient(transferURL, apiKey string) *Client {
	return &Client{
		transferURL: transferURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{},
	}
}

func (c *Client) Transfer(ctx context.Context, in gateway.TransferInstruction) (*gateway.TransferConfirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	raw, err := c.post(ctx, c.transferURL, in)
	if err != nil {
		return nil, err
	}
	return &gateway.TransferConfirmation{Raw: raw}, nil
}

func (c *Client) Refund(ctx context.Context, in gateway.TransferInstruction) error {
	ctx, cancel := context.WithTimeout(ctx, refundTimeout)
	defer cancel()

	_, err := c.post(ctx, c.transferURL+"/refund", in)
	return err
}

func (c *Client) post(ctx context.Context, url string, in gateway.TransferInstruction) (map[string]interface{}, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer instruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rail request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read rail response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("url", url).
			Msg("bank rail rejected the transfer")
		return nil, fmt.Errorf("rail returned status %d", resp.StatusCode)
	}

	raw := map[string]interface{}{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &raw); err != nil {
			// A 2xx with a non-JSON body still confirms the transfer.
			raw["body"] = string(respBody)
		}
	}
	return raw, nil
}
