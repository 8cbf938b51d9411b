// Package vision calls the meter-photo recognition service that extracts a
// register value from an uploaded meter photo.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal REST client for the meter recognition service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a vision client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("vision: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ReadResult is the recognized register value for one meter photo.
type ReadResult struct {
	Value      int     `json:"value"`
	Confidence float64 `json:"confidence"`
	RawText    string  `json:"raw_text"`
}

// ErrUnreadable is returned when the service cannot extract a value.
var ErrUnreadable = errors.New("vision: meter not readable")

// ReadMeter submits a base64-encoded meter photo for recognition.
func (c *Client) ReadMeter(ctx context.Context, imageBase64 string) (ReadResult, error) {
	if c == nil {
		return ReadResult{}, errors.New("vision: nil client")
	}
	if imageBase64 == "" {
		return ReadResult{}, errors.New("vision: empty image")
	}

	body := map[string]any{"image": imageBase64}
	var resp readResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/meter/read", body, &resp); err != nil {
		return ReadResult{}, err
	}
	if !resp.OK {
		return ReadResult{}, ErrUnreadable
	}
	if resp.Value < 0 {
		return ReadResult{}, ErrUnreadable
	}
	return ReadResult{
		Value:      resp.Value,
		Confidence: resp.Confidence,
		RawText:    resp.RawText,
	}, nil
}

type readResponse struct {
	OK         bool    `json:"ok"`
	Value      int     `json:"value"`
	Confidence float64 `json:"confidence"`
	RawText    string  `json:"raw_text"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("vision: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
