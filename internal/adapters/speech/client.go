package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/babelroom/babelroom/internal/adapters/retry"
)

// Client is a thin JSON/multipart HTTP client shared by the ASR, MT and
// TTS adapters. Retries are handled here so adapters stay declarative.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	retryConfig retry.BackoffConfig
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     baseURL,
		apiKey:      apiKey,
		retryConfig: retry.HTTPConfig(),
	}
}

func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any, response any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte

	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(jsonData))
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.setAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		return resp.StatusCode, nil
	})

	if err != nil {
		return err
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) PostMultipart(ctx context.Context, endpoint string, fields map[string]string, fileField, fileName string, fileData []byte, response any) error {
	var respBody []byte

	err := retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		// Rebuild the multipart body for each retry attempt
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)

		for key, val := range fields {
			if err := writer.WriteField(key, val); err != nil {
				return 0, fmt.Errorf("failed to write field %s: %w", key, err)
			}
		}

		if fileField != "" && fileData != nil {
			part, err := writer.CreateFormFile(fileField, fileName)
			if err != nil {
				return 0, fmt.Errorf("failed to create form file: %w", err)
			}
			if _, err := part.Write(fileData); err != nil {
				return 0, fmt.Errorf("failed to write file data: %w", err)
			}
		}

		if err := writer.Close(); err != nil {
			return 0, fmt.Errorf("failed to close multipart writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, &buf)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		c.setAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		return resp.StatusCode, nil
	})

	if err != nil {
		return err
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
