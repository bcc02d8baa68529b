package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/tieout/pkg/errors"
)

// GetJSON performs an authenticated GET and decodes the JSON response into
// target. Returns the response headers so callers can read pagination
// indicators carried there (e.g. Shopify's Link header).
func (c *Client) GetJSON(ctx context.Context, url string, target any) (http.Header, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := DecodeResponse(c.source, resp, target); err != nil {
		return nil, err
	}
	return resp.Header, nil
}

// DecodeResponse decodes a JSON response into the target structure. Non-2xx
// statuses become APIErrors; undecodable payloads become ParseErrors so
// callers can distinguish contract drift from unavailability.
func DecodeResponse(source string, resp *http.Response, target any) error {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewAPIError(source, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.NewParseError(source, "", "undecodable JSON payload", err)
	}

	return nil
}
