package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxAssetBytes caps a single downloaded image.
const maxAssetBytes = 32 << 20

// ResolveLocation turns a result location into an absolute URL. Relative
// locations are resolved against the API base.
func (c *Client) ResolveLocation(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("apiclient: empty location")
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("apiclient: parse location %q: %w", location, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return c.baseURL + "/" + strings.TrimLeft(location, "/"), nil
}

// Download fetches a generated asset and returns its bytes and content type.
func (c *Client) Download(ctx context.Context, location string) ([]byte, string, error) {
	target, err := c.ResolveLocation(location)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("apiclient: download %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", &APIError{Method: http.MethodGet, Path: target, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, "", fmt.Errorf("apiclient: read %s: %w", target, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
