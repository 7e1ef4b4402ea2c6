package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
)

// client talks to a running launcher's API server.
type client struct {
	baseURL string
	http    *http.Client
}

// newClient resolves the server address from the global config.
func newClient() (*client, error) {
	global, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	return &client{
		baseURL: fmt.Sprintf("http://%s:%d", global.Server.Host, global.Server.Port),
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// get fetches a JSON endpoint into out.
func (c *client) get(path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.http.Get(u)
	if err != nil {
		return fmt.Errorf("launcher not reachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// post calls an action endpoint into out.
func (c *client) post(path string, out interface{}) error {
	resp, err := c.http.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("launcher not reachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
