package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tictactoe/internal/client/display"
	"tictactoe/internal/server/core"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Time    int64  `json:"time"`
	Storage string `json:"storage"`
}

// Client talks to the REST API and echoes each exchange to Out
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Verbose    bool
	Out        io.Writer
}

func New(baseURL string, out io.Writer) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Out: out,
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.BaseURL = strings.TrimRight(url, "/")
}

// APIError is a non-2xx response
type APIError struct {
	Status int
	Body   core.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body.Code)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (c *Client) doRequest(method, path string, body any, result any) error {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
		bodyStr = string(jsonData)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	fmt.Fprintf(c.Out, "%s[API] %s %s%s\n", display.Blue, method, path, display.Reset)
	if bodyStr != "" && c.Verbose {
		fmt.Fprintf(c.Out, "%sRequest Body:%s %s\n", display.Cyan, display.Reset, bodyStr)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := display.Green
	if resp.StatusCode >= 400 {
		statusColor = display.Red
	}
	fmt.Fprintf(c.Out, "%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), display.Reset)

	if c.Verbose && len(respBody) > 0 {
		var pretty any
		if err := json.Unmarshal(respBody, &pretty); err == nil {
			display.PrettyPrintJSON(c.Out, pretty)
		} else {
			fmt.Fprintln(c.Out, string(respBody))
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.Body); err == nil && !c.Verbose {
			fmt.Fprintf(c.Out, "%sError: %s (%s)%s\n", display.Red, apiErr.Body.Error, apiErr.Body.Code, display.Reset)
			if apiErr.Body.Details != "" {
				fmt.Fprintf(c.Out, "%sDetails: %s%s\n", display.Red, apiErr.Body.Details, display.Reset)
			}
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("response parse error: %w", err)
		}
	}
	return nil
}

func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(http.MethodGet, "/health", nil, &resp)
	return &resp, err
}

// CreateRoom opens a room over REST; nothing is bound to the caller
func (c *Client) CreateRoom(req core.OpenRoomRequest) (*core.Room, error) {
	var resp core.Room
	err := c.doRequest(http.MethodPost, "/api/v1/rooms", req, &resp)
	return &resp, err
}

func (c *Client) GetRoom(roomID string) (*core.Room, error) {
	var resp core.Room
	err := c.doRequest(http.MethodGet, "/api/v1/rooms/"+roomID, nil, &resp)
	return &resp, err
}

// WaitRoom long-polls until the room is newer than version or the server gives up
func (c *Client) WaitRoom(roomID string, version int64) (*core.Room, error) {
	var resp core.Room
	path := fmt.Sprintf("/api/v1/rooms/%s?wait=true&version=%d", roomID, version)
	err := c.doRequest(http.MethodGet, path, nil, &resp)
	return &resp, err
}

// RawRequest performs a raw HTTP request for debugging purposes
func (c *Client) RawRequest(method, path string, body string) error {
	var bodyData any
	if body != "" {
		if err := json.Unmarshal([]byte(body), &bodyData); err != nil {
			bodyData = body
		}
	}
	return c.doRequest(method, path, bodyData, nil)
}
