// Package waymark provides a client for the Waymark world-message API.
package waymark

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/waymark-protocol/waymark/internal/models"
)

// Client is a Waymark API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	APIKey     string
	HTTPClient *http.Client
}

// Config holds persisted client credentials.
type Config struct {
	APIKey string `json:"api_key"`
}

// NewClient creates a new Waymark client and loads any saved credentials.
func NewClient(baseURL string) *Client {
	configDir := os.Getenv("WAYMARK_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".waymark")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// Registered reports whether the client holds an API key.
func (c *Client) Registered() bool {
	return c.APIKey != ""
}

// LoadConfig loads credentials from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "client.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}

	c.APIKey = config.APIKey
	return nil
}

// SaveConfig saves credentials to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, _ := json.MarshalIndent(Config{APIKey: c.APIKey}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "client.json"), data, 0600)
}

// doRequest performs an HTTP request. The API key, when present, is sent
// on every request.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Message == "" {
			return nil, fmt.Errorf("waymark error %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("waymark error %d: %s (code %d)", resp.StatusCode, errResp.Message, errResp.Code)
	}

	return respBody, nil
}

// Register creates a new account and saves the returned API key.
func (c *Client) Register(ctx context.Context) (string, error) {
	respBody, err := c.doRequest(ctx, "POST", "/account", nil)
	if err != nil {
		return "", err
	}

	c.APIKey = string(respBody)
	if err := c.SaveConfig(); err != nil {
		return "", err
	}
	return c.APIKey, nil
}

// Unregister deletes the account, its messages, and its votes.
func (c *Client) Unregister(ctx context.Context) error {
	_, err := c.doRequest(ctx, "DELETE", "/account", nil)
	return err
}

// Messages retrieves the message set for a territory, scoped to a
// housing ward and plot when given.
func (c *Client) Messages(ctx context.Context, territory uint32, ward, plot *uint16) ([]*models.Message, error) {
	path := fmt.Sprintf("/messages/%d", territory)
	if ward != nil {
		path += fmt.Sprintf("?ward=%d", *ward)
		if plot != nil {
			path += fmt.Sprintf("&plot=%d", *plot)
		}
	}

	respBody, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var msgs []*models.Message
	if err := json.Unmarshal(respBody, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Message retrieves one message by id.
func (c *Client) Message(ctx context.Context, id uuid.UUID) (*models.OwnMessage, error) {
	respBody, err := c.doRequest(ctx, "GET", "/messages/"+SimpleID(id), nil)
	if err != nil {
		return nil, err
	}

	var msg models.OwnMessage
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MineResponse is the response from listing one's own messages.
type MineResponse struct {
	Messages []*models.OwnMessage `json:"messages"`
	Extra    int64                `json:"extra"`
}

// Mine lists the caller's messages, newest first, along with the
// caller's extra message slots.
func (c *Client) Mine(ctx context.Context) (*MineResponse, error) {
	respBody, err := c.doRequest(ctx, "GET", "/messages?v=2", nil)
	if err != nil {
		return nil, err
	}

	var resp MineResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Write places a new message and returns its server-assigned id.
func (c *Client) Write(ctx context.Context, req *models.MessageRequest) (uuid.UUID, error) {
	reqBody, _ := json.Marshal(req)
	respBody, err := c.doRequest(ctx, "POST", "/messages", reqBody)
	if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(string(respBody))
}

// Erase deletes one of the caller's messages.
func (c *Client) Erase(ctx context.Context, id uuid.UUID) error {
	_, err := c.doRequest(ctx, "DELETE", "/messages/"+SimpleID(id), nil)
	return err
}

// Vote casts or changes the caller's vote on a message. Any non-negative
// way counts as a vote up.
func (c *Client) Vote(ctx context.Context, id uuid.UUID, way int) error {
	_, err := c.doRequest(ctx, "PATCH", "/messages/"+SimpleID(id)+"/votes", []byte(strconv.Itoa(way)))
	return err
}

// Claim redeems a one-time code for extra message slots and returns the
// new slot count.
func (c *Client) Claim(ctx context.Context, code string) (int64, error) {
	respBody, err := c.doRequest(ctx, "POST", "/claim", []byte(code))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(respBody), 10, 64)
}

// Ping tells the server this account is still in use.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, "POST", "/ping", nil)
	return err
}

// Packs lists the message packs available for composition.
func (c *Client) Packs(ctx context.Context) ([]*models.Pack, error) {
	respBody, err := c.doRequest(ctx, "GET", "/packs", nil)
	if err != nil {
		return nil, err
	}

	var packs []*models.Pack
	if err := json.Unmarshal(respBody, &packs); err != nil {
		return nil, err
	}
	return packs, nil
}

// SimpleID renders a UUID in the compact hyphenless form the server uses
// in paths and storage.
func SimpleID(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}
