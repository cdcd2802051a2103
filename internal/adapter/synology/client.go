package synology

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Client is a Synology FileStation API client bound to one login session
type Client struct {
	baseURL        string
	username       string
	password       string
	otpCode        string
	authVersion    int
	httpClient     *http.Client
	transferClient *http.Client
	bufferSize     int
	logger         *zap.Logger
	sid            string
	sidMu          sync.RWMutex
	apiInfo        map[string]APIEndpoint
	apiInfoMu      sync.RWMutex
}

// Ensure Client implements port.FileStation
var _ port.FileStation = (*Client)(nil)

// ClientConfig contains optional client configuration
type ClientConfig struct {
	Timeout      time.Duration // Timeout for non-transfer requests (default: 30s)
	BufferSizeKB int           // Copy buffer for transfers (default: 1024)
	Logger       *zap.Logger
}

// NewClient creates a new, not yet authenticated, FileStation client
func NewClient(params domain.SessionParams, cfg *ClientConfig) *Client {
	timeout := 30 * time.Second
	bufferSize := 1024 * 1024
	logger := zap.NewNop()
	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		if cfg.BufferSizeKB > 0 {
			bufferSize = cfg.BufferSizeKB * 1024
		}
		if cfg.Logger != nil {
			logger = cfg.Logger
		}
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: !params.CertVerify,
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	transferTransport := &http.Transport{
		TLSClientConfig: tlsConfig,
		IdleConnTimeout: 120 * time.Second,

		WriteBufferSize: bufferSize,
		ReadBufferSize:  bufferSize,

		ForceAttemptHTTP2: true,

		// Disable compression for binary files (saves CPU)
		DisableCompression: true,

		// Response header timeout (not total transfer timeout)
		ResponseHeaderTimeout: timeout,
	}

	return &Client{
		baseURL:     strings.TrimSuffix(params.BaseURL(), "/"),
		username:    params.Username,
		password:    params.Password,
		otpCode:     params.OTPCode,
		authVersion: authVersion(params.DSMVersion),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		transferClient: &http.Client{
			Transport: transferTransport,
			Timeout:   0, // No timeout for transfers
		},
		bufferSize: bufferSize,
		logger:     logger,
		apiInfo:    make(map[string]APIEndpoint),
	}
}

// Dial creates a client and logs in
func Dial(ctx context.Context, params domain.SessionParams, cfg *ClientConfig) (*Client, error) {
	c := NewClient(params, cfg)
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Factory returns a port.SessionFactory that dials with cfg
func Factory(cfg *ClientConfig) port.SessionFactory {
	return func(ctx context.Context, params domain.SessionParams) (port.FileStation, error) {
		return Dial(ctx, params, cfg)
	}
}

// GetSID returns the current session ID
func (c *Client) GetSID() string {
	c.sidMu.RLock()
	defer c.sidMu.RUnlock()
	return c.sid
}

func (c *Client) setSID(sid string) {
	c.sidMu.Lock()
	defer c.sidMu.Unlock()
	c.sid = sid
}

func (c *Client) clearSID() {
	c.sidMu.Lock()
	defer c.sidMu.Unlock()
	c.sid = ""
}

// IsLoggedIn returns true if the client has a valid session
func (c *Client) IsLoggedIn() bool {
	return c.GetSID() != ""
}

// getAPIPath returns the API path and highest version for the given API name
func (c *Client) getAPIPath(ctx context.Context, apiName string) (string, int, error) {
	c.apiInfoMu.RLock()
	info, ok := c.apiInfo[apiName]
	c.apiInfoMu.RUnlock()

	if ok {
		return info.Path, info.MaxVersion, nil
	}

	// Fetch API info if not cached
	if err := c.QueryAPIInfo(ctx, apiName); err != nil {
		return "", 0, err
	}

	c.apiInfoMu.RLock()
	info, ok = c.apiInfo[apiName]
	c.apiInfoMu.RUnlock()

	if !ok {
		return "", 0, &APIError{Code: ErrAPINotExists, Message: fmt.Sprintf("api %s not found", apiName)}
	}

	return info.Path, info.MaxVersion, nil
}

// buildURL builds the full URL for an API request
func (c *Client) buildURL(path string, params url.Values) string {
	if sid := c.GetSID(); sid != "" {
		params.Set("_sid", sid)
	}
	return fmt.Sprintf("%s/webapi/%s?%s", c.baseURL, path, params.Encode())
}

// doRequest performs an HTTP request with the short-timeout client
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", redactURL(err))
	}

	return resp, nil
}

// doTransferRequest performs a prepared request with the transfer client
func (c *Client) doTransferRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.transferClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", redactURL(err))
	}
	return resp, nil
}

// redactURL drops the query string from a transport error. The query
// carries the session id and must not reach logs or the host.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, parseErr := url.Parse(urlErr.URL)
	if parseErr != nil {
		urlErr.URL = ""
		return err
	}
	u.RawQuery = ""
	u.User = nil
	urlErr.URL = u.String()
	return err
}

// doAPIRequest performs an API request and parses the JSON response
func (c *Client) doAPIRequest(ctx context.Context, path string, params url.Values) (*Response, error) {
	urlStr := c.buildURL(path, params)

	resp, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// decodeResponse parses a JSON API response and turns success=false into *APIError
func decodeResponse(resp *http.Response) (*Response, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !apiResp.Success {
		code := 0
		if apiResp.Error != nil {
			code = apiResp.Error.Code
		}
		return nil, &APIError{Code: code, Message: GetErrorMessage(code)}
	}

	return &apiResp, nil
}

// QueryAPIInfo queries available API information
func (c *Client) QueryAPIInfo(ctx context.Context, apis ...string) error {
	query := "all"
	if len(apis) > 0 {
		query = strings.Join(apis, ",")
	}

	params := url.Values{
		"api":     {"SYNO.API.Info"},
		"version": {"1"},
		"method":  {"query"},
		"query":   {query},
	}

	urlStr := fmt.Sprintf("%s/webapi/%s?%s", c.baseURL, apiInfoPath, params.Encode())

	resp, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp struct {
		Success bool                   `json:"success"`
		Data    map[string]APIEndpoint `json:"data"`
		Error   *ErrorInfo             `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode api info response: %w", err)
	}

	if !apiResp.Success {
		code := 0
		if apiResp.Error != nil {
			code = apiResp.Error.Code
		}
		return &APIError{Code: code, Message: GetErrorMessage(code)}
	}

	// Cache the API info
	c.apiInfoMu.Lock()
	for name, info := range apiResp.Data {
		c.apiInfo[name] = info
	}
	c.apiInfoMu.Unlock()

	return nil
}

// Login authenticates with the Synology NAS, passing the one-time code when set.
// Credentials go in a form body so they never appear in a URL.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"api":     {"SYNO.API.Auth"},
		"version": {fmt.Sprint(c.authVersion)},
		"method":  {"login"},
		"account": {c.username},
		"passwd":  {c.password},
		"session": {sessionName},
		"format":  {"sid"},
	}
	if c.otpCode != "" {
		form.Set("otp_code", c.otpCode)
	}

	urlStr := fmt.Sprintf("%s/webapi/%s", c.baseURL, authPath)

	c.logger.Debug("logging in",
		zap.String("url", c.baseURL),
		zap.String("username", c.username),
		zap.Int("auth_version", c.authVersion),
		zap.Bool("otp", c.otpCode != ""))

	resp, err := c.doRequest(ctx, http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	var loginResp struct {
		Success bool `json:"success"`
		Data    struct {
			SID string `json:"sid"`
		} `json:"data"`
		Error *ErrorInfo `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	if !loginResp.Success {
		code := 0
		if loginResp.Error != nil {
			code = loginResp.Error.Code
		}
		return &APIError{Code: code, Message: getAuthErrorMessage(code)}
	}

	c.setSID(loginResp.Data.SID)
	return nil
}

// Logout terminates the current session
func (c *Client) Logout(ctx context.Context) error {
	if !c.IsLoggedIn() {
		return nil
	}

	params := url.Values{
		"api":     {"SYNO.API.Auth"},
		"version": {"1"},
		"method":  {"logout"},
		"session": {sessionName},
	}

	resp, err := c.doRequest(ctx, http.MethodGet, c.buildURL(authPath, params), nil)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	c.clearSID()

	if _, err := decodeResponse(resp); err != nil {
		return err
	}
	return nil
}
