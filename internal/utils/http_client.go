package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/net/proxy"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// HTTPClient implements models.Fetcher on top of resty
type HTTPClient struct {
	client    *resty.Client
	stream    *resty.Client
	transport *http.Transport
	logger    zerolog.Logger
}

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout         time.Duration
	StreamTimeout   time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	ProxyURL        string
	UserAgent       string
	TLSInsecure     bool
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 10,
	}

	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err == nil {
			switch proxyURL.Scheme {
			case "http", "https":
				transport.Proxy = http.ProxyURL(proxyURL)
			case "socks5":
				dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
				if err == nil {
					if cd, ok := dialer.(proxy.ContextDialer); ok {
						transport.Proxy = nil
						transport.DialContext = cd.DialContext
					}
				}
			}
		}
	}

	if config.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	newClient := func(timeout time.Duration) *resty.Client {
		return resty.NewWithClient(&http.Client{Transport: transport, Timeout: timeout}).
			SetHeader("User-Agent", userAgent).
			SetRetryCount(0)
	}

	return &HTTPClient{
		client:    newClient(config.Timeout),
		stream:    newClient(config.StreamTimeout),
		transport: transport,
		logger:    zerolog.New(os.Stderr).With().Timestamp().Str("component", "http_client").Logger(),
	}
}

// SetLogger sets the logger for the HTTP client
func (c *HTTPClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger.With().Str("component", "http_client").Logger()
}

// GetJSON performs a GET request and decodes the JSON body
func (c *HTTPClient) GetJSON(ctx context.Context, endpoint string, params, headers map[string]string) (any, error) {
	resp, err := c.get(ctx, c.client, endpoint, params, headers)
	if err != nil {
		return nil, err
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON from %s (%d bytes)", models.ErrTransport, endpoint, len(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", models.ErrTransport, endpoint, err)
	}
	return tree, nil
}

// GetPage fetches an HTML page and the cookies it sets
func (c *HTTPClient) GetPage(ctx context.Context, pageURL string, headers map[string]string) (*models.Page, error) {
	resp, err := c.get(ctx, c.client, pageURL, nil, headers)
	if err != nil {
		return nil, err
	}
	return &models.Page{
		URL:     pageURL,
		Body:    resp.String(),
		Cookies: resp.Cookies(),
	}, nil
}

// Stream opens a GET request without buffering the body
func (c *HTTPClient) Stream(ctx context.Context, fileURL string, headers map[string]string) (io.ReadCloser, error) {
	c.logger.Debug().Str("url", fileURL).Msg("Opening stream")

	resp, err := c.stream.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(true).
		Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", models.ErrTransport, fileURL, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("%w: GET %s: status %d", models.ErrTransport, fileURL, resp.StatusCode())
	}
	return body, nil
}

func (c *HTTPClient) get(ctx context.Context, client *resty.Client, endpoint string, params, headers map[string]string) (*resty.Response, error) {
	c.logger.Debug().
		Str("method", http.MethodGet).
		Str("url", endpoint).
		Int("params", len(params)).
		Msg("Making HTTP request")

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeaders(headers).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", models.ErrTransport, endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: GET %s: status %d", models.ErrTransport, endpoint, resp.StatusCode())
	}

	c.logger.Debug().
		Str("url", endpoint).
		Int("status", resp.StatusCode()).
		Dur("elapsed", resp.Time()).
		Msg("HTTP request finished")
	return resp, nil
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// ProxyURL builds a proxy URL from its parts; an empty host yields ""
func ProxyURL(scheme, host string, port int, username, password string) string {
	if host == "" {
		return ""
	}
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", host, port)}
	if username != "" {
		u.User = url.UserPassword(username, password)
	}
	return u.String()
}
