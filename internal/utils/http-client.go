package utils

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

type HTTPClientConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // also bounds the wait for response headers
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	Headers        map[string]string
	RateLimit      float64 // requests per second, 0 means unlimited
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type CheckerHTTPClient struct {
	client  *http.Client
	config  HTTPClientConfig
	limiter *rate.Limiter
}

func NewHTTPClient(cfg HTTPClientConfig) *CheckerHTTPClient {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true, // byte offsets must match the raw body
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if proxyURL.User == nil && cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	c := &CheckerHTTPClient{
		// no overall client timeout: large bodies are bounded by the per-read timer instead
		client: &http.Client{Transport: transport},
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

func (c *CheckerHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}
