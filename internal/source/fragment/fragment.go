// Package fragment implements the status source against fragment.com
// number pages over plain HTTP.
package fragment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"fragwatch/internal/source"
	logx "fragwatch/pkg/logx"
)

const defaultBaseURL = "https://fragment.com"

// Page signals, checked in precedence order: restricted wins over
// not-found, not-found wins over the default available.
const (
	signalRestricted = "This phone number is restricted on Telegram"
	signalNotFound   = "Number not found"
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client checks one number per call against fragment.com.
//
// A Client owns one underlying HTTP session and is treated as
// single-session by the checker; Factory hands out independent Clients
// when a batch runs with concurrency > 1.
type Client struct {
	cfg  Config
	http *resty.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if strings.TrimSpace(cfg.UserAgent) != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{cfg: cfg, http: rc, log: log}
}

// Check fetches the number page and classifies its content.
func (c *Client) Check(ctx context.Context, id string) (source.Status, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/number/" + id)
	if err != nil {
		if ctx.Err() != nil {
			return source.StatusError, ctx.Err()
		}
		return source.StatusError, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}

	code := resp.StatusCode()
	body := string(resp.Body())

	// Precedence: restricted > not found > available.
	if strings.Contains(body, signalRestricted) {
		return source.StatusRestricted, nil
	}
	if code == http.StatusNotFound || strings.Contains(body, signalNotFound) {
		return source.StatusNotFound, nil
	}
	if code >= 500 {
		return source.StatusError, fmt.Errorf("%w: status %d", source.ErrUnavailable, code)
	}
	return source.StatusAvailable, nil
}

// Factory yields one fresh Client per checker worker.
type Factory struct {
	Cfg Config
	Log logx.Logger
}

func (f Factory) NewSession() (source.Source, error) {
	return New(f.Cfg, f.Log), nil
}
