// Package accountapi talks to the account REST API of an identity server
// realm on behalf of a signed-in user.
package accountapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/carlmjohnson/requests"
	"golang.org/x/oauth2"
)

const maxErrorBody = 512

// StatusError is returned for non-2xx responses that have no sentinel
// mapping.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Description is the text shown to the user in alerts.
func (e *StatusError) Description() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.Code)
}

type Client struct {
	base   *http.Client
	traced bool
}

type Option func(*Client)

// WithHTTPClient sets the client whose transport carries the requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.base = c }
}

// WithTracing records every request as an X-Ray subsegment when the
// calling context carries a segment.
func WithTracing() Option {
	return func(cl *Client) { cl.traced = true }
}

func NewClient(opts ...Option) *Client {
	c := &Client{base: http.DefaultClient}
	for _, o := range opts {
		o(c)
	}
	if c.traced {
		traced := *c.base
		traced.Transport = segmentTransport{base: transportOf(c.base)}
		c.base = &traced
	}
	return c
}

// segmentTransport traces requests whose context carries an X-Ray segment.
// Background loads started outside a request pass straight through.
type segmentTransport struct {
	base http.RoundTripper
}

func (t segmentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if xray.GetSegment(req.Context()) == nil {
		return t.base.RoundTrip(req)
	}
	return xray.RoundTripper(t.base).RoundTrip(req)
}

func transportOf(c *http.Client) http.RoundTripper {
	if c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}

var _ ports.ApplicationsAPI = (*Client)(nil)

func (c *Client) FetchApplications(ctx context.Context, env domain.Environment) ([]domain.Client, error) {
	u, err := applicationsURL(env)
	if err != nil {
		return nil, err
	}
	var clients []domain.Client
	err = c.request(ctx, env, u).
		Accept("application/json").
		ToJSON(&clients).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch applications: %w", err)
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	return clients, nil
}

func (c *Client) DeleteConsent(ctx context.Context, env domain.Environment, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("client id: %w", domain.ErrInvalidInput)
	}
	u, err := applicationsURL(env, url.PathEscape(clientID), "consent")
	if err != nil {
		return err
	}
	if err := c.request(ctx, env, u).Method(http.MethodDelete).Fetch(ctx); err != nil {
		return fmt.Errorf("delete consent for %s: %w", clientID, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, env domain.Environment, u string) *requests.Builder {
	hc := c.base
	if env.Token != nil {
		hc = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.base), env.Token)
	}
	b := requests.URL(u).
		Client(hc).
		AddValidator(checkStatus)
	if env.Locale != "" {
		b.Header("Accept-Language", env.Locale)
	}
	return b
}

func applicationsURL(env domain.Environment, elem ...string) (string, error) {
	if env.ServerBaseURL == "" || env.Realm == "" {
		return "", fmt.Errorf("account server base url and realm: %w", domain.ErrInvalidInput)
	}
	parts := append([]string{"realms", url.PathEscape(env.Realm), "account", "applications"}, elem...)
	u, err := url.JoinPath(env.ServerBaseURL, parts...)
	if err != nil {
		return "", fmt.Errorf("account server base url %q: %w", env.ServerBaseURL, domain.ErrInvalidInput)
	}
	return u, nil
}

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("status %d: %w", res.StatusCode, domain.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("status %d: %w", res.StatusCode, domain.ErrNotFound)
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &StatusError{
		Method: res.Request.Method,
		URL:    res.Request.URL.Redacted(),
		Code:   res.StatusCode,
		Body:   errorText(body),
	}
}

// errorText pulls the message out of the server's JSON error body and falls
// back to the trimmed raw text.
func errorText(body []byte) string {
	var e struct {
		Error            string `json:"error"`
		ErrorMessage     string `json:"errorMessage"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		for _, s := range []string{e.ErrorMessage, e.ErrorDescription, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
