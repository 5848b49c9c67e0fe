// Package api implements the HTTP gateway and the typed incident client for
// the remote incident-management API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngabriel/incident-watch/internal/errs"
	"github.com/ngabriel/incident-watch/internal/session"
)

// Fallback messages for failures that carry no usable server message.
const (
	msgConnection = "connection to server failed"
	msgGeneric    = "request failed"
)

// payload is a decoded response body. Exactly one of JSON and Raw is set for
// a body-carrying response; both are nil for 204.
type payload struct {
	Status int
	JSON   json.RawMessage // set when the content type declared JSON
	Raw    []byte          // set otherwise
}

// decodeInto unmarshals the JSON payload into v.
func (p payload) decodeInto(v any) error {
	if err := json.Unmarshal(p.JSON, v); err != nil {
		return errs.WithStatus(p.Status, msgGeneric, errs.ErrDecode)
	}
	return nil
}

// Gateway issues requests against a fixed base origin, attaches the bearer
// token when one is held, and folds every outcome into (payload, error).
// It never mutates the session: a 401/403 comes back as an error and the
// caller decides whether the session dies.
type Gateway struct {
	base string
	http *http.Client
	sess *session.Store
	log  *zap.Logger
}

// NewGateway builds a Gateway. A zero timeout leaves the transport's default
// behavior in place.
func NewGateway(baseURL string, timeout time.Duration, sess *session.Store, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sess: sess,
		log:  log,
	}
}

// do performs one request. contentType "" means no explicit header: either
// there is no body, or the body is multipart and the writer already chose the
// boundary-carrying type (pass that one through contentType instead).
func (g *Gateway) do(ctx context.Context, method, path string, body []byte, contentType string) (payload, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, rd)
	if err != nil {
		return payload{}, errs.WithStatus(500, msgConnection, errs.ErrConnection)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := g.sess.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		g.log.Debug("transport failure",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return payload{}, errs.WithStatus(500, msgConnection, errs.ErrConnection)
	}
	defer resp.Body.Close()

	return g.decode(resp, method, path)
}

// decode applies the body-decoding ladder: 204 short-circuits, a JSON content
// type gets parsed (using the server's detail field on failure), anything
// else is kept raw.
func (g *Gateway) decode(resp *http.Response, method, path string) (payload, error) {
	if resp.StatusCode == http.StatusNoContent {
		return payload{Status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return payload{}, errs.WithStatus(500, msgConnection, errs.ErrConnection)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		if !ok {
			return payload{}, errs.WithStatus(resp.StatusCode, detailOf(body), sentinelFor(resp.StatusCode))
		}
		return payload{Status: resp.StatusCode, JSON: body}, nil
	}

	if !ok {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = msgGeneric
		}
		g.log.Debug("non-JSON error response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return payload{}, errs.WithStatus(resp.StatusCode, msg, sentinelFor(resp.StatusCode))
	}
	return payload{Status: resp.StatusCode, Raw: body}, nil
}

// detailOf pulls the server's message field out of a JSON error body.
func detailOf(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return msgGeneric
}

// sentinelFor maps auth and not-found statuses onto sentinels for errors.Is.
func sentinelFor(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	}
	return nil
}
