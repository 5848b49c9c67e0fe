package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ngabriel/incident-watch/internal/errs"
	"github.com/ngabriel/incident-watch/internal/model"
	"github.com/ngabriel/incident-watch/internal/session"
)

// Fixed API paths, relative to the base origin.
const (
	pathLogin          = "/auth/login"
	pathAllIncidents   = "/incidents/all-incidents"
	pathUpdateStatus   = "/incidents/update-status/"
	pathReportCEO      = "/incidents/report-ceo"
	pathListReports    = "/incidents/list-reports"
	pathDownloadReport = "/incidents/download-report/"
)

// LoginResponse is the server's answer to a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserName    string `json:"user_name"`
}

// Client exposes the typed incident operations. Every operation delegates to
// the gateway; only Login touches the session, and only on success.
type Client struct {
	gw   *Gateway
	sess *session.Store
	log  *zap.Logger
}

// New builds a Client over its gateway and session store.
func New(gw *Gateway, sess *session.Store, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{gw: gw, sess: sess, log: log}
}

// Login submits credentials as a multipart form and, on success, stores the
// session. The display name falls back to the submitted username when the
// server omits one. A failed login leaves the session untouched.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("username", username)
	_ = w.WriteField("password", password)
	if err := w.Close(); err != nil {
		return LoginResponse{}, err
	}

	p, err := c.gw.do(ctx, http.MethodPost, pathLogin, buf.Bytes(), w.FormDataContentType())
	if err != nil {
		return LoginResponse{}, err
	}
	var lr LoginResponse
	if err := p.decodeInto(&lr); err != nil {
		return LoginResponse{}, err
	}
	name := lr.UserName
	if name == "" {
		name = username
	}
	if err := c.sess.SetSession(lr.AccessToken, name); err != nil {
		c.log.Warn("session not persisted", zap.Error(err))
	}
	return lr, nil
}

// FetchAllIncidents retrieves the full collection; there is no server-side
// paging or filtering, all narrowing happens on the retrieved set.
func (c *Client) FetchAllIncidents(ctx context.Context) ([]model.Incident, error) {
	p, err := c.gw.do(ctx, http.MethodGet, pathAllIncidents, nil, "")
	if err != nil {
		return nil, err
	}
	var list []model.Incident
	if err := p.decodeInto(&list); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateIncidentStatus patches one incident's status and returns the updated
// record. No local legality check: the server owns the transition rules.
func (c *Client) UpdateIncidentStatus(ctx context.Context, id string, status model.Status) (model.Incident, error) {
	body, err := json.Marshal(struct {
		Status model.Status `json:"status"`
	}{status})
	if err != nil {
		return model.Incident{}, err
	}
	p, err := c.gw.do(ctx, http.MethodPatch, pathUpdateStatus+url.PathEscape(id), body, "application/json")
	if err != nil {
		return model.Incident{}, err
	}
	var inc model.Incident
	if err := p.decodeInto(&inc); err != nil {
		return model.Incident{}, err
	}
	return inc, nil
}

// ListGeneratedReports returns the filenames of reports already generated.
// The server wraps the list in a {"reports": [...]} envelope; a mismatched
// envelope maps to a fixed message with the original status preserved.
func (c *Client) ListGeneratedReports(ctx context.Context) ([]string, error) {
	p, err := c.gw.do(ctx, http.MethodGet, pathListReports, nil, "")
	if err != nil {
		return nil, err
	}
	var env struct {
		Reports []string `json:"reports"`
	}
	if err := json.Unmarshal(p.JSON, &env); err != nil || env.Reports == nil {
		return nil, errs.WithStatus(p.Status, "cannot list reports", errs.ErrDecode)
	}
	return env.Reports, nil
}

// GenerateReport asks the server to build a PDF over [start, end] (ISO date
// strings) and returns the raw bytes. The response does not carry a JSON
// content type, so this path always treats the body as binary.
func (c *Client) GenerateReport(ctx context.Context, startDate, endDate string) ([]byte, error) {
	body, err := json.Marshal(struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}{startDate, endDate})
	if err != nil {
		return nil, err
	}
	return c.gw.doBinary(ctx, http.MethodPost, pathReportCEO, body, "application/json")
}

// DownloadReport fetches an existing report by filename.
func (c *Client) DownloadReport(ctx context.Context, filename string) ([]byte, error) {
	return c.gw.doBinary(ctx, http.MethodGet, pathDownloadReport+url.PathEscape(filename), nil, "")
}

// ReportFilename derives the local filename for a generated report from its
// date range, matching the names the server itself uses.
func ReportFilename(startDate, endDate string) string {
	return fmt.Sprintf("rapport_ceo_incidents_%s_to_%s.pdf", startDate, endDate)
}

// doBinary issues a request whose success body is opaque bytes. Errors still
// get the JSON detail treatment when the server sends one.
func (g *Gateway) doBinary(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, rd)
	if err != nil {
		return nil, errs.WithStatus(500, msgConnection, errs.ErrConnection)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := g.sess.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, errs.WithStatus(500, msgConnection, errs.ErrConnection)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.WithStatus(500, msgConnection, errs.ErrConnection)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.WithStatus(resp.StatusCode, detailOf(data), sentinelFor(resp.StatusCode))
	}
	return data, nil
}
