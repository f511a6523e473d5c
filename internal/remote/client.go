package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/types"
)

const (
	sessionPath = "/session/{sessionId}"
	filePath    = "/session/{sessionId}/{fileName}"
)

// Client accesses the remote session store. It holds no session state and
// is safe for concurrent use. Every operation makes a single attempt unless
// the transport was configured with retries.
type Client struct {
	http    *httpclient.Client
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewClient creates a session store client over the given transport.
func NewClient(transport *httpclient.Client) *Client {
	return &Client{
		http:   transport,
		logger: logging.NewNop(),
	}
}

// WithMetrics attaches a metrics collector.
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// WithLogger attaches a logger.
func (c *Client) WithLogger(logger *logging.Logger) *Client {
	if logger != nil {
		c.logger = logger.Named("remote")
	}
	return c
}

// sessionResponse accepts both the {"result": {...}} envelope used by the
// store and a bare session object.
type sessionResponse struct {
	Result    *types.Session `json:"result"`
	SessionID string         `json:"sessionId"`
	Files     []string       `json:"files"`
}

// FetchSession returns the session id and its ordered file names.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*types.Session, error) {
	resp, err := c.do(ctx, OpFetchSession, sessionID, "", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("sessionId", sessionID).
			SetHeader("Accept", "application/json").
			Get(sessionPath)
	}, exactlyOK)
	if err != nil {
		return nil, err
	}

	var body sessionResponse
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		return nil, &Error{
			Op:        OpFetchSession,
			SessionID: sessionID,
			Kind:      ErrRemoteRejected,
			Err:       fmt.Errorf("malformed session body: %w", err),
		}
	}

	session := body.Result
	if session == nil {
		session = &types.Session{ID: body.SessionID, Files: body.Files}
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	if session.Files == nil {
		session.Files = []string{}
	}
	return session, nil
}

// FetchFileContent returns the text of one session file.
func (c *Client) FetchFileContent(ctx context.Context, sessionID, fileName string) (string, error) {
	resp, err := c.do(ctx, OpFetchFile, sessionID, fileName, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParams(map[string]string{"sessionId": sessionID, "fileName": fileName}).
			Get(filePath)
	}, exactlyOK)
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// CreateFile uploads a new session file.
func (c *Client) CreateFile(ctx context.Context, sessionID, fileName, content string) (string, error) {
	return c.write(ctx, OpCreateFile, http.MethodPost, sessionID, fileName, &content)
}

// UpdateFile replaces the content of a session file.
func (c *Client) UpdateFile(ctx context.Context, sessionID, fileName, content string) (string, error) {
	return c.write(ctx, OpUpdateFile, http.MethodPut, sessionID, fileName, &content)
}

// DeleteFile removes a session file.
func (c *Client) DeleteFile(ctx context.Context, sessionID, fileName string) (string, error) {
	return c.write(ctx, OpDeleteFile, http.MethodDelete, sessionID, fileName, nil)
}

func (c *Client) write(ctx context.Context, op, method, sessionID, fileName string, content *string) (string, error) {
	resp, err := c.do(ctx, op, sessionID, fileName, func(req *resty.Request) (*resty.Response, error) {
		req.SetPathParams(map[string]string{"sessionId": sessionID, "fileName": fileName})
		if content != nil {
			req.SetHeader("Content-Type", "text/plain; charset=utf-8").SetBody(*content)
		}
		return req.Execute(method, filePath)
	}, writeAccepted)
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// exactlyOK is the read acceptance rule.
func exactlyOK(status int) bool {
	return status == http.StatusOK
}

// writeAccepted tolerates deployments answering writes with 201 or 204.
func writeAccepted(status int) bool {
	return status >= http.StatusOK && status <= http.StatusNoContent
}

func (c *Client) do(
	ctx context.Context,
	op, sessionID, fileName string,
	send func(req *resty.Request) (*resty.Response, error),
	accept func(status int) bool,
) (*resty.Response, error) {
	timer := monitoring.NewTimer(c.metrics, op)

	resp, err := c.http.Execute(ctx, send)
	if err != nil {
		timer.Stop("unavailable")
		c.logger.Debug("Remote call failed",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.String("file", fileName),
			zap.Error(err),
		)
		return nil, &Error{Op: op, SessionID: sessionID, FileName: fileName, Kind: ErrRemoteUnavailable, Err: err}
	}

	if !accept(resp.StatusCode()) {
		timer.Stop("rejected")
		c.logger.Debug("Remote call rejected",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.String("file", fileName),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, &Error{Op: op, SessionID: sessionID, FileName: fileName, StatusCode: resp.StatusCode(), Kind: ErrRemoteRejected}
	}

	timer.Stop("success")
	return resp, nil
}
