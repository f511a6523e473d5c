// Package resolver turns deep links and prompted input into session loads.
package resolver

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/types"
)

// ErrOperationCanceled is returned by a Prompter when the user dismissed it.
var ErrOperationCanceled = errors.New("operation canceled")

var loadSessionPattern = regexp.MustCompile(`(?i)/planning\.domains/load_session/(\w+)`)

// Loader loads a session by id.
type Loader interface {
	Load(ctx context.Context, sessionID string) (*types.LoadReport, error)
}

// Prompter asks the user for a session id.
type Prompter interface {
	PromptSessionID(ctx context.Context) (string, error)
}

// Focuser brings the session view forward.
type Focuser interface {
	Focus()
}

// Resolver extracts session ids and triggers loads.
type Resolver struct {
	loader   Loader
	prompter Prompter
	focus    Focuser
	logger   *logging.Logger
}

// New creates a resolver. prompter may be nil, in which case an empty id
// never loads anything.
func New(loader Loader, prompter Prompter) *Resolver {
	return &Resolver{
		loader:   loader,
		prompter: prompter,
		logger:   logging.NewNop(),
	}
}

// WithFocus sets the view notified after a deep link was handled.
func (r *Resolver) WithFocus(f Focuser) *Resolver {
	r.focus = f
	return r
}

// WithLogger attaches a logger.
func (r *Resolver) WithLogger(logger *logging.Logger) *Resolver {
	if logger != nil {
		r.logger = logger.Named("resolver")
	}
	return r
}

// Match extracts the session id from a deep-link URI. The URI's path is
// matched first, then the raw string.
func Match(uri string) (string, bool) {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		if m := loadSessionPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1], true
		}
	}
	if m := loadSessionPattern.FindStringSubmatch(uri); m != nil {
		return m[1], true
	}
	return "", false
}

// Resolve loads the session a deep link points to. A URI that is not a
// session link yields ("", false, nil).
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, bool, error) {
	sessionID, ok := Match(uri)
	if !ok {
		r.logger.Debug("URI is not a session link", zap.String("uri", uri))
		return "", false, nil
	}

	_, err := r.LoadSession(ctx, sessionID)
	if r.focus != nil {
		r.focus.Focus()
	}
	return sessionID, true, err
}

// LoadSession loads sessionID, prompting for it when empty. A canceled or
// empty prompt returns ("", nil) without loading.
func (r *Resolver) LoadSession(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		if r.prompter == nil {
			return "", nil
		}
		id, err := r.prompter.PromptSessionID(ctx)
		if errors.Is(err, ErrOperationCanceled) {
			r.logger.Debug("Session prompt canceled")
			return "", nil
		}
		if err != nil {
			return "", err
		}
		sessionID = strings.TrimSpace(id)
		if sessionID == "" {
			return "", nil
		}
	}

	if _, err := r.loader.Load(ctx, sessionID); err != nil {
		return sessionID, err
	}
	return sessionID, nil
}
