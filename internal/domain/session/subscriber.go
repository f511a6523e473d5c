package session

import (
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// subscriber forwards store changes for one session to the remote store.
type subscriber struct {
	sessionID string
	sub       *vfs.Subscription
	done      chan struct{}
}

func (c *Controller) attach(sessionID string) *subscriber {
	s := &subscriber{
		sessionID: sessionID,
		sub:       c.store.Subscribe(),
		done:      make(chan struct{}),
	}
	go c.watch(s)
	return s
}

func (s *subscriber) stop() {
	s.sub.Close()
	<-s.done
}

func (c *Controller) watch(s *subscriber) {
	defer close(s.done)
	for batch := range s.sub.Events() {
		for _, event := range batch {
			c.handleEvent(s.sessionID, event)
		}
	}
}

// handleEvent dispatches exactly one remote call for a change directly under
// the root scope.
func (c *Controller) handleEvent(sessionID string, event vfs.FileChangeEvent) {
	if path.Dir(event.URI) != c.cfg.Root {
		return
	}
	name := path.Base(event.URI)
	kind := event.Kind.String()

	switch event.Kind {
	case vfs.Deleted:
		c.dispatch.Dispatch(name, c.upload(kind, sessionID, name, func(ctx context.Context) (string, error) {
			return c.remote.DeleteFile(ctx, sessionID, name)
		}))

	case vfs.Created, vfs.Changed:
		send := c.remote.UpdateFile
		if event.Kind == vfs.Created {
			send = c.remote.CreateFile
		}
		c.dispatch.Dispatch(name, func() {
			// Read at dispatch time, not when the event arrived
			data, err := c.store.ReadFile(event.URI)
			if err != nil {
				c.metrics.RecordSyncEvent(kind, "skipped")
				c.logger.Warn("Skipped sync of unreadable file",
					zap.String("session_id", sessionID),
					zap.String("file", name),
					zap.String("kind", kind),
					zap.Error(err),
				)
				return
			}
			content := string(data)
			c.upload(kind, sessionID, name, func(ctx context.Context) (string, error) {
				return send(ctx, sessionID, name, content)
			})()
		})
	}
}

func (c *Controller) upload(kind, sessionID, name string, call func(ctx context.Context) (string, error)) func() {
	return func() {
		if _, err := call(context.Background()); err != nil {
			c.uploadErrs.Add(1)
			c.metrics.RecordSyncEvent(kind, "failed")
			c.logger.Warn("Failed to sync file change",
				zap.String("session_id", sessionID),
				zap.String("file", name),
				zap.String("kind", kind),
				zap.Error(err),
			)
			return
		}
		c.uploads.Add(1)
		c.metrics.RecordSyncEvent(kind, "success")
	}
}
