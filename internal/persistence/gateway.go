package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"fotochallenge-api/pkg/logger"
)

// mirrorTimeout bounds each asynchronous remote write
const mirrorTimeout = 10 * time.Second

// Gateway coordinates the dual-write policy: every save hits the local
// cache synchronously first, so a reload before any network round-trip
// still sees the change, then mirrors to the remote store asynchronously.
// Remote failures are logged and never block the local path. The gateway
// holds no copy of the data beyond transient write buffers.
type Gateway struct {
	local  *LocalBackend
	remote Backend // nil in offline/dev deployments
	log    *logger.Logger

	mirrors sync.WaitGroup
}

// NewGateway creates a gateway. remote may be nil for local-only operation.
func NewGateway(local *LocalBackend, remote Backend, log *logger.Logger) *Gateway {
	return &Gateway{local: local, remote: remote, log: log}
}

// HasRemote reports whether a remote mirror is configured
func (g *Gateway) HasRemote() bool {
	return g.remote != nil
}

// Save persists a collection snapshot. The local write is synchronous and
// its result is the caller's result; quota exhaustion comes back as
// ErrQuotaExceeded so the caller can surface the recovery action. The
// remote mirror is fire-and-forget.
func (g *Gateway) Save(ctx context.Context, collection string, value interface{}) error {
	localErr := g.local.Save(ctx, collection, value)
	if localErr != nil {
		if errors.Is(localErr, ErrQuotaExceeded) {
			g.log.WithField("collection", collection).Warn("Local cache quota exceeded")
		} else {
			g.log.WithError(localErr).WithField("collection", collection).Error("Local save failed")
		}
	}

	if g.remote != nil {
		g.mirrors.Add(1)
		go func() {
			defer g.mirrors.Done()
			mirrorCtx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			defer cancel()
			if err := g.remote.Save(mirrorCtx, collection, value); err != nil {
				g.log.WithError(err).WithField("collection", collection).Warn("Remote mirror failed")
			}
		}()
	}

	return localErr
}

// Load reads a collection snapshot, preferring the remote store when one
// is configured and falling back to the local cache on remote failure.
// ErrNotFound means no backend holds the collection.
func (g *Gateway) Load(ctx context.Context, collection string, out interface{}) error {
	if g.remote != nil {
		err := g.remote.Load(ctx, collection, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			g.log.WithError(err).WithField("collection", collection).Warn("Remote load failed, falling back to local cache")
		}
	}
	return g.local.Load(ctx, collection, out)
}

// Wipe clears the local cache. This is the explicit, user-driven recovery
// path for quota exhaustion; the remote store is left untouched.
func (g *Gateway) Wipe(ctx context.Context) error {
	if err := g.local.Wipe(ctx); err != nil {
		return err
	}
	g.log.Info("Local cache wiped")
	return nil
}

// remoteDropper is implemented by backends that can remove mirrored snapshots
type remoteDropper interface {
	Drop(ctx context.Context, collections ...string) error
}

// WipeRemote removes every mirrored snapshot from the remote store, so a
// later bootstrap does not resurrect wiped data from the mirror. A no-op
// when no remote is configured.
func (g *Gateway) WipeRemote(ctx context.Context) error {
	d, ok := g.remote.(remoteDropper)
	if !ok {
		return nil
	}
	if err := d.Drop(ctx, Collections...); err != nil {
		return err
	}
	g.log.Info("Remote mirror wiped")
	return nil
}

// Flush waits for in-flight remote mirrors to settle. Called during
// graceful shutdown so the last writes are not lost with the process.
func (g *Gateway) Flush() {
	g.mirrors.Wait()
}
