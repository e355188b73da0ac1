// Package worker mirrors committed gift changes to a peer instance. Events
// arrive over AMQP; a periodic reconcile pass backstops lost messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"darky/internal/core"
	"darky/internal/event"
	"darky/internal/storage"
)

// Upper bound on concurrent pushes during a reconcile pass.
const reconcileConcurrency = 4

// Mirror is the subset of the remote client the worker pushes through
type Mirror interface {
	Gifts(ctx context.Context, year int) ([]core.Gift, error)
	CreateGift(ctx context.Context, g core.Gift) error
	UpdateGift(ctx context.Context, g core.Gift) error
	DeleteGift(ctx context.Context, id string) error
}

// StateLoader reads the local persisted state, used by the reconcile pass
type StateLoader interface {
	Load(ctx context.Context) storage.State
}

// SyncWorker applies gift events to the peer
type SyncWorker struct {
	mirror    Mirror
	local     StateLoader
	batchSize int
}

func NewSyncWorker(mirror Mirror, local StateLoader, batchSize int) *SyncWorker {
	return &SyncWorker{
		mirror:    mirror,
		local:     local,
		batchSize: batchSize,
	}
}

// HandleGiftEvent processes a single gift event from AMQP
func (w *SyncWorker) HandleGiftEvent(ctx context.Context, e *event.GiftEvent) error {
	slog.InfoContext(ctx, "Processing gift event",
		"action", e.Action,
		"gift_id", e.Gift.ID)

	switch e.Action {
	case "created", "restored":
		if err := w.mirror.CreateGift(ctx, e.Gift); err != nil {
			return fmt.Errorf("mirror create %s: %w", e.Gift.ID, err)
		}
	case "updated":
		if err := w.mirror.UpdateGift(ctx, e.Gift); err != nil {
			return fmt.Errorf("mirror update %s: %w", e.Gift.ID, err)
		}
	case "deleted":
		if err := w.mirror.DeleteGift(ctx, e.Gift.ID); err != nil {
			return fmt.Errorf("mirror delete %s: %w", e.Gift.ID, err)
		}
	default:
		slog.WarnContext(ctx, "Skipping event with unknown action", "action", e.Action)
	}

	return nil
}

// Reconcile pushes local gifts the peer does not know about. It is a
// backup mechanism for lost or unrouted AMQP messages; it never deletes
// on the peer, since absence locally may just mean an undone delete.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	if w.local == nil {
		return nil
	}

	remoteGifts, err := w.mirror.Gifts(ctx, 0)
	if err != nil {
		return fmt.Errorf("fetch peer gifts: %w", err)
	}
	known := make(map[string]bool, len(remoteGifts))
	for _, g := range remoteGifts {
		known[g.ID] = true
	}

	local := w.local.Load(ctx)

	var missing []core.Gift
	for _, g := range local.Gifts {
		if known[g.ID] {
			continue
		}
		missing = append(missing, g)
		if w.batchSize > 0 && len(missing) >= w.batchSize {
			break
		}
	}

	var pushed, errors atomic.Int64
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(reconcileConcurrency)
	for _, g := range missing {
		grp.Go(func() error {
			if err := w.mirror.CreateGift(grpCtx, g); err != nil {
				slog.ErrorContext(grpCtx, "Failed to push gift during reconcile",
					"gift_id", g.ID, "error", err)
				errors.Add(1)
				return nil
			}
			pushed.Add(1)
			return nil
		})
	}
	_ = grp.Wait()

	if pushed.Load() > 0 || errors.Load() > 0 {
		slog.InfoContext(ctx, "Reconcile completed",
			"local", len(local.Gifts),
			"remote", len(remoteGifts),
			"pushed", pushed.Load(),
			"errors", errors.Load())
	}

	return nil
}

// StartupSyncCheck runs one reconcile pass at worker startup to recover
// from downtime
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup reconcile")
	return w.Reconcile(ctx)
}
