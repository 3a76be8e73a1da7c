// Package untracked applies the configured policy to remote items outside
// the tracking rules.
package untracked

import (
	"context"

	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// Remote is the slice of the storage client the resolver mutates through.
type Remote interface {
	Trash(ctx context.Context, itemID string) error
	RequestOwnershipTransfer(ctx context.Context, itemID, newOwner string) error
}

// Resolver resolves untracked items one at a time.
type Resolver struct {
	remote          Remote
	serviceIdentity string
	logger          logging.Logger
}

// NewResolver creates a resolver. serviceIdentity receives ownership
// transfer requests.
func NewResolver(remote Remote, serviceIdentity string, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Resolver{remote: remote, serviceIdentity: serviceIdentity, logger: logger}
}

// Resolve applies policy to each item and returns the items with their
// outcome recorded. A failing item never stops the others. Once ctx is
// cancelled the remaining items are returned as skipped.
func (r *Resolver) Resolve(ctx context.Context, policy config.UntrackPolicy, items []types.UntrackedItem) []types.UntrackedItem {
	out := make([]types.UntrackedItem, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			item.Resolution = types.ResolutionSkipped
			item.Error = ctx.Err().Error()
			out[i] = item
			continue
		}
		out[i] = r.resolveOne(ctx, policy, item)
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, policy config.UntrackPolicy, item types.UntrackedItem) types.UntrackedItem {
	switch policy {
	case config.UntrackRemove:
		err := r.remote.Trash(ctx, item.ID)
		switch {
		case err == nil:
			item.Resolution = types.ResolutionResolved
		case utils.IsNotFound(err):
			r.logger.Debug("Untracked item already gone", logging.F("id", item.ID))
			item.Resolution = types.ResolutionResolved
		default:
			r.fail(&item, "trash", err)
		}

	case config.UntrackRequest:
		if r.serviceIdentity == "" {
			r.fail(&item, "request", utils.NewValidationError(utils.ErrCodeInvalidConfig, "service identity is unknown"))
			break
		}
		if err := r.remote.RequestOwnershipTransfer(ctx, item.ID, r.serviceIdentity); err != nil {
			r.fail(&item, "request", err)
			break
		}
		item.OwnershipTransferRequested = true
		item.Resolution = types.ResolutionRequested
		r.logger.Info("Ownership transfer requested",
			logging.F("id", item.ID), logging.F("path", item.Path), logging.F("owner", item.OwnerEmail))

	default:
		item.Resolution = types.ResolutionIgnored
	}
	return item
}

func (r *Resolver) fail(item *types.UntrackedItem, op string, err error) {
	item.Resolution = types.ResolutionFailed
	item.Error = err.Error()
	r.logger.Warn("Untracked item not resolved",
		logging.F("op", op), logging.F("id", item.ID), logging.F("path", item.Path), logging.F("error", err.Error()))
}
