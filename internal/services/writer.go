package services

import (
	"context"
	"errors"
	"time"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const writeRetryInterval = 200 * time.Millisecond

// coupleWriter is the shared write path for couple commands: optimistic
// local patch, remote write, merge of the server record and broadcast.
// A failed remote write leaves the optimistic patch until the next refresh.
type coupleWriter struct {
	couples   CoupleRepository
	store     *couplestore.Store
	publisher Publisher
}

// current reads the authoritative couple for the user and merges it into the store
func (w *coupleWriter) current(ctx context.Context, userID string) (*models.Couple, error) {
	c, err := w.couples.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoCouple
		}
		return nil, networkError("load couple", err)
	}
	w.store.ApplyRemote(ctx, c)
	return c, nil
}

// apply runs cmd against the couple once. Repository conflicts are returned as is.
func (w *coupleWriter) apply(ctx context.Context, c *models.Couple, cmd models.Command) (*models.Couple, error) {
	return w.applyRetry(ctx, c, cmd, 1)
}

// applyRetry is apply with up to tries remote attempts on backend failures.
// The optimistic patch is applied once regardless of the attempt count.
func (w *coupleWriter) applyRetry(ctx context.Context, c *models.Couple, cmd models.Command, tries uint) (*models.Couple, error) {
	w.store.ApplyLocal(ctx, c.ID, cmd)

	op := func() (*models.Couple, error) {
		updated, err := w.couples.Update(ctx, c.ID, cmd)
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return updated, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = writeRetryInterval
	updated, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			w.reconcile(ctx, c.ID)
			return nil, err
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Str("couple_id", c.ID).Str("command", cmd.Name()).Msg("Couple write failed")
		return nil, networkError(cmd.Name(), err)
	}

	w.store.ApplyRemote(ctx, updated)
	publish(ctx, w.publisher, coupleEvent(updated, MsgCoupleUpdated))
	return updated, nil
}

// reconcile replaces the cached couple with the server row after a rejected
// conditional write, dropping the optimistic patch.
func (w *coupleWriter) reconcile(ctx context.Context, coupleID string) {
	latest, err := w.couples.GetByID(ctx, coupleID)
	if err != nil {
		log.Warn().Err(err).Str("couple_id", coupleID).Msg("Failed to reload couple after conflict")
		return
	}
	w.store.Reconcile(ctx, latest)
}
