package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"hearth-backend/internal/config"
	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/notify"
	"hearth-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	codeLength         = 6
	codeChars          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxInviteCodeTries = 10
)

var errStillWaiting = errors.New("partner has not joined yet")

// PairingState is where a user stands in linking up with a partner
type PairingState string

const (
	PairingNoCouple        PairingState = "no_couple"
	PairingAwaitingPartner PairingState = "awaiting_partner"
	PairingPaired          PairingState = "paired"
)

// PairingStateOf derives the pairing state from the user's couple
func PairingStateOf(c *models.Couple) PairingState {
	switch {
	case c == nil:
		return PairingNoCouple
	case c.IsPaired():
		return PairingPaired
	default:
		return PairingAwaitingPartner
	}
}

// PairingService links two users into one couple through invite codes
type PairingService struct {
	couples   CoupleRepository
	store     *couplestore.Store
	publisher Publisher
	notifier  notify.Notifier
	poll      config.PairingConfig
	now       func() time.Time
}

// NewPairingService creates a new pairing service
func NewPairingService(
	couples CoupleRepository,
	store *couplestore.Store,
	publisher Publisher,
	notifier notify.Notifier,
	poll config.PairingConfig,
) *PairingService {
	return &PairingService{
		couples:   couples,
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		poll:      poll,
		now:       time.Now,
	}
}

// generateCode generates a random 6-character code
func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// normalizeCode uppercases user input and rejects anything that cannot be a code
func normalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeChars, rune(code[i])) {
			return "", false
		}
	}
	return code, true
}

// CreateHome creates a couple awaiting a partner and returns it with its invite code
func (s *PairingService) CreateHome(ctx context.Context, userID string) (*models.Couple, error) {
	existing, err := s.couples.GetByUserID(ctx, userID)
	switch {
	case err == nil && existing.IsPaired():
		return nil, ErrAlreadyInCouple
	case err == nil:
		// an unclaimed home is handed back so the code stays stable
		s.store.ApplyRemote(ctx, existing)
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, networkError("load couple", err)
	}

	now := s.now()
	for i := 0; i < maxInviteCodeTries; i++ {
		code := generateCode()
		exists, err := s.couples.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, networkError("check invite code", err)
		}
		if exists {
			continue
		}

		c := &models.Couple{
			ID:              uuid.New().String(),
			Partner1ID:      userID,
			InviteCode:      code,
			Accessories:     []string{},
			AccessoryColors: map[string]string{},
			RoomTheme:       models.DefaultRoomTheme,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.couples.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return nil, networkError("create couple", err)
		}

		s.store.ApplyRemote(ctx, c)
		log.Info().
			Str("user_id", userID).
			Str("couple_id", c.ID).
			Msg("Home created")
		return c, nil
	}
	return nil, fmt.Errorf("failed to generate unique invite code after %d attempts", maxInviteCodeTries)
}

// JoinHome claims the second seat of the couple owning code. The claim is a
// conditional write, so of two concurrent joiners only one succeeds and the
// other gets ErrHomeFull.
func (s *PairingService) JoinHome(ctx context.Context, userID, code string) (*models.Couple, error) {
	code, ok := normalizeCode(code)
	if !ok {
		return nil, ErrInvalidCode
	}

	target, err := s.couples.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, networkError("find invite code", err)
	}

	if target.Partner1ID == userID {
		return nil, ErrSelfJoin
	}
	if target.Partner2ID != nil {
		if *target.Partner2ID == userID {
			return target, nil
		}
		return nil, ErrHomeFull
	}

	own, err := s.couples.GetByUserID(ctx, userID)
	if err == nil && own.IsPaired() {
		return nil, ErrAlreadyInCouple
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, networkError("load couple", err)
	}

	joined, err := s.couples.Update(ctx, target.ID, models.JoinPartner{UserID: userID, At: s.now()})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrHomeFull
		}
		return nil, networkError("join couple", err)
	}

	s.store.ApplyRemote(ctx, joined)
	publish(ctx, s.publisher, coupleEvent(joined, MsgPairCreated))

	if own != nil && own.ID != joined.ID {
		s.retireHome(ctx, own)
	}

	if err := s.notifier.Notify(ctx, joined.Partner1ID, notify.Notification{
		Title: "Your partner is home",
		Body:  "Time to choose your creature together.",
		Kind:  notify.KindPartnerJoined,
		Data:  map[string]string{"couple_id": joined.ID},
	}); err != nil {
		log.Error().Err(err).Str("user_id", joined.Partner1ID).Msg("Failed to notify partner about join")
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", joined.ID).
		Msg("Partner joined home")
	return joined, nil
}

// retireHome invalidates the invite code of the unpaired home a user left
// behind by joining another one. The home stays out of the store index so
// the user keeps resolving to the joined couple.
func (s *PairingService) retireHome(ctx context.Context, home *models.Couple) {
	if _, err := s.couples.Update(ctx, home.ID, models.SetInviteCode{Code: models.RetiredInviteCode(home.ID)}); err != nil {
		log.Error().Err(err).Str("couple_id", home.ID).Msg("Failed to retire abandoned invite code")
		return
	}
	log.Info().Str("couple_id", home.ID).Msg("Abandoned invite code retired")
}

// WaitForPartner polls with exponential backoff until the partner joins, the
// wait times out or ctx is done. Realtime pushes are the primary signal; this
// serves clients that cannot hold a socket. On timeout the unpaired couple is
// returned without error.
func (s *PairingService) WaitForPartner(ctx context.Context, userID string) (*models.Couple, error) {
	var last *models.Couple
	op := func() (*models.Couple, error) {
		c, err := s.couples.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, backoff.Permanent(ErrNoCouple)
			}
			log.Warn().Err(err).Str("user_id", userID).Msg("Pairing poll failed")
			return nil, err
		}
		last = c
		if !c.IsPaired() {
			return nil, errStillWaiting
		}
		s.store.ApplyRemote(ctx, c)
		return c, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.poll.PollInterval
	b.MaxInterval = s.poll.PollMaxInterval

	c, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(s.poll.WaitTimeout),
	)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, ErrNoCouple):
		return nil, ErrNoCouple
	case last != nil && ctx.Err() == nil:
		return last, nil
	case ctx.Err() != nil:
		return last, ctx.Err()
	default:
		return nil, networkError("wait for partner", err)
	}
}
