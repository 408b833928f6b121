package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const maxCreatureNameRunes = 24

// NegotiationPhase is the derived state of the creature negotiation
type NegotiationPhase string

const (
	PhaseUninitialized    NegotiationPhase = "uninitialized"
	PhaseProposedSelf     NegotiationPhase = "proposed_self"
	PhaseProposedPartner  NegotiationPhase = "proposed_partner"
	PhaseCreatureMismatch NegotiationPhase = "creature_mismatch"
	PhaseNameMismatch     NegotiationPhase = "creature_match_name_mismatch"
	PhaseFullyMatched     NegotiationPhase = "fully_matched"
	PhaseEstablished      NegotiationPhase = "established"
)

// Proposal is a creature type with a name
type Proposal struct {
	CreatureID string `json:"creature_id"`
	Name       string `json:"name"`
}

// NegotiationState is the negotiation seen from one partner
type NegotiationState struct {
	Phase       NegotiationPhase `json:"phase"`
	Own         *Proposal        `json:"own,omitempty"`
	Partner     *Proposal        `json:"partner,omitempty"`
	Established *Proposal        `json:"established,omitempty"`
}

func proposal(creature, name *string) *Proposal {
	if creature == nil {
		return nil
	}
	p := &Proposal{CreatureID: *creature}
	if name != nil {
		p.Name = *name
	}
	return p
}

// DeriveNegotiation computes the negotiation phase for role. Nothing about
// the phase is stored; it follows from the proposal and creature fields.
func DeriveNegotiation(c *models.Couple, role models.Role) NegotiationState {
	state := NegotiationState{
		Own:         proposal(c.Choice(role)),
		Partner:     proposal(c.Choice(role.Other())),
		Established: proposal(c.CreatureType, c.CreatureName),
	}

	switch {
	case state.Own == nil && state.Partner == nil:
		if state.Established == nil {
			state.Phase = PhaseUninitialized
		} else {
			state.Phase = PhaseEstablished
		}
	case state.Partner == nil:
		state.Phase = PhaseProposedSelf
	case state.Own == nil:
		state.Phase = PhaseProposedPartner
	case state.Own.CreatureID != state.Partner.CreatureID:
		state.Phase = PhaseCreatureMismatch
	case !models.NamesEqual(state.Own.Name, state.Partner.Name):
		state.Phase = PhaseNameMismatch
	default:
		state.Phase = PhaseFullyMatched
	}
	return state
}

// NegotiationService runs the propose/accept/finalize/reset protocol. Each
// partner only ever writes their own proposal fields; only Finalize touches
// the established creature, and only once both proposals agree.
type NegotiationService struct {
	writer coupleWriter
}

// NewNegotiationService creates a new negotiation service
func NewNegotiationService(couples CoupleRepository, store *couplestore.Store, publisher Publisher) *NegotiationService {
	return &NegotiationService{
		writer: coupleWriter{couples: couples, store: store, publisher: publisher},
	}
}

// State returns the negotiation as seen by the user
func (s *NegotiationService) State(ctx context.Context, userID string) (*models.Couple, NegotiationState, error) {
	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, NegotiationState{}, err
	}
	return c, DeriveNegotiation(c, c.RoleOf(userID)), nil
}

// Propose records the user's creature and name. It also starts a rename
// when a creature is already established.
func (s *NegotiationService) Propose(ctx context.Context, userID, creatureID, name string) (*models.Couple, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("creature name is required")
	}
	if utf8.RuneCountInString(name) > maxCreatureNameRunes {
		return nil, validationError("creature name exceeds %d characters", maxCreatureNameRunes)
	}
	if !models.InCatalog(models.Creatures, creatureID) {
		return nil, validationError("unknown creature %q", creatureID)
	}

	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.setChoice(ctx, c, userID, creatureID, name)
}

// AcceptPartner copies the partner's proposal into the user's own fields
func (s *NegotiationService) AcceptPartner(ctx context.Context, userID string) (*models.Couple, error) {
	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	partner := proposal(c.Choice(c.RoleOf(userID).Other()))
	if partner == nil || strings.TrimSpace(partner.Name) == "" {
		return nil, ErrNothingToAccept
	}
	return s.setChoice(ctx, c, userID, partner.CreatureID, partner.Name)
}

func (s *NegotiationService) setChoice(ctx context.Context, c *models.Couple, userID, creatureID, name string) (*models.Couple, error) {
	cmd := models.SetChoice{Role: c.RoleOf(userID), CreatureID: creatureID, CreatureName: name}
	updated, err := s.writer.apply(ctx, c, cmd)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID).
		Str("couple_id", c.ID).
		Str("creature", creatureID).
		Msg("Creature proposed")
	return updated, nil
}

// Finalize establishes the agreed creature. It rejects with ErrNotMatched
// unless both proposals name the same creature with names equal ignoring
// case. When both partners finalize at once the first commit wins and the
// other caller receives the established couple.
func (s *NegotiationService) Finalize(ctx context.Context, userID string) (*models.Couple, error) {
	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !models.ProposalsMatch(c) {
		if DeriveNegotiation(c, c.RoleOf(userID)).Phase == PhaseEstablished {
			return c, nil
		}
		return nil, ErrNotMatched
	}

	updated, err := s.writer.apply(ctx, c, models.Finalize{})
	if errors.Is(err, repository.ErrConflict) {
		latest, lerr := s.writer.current(ctx, userID)
		if lerr != nil {
			return nil, lerr
		}
		if DeriveNegotiation(latest, latest.RoleOf(userID)).Phase == PhaseEstablished {
			return latest, nil
		}
		return nil, ErrNotMatched
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", c.ID).
		Str("creature", *updated.CreatureType).
		Msg("Creature finalized")
	return updated, nil
}

// Reset cancels any in-flight negotiation without touching the established creature
func (s *NegotiationService) Reset(ctx context.Context, userID string) (*models.Couple, error) {
	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.writer.apply(ctx, c, models.ResetNegotiation{})
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("couple_id", c.ID).Msg("Negotiation reset")
	return updated, nil
}
