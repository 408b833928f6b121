package services

import (
	"context"
	"sync"
	"testing"

	"hearth-backend/internal/models"
	"hearth-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestDeriveNegotiation(t *testing.T) {
	tests := []struct {
		name   string
		couple models.Couple
		role   models.Role
		want   NegotiationPhase
	}{
		{
			name: "nothing chosen",
			role: models.RolePartner1,
			want: PhaseUninitialized,
		},
		{
			name:   "established creature",
			couple: models.Couple{CreatureType: strp("fox"), CreatureName: strp("Ember")},
			role:   models.RolePartner1,
			want:   PhaseEstablished,
		},
		{
			name:   "own proposal only",
			couple: models.Couple{P1Choice: strp("cat"), P1NameChoice: strp("Miso")},
			role:   models.RolePartner1,
			want:   PhaseProposedSelf,
		},
		{
			name:   "partner proposal only",
			couple: models.Couple{P1Choice: strp("cat"), P1NameChoice: strp("Miso")},
			role:   models.RolePartner2,
			want:   PhaseProposedPartner,
		},
		{
			name: "different creatures",
			couple: models.Couple{
				P1Choice: strp("cat"), P1NameChoice: strp("Miso"),
				P2Choice: strp("fox"), P2NameChoice: strp("Miso"),
			},
			role: models.RolePartner2,
			want: PhaseCreatureMismatch,
		},
		{
			name: "same creature different names",
			couple: models.Couple{
				P1Choice: strp("cat"), P1NameChoice: strp("Miso"),
				P2Choice: strp("cat"), P2NameChoice: strp("Tofu"),
			},
			role: models.RolePartner1,
			want: PhaseNameMismatch,
		},
		{
			name: "names match ignoring case",
			couple: models.Couple{
				P1Choice: strp("cat"), P1NameChoice: strp("Miso"),
				P2Choice: strp("cat"), P2NameChoice: strp("MISO"),
			},
			role: models.RolePartner1,
			want: PhaseFullyMatched,
		},
		{
			name: "rename in progress on established creature",
			couple: models.Couple{
				CreatureType: strp("cat"), CreatureName: strp("Miso"),
				P2Choice: strp("cat"), P2NameChoice: strp("Tofu"),
			},
			role: models.RolePartner1,
			want: PhaseProposedPartner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveNegotiation(&tt.couple, tt.role)
			assert.Equal(t, tt.want, got.Phase)
		})
	}
}

func TestPropose_WritesOnlyOwnFields(t *testing.T) {
	for _, role := range []models.Role{models.RolePartner1, models.RolePartner2} {
		e := newTestEnv(t)
		ctx := context.Background()
		c := e.pair(t, "alice", "bob")

		self, partner := "alice", "bob"
		if role == models.RolePartner2 {
			self, partner = "bob", "alice"
		}

		_, err := e.negotiation.Propose(ctx, partner, "penguin", "Pebble")
		require.NoError(t, err)
		before := e.couples.get(c.ID)

		after, err := e.negotiation.Propose(ctx, self, "dragon", "Blaze")
		require.NoError(t, err)

		ownCreature, ownName := after.Choice(role)
		assert.Equal(t, "dragon", *ownCreature)
		assert.Equal(t, "Blaze", *ownName)

		beforeCreature, beforeName := before.Choice(role.Other())
		afterCreature, afterName := after.Choice(role.Other())
		assert.Equal(t, beforeCreature, afterCreature)
		assert.Equal(t, beforeName, afterName)
		assert.Nil(t, after.CreatureType)
	}
}

func TestPropose_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.pair(t, "alice", "bob")

	_, err := e.negotiation.Propose(ctx, "alice", "bear", "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.negotiation.Propose(ctx, "alice", "unicorn", "Sparkle")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.negotiation.Propose(ctx, "stranger", "bear", "Buddy")
	assert.ErrorIs(t, err, ErrNoCouple)
}

func TestPropose_TrimsName(t *testing.T) {
	e := newTestEnv(t)
	e.pair(t, "alice", "bob")

	c, err := e.negotiation.Propose(context.Background(), "alice", "bear", "  Buddy ")
	require.NoError(t, err)
	assert.Equal(t, "Buddy", *c.P1NameChoice)
}

func TestAcceptPartner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.pair(t, "alice", "bob")

	_, err := e.negotiation.AcceptPartner(ctx, "bob")
	assert.ErrorIs(t, err, ErrNothingToAccept)

	_, err = e.negotiation.Propose(ctx, "alice", "bunny", "Clover")
	require.NoError(t, err)

	c, err := e.negotiation.AcceptPartner(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bunny", *c.P2Choice)
	assert.Equal(t, "Clover", *c.P2NameChoice)
	assert.Nil(t, c.CreatureType, "accepting only votes, it does not establish")
	assert.Equal(t, PhaseFullyMatched, DeriveNegotiation(c, models.RolePartner2).Phase)
}

func TestFinalize_RejectsUnlessMatched(t *testing.T) {
	setups := map[string]func(e *testEnv){
		"no proposals": func(e *testEnv) {},
		"one proposal": func(e *testEnv) {
			_, _ = e.negotiation.Propose(context.Background(), "alice", "cat", "Miso")
		},
		"creature mismatch": func(e *testEnv) {
			_, _ = e.negotiation.Propose(context.Background(), "alice", "cat", "Miso")
			_, _ = e.negotiation.Propose(context.Background(), "bob", "fox", "Miso")
		},
		"name mismatch": func(e *testEnv) {
			_, _ = e.negotiation.Propose(context.Background(), "alice", "cat", "Miso")
			_, _ = e.negotiation.Propose(context.Background(), "bob", "cat", "Tofu")
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t)
			c := e.pair(t, "alice", "bob")
			setup(e)
			before := e.couples.get(c.ID)

			_, err := e.negotiation.Finalize(context.Background(), "alice")
			assert.ErrorIs(t, err, ErrNotMatched)

			after := e.couples.get(c.ID)
			assert.Equal(t, before.CreatureType, after.CreatureType)
			assert.Equal(t, before.CreatureName, after.CreatureName)
			assert.Equal(t, before.Version, after.Version)
		})
	}
}

func TestFinalize_KeepsEstablishedDuringRenameMismatch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := e.pair(t, "alice", "bob")

	_, err := e.negotiation.Propose(ctx, "alice", "fox", "Ember")
	require.NoError(t, err)
	_, err = e.negotiation.AcceptPartner(ctx, "bob")
	require.NoError(t, err)
	_, err = e.negotiation.Finalize(ctx, "alice")
	require.NoError(t, err)

	_, err = e.negotiation.Propose(ctx, "bob", "fox", "Cinder")
	require.NoError(t, err)
	_, err = e.negotiation.Propose(ctx, "alice", "fox", "Blaze")
	require.NoError(t, err)

	_, err = e.negotiation.Finalize(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotMatched)
	assert.Equal(t, "Ember", *e.couples.get(c.ID).CreatureName)
}

func TestReset_ClearsAllProposals(t *testing.T) {
	setups := map[string]func(e *testEnv){
		"empty": func(e *testEnv) {},
		"both proposed": func(e *testEnv) {
			_, _ = e.negotiation.Propose(context.Background(), "alice", "cat", "Miso")
			_, _ = e.negotiation.Propose(context.Background(), "bob", "fox", "Ember")
		},
		"partner proposed": func(e *testEnv) {
			_, _ = e.negotiation.Propose(context.Background(), "bob", "axolotl", "Noodle")
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t)
			e.pair(t, "alice", "bob")
			setup(e)

			c, err := e.negotiation.Reset(context.Background(), "alice")
			require.NoError(t, err)
			assert.Nil(t, c.P1Choice)
			assert.Nil(t, c.P2Choice)
			assert.Nil(t, c.P1NameChoice)
			assert.Nil(t, c.P2NameChoice)
		})
	}
}

func TestReset_LeavesEstablishedCreature(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.pair(t, "alice", "bob")

	_, err := e.negotiation.Propose(ctx, "alice", "cat", "Miso")
	require.NoError(t, err)
	_, err = e.negotiation.AcceptPartner(ctx, "bob")
	require.NoError(t, err)
	_, err = e.negotiation.Finalize(ctx, "bob")
	require.NoError(t, err)
	_, err = e.negotiation.Propose(ctx, "alice", "cat", "Tofu")
	require.NoError(t, err)

	c, err := e.negotiation.Reset(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "cat", *c.CreatureType)
	assert.Equal(t, "Miso", *c.CreatureName)
	assert.Equal(t, PhaseEstablished, DeriveNegotiation(c, models.RolePartner1).Phase)
}

func TestFinalize_ConcurrentCallsEstablishOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := e.pair(t, "alice", "bob")

	_, err := e.negotiation.Propose(ctx, "alice", "bear", "Buddy")
	require.NoError(t, err)
	_, err = e.negotiation.Propose(ctx, "bob", "bear", "BUDDY")
	require.NoError(t, err)
	before := e.couples.get(c.ID).Version

	var wg sync.WaitGroup
	results := make([]*models.Couple, 2)
	errs := make([]error, 2)
	for i, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			results[i], errs[i] = e.negotiation.Finalize(ctx, user)
		}(i, user)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "Buddy", *results[i].CreatureName)
	}
	assert.Equal(t, before+1, e.couples.get(c.ID).Version)
}

// interleavingCouples runs a hook right after a user's couple is read,
// before the caller gets to write
type interleavingCouples struct {
	*fakeCouples
	hookMu   sync.Mutex
	afterGet map[string]func()
}

func (f *interleavingCouples) GetByUserID(ctx context.Context, userID string) (*models.Couple, error) {
	c, err := f.fakeCouples.GetByUserID(ctx, userID)
	f.hookMu.Lock()
	hook := f.afterGet[userID]
	delete(f.afterGet, userID)
	f.hookMu.Unlock()
	if hook != nil {
		hook()
	}
	return c, err
}

func TestFinalize_PartnerResetBetweenReadAndWrite(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := e.pair(t, "alice", "bob")
	_, err := e.negotiation.Propose(ctx, "alice", "bear", "Buddy")
	require.NoError(t, err)
	_, err = e.negotiation.Propose(ctx, "bob", "bear", "buddy")
	require.NoError(t, err)

	couples := &interleavingCouples{fakeCouples: e.couples, afterGet: map[string]func(){}}
	svc := NewNegotiationService(couples, e.store, e.publisher)
	couples.afterGet["alice"] = func() {
		_, err := svc.Reset(ctx, "bob")
		require.NoError(t, err)
	}

	_, err = svc.Finalize(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotMatched)

	stored := e.couples.get(c.ID)
	assert.Nil(t, stored.CreatureType)
	assert.Nil(t, stored.P1Choice)

	cached, ok := e.store.CachedByID(c.ID)
	require.True(t, ok)
	assert.Nil(t, cached.CreatureType, "rejected finalize leaves no local trace")
	assert.Nil(t, cached.P1Choice)

	_, state, err := e.negotiation.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, PhaseUninitialized, state.Phase)
}

func TestFinalize_ConflictDropsOptimisticPatch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := e.pair(t, "alice", "bob")
	_, err := e.negotiation.Propose(ctx, "alice", "bear", "Buddy")
	require.NoError(t, err)
	_, err = e.negotiation.Propose(ctx, "bob", "bear", "Buddy")
	require.NoError(t, err)

	// the server row moves on while the cache still shows matching proposals
	row := e.couples.get(c.ID)
	row.P2Choice, row.P2NameChoice = strp("fox"), strp("Rusty")
	row.Version++
	e.couples.put(row)

	matched, ok := e.store.CachedByID(c.ID)
	require.True(t, ok)
	_, err = e.negotiation.writer.apply(ctx, matched, models.Finalize{})
	assert.ErrorIs(t, err, repository.ErrConflict)

	cached, _ := e.store.CachedByID(c.ID)
	assert.Nil(t, cached.CreatureType)
	assert.Equal(t, "fox", *cached.P2Choice)
}
