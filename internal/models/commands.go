package models

import (
	"slices"
	"strings"
	"time"
)

// Command is a typed update to a Couple. Each variant touches only the
// fields it names.
type Command interface {
	// Apply mutates c in place.
	Apply(c *Couple)
	// Name identifies the command in logs.
	Name() string
}

// Conditional commands only commit when their precondition holds against
// the stored row at write time.
type Conditional interface {
	Command
	Allowed(c *Couple) bool
}

// SetInviteCode replaces the couple's invite code
type SetInviteCode struct {
	Code string
}

func (cmd SetInviteCode) Apply(c *Couple) { c.InviteCode = cmd.Code }
func (SetInviteCode) Name() string        { return "set_invite_code" }

// RetiredInviteCode replaces the code of a home its owner abandoned. It is
// unique per couple and never passes code normalization.
func RetiredInviteCode(coupleID string) string {
	return "RETIRED-" + strings.ToUpper(coupleID)
}

// JoinPartner claims the second seat of a couple
type JoinPartner struct {
	UserID string
	At     time.Time
}

func (cmd JoinPartner) Apply(c *Couple) {
	id := cmd.UserID
	c.Partner2ID = &id
	if c.MatchedAt == nil {
		at := cmd.At
		c.MatchedAt = &at
	}
}

func (JoinPartner) Name() string { return "join_partner" }

// Allowed only while the second seat is empty
func (JoinPartner) Allowed(c *Couple) bool { return c.Partner2ID == nil }

// SetChoice writes one partner's creature proposal
type SetChoice struct {
	Role         Role
	CreatureID   string
	CreatureName string
}

func (cmd SetChoice) Apply(c *Couple) {
	creature, name := cmd.CreatureID, cmd.CreatureName
	switch cmd.Role {
	case RolePartner1:
		c.P1Choice, c.P1NameChoice = &creature, &name
	case RolePartner2:
		c.P2Choice, c.P2NameChoice = &creature, &name
	}
}

func (SetChoice) Name() string { return "set_choice" }

// Finalize promotes an agreed proposal to the established creature.
// Partner1's name casing is kept.
type Finalize struct{}

func (Finalize) Apply(c *Couple) {
	if !ProposalsMatch(c) {
		return
	}
	creature, name := *c.P1Choice, strings.TrimSpace(*c.P1NameChoice)
	c.CreatureType, c.CreatureName = &creature, &name
	clearProposals(c)
}

func (Finalize) Name() string { return "finalize" }

// Allowed when both partners proposed the same creature under the same name
func (Finalize) Allowed(c *Couple) bool { return ProposalsMatch(c) }

// ResetNegotiation drops every in-flight proposal
type ResetNegotiation struct{}

func (ResetNegotiation) Apply(c *Couple) { clearProposals(c) }
func (ResetNegotiation) Name() string    { return "reset_negotiation" }

// SetAccessories replaces the worn accessory set
type SetAccessories struct {
	Items []string
}

func (cmd SetAccessories) Apply(c *Couple) {
	c.Accessories = slices.Clone(cmd.Items)
}

func (SetAccessories) Name() string { return "set_accessories" }

// SetAccessoryColor assigns a color to one accessory
type SetAccessoryColor struct {
	Accessory string
	Color     string
}

func (cmd SetAccessoryColor) Apply(c *Couple) {
	if c.AccessoryColors == nil {
		c.AccessoryColors = make(map[string]string)
	}
	c.AccessoryColors[cmd.Accessory] = cmd.Color
}

func (SetAccessoryColor) Name() string { return "set_accessory_color" }

// SetRoomTheme selects the background decor
type SetRoomTheme struct {
	Theme string
}

func (cmd SetRoomTheme) Apply(c *Couple) { c.RoomTheme = cmd.Theme }
func (SetRoomTheme) Name() string        { return "set_room_theme" }

// RecordTap stores one interaction tap and rolls the daily counter over
// when Today differs from the stored day.
type RecordTap struct {
	Role  Role
	At    time.Time
	Today string
}

func (cmd RecordTap) Apply(c *Couple) {
	at := cmd.At
	c.LastPettedAt = &at
	c.DailyTapCount = c.DailyTapCount.Tap(cmd.Role, cmd.Today)
}

func (RecordTap) Name() string { return "record_tap" }

// ProposalsMatch reports whether both proposals are set, name the same
// creature and carry names equal ignoring case and surrounding space.
func ProposalsMatch(c *Couple) bool {
	if c.P1Choice == nil || c.P2Choice == nil || c.P1NameChoice == nil || c.P2NameChoice == nil {
		return false
	}
	if *c.P1Choice != *c.P2Choice {
		return false
	}
	return NamesEqual(*c.P1NameChoice, *c.P2NameChoice)
}

// NamesEqual compares creature names the way partners perceive them
func NamesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func clearProposals(c *Couple) {
	c.P1Choice, c.P2Choice = nil, nil
	c.P1NameChoice, c.P2NameChoice = nil, nil
}
