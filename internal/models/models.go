package models

import (
	"slices"
	"time"
)

// Role identifies which side of a couple a user occupies
type Role int

const (
	RoleNone Role = iota
	RolePartner1
	RolePartner2
)

// Other returns the opposite role
func (r Role) Other() Role {
	switch r {
	case RolePartner1:
		return RolePartner2
	case RolePartner2:
		return RolePartner1
	default:
		return RoleNone
	}
}

// DailyTapCount holds per-partner interaction taps for a single day
type DailyTapCount struct {
	Partner1 int    `json:"partner1"`
	Partner2 int    `json:"partner2"`
	Date     string `json:"date"`
}

// Tap returns the counts after one tap by role on the given day.
// A stale date is reset before the increment.
func (d DailyTapCount) Tap(role Role, today string) DailyTapCount {
	if d.Date != today {
		d = DailyTapCount{Date: today}
	}
	switch role {
	case RolePartner1:
		d.Partner1++
	case RolePartner2:
		d.Partner2++
	}
	return d
}

// Total returns the combined taps counted for today, zero when the stored day is stale
func (d DailyTapCount) Total(today string) int {
	if d.Date != today {
		return 0
	}
	return d.Partner1 + d.Partner2
}

// Couple represents the shared record of two paired users
type Couple struct {
	ID              string            `json:"id"`
	Partner1ID      string            `json:"partner1_id"`
	Partner2ID      *string           `json:"partner2_id"`
	InviteCode      string            `json:"invite_code"`
	MatchedAt       *time.Time        `json:"matched_at"`
	CreatureType    *string           `json:"creature_type"`
	CreatureName    *string           `json:"creature_name"`
	P1Choice        *string           `json:"p1_choice"`
	P2Choice        *string           `json:"p2_choice"`
	P1NameChoice    *string           `json:"p1_name_choice"`
	P2NameChoice    *string           `json:"p2_name_choice"`
	Accessories     []string          `json:"accessories"`
	AccessoryColors map[string]string `json:"accessory_colors"`
	RoomTheme       string            `json:"room_theme"`
	LastPettedAt    *time.Time        `json:"last_petted_at"`
	DailyTapCount   DailyTapCount     `json:"daily_tap_count"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// RoleOf returns the role the user holds in the couple
func (c *Couple) RoleOf(userID string) Role {
	switch {
	case userID == "":
		return RoleNone
	case c.Partner1ID == userID:
		return RolePartner1
	case c.Partner2ID != nil && *c.Partner2ID == userID:
		return RolePartner2
	default:
		return RoleNone
	}
}

// PartnerOf returns the other member's ID, empty while nobody has joined
func (c *Couple) PartnerOf(userID string) string {
	switch c.RoleOf(userID) {
	case RolePartner1:
		if c.Partner2ID != nil {
			return *c.Partner2ID
		}
	case RolePartner2:
		return c.Partner1ID
	}
	return ""
}

// Members returns the IDs of every joined partner
func (c *Couple) Members() []string {
	members := []string{c.Partner1ID}
	if c.Partner2ID != nil {
		members = append(members, *c.Partner2ID)
	}
	return members
}

// IsPaired reports whether the second partner has joined
func (c *Couple) IsPaired() bool {
	return c.Partner2ID != nil
}

// Choice returns the proposal fields owned by role
func (c *Couple) Choice(role Role) (creature, name *string) {
	switch role {
	case RolePartner1:
		return c.P1Choice, c.P1NameChoice
	case RolePartner2:
		return c.P2Choice, c.P2NameChoice
	}
	return nil, nil
}

// Clone returns a deep copy safe to mutate
func (c *Couple) Clone() *Couple {
	if c == nil {
		return nil
	}
	out := *c
	out.Partner2ID = cloneString(c.Partner2ID)
	out.MatchedAt = cloneTime(c.MatchedAt)
	out.CreatureType = cloneString(c.CreatureType)
	out.CreatureName = cloneString(c.CreatureName)
	out.P1Choice = cloneString(c.P1Choice)
	out.P2Choice = cloneString(c.P2Choice)
	out.P1NameChoice = cloneString(c.P1NameChoice)
	out.P2NameChoice = cloneString(c.P2NameChoice)
	out.LastPettedAt = cloneTime(c.LastPettedAt)
	out.Accessories = slices.Clone(c.Accessories)
	if c.AccessoryColors != nil {
		out.AccessoryColors = make(map[string]string, len(c.AccessoryColors))
		for k, v := range c.AccessoryColors {
			out.AccessoryColors[k] = v
		}
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Profile represents a user of the app
type Profile struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name"`
	LastActiveAt *time.Time `json:"last_active_at"`
	PushToken    *string    `json:"push_token,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DailyCheckin is one user's presence on one calendar day
type DailyCheckin struct {
	CoupleID    string `json:"couple_id"`
	UserID      string `json:"user_id"`
	CheckinDate string `json:"checkin_date"`
}

// Message is a short note sent between partners
type Message struct {
	ID        string    `json:"id"`
	CoupleID  string    `json:"couple_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Surprise is a virtual gift left for the partner
type Surprise struct {
	ID        string     `json:"id"`
	CoupleID  string     `json:"couple_id"`
	SenderID  string     `json:"sender_id"`
	GiftType  string     `json:"gift_type"`
	Note      string     `json:"note"`
	CreatedAt time.Time  `json:"created_at"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
}

// DailyRitual is the shared question of the day
type DailyRitual struct {
	ID         string  `json:"id"`
	CoupleID   string  `json:"couple_id"`
	RitualDate string  `json:"ritual_date"`
	Question   string  `json:"question"`
	P1Answer   *string `json:"p1_answer"`
	P2Answer   *string `json:"p2_answer"`
}

// Answer returns the answer stored for role
func (r *DailyRitual) Answer(role Role) *string {
	switch role {
	case RolePartner1:
		return r.P1Answer
	case RolePartner2:
		return r.P2Answer
	}
	return nil
}

// Memory is a photo shared by the couple
type Memory struct {
	ID        string    `json:"id"`
	CoupleID  string    `json:"couple_id"`
	UserID    string    `json:"user_id"`
	S3Key     string    `json:"s3_key"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}
