package models

import (
	"regexp"
	"slices"
)

// Creatures lists the selectable creature types
var Creatures = []string{"bear", "bunny", "cat", "fox", "penguin", "dragon", "axolotl"}

// RoomThemes lists the selectable backgrounds
var RoomThemes = []string{"cozy", "forest", "beach", "space", "winter"}

// Accessories lists the wearable cosmetic items
var Accessories = []string{"bow", "hat", "scarf", "glasses", "crown", "flower", "bandana"}

// GiftTypes lists the virtual gifts partners can leave
var GiftTypes = []string{"flower", "cookie", "heart", "star", "letter"}

// DefaultRoomTheme is set on couple creation
const DefaultRoomTheme = "cozy"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether s is a #RRGGBB color
func ValidColor(s string) bool {
	return colorPattern.MatchString(s)
}

// InCatalog reports whether id is one of items
func InCatalog(items []string, id string) bool {
	return slices.Contains(items, id)
}
