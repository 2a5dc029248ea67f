// Package models defines server-side data models persisted by the
// repositories and the closed enums the access-control engine reasons about.
package models

import (
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/common"
)

// PermissionLevel is the internal, totally ordered permission tier.
// Read < Write < Share: a higher level implies every lower one.
type PermissionLevel int

const (
	LevelNone  PermissionLevel = 0
	LevelRead  PermissionLevel = 1
	LevelWrite PermissionLevel = 2
	LevelShare PermissionLevel = 3
)

// Valid reports whether l is one of the grantable levels.
func (l PermissionLevel) Valid() bool {
	return l >= LevelRead && l <= LevelShare
}

// Satisfies reports whether holding l is enough for required.
func (l PermissionLevel) Satisfies(required PermissionLevel) bool {
	return l.Valid() && l >= required
}

func (l PermissionLevel) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelShare:
		return "share"
	case LevelNone:
		return "none"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParsePermissionLevel converts the wire form ("read", "write", "share").
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "read":
		return LevelRead, nil
	case "write":
		return LevelWrite, nil
	case "share":
		return LevelShare, nil
	}
	return LevelNone, fmt.Errorf("%w: unknown permission level %q", common.ErrValidation, s)
}

// MaxLevel returns the higher of two levels.
func MaxLevel(a, b PermissionLevel) PermissionLevel {
	if a > b {
		return a
	}
	return b
}

// ShareLevel is the UI-facing level chosen when a share link is created.
type ShareLevel string

const (
	ShareView    ShareLevel = "view"
	ShareComment ShareLevel = "comment"
	ShareFull    ShareLevel = "full"
)

// ParseShareLevel converts the wire form ("view", "comment", "full").
func ParseShareLevel(s string) (ShareLevel, error) {
	switch l := ShareLevel(s); l {
	case ShareView, ShareComment, ShareFull:
		return l, nil
	}
	return "", fmt.Errorf("%w: unknown share level %q", common.ErrValidation, s)
}

// ShareGrant describes what redeeming a token of a given ShareLevel confers.
// Commenting is not a document-mutation right; it travels as an annotation.
type ShareGrant struct {
	Level      PermissionLevel
	CanComment bool
}

// MapShareLevel is the single mapping between the UI and internal models.
func MapShareLevel(s ShareLevel) (ShareGrant, error) {
	switch s {
	case ShareView:
		return ShareGrant{Level: LevelRead}, nil
	case ShareComment:
		return ShareGrant{Level: LevelRead, CanComment: true}, nil
	case ShareFull:
		return ShareGrant{Level: LevelWrite, CanComment: true}, nil
	}
	return ShareGrant{}, fmt.Errorf("%w: unknown share level %q", common.ErrValidation, string(s))
}
