package store

import (
	"errors"

	"convertbox/pkg/domain"
)

// ErrDuplicateKey reports a violated uniqueness invariant (email or username).
var ErrDuplicateKey = errors.New("duplicate key")

// Store defines persistence operations for users, tool usage events, and ad
// slots. Lookups return (value, false, nil) when the key is absent; an error
// only signals a backend failure.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	UpdateUser(id string, patch domain.UserPatch) (domain.User, bool, error)
	SetPasswordHash(id, hash string) (bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)

	// tool usage (append-only)
	CreateUsage(domain.ToolUsageEvent) error
	ListUsage(filter domain.UsageFilter) ([]domain.ToolUsageEvent, error)

	// ad slots
	CreateAdSlot(domain.AdSlot) error
	GetAdSlot(id string) (domain.AdSlot, bool, error)
	ListAdSlots() ([]domain.AdSlot, error)
	ListActiveAdSlots(page string) ([]domain.AdSlot, error)
	UpdateAdSlot(id string, patch domain.AdSlotPatch) (domain.AdSlot, bool, error)
	DeleteAdSlot(id string) (bool, error)
	AdSlotCount() (int, error)
}
