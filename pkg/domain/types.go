package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserPatch enumerates the fields a profile update may change.
// Password changes go through a dedicated operation, never through here.
type UserPatch struct {
	Username *string   `json:"username,omitempty"`
	Email    *string   `json:"email,omitempty"`
	Role     *UserRole `json:"role,omitempty"`
}

// ToolUsageEvent is one invocation of a conversion tool. Immutable once stored.
// UserID and SessionID are both optional; anonymous callers carry neither.
type ToolUsageEvent struct {
	ID               string    `json:"id"`
	ToolName         string    `json:"toolName"`
	Category         string    `json:"category"`
	UserID           string    `json:"userId,omitempty"`
	SessionID        string    `json:"sessionId,omitempty"`
	ProcessingTimeMs *int64    `json:"processingTime,omitempty"`
	FileSizeBytes    *int64    `json:"fileSize,omitempty"`
	Success          bool      `json:"success"`
	CreatedAt        time.Time `json:"createdAt"`
}

// UsageFilter narrows event listings. Zero values impose no constraint;
// set filters compose with logical AND.
type UsageFilter struct {
	ToolName string
	Category string
	DateFrom time.Time
	DateTo   time.Time
}

type AdSlot struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Position   string            `json:"position"`
	Page       string            `json:"page"`
	IsActive   bool              `json:"isActive"`
	AdProvider string            `json:"adProvider,omitempty"`
	AdCode     string            `json:"adCode,omitempty"`
	Settings   map[string]string `json:"settings,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// AdSlotPatch enumerates the mutable ad slot fields. A nil pointer leaves
// the stored value untouched; a nil Settings map is likewise a no-op.
type AdSlotPatch struct {
	Name       *string           `json:"name,omitempty"`
	Position   *string           `json:"position,omitempty"`
	Page       *string           `json:"page,omitempty"`
	IsActive   *bool             `json:"isActive,omitempty"`
	AdProvider *string           `json:"adProvider,omitempty"`
	AdCode     *string           `json:"adCode,omitempty"`
	Settings   map[string]string `json:"settings,omitempty"`
}
