package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"convertbox/internal/stats"
	"convertbox/pkg/auth"
	"convertbox/pkg/domain"
	"convertbox/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	BcryptCost    int
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	Store         store.Store
}

// App wires the entity store, authentication, and analytics together. It is
// the sole mutator of the persisted collections.
type App struct {
	store      store.Store
	bcryptCost int
}

// New constructs the application. An injected store wins; otherwise a
// Postgres store is opened from DatabaseURL.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required when no store is injected")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	a := &App{
		store:      dataStore,
		bcryptCost: cfg.BcryptCost,
	}
	if err := a.seed(cfg); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return a, nil
}

// seed bootstraps the admin account and the default ad slots. Safe to run on
// every start.
func (a *App) seed(cfg Config) error {
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		email := normalizeEmail(cfg.AdminEmail)
		_, exists, err := a.store.GetUserByEmail(email)
		if err != nil {
			return fmt.Errorf("check admin: %w", err)
		}
		if !exists {
			username := strings.TrimSpace(cfg.AdminUsername)
			if username == "" {
				username = "admin"
			}
			hash, err := auth.HashPassword(cfg.AdminPassword, a.bcryptCost)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			now := time.Now().UTC()
			admin := domain.User{
				ID:           store.NewID(),
				Username:     username,
				Email:        email,
				PasswordHash: hash,
				Role:         domain.RoleAdmin,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := a.store.CreateUser(admin); err != nil && err != store.ErrDuplicateKey {
				return fmt.Errorf("create admin: %w", err)
			}
			slog.Info("seeded admin user", "email", email)
		}
	}

	count, err := a.store.AdSlotCount()
	if err != nil {
		return fmt.Errorf("count ad slots: %w", err)
	}
	if count == 0 {
		defaults := []domain.AdSlot{
			{Name: "Home Header", Position: "header", Page: "home"},
			{Name: "Tool Page Top", Position: "tool-top", Page: "tools"},
			{Name: "Home Sidebar", Position: "sidebar", Page: "home"},
		}
		for _, slot := range defaults {
			slot.ID = store.NewID()
			slot.IsActive = true
			slot.CreatedAt = time.Now().UTC()
			if err := a.store.CreateAdSlot(slot); err != nil {
				return fmt.Errorf("seed ad slot: %w", err)
			}
		}
		slog.Info("seeded default ad slots", "count", len(defaults))
	}
	return nil
}

// Register creates a new user with default role user. The password is hashed
// before it ever reaches the store.
func (a *App) Register(username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	hash, err := auth.HashPassword(password, a.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           store.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if err == store.ErrDuplicateKey {
			return domain.User{}, ErrDuplicateKey
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Authenticate validates credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *App) Authenticate(email, password string) (domain.User, error) {
	user, ok, err := a.store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotAuthenticated
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, ErrNotAuthenticated
	}
	return user, nil
}

// GetUser returns a user by ID.
func (a *App) GetUser(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// UpdateProfile merges the patch over the stored user. The patch cannot carry
// a password; see ChangePassword.
func (a *App) UpdateProfile(id string, patch domain.UserPatch) (domain.User, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return domain.User{}, fmt.Errorf("%w: email must not be empty", ErrValidation)
		}
		patch.Email = &email
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return domain.User{}, fmt.Errorf("%w: username must not be empty", ErrValidation)
		}
		patch.Username = &username
	}
	if patch.Role != nil && *patch.Role != domain.RoleUser && *patch.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, *patch.Role)
	}
	user, ok, err := a.store.UpdateUser(id, patch)
	if err != nil {
		if err == store.ErrDuplicateKey {
			return domain.User{}, ErrDuplicateKey
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// ChangePassword re-hashes and stores a new password. This is the only path
// that can touch the stored hash.
func (a *App) ChangePassword(id, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	hash, err := auth.HashPassword(newPassword, a.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ok, err := a.store.SetPasswordHash(id, hash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns all users (admin dashboard).
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// UsageInput carries the recordable fields of a tool invocation.
type UsageInput struct {
	ToolName         string `json:"toolName"`
	Category         string `json:"category"`
	UserID           string `json:"userId"`
	SessionID        string `json:"sessionId"`
	ProcessingTimeMs *int64 `json:"processingTime"`
	FileSizeBytes    *int64 `json:"fileSize"`
	Success          *bool  `json:"success"`
}

// RecordToolUsage appends an immutable usage event with a generated ID and
// timestamp.
func (a *App) RecordToolUsage(in UsageInput) (domain.ToolUsageEvent, error) {
	if strings.TrimSpace(in.ToolName) == "" || strings.TrimSpace(in.Category) == "" {
		return domain.ToolUsageEvent{}, fmt.Errorf("%w: toolName and category are required", ErrValidation)
	}
	if in.Success == nil {
		return domain.ToolUsageEvent{}, fmt.Errorf("%w: success is required", ErrValidation)
	}
	event := domain.ToolUsageEvent{
		ID:               store.NewID(),
		ToolName:         strings.TrimSpace(in.ToolName),
		Category:         strings.TrimSpace(in.Category),
		UserID:           strings.TrimSpace(in.UserID),
		SessionID:        strings.TrimSpace(in.SessionID),
		ProcessingTimeMs: in.ProcessingTimeMs,
		FileSizeBytes:    in.FileSizeBytes,
		Success:          *in.Success,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.CreateUsage(event); err != nil {
		return domain.ToolUsageEvent{}, fmt.Errorf("save usage event: %w", err)
	}
	return event, nil
}

// ListToolUsage returns events matching the filter, most recent first.
func (a *App) ListToolUsage(filter domain.UsageFilter) ([]domain.ToolUsageEvent, error) {
	return a.store.ListUsage(filter)
}

// Analytics recomputes aggregate statistics from the full event log. Nothing
// is cached; every call reflects the current collection.
func (a *App) Analytics() (stats.Summary, error) {
	events, err := a.store.ListUsage(domain.UsageFilter{})
	if err != nil {
		return stats.Summary{}, fmt.Errorf("list usage: %w", err)
	}
	return stats.Aggregate(events), nil
}

// DailyUsage returns the per-day series for the dashboard chart.
func (a *App) DailyUsage(days int) ([]stats.DailySummary, error) {
	events, err := a.store.ListUsage(domain.UsageFilter{})
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return stats.LastNDays(events, days, time.Now()), nil
}

// AdSlotInput carries the creatable fields of an ad slot.
type AdSlotInput struct {
	Name       string            `json:"name"`
	Position   string            `json:"position"`
	Page       string            `json:"page"`
	IsActive   *bool             `json:"isActive"`
	AdProvider string            `json:"adProvider"`
	AdCode     string            `json:"adCode"`
	Settings   map[string]string `json:"settings"`
}

// CreateAdSlot stores a new ad slot. IsActive defaults to true.
func (a *App) CreateAdSlot(in AdSlotInput) (domain.AdSlot, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Position) == "" || strings.TrimSpace(in.Page) == "" {
		return domain.AdSlot{}, fmt.Errorf("%w: name, position and page are required", ErrValidation)
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	slot := domain.AdSlot{
		ID:         store.NewID(),
		Name:       strings.TrimSpace(in.Name),
		Position:   strings.TrimSpace(in.Position),
		Page:       strings.TrimSpace(in.Page),
		IsActive:   isActive,
		AdProvider: strings.TrimSpace(in.AdProvider),
		AdCode:     in.AdCode,
		Settings:   in.Settings,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.CreateAdSlot(slot); err != nil {
		return domain.AdSlot{}, fmt.Errorf("save ad slot: %w", err)
	}
	return slot, nil
}

// GetAdSlot returns one ad slot by ID.
func (a *App) GetAdSlot(id string) (domain.AdSlot, error) {
	slot, ok, err := a.store.GetAdSlot(id)
	if err != nil {
		return domain.AdSlot{}, fmt.Errorf("fetch ad slot: %w", err)
	}
	if !ok {
		return domain.AdSlot{}, ErrNotFound
	}
	return slot, nil
}

// ListAdSlots returns every ad slot.
func (a *App) ListAdSlots() ([]domain.AdSlot, error) {
	return a.store.ListAdSlots()
}

// ListActiveAdSlots returns active slots for one page.
func (a *App) ListActiveAdSlots(page string) ([]domain.AdSlot, error) {
	return a.store.ListActiveAdSlots(page)
}

// UpdateAdSlot merges the patch over the stored slot.
func (a *App) UpdateAdSlot(id string, patch domain.AdSlotPatch) (domain.AdSlot, error) {
	slot, ok, err := a.store.UpdateAdSlot(id, patch)
	if err != nil {
		return domain.AdSlot{}, fmt.Errorf("update ad slot: %w", err)
	}
	if !ok {
		return domain.AdSlot{}, ErrNotFound
	}
	return slot, nil
}

// DeleteAdSlot removes a slot, reporting whether it existed.
func (a *App) DeleteAdSlot(id string) (bool, error) {
	return a.store.DeleteAdSlot(id)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
