package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"convertbox/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &ToolUsageModel{}, &AdSlotModel{}, &DailyAnalyticsModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser stores a new user. Unique indexes on email and username back the
// duplicate check, so concurrent creates cannot both win.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUser merges the patch over the stored record and refreshes updated_at.
func (s *GormStore) UpdateUser(id string, patch domain.UserPatch) (domain.User, bool, error) {
	var updated UserModel
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if patch.Username != nil {
			updates["username"] = *patch.Username
		}
		if patch.Email != nil {
			updates["email"] = *patch.Email
		}
		if patch.Role != nil {
			updates["role"] = string(*patch.Role)
		}
		if err := tx.Model(&UserModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateKey
			}
			return err
		}
		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return domain.User{}, false, err
	}
	if !found {
		return domain.User{}, false, nil
	}
	return userFromModel(updated), true, nil
}

// SetPasswordHash replaces the stored password hash.
func (s *GormStore) SetPasswordHash(id, hash string) (bool, error) {
	res := s.db.Model(&UserModel{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateUsage appends an immutable usage event.
func (s *GormStore) CreateUsage(e domain.ToolUsageEvent) error {
	model := usageToModel(e)
	return s.db.Create(&model).Error
}

// ListUsage returns matching events ordered by timestamp descending.
func (s *GormStore) ListUsage(filter domain.UsageFilter) ([]domain.ToolUsageEvent, error) {
	tx := s.db.Model(&ToolUsageModel{})
	if filter.ToolName != "" {
		tx = tx.Where("tool_name = ?", filter.ToolName)
	}
	if filter.Category != "" {
		tx = tx.Where("category = ?", filter.Category)
	}
	if !filter.DateFrom.IsZero() {
		tx = tx.Where("created_at >= ?", filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		tx = tx.Where("created_at <= ?", filter.DateTo)
	}
	var models []ToolUsageModel
	if err := tx.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ToolUsageEvent, 0, len(models))
	for _, m := range models {
		res = append(res, usageFromModel(m))
	}
	return res, nil
}

// CreateAdSlot stores a new ad slot.
func (s *GormStore) CreateAdSlot(slot domain.AdSlot) error {
	model := slotToModel(slot)
	return s.db.Create(&model).Error
}

// GetAdSlot retrieves an ad slot by ID.
func (s *GormStore) GetAdSlot(id string) (domain.AdSlot, bool, error) {
	var model AdSlotModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AdSlot{}, false, nil
		}
		return domain.AdSlot{}, false, err
	}
	return slotFromModel(model), true, nil
}

// ListAdSlots returns all ad slots ordered by created_at.
func (s *GormStore) ListAdSlots() ([]domain.AdSlot, error) {
	return s.listSlots()
}

// ListActiveAdSlots returns active slots for the given page.
func (s *GormStore) ListActiveAdSlots(page string) ([]domain.AdSlot, error) {
	return s.listSlots("page = ? AND is_active = ?", page, true)
}

func (s *GormStore) listSlots(conds ...any) ([]domain.AdSlot, error) {
	var models []AdSlotModel
	tx := s.db.Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AdSlot, 0, len(models))
	for _, m := range models {
		res = append(res, slotFromModel(m))
	}
	return res, nil
}

// UpdateAdSlot merges the patch over the stored slot.
func (s *GormStore) UpdateAdSlot(id string, patch domain.AdSlotPatch) (domain.AdSlot, bool, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Position != nil {
		updates["position"] = *patch.Position
	}
	if patch.Page != nil {
		updates["page"] = *patch.Page
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if patch.AdProvider != nil {
		updates["ad_provider"] = *patch.AdProvider
	}
	if patch.AdCode != nil {
		updates["ad_code"] = *patch.AdCode
	}
	if patch.Settings != nil {
		raw, err := json.Marshal(patch.Settings)
		if err != nil {
			return domain.AdSlot{}, false, err
		}
		updates["settings"] = datatypes.JSON(raw)
	}
	if len(updates) > 0 {
		res := s.db.Model(&AdSlotModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return domain.AdSlot{}, false, res.Error
		}
		if res.RowsAffected == 0 {
			return domain.AdSlot{}, false, nil
		}
	}
	return s.GetAdSlot(id)
}

// DeleteAdSlot removes a slot. The second delete of the same ID reports false.
func (s *GormStore) DeleteAdSlot(id string) (bool, error) {
	res := s.db.Delete(&AdSlotModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdSlotCount returns number of ad slots.
func (s *GormStore) AdSlotCount() (int, error) {
	var count int64
	if err := s.db.Model(&AdSlotModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func usageToModel(e domain.ToolUsageEvent) ToolUsageModel {
	var userID, sessionID *string
	if e.UserID != "" {
		v := e.UserID
		userID = &v
	}
	if e.SessionID != "" {
		v := e.SessionID
		sessionID = &v
	}
	return ToolUsageModel{
		ID:               e.ID,
		ToolName:         e.ToolName,
		Category:         e.Category,
		UserID:           userID,
		SessionID:        sessionID,
		ProcessingTimeMs: e.ProcessingTimeMs,
		FileSizeBytes:    e.FileSizeBytes,
		Success:          e.Success,
		CreatedAt:        e.CreatedAt,
	}
}

func usageFromModel(m ToolUsageModel) domain.ToolUsageEvent {
	e := domain.ToolUsageEvent{
		ID:               m.ID,
		ToolName:         m.ToolName,
		Category:         m.Category,
		ProcessingTimeMs: m.ProcessingTimeMs,
		FileSizeBytes:    m.FileSizeBytes,
		Success:          m.Success,
		CreatedAt:        m.CreatedAt,
	}
	if m.UserID != nil {
		e.UserID = *m.UserID
	}
	if m.SessionID != nil {
		e.SessionID = *m.SessionID
	}
	return e
}

func slotToModel(s domain.AdSlot) AdSlotModel {
	raw, _ := json.Marshal(s.Settings)
	if s.Settings == nil {
		raw = nil
	}
	return AdSlotModel{
		ID:         s.ID,
		Name:       s.Name,
		Position:   s.Position,
		Page:       s.Page,
		IsActive:   s.IsActive,
		AdProvider: s.AdProvider,
		AdCode:     s.AdCode,
		Settings:   datatypes.JSON(raw),
		CreatedAt:  s.CreatedAt,
	}
}

func slotFromModel(m AdSlotModel) domain.AdSlot {
	var settings map[string]string
	if len(m.Settings) > 0 {
		_ = json.Unmarshal(m.Settings, &settings)
	}
	return domain.AdSlot{
		ID:         m.ID,
		Name:       m.Name,
		Position:   m.Position,
		Page:       m.Page,
		IsActive:   m.IsActive,
		AdProvider: m.AdProvider,
		AdCode:     m.AdCode,
		Settings:   settings,
		CreatedAt:  m.CreatedAt,
	}
}
