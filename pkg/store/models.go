package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ToolUsageModel struct {
	ID               string  `gorm:"primaryKey"`
	ToolName         string  `gorm:"not null;index"`
	Category         string  `gorm:"not null;index"`
	UserID           *string `gorm:"index"`
	SessionID        *string
	ProcessingTimeMs *int64
	FileSizeBytes    *int64
	Success          bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null;index"`
}

type AdSlotModel struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	Position   string `gorm:"not null"`
	Page       string `gorm:"not null;index"`
	IsActive   bool   `gorm:"not null"`
	AdProvider string
	AdCode     string         `gorm:"type:text"`
	Settings   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null"`
}

// DailyAnalyticsModel is the pre-aggregated rollup table present in the
// schema. No code path populates it yet; it is migrated so a future batch
// job can fill it without a schema change.
type DailyAnalyticsModel struct {
	ID           string    `gorm:"primaryKey"`
	Day          time.Time `gorm:"not null;uniqueIndex:idx_daily_tool"`
	ToolName     string    `gorm:"not null;uniqueIndex:idx_daily_tool"`
	UsageCount   int64     `gorm:"not null"`
	SuccessCount int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
