package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// archiveNamePattern matches iznik-2025-10-31-04-00.xbstream style names
var archiveNamePattern = regexp.MustCompile(`iznik-(\d{4})-(\d{2})-(\d{2})`)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"-" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Archive is one backup archive found in the bucket during the last inventory refresh
type Archive struct {
	BaseModel
	BackupID  string `json:"date" gorm:"not null;index"` // YYYYMMDD parsed from the filename
	Filename  string `json:"filename" gorm:"not null;unique"`
	URL       string `json:"url" gorm:"not null"`
	Size      int64  `json:"size" gorm:"not null"`
	SizeHuman string `json:"size_human"`
	Timestamp string `json:"timestamp"` // Upload time as reported by the object store

	// Computed fields (populated at runtime, not persisted)
	Loaded bool `json:"loaded" gorm:"-"`
}

// ParseBackupID extracts the YYYYMMDD identifier from an archive filename
func ParseBackupID(filename string) (string, bool) {
	m := archiveNamePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("%s%s%s", m[1], m[2], m[3]), true
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Archive{})
}
