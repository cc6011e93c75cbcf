package model

import "time"

// Link status values. A frozen link keeps its history but stops redirecting.
const (
	StatusActive = "active"
	StatusFrozen = "frozen"
)

// Link maps a short link to its destination URL.
//
// ShortLink holds the fully-qualified form ("<domain>/s/<code>") and is the
// unique key the redirect path resolves against.
type Link struct {
	ID          string    `db:"id" gorm:"primaryKey;size:36"`
	UserID      string    `db:"user_id" gorm:"size:36;not null;index"`
	LongLink    string    `db:"long_link" gorm:"type:text;not null"`
	ShortLink   string    `db:"short_link" gorm:"size:255;not null;uniqueIndex"`
	Title       *string   `db:"title" gorm:"size:255"`
	Description *string   `db:"description" gorm:"type:text"`
	Tags        []string  `db:"tags" gorm:"serializer:json;type:jsonb"`
	Status      string    `db:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName keeps the singular table name the original schema used.
func (Link) TableName() string { return "link" }

// LinkWithStats is a Link joined with its click count for dashboard listings.
type LinkWithStats struct {
	Link
	Clicks int64 `gorm:"column:clicks"`
}
