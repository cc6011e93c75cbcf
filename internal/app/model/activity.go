package model

import "time"

// Activity is one recorded click against a Link. Rows are append-only: they
// are never updated, and deleted only in bulk when the owning Link goes away.
type Activity struct {
	ID          string    `db:"id" gorm:"primaryKey;size:36"`
	LinkID      string    `db:"link_id" gorm:"size:36;not null;index"`
	IP          string    `db:"ip" gorm:"size:64;not null"`
	Fingerprint *string   `db:"fingerprint" gorm:"size:128"`
	Device      *string   `db:"device" gorm:"size:32"`
	Origin      *string   `db:"origin" gorm:"size:255"`
	ClickedAt   time.Time `db:"clicked_at" gorm:"autoCreateTime;index"`

	// Association so AutoMigrate emits the foreign key. The constraint, not
	// application code, is what guarantees an Activity never outlives or
	// precedes its Link.
	Link *Link `gorm:"foreignKey:LinkID;references:ID"`
}

// TableName keeps the singular table name the original schema used.
func (Activity) TableName() string { return "activity" }

// NATS JetStream wiring for the asynchronous click pipeline.
const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

// ClickMessage is the wire form of a click published to JetStream before it
// becomes an Activity row.
type ClickMessage struct {
	LinkID      string    `json:"link_id"`
	IP          string    `json:"ip"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Device      string    `json:"device,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	ClickedAt   time.Time `json:"clicked_at"`
}
