package models

import "time"

// KeyBinding is the one persisted relation: an issued key, the identity it
// belongs to, and the hardware fingerprint it was locked to on first use.
//
// ActivatedAt marks the start of the current activation window and is reset
// in place on reactivation; expired rows are never deleted, they go inert
// until the identity requests the key again.
type KeyBinding struct {
	ID         uint    `gorm:"primaryKey"`
	Identity   string  `gorm:"size:50;uniqueIndex;not null"`
	Key        string  `gorm:"size:100;uniqueIndex;not null"`
	HardwareID *string `gorm:"size:100"`

	ActivatedAt time.Time `gorm:"not null;index"`
	// Notified is scoped to the current activation window, not to the row's
	// whole history. Reset on reactivation and by the rollover pass.
	Notified bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bound reports whether a hardware fingerprint has been registered.
func (b *KeyBinding) Bound() bool {
	return b.HardwareID != nil && *b.HardwareID != ""
}

// Expired reports whether the activation window has elapsed at now.
func (b *KeyBinding) Expired(window time.Duration, now time.Time) bool {
	return now.Sub(b.ActivatedAt) >= window
}
