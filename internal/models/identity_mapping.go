package models

import "time"

// IdentityMapping pins a display username to a stable opaque actor id.
// Created lazily the first time a username is seen; never deleted.
type IdentityMapping struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Username   string    `json:"username" gorm:"uniqueIndex"`
	ActorID    string    `json:"actor_id" gorm:"uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}
