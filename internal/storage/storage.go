// Package storage persists the identity of the ban list message across restarts.
package storage

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
)

// ErrCorrupt indicates the stored record exists but cannot be decoded.
var ErrCorrupt = errors.New("pointer record is corrupt")

// PointerStore holds at most one ban list message ID. Writes are last-writer-wins
// overwrites of that single value.
type PointerStore interface {
	// BanListMessageID returns the stored message ID, or 0 if none was ever saved.
	BanListMessageID(ctx context.Context) (snowflake.ID, error)
	// SetBanListMessageID replaces the stored message ID.
	SetBanListMessageID(ctx context.Context, messageID snowflake.ID) error
	Close() error
}

// document is the on-disk layout of the pointer record.
type document struct {
	BanListMessageID string `json:"banListMessageId,omitempty"`
}
