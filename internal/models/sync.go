package models

import "time"

// ItemType identifies the kind of planned item a status row tracks.
type ItemType string

const (
	ItemTypeRecipe ItemType = "recipe"
	ItemTypeNote   ItemType = "note"
)

// Valid reports whether the item type is one of the known kinds.
func (t ItemType) Valid() bool {
	return t == ItemTypeRecipe || t == ItemTypeNote
}

// SyncStatus is the per-item lifecycle state.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusRemoved SyncStatus = "removed"
)

// Valid reports whether the status is one of the known states.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusFailed, SyncStatusRemoved:
		return true
	}
	return false
}

// MealSlot maps a planned item onto a configured wall-clock window.
type MealSlot string

const (
	SlotBreakfast MealSlot = "Breakfast"
	SlotLunch     MealSlot = "Lunch"
	SlotDinner    MealSlot = "Dinner"
	SlotSnack     MealSlot = "Snack"
)

// Valid reports whether the slot is one of the known meal slots.
func (m MealSlot) Valid() bool {
	switch m {
	case SlotBreakfast, SlotLunch, SlotDinner, SlotSnack:
		return true
	}
	return false
}

// SyncStatusRecord is the durable per-(user, item) sync outcome. Rows are
// never deleted; removal is a terminal status so the audit trail survives.
type SyncStatusRecord struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	ItemID         string     `db:"item_id" json:"item_id"`
	ItemType       ItemType   `db:"item_type" json:"item_type"`
	EventTitle     string     `db:"event_title" json:"event_title"`
	Date           string     `db:"date" json:"date"`
	Slot           MealSlot   `db:"slot" json:"slot"`
	CalDAVEventUID *string    `db:"caldav_event_uid" json:"caldav_event_uid,omitempty"`
	SyncStatus     SyncStatus `db:"sync_status" json:"sync_status"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	LastSyncAt     *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// SyncStatusSummary aggregates row counts per status for one user.
type SyncStatusSummary struct {
	Pending int `db:"pending" json:"pending"`
	Synced  int `db:"synced" json:"synced"`
	Failed  int `db:"failed" json:"failed"`
	Removed int `db:"removed" json:"removed"`
	Total   int `db:"total" json:"total"`
}

// SyncStatusFilter narrows status listings.
type SyncStatusFilter struct {
	Status   *SyncStatus
	ItemType *ItemType
	Search   string
	Page     int
	PageSize int
}

// SyncEvent is the payload broadcast to connected clients after every
// status-store write.
type SyncEvent struct {
	UserID   string     `json:"user_id"`
	ItemID   string     `json:"item_id"`
	ItemType ItemType   `json:"item_type"`
	Status   SyncStatus `json:"status"`
}
