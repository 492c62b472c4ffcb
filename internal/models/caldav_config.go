package models

import "time"

// CalDAVConfig is the per-user remote calendar configuration. The password
// column stores ciphertext; the repository decrypts on read so callers only
// ever see the plaintext credential in memory.
type CalDAVConfig struct {
	UserID        string    `db:"user_id" json:"user_id"`
	ServerURL     string    `db:"server_url" json:"server_url"`
	Username      string    `db:"username" json:"username"`
	Password      string    `db:"password" json:"-"`
	Enabled       bool      `db:"enabled" json:"enabled"`
	BreakfastTime string    `db:"breakfast_time" json:"breakfast_time"`
	LunchTime     string    `db:"lunch_time" json:"lunch_time"`
	DinnerTime    string    `db:"dinner_time" json:"dinner_time"`
	SnackTime     string    `db:"snack_time" json:"snack_time"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SlotWindow returns the configured "HH:MM-HH:MM" range for a meal slot.
func (c *CalDAVConfig) SlotWindow(slot MealSlot) string {
	switch slot {
	case SlotBreakfast:
		return c.BreakfastTime
	case SlotLunch:
		return c.LunchTime
	case SlotDinner:
		return c.DinnerTime
	case SlotSnack:
		return c.SnackTime
	}
	return ""
}
