package dto

// SyncItemRequest asks the engine to project one planned item onto the
// user's remote calendar.
type SyncItemRequest struct {
	ItemID     string `json:"item_id" binding:"required"`
	ItemType   string `json:"item_type" binding:"required,oneof=recipe note"`
	EventTitle string `json:"event_title" binding:"required"`
	Date       string `json:"date" binding:"required,datetime=2006-01-02"`
	Slot       string `json:"slot" binding:"required,oneof=Breakfast Lunch Dinner Snack"`
	RecipeID   string `json:"recipe_id,omitempty"`
}

// SyncItemResponse reports the remote UID written for the item.
type SyncItemResponse struct {
	UID   string `json:"uid"`
	IsNew bool   `json:"is_new"`
}

// SettingsRequest carries the per-user CalDAV configuration. The password
// is accepted on write but never echoed back.
type SettingsRequest struct {
	ServerURL     string `json:"server_url" binding:"required,url" validate:"required,url"`
	Username      string `json:"username" binding:"required" validate:"required"`
	Password      string `json:"password" binding:"required" validate:"required"`
	Enabled       bool   `json:"enabled"`
	BreakfastTime string `json:"breakfast_time" validate:"omitempty,timerange"`
	LunchTime     string `json:"lunch_time" validate:"omitempty,timerange"`
	DinnerTime    string `json:"dinner_time" validate:"omitempty,timerange"`
	SnackTime     string `json:"snack_time" validate:"omitempty,timerange"`
}

// SettingsResponse mirrors stored settings without the credential.
type SettingsResponse struct {
	ServerURL     string `json:"server_url"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	BreakfastTime string `json:"breakfast_time"`
	LunchTime     string `json:"lunch_time"`
	DinnerTime    string `json:"dinner_time"`
	SnackTime     string `json:"snack_time"`
}

// TestConnectionRequest optionally overrides stored credentials; with an
// empty body the stored configuration is probed instead.
type TestConnectionRequest struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// TestConnectionResponse is always HTTP 200; failure lives in the payload.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatusListQuery narrows and paginates the status table.
type StatusListQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending synced failed removed"`
	ItemType string `form:"item_type" binding:"omitempty,oneof=recipe note"`
	Search   string `form:"search"`
	Page     int    `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

// ResyncRequest triggers a background re-sync of previously failed rows.
type ResyncRequest struct {
	IncludePending bool `json:"include_pending"`
}

// ResyncResponse reports how many items were queued.
type ResyncResponse struct {
	Enqueued int `json:"enqueued"`
}
