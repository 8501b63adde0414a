package reconcile

import "channel-publisher/core/catalog"

// KeySet is a set of identity keys.
type KeySet = map[string]struct{}

// UploadTask is one local item that is not on the channel yet.
type UploadTask struct {
	// Key is the identity key.
	Key string
	// Item is the local file to publish.
	Item catalog.BookItem
}

// ReconcileResult describes one identity key across both sides.
type ReconcileResult struct {
	// Key is the identity key.
	Key string `json:"key"`

	// Title is the local title, or the channel title for remote-only keys.
	Title string `json:"title"`

	// LocalPresent indicates the key exists in the local catalog.
	LocalPresent bool `json:"local_present"`

	// ChannelPresent indicates the key exists in the channel index.
	ChannelPresent bool `json:"channel_present"`

	// Stale indicates the index record could not be confirmed on the channel.
	Stale bool `json:"stale"`

	// Position is the scan position, -1 for remote-only keys.
	Position int `json:"position"`

	// MessageID is the channel message id, 0 when unpublished.
	MessageID int64 `json:"message_id,omitempty"`

	// Mismatch contains descriptions of differences between the two sides,
	// e.g. "category: local=sci_fi channel=fantasy".
	Mismatch []string `json:"mismatch"`
}

// ActionType represents the type of maintenance action.
type ActionType string

const (
	// ActionUpload publishes a local item missing from the channel.
	ActionUpload ActionType = "upload"
	// ActionPrune removes a stale record from the index.
	ActionPrune ActionType = "prune"
	// ActionFixCategory rewrites a record's category to its normalized form.
	ActionFixCategory ActionType = "fix_category"
)

// Action represents a planned maintenance operation.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the identity key.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`
}

// ReconcilePlan contains reconciliation results and planned actions.
type ReconcilePlan struct {
	// Results contains per-key data: local items in scan order, then
	// remote-only keys in channel order.
	Results []ReconcileResult `json:"results"`

	// Actions contains planned maintenance operations.
	Actions []Action `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a reconcile plan.
type PlanSummary struct {
	// TotalKeys is the number of distinct keys on both sides.
	TotalKeys int `json:"total_keys"`

	// Local counts distinct local keys.
	Local int `json:"local"`

	// Published counts local keys present in the index.
	Published int `json:"published"`

	// Missing counts local keys absent from the index.
	Missing int `json:"missing"`

	// Stale counts index records flagged stale.
	Stale int `json:"stale"`

	// RemoteOnly counts index keys with no local file.
	RemoteOnly int `json:"remote_only"`

	// Mismatches counts keys with differences between the sides.
	Mismatches int `json:"mismatches"`

	// UploadActions, PruneActions and FixActions count planned actions.
	UploadActions int `json:"upload_actions"`
	PruneActions  int `json:"prune_actions"`
	FixActions    int `json:"fix_actions"`
}
