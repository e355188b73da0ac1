package tracker

import (
	"time"

	"darky/internal/core"
)

// Lifetimes of the ephemeral records. Scheduling a new timer of a class
// cancels and replaces the prior instance of that class.
const (
	DeleteUndoWindow  = 5 * time.Second
	NameUndoWindow    = 5 * time.Second
	AddNoticeWindow   = 3 * time.Second
	HighlightDuration = 2500 * time.Millisecond
)

// PendingDelete keeps a just-deleted gift restorable until its undo window
// elapses. OriginalIndex is where the gift sat in the collection; undo
// clamps it into the current bounds rather than guaranteeing the exact slot.
type PendingDelete struct {
	Gift          core.Gift `json:"gift"`
	OriginalIndex int       `json:"originalIndex"`
}

// PendingAdd is purely informational: it surfaces the "gift was added"
// notice and expires on its own. There is no undo for an add.
type PendingAdd struct {
	Gift core.Gift `json:"gift"`
}

// PendingNameDelete records a name removal together with the gifts the
// removal cascaded over, so a single undo restores all of them.
type PendingNameDelete struct {
	Name          string      `json:"name"`
	Year          int         `json:"year"`
	CascadedGifts []core.Gift `json:"cascadedGifts"`
}
