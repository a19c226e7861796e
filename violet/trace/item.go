// Package trace provides the per-state cost records reconstructed from Violet plugin logs.
// It holds pure data types and does not depend on the parser or the differ.
package trace

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RootCaller is the caller address recorded for calls at the root of a call chain.
const RootCaller = "0x0"

// Key is the identity of a call event used when diffing traces.
// Timing and activity identifiers are deliberately not part of it.
type Key struct {
	Function string
	Caller   string
}

// String renders the key as "(function, caller)".
func (k Key) String() string {
	return "(" + k.Function + ", " + k.Caller + ")"
}

// Item captures a single function call observed by the LatencyTracker plugin.
type Item struct {
	Function      string          // function start address, hex
	ExecutionTime decimal.Decimal // milliseconds
	Caller        string          // caller start address, hex; RootCaller at the chain root
	ActivityID    uint64          // unique per call within a state
	ParentID      uint64          // activity id of the enclosing call
}

// NewItem creates an Item.
func NewItem(function string, executionTime decimal.Decimal, caller string, activityID, parentID uint64) Item {
	return Item{
		Function:      function,
		ExecutionTime: executionTime,
		Caller:        caller,
		ActivityID:    activityID,
		ParentID:      parentID,
	}
}

// Key returns the (function, caller) identity of the item.
func (it Item) Key() Key {
	return Key{Function: it.Function, Caller: it.Caller}
}

// IsRoot reports whether the call has no enclosing caller.
func (it Item) IsRoot() bool {
	return it.Caller == RootCaller
}

func (it Item) String() string {
	return fmt.Sprintf("Function %s; caller %s; activityId %d; parentId %d; runs %sms",
		it.Function, it.Caller, it.ActivityID, it.ParentID, it.ExecutionTime.String())
}
