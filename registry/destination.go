// Package registry owns the Subscription set and mediates add/remove
// operations from the control plane (spec §4.5).
package registry

import "sync/atomic"

// Destination is the control-plane-visible view of one registered webhook
// target: {id, url} plus the last delivery error, if any (SUPPLEMENTED
// FEATURES: original_source types/entry.rs's error tracking, which the
// distilled spec names in §3 as last_error? but never wires up).
type Destination struct {
	ID  string
	URL string

	lastError atomic.Pointer[string]
}

// LastError returns the most recent delivery error's message, or "" if the
// destination has never failed a delivery.
func (d *Destination) LastError() string {
	if p := d.lastError.Load(); p != nil {
		return *p
	}
	return ""
}

func (d *Destination) setLastError(err error) {
	msg := err.Error()
	d.lastError.Store(&msg)
}

// Snapshot is the {id, url} pair returned to the control plane (spec §4.5
// list(), §6 GET /).
type Snapshot struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
