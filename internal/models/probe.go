package models

import "time"

// ProbeErrorKind classifies why a backend is unusable.
type ProbeErrorKind string

const (
	// ProbeTransient means the backend failed in a way worth retrying after
	// the cache entry expires (timeouts, rate limits, 5xx).
	ProbeTransient ProbeErrorKind = "transient"
	// ProbePermanent means the backend rejected the probe in a way unlikely
	// to heal on its own (bad credentials, unknown model).
	ProbePermanent ProbeErrorKind = "permanent"
	// ProbeMisconfigured means the model is gated behind an opt-in flag or
	// credentials that are absent. Misconfigured results are computed
	// locally and never written to the probe cache.
	ProbeMisconfigured ProbeErrorKind = "misconfigured"
)

// ProbeResult records whether a model backend was usable when last checked.
type ProbeResult struct {
	ModelID   string         `json:"model_id"`
	Usable    bool           `json:"usable"`
	ErrorKind ProbeErrorKind `json:"error_kind,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	ProbedAt  time.Time      `json:"probed_at"`
	TTL       time.Duration  `json:"ttl"`
}

// Fresh reports whether the result is still within its TTL at the given
// instant. Stale results must be re-probed before use.
func (p ProbeResult) Fresh(now time.Time) bool {
	if p.ProbedAt.IsZero() || p.TTL <= 0 {
		return false
	}
	return now.Sub(p.ProbedAt) < p.TTL
}
