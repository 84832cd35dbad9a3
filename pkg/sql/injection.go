package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// caller-supplied term.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Term        string // The term that failed the check
}

// CheckTermForInjection uses libinjection to detect SQL injection patterns in
// a free-text term before it is persisted as a learned search term.
//
// Learned terms never reach a SQL string unparameterized, but they are stored
// and later echoed into match results, so terms carrying injection payloads
// are rejected at the door rather than laundered through the ledger.
//
// Returns nil if no injection is detected, or an InjectionCheckResult with
// details about the detected pattern.
//
// Example:
//
//	// Normal entity alias - no injection
//	result := CheckTermForInjection("Big Blue")
//	// result == nil
//
//	// Injection attempt detected
//	result := CheckTermForInjection("'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s&1c" (or similar)
func CheckTermForInjection(term string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(term)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Term:        term,
		}
	}

	return nil
}
