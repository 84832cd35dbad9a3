package sql

import (
	"testing"
)

func TestCheckTermForInjection(t *testing.T) {
	tests := []struct {
		name              string
		term              string
		expectInjection   bool
		expectFingerprint bool // True if we expect a non-empty fingerprint
	}{
		// Clean terms - should pass
		{
			name:            "plain company name",
			term:            "Acme Corporation",
			expectInjection: false,
		},
		{
			name:            "ticker symbol",
			term:            "MSFT",
			expectInjection: false,
		},
		{
			name:            "name with comma and suffix",
			term:            "NIKE, INC.",
			expectInjection: false,
		},
		{
			name:            "name with ampersand",
			term:            "Johnson & Johnson",
			expectInjection: false,
		},
		{
			name:            "apostrophe in name",
			term:            "O'Brien Holdings",
			expectInjection: false,
		},
		{
			name:            "empty string",
			term:            "",
			expectInjection: false,
		},
		{
			name:            "double dash in text",
			term:            "pre-merger -- legacy name",
			expectInjection: false,
		},

		// Classic SQL injection patterns
		{
			name:              "classic quote injection",
			term:              "' OR '1'='1",
			expectInjection:   true,
			expectFingerprint: true,
		},
		{
			name:              "drop table injection",
			term:              "'; DROP TABLE users--",
			expectInjection:   true,
			expectFingerprint: true,
		},
		{
			name:              "union select injection",
			term:              "1 UNION SELECT * FROM passwords",
			expectInjection:   true,
			expectFingerprint: true,
		},
		{
			name:              "comment injection",
			term:              "admin'--",
			expectInjection:   true,
			expectFingerprint: true,
		},
		{
			name:              "time-based blind injection",
			term:              "1' AND SLEEP(5)--",
			expectInjection:   true,
			expectFingerprint: true,
		},
		{
			name:              "stacked queries",
			term:              "admin'; DELETE FROM logs; --",
			expectInjection:   true,
			expectFingerprint: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckTermForInjection(tt.term)

			if tt.expectInjection {
				if result == nil {
					t.Errorf("expected injection detection, got nil")
					return
				}
				if !result.IsSQLi {
					t.Errorf("expected IsSQLi=true, got false")
				}
				if result.Term != tt.term {
					t.Errorf("expected Term=%q, got %q", tt.term, result.Term)
				}
				if tt.expectFingerprint && result.Fingerprint == "" {
					t.Errorf("expected non-empty fingerprint, got empty string")
				}
			} else {
				if result != nil {
					t.Errorf("expected no injection detection (nil), got result: %+v", result)
				}
			}
		})
	}
}
