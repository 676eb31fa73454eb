package main

import (
	"errors"
	"fmt"
	"testing"

	web2pdf "github.com/alnah/go-web2pdf"
	"github.com/alnah/go-web2pdf/internal/config"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},

		{"engine launch", web2pdf.ErrEngineLaunch, ExitBackend},
		{"wrapped engine launch", fmt.Errorf("warming pool: %w", web2pdf.ErrEngineLaunch), ExitBackend},

		{"usage", ErrUsage, ExitUsage},
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"invalid config", config.ErrInvalidConfig, ExitUsage},
		{"empty config name", config.ErrEmptyConfigName, ExitUsage},
		{"joined invalid config", errors.Join(fmt.Errorf("%w: a", config.ErrInvalidConfig)), ExitUsage},

		{"doctor not ready", errNotReady, ExitGeneral},
		{"unknown", errors.New("boom"), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodes_BelowReserved(t *testing.T) {
	t.Parallel()

	for _, code := range []int{ExitSuccess, ExitGeneral, ExitUsage, ExitBackend} {
		if code >= 126 {
			t.Errorf("exit code %d collides with shell-reserved range", code)
		}
	}
}
