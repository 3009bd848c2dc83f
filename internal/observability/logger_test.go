package observability

import "testing"

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "", "bogus"} {
		t.Run("level_"+level, func(t *testing.T) {
			logger, err := NewLogger(level)
			if err != nil {
				t.Fatalf("NewLogger(%q): %v", level, err)
			}
			if logger == nil {
				t.Fatalf("NewLogger(%q) returned nil logger", level)
			}
		})
	}
}
