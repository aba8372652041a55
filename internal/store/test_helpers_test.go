package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// volumeTrigger builds a parallel trigger of volume keys on device.
func volumeTrigger(device string) trigger.Trigger {
	dev := trigger.ExternalDevice{Descriptor: device}
	tr := compose.AddPhysicalKey(trigger.New(), compose.PhysicalKeyParams{
		KeyCode:  trigger.KeyCodeVolumeUp,
		ScanCode: trigger.NewScanCode(trigger.ScanCodeVolumeUp),
		Device:   dev,
	})
	return compose.AddPhysicalKey(tr, compose.PhysicalKeyParams{
		KeyCode:  trigger.KeyCodeVolumeDown,
		ScanCode: trigger.NewScanCode(trigger.ScanCodeVolumeDown),
		Device:   dev,
	})
}
