package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer SetLogger(orig)

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("sensor %d ready", 2)
	if got != "sensor 2 ready" {
		t.Errorf("captured %q, want %q", got, "sensor 2 ready")
	}

	// A nil logger must not panic.
	SetLogger(nil)
	Logf("dropped")
}
