package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := NewConfigError("server.listen_address", "missing port")
		if !strings.Contains(err.Error(), "server.listen_address") {
			t.Errorf("field missing from message: %q", err.Error())
		}
	})

	t.Run("without field", func(t *testing.T) {
		err := NewConfigError("", "file not found")
		if !strings.Contains(err.Error(), "file not found") {
			t.Errorf("message lost: %q", err.Error())
		}
	})
}

func TestCommandErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("listener busy")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("command name missing: %q", err.Error())
	}
}
