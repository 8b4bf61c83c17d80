package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModulePaused is returned by Guard for a module switched off by an
// operator.
var ErrModulePaused = errors.New("module paused")

// PauseView reports operator pauses by module name.
type PauseView interface {
	IsPaused(module string) bool
}

// PauseSet is an in-memory PauseView. Module names are case-insensitive.
type PauseSet map[string]bool

func (s PauseSet) IsPaused(module string) bool {
	return s[strings.ToLower(strings.TrimSpace(module))]
}

// Guard fails with ErrModulePaused when module is paused. A nil view pauses
// nothing.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", module, ErrModulePaused)
	}
	return nil
}
