package common

import "errors"

// ErrModulePaused is returned when a guarded module is administratively paused.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause switches controlled by the administrator.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
