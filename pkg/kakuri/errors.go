package kakuri

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions the orchestrator distinguishes.
// They are matched with errors.Is after %w wrapping adds context.
var (
	// ErrNotFound covers missing containers, commands, profiles and
	// named VPN configs.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by create for a taken name.
	ErrAlreadyExists = errors.New("already exists")

	// ErrBusyMounts is returned by remove when mounts under the merged
	// root cannot be cleared.
	ErrBusyMounts = errors.New("mounts are busy")

	// ErrNamespaceUnsupported means the kernel refuses unprivileged
	// user namespaces.
	ErrNamespaceUnsupported = errors.New("user namespaces are not available")

	// ErrOverlayUnsupported means the overlay mount was refused; there
	// is no fallback.
	ErrOverlayUnsupported = errors.New("overlay filesystem is not available")

	// ErrVpnUnavailable means the WireGuard tooling or configuration
	// cannot be used.
	ErrVpnUnavailable = errors.New("vpn is unavailable")
)

// UsageError reports invalid user input; the CLI maps it to exit
// code 2.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Usagef builds a UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// MountError wraps a mount protocol failure with the step that failed,
// so teardown diagnostics can name the exact operation.
type MountError struct {
	Step string
	Err  error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount step %s failed: %v", e.Step, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// ChildExitError carries a nonzero exit status of the sandboxed
// command. The CLI forwards the code verbatim.
type ChildExitError struct {
	Code int
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}
