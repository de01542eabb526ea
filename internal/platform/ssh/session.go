package ssh

// Mode describes the privilege state of the remote session with respect to
// the container runtime.
//
// The bootstrapper adds the SSH user to the docker group, but group
// membership only applies to sessions opened afterwards. The mode makes
// that side effect an explicit state transition:
//
//	Unprivileged -> PrivilegedPendingRestart -> Privileged
//
// Callers must Reconnect() before running stages that assume non-root
// access to the runtime.
type Mode int

const (
	// ModeUnprivileged is the initial state: docker commands need sudo.
	ModeUnprivileged Mode = iota

	// ModePrivilegedPendingRestart means the group change was made but the
	// current session predates it.
	ModePrivilegedPendingRestart

	// ModePrivileged means the session was re-established after the group
	// change and can use the runtime directly.
	ModePrivileged
)

// String returns the mode name for logs and errors.
func (m Mode) String() string {
	switch m {
	case ModeUnprivileged:
		return "unprivileged"
	case ModePrivilegedPendingRestart:
		return "privileged-pending-restart"
	case ModePrivileged:
		return "privileged"
	default:
		return "unknown"
	}
}
