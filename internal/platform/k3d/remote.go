package k3d

import (
	"context"
	"strings"

	"github.com/imamik/k3dops/internal/platform/ssh"
)

// RemoteRunner executes k3d on the provisioned host over SSH. The docker
// daemon lives there, so the CLI has to run there too.
type RemoteRunner struct {
	session ssh.Session
}

// NewRemoteRunner creates a runner on an established SSH session.
func NewRemoteRunner(session ssh.Session) *RemoteRunner {
	return &RemoteRunner{session: session}
}

// Run executes `k3d args...` on the remote host.
func (r *RemoteRunner) Run(ctx context.Context, args ...string) (string, error) {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, "k3d")
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	return r.session.Execute(ctx, strings.Join(quoted, " "))
}

// shellQuote single-quotes an argument when it contains characters the
// remote shell would interpret.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$`&|;<>(){}*?#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
