// Package applier opens an authenticated remote shell to an edge router and
// replaces the contents of a policy routing table with a single
// SRv6-encapsulating route by clearing the table and then adding the route;
// the table is briefly empty between the two steps (spec.md section 4.5).
package applier

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
)

// Shell is a single authenticated SSH connection to one edge router, reused
// across every command issued for one direction's three tables per cycle,
// then closed. Never cached across cycles (spec.md section 9).
type Shell struct {
	client *ssh.Client
}

// Credentials bundles what Dial needs to authenticate.
type Credentials struct {
	Host    string
	Port    int
	User    string
	Pass    string
	Timeout time.Duration
}

// Dial opens one SSH connection to the edge router described by c. The
// host key is not pinned (the reference deployment uses paramiko's
// auto-add policy; spec.md does not specify key management, and the
// control channel is explicitly out of scope).
func Dial(c Credentials) (*Shell, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.Password(c.Pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	addr := fmt.Sprintf("[%s]:%d", c.Host, c.Port)
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, &orcherr.ConnectError{Host: c.Host, Err: err}
	}
	return &Shell{client: client}, nil
}

// Close releases the underlying connection. Safe to call on a nil Shell.
func (s *Shell) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// CommandResult is the outcome of one remote command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes one command over a fresh SSH session on the shared
// connection and returns its exit status, stdout, and stderr — mirroring
// SSHConnectionManager.execute_command in original_source.
func (s *Shell) Run(command string) (CommandResult, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	err = session.Run(command)
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return CommandResult{}, err
		}
	}

	return CommandResult{
		ExitCode: exitCode,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
	}, nil
}

// idempotentStderrMarkers are substrings that, on a nonzero exit, indicate
// the command failed only because its effect already held — "already
// exists" on create, "no such"/"not found" on delete — matching
// original_source's case-insensitive checks.
var idempotentStderrMarkers = []string{"already exists", "exist", "no such", "not found", "does not exist"}

// IsIdempotentFailure reports whether a nonzero exit should be treated as
// success because the command's effect was already in place.
func IsIdempotentFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range idempotentStderrMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
