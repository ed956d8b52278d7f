package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHRunner runs the decision procedure on a remote host over one fresh
// connection per invocation.
type SSHRunner struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	// Timeout bounds connection setup when ctx carries no earlier deadline.
	Timeout time.Duration
}

func (r SSHRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, int32, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, nil, ExitUnavailable, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, nil, ExitUnavailable, fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if len(stdin) > 0 {
		session.Stdin = bytes.NewReader(stdin)
	}
	if err := session.Start(remoteCommand(name, args)); err != nil {
		return nil, nil, ExitUnavailable, fmt.Errorf("ssh start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = client.Close()
		<-done
		return stdout.Bytes(), stderr.Bytes(), ExitKilled, ctx.Err()
	}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	case errors.As(err, &exitErr):
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitStatus()), err
	default:
		return stdout.Bytes(), stderr.Bytes(), 1, err
	}
}

// connect dials and completes the ssh handshake. Both steps end at the
// setup deadline or when ctx is done, whichever comes first.
func (r SSHRunner) connect(ctx context.Context) (*ssh.Client, error) {
	addr, err := r.target()
	if err != nil {
		return nil, err
	}
	cfg, err := r.clientConfig()
	if err != nil {
		return nil, err
	}

	deadline, bounded := ctx.Deadline()
	if r.Timeout > 0 {
		if limit := time.Now().Add(r.Timeout); !bounded || limit.Before(deadline) {
			deadline, bounded = limit, true
		}
	}

	var dialer net.Dialer
	if bounded {
		dialer.Deadline = deadline
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	if bounded {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if !stop() {
		if err == nil {
			clientConn.Close()
		}
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	// the command itself is bounded by ctx in Run
	if err := conn.SetDeadline(time.Time{}); err != nil {
		clientConn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	return ssh.NewClient(clientConn, chans, reqs), nil
}

// target is host:port, defaulting to port 22 unless Host already names one.
func (r SSHRunner) target() (string, error) {
	host := strings.TrimSpace(r.Host)
	switch {
	case host == "":
		return "", errors.New("ssh: host required")
	case r.Port != "":
		return net.JoinHostPort(host, r.Port), nil
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}
	return net.JoinHostPort(host, "22"), nil
}

func (r SSHRunner) clientConfig() (*ssh.ClientConfig, error) {
	if strings.TrimSpace(r.User) == "" {
		return nil, errors.New("ssh: user required")
	}
	if strings.TrimSpace(r.KeyPath) == "" {
		return nil, errors.New("ssh: key path required")
	}
	pem, err := os.ReadFile(r.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh: read key: %w", err)
	}
	var signer ssh.Signer
	if len(r.Passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, r.Passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("ssh: parse key %s: %w", r.KeyPath, err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if !r.InsecureSkipHostKeyChecking {
		path := strings.TrimSpace(r.KnownHostsPath)
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.New("ssh: known_hosts path unset and no home directory")
			}
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
		if hostKeys, err = knownhosts.New(path); err != nil {
			return nil, fmt.Errorf("ssh: known_hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            r.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         r.Timeout,
	}, nil
}

// remoteCommand renders name and args for the remote shell, quoting only
// the words that need it.
func remoteCommand(name string, args []string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{name}, args...) {
		words = append(words, quoteWord(w))
	}
	return strings.Join(words, " ")
}

func quoteWord(w string) string {
	if w != "" && strings.IndexFunc(w, unsafeShellRune) < 0 {
		return w
	}
	return "'" + strings.ReplaceAll(w, "'", `'\''`) + "'"
}

func unsafeShellRune(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case strings.ContainsRune("-_./=:,+@%", c):
		return false
	}
	return true
}
