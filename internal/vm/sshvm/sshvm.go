/*
 * clitutor: interactive command-line exercises over a sentinel-delimited shell session
 * Copyright 2019-2026 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package sshvm implements vm.VM against a real remote host over SSH,
// for the optional `clitutor run --remote` demo mode. Its auth-method
// collection (agent keys first, then identity files, falling back to
// an interactive password/passphrase prompt) follows the usual
// ssh-client-library idiom of trying every available identity before
// giving up. Host keys are checked with golang.org/x/crypto/ssh/knownhosts
// when a known_hosts file is given; without one (the default), any
// host key is accepted.
package sshvm

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nosshtradamus/clitutor/internal/vm"
)

// Options configures a Dial.
type Options struct {
	Addr           string // host:port
	User           string
	IdentityFiles  []string
	KnownHostsFile string // empty disables host-key verification (insecure)
	PasswordPrompt func(prompt string) (string, error)
}

// VM drives a shell on a remote host over a single SSH session with a
// requested PTY, plus a second session per out-of-band file operation.
type VM struct {
	mu      sync.Mutex
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	closed  bool
}

// Dial opens the SSH connection and authenticates, without starting a
// shell yet; call Boot to start the interactive session.
func Dial(opts Options) (*VM, error) {
	methods, err := authMethods(opts)
	if err != nil {
		return nil, fmt.Errorf("sshvm: collect auth methods: %w", err)
	}

	hostKeyCallback, err := hostKeyCallback(opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sshvm: host key callback: %w", err)
	}

	client, err := ssh.Dial("tcp", opts.Addr, &ssh.ClientConfig{
		User:            opts.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("sshvm: dial %s: %w", opts.Addr, err)
	}
	return &VM{client: client}, nil
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(knownHostsFile)
}

// authMethods collects credentials in a fixed order: agent
// keys first (deduplicated by public key fingerprint), then identity
// files, falling back to an interactive password prompt for anything
// that needs one.
func authMethods(opts Options) ([]ssh.AuthMethod, error) {
	var signers []ssh.Signer
	seen := map[string]bool{}

	addSigner := func(s ssh.Signer) {
		fp := string(s.PublicKey().Marshal())
		if !seen[fp] {
			seen[fp] = true
			signers = append(signers, s)
		}
	}

	if sock, ok := os.LookupEnv("SSH_AUTH_SOCK"); ok {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentClient := agent.NewClient(conn)
			if agentSigners, err := agentClient.Signers(); err == nil {
				for _, s := range agentSigners {
					addSigner(s)
				}
			}
		}
	}

	for _, path := range opts.IdentityFiles {
		key, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err == nil {
			addSigner(signer)
			continue
		}
		if opts.PasswordPrompt == nil {
			continue
		}
		passphrase, err := opts.PasswordPrompt(fmt.Sprintf("Passphrase for %s: ", path))
		if err != nil {
			continue
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
		if err == nil {
			addSigner(signer)
		}
	}

	methods := []ssh.AuthMethod{}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if opts.PasswordPrompt != nil {
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return opts.PasswordPrompt(fmt.Sprintf("%s@%s's password: ", opts.User, opts.Addr))
		}))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no usable SSH auth method (no agent keys, no identity files, no password prompt)")
	}
	return methods, nil
}

// Boot requests a PTY and starts the remote user's login shell,
// relaying its output byte by byte to onByte.
func (v *VM) Boot(ctx context.Context, onByte vm.ByteSink) error {
	session, err := v.client.NewSession()
	if err != nil {
		return fmt.Errorf("sshvm: new session: %w", err)
	}
	if err := session.RequestPty("xterm-256color", 40, 120, ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}); err != nil {
		_ = session.Close()
		return fmt.Errorf("sshvm: request pty: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("sshvm: stdout pipe: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("sshvm: stdin pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		_ = session.Close()
		return fmt.Errorf("sshvm: start shell: %w", err)
	}

	v.mu.Lock()
	v.session = session
	v.stdin = stdin
	v.mu.Unlock()

	go v.relay(ctx, stdout, onByte)
	return nil
}

func (v *VM) relay(ctx context.Context, r io.Reader, onByte vm.ByteSink) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			onByte(buf[i])
		}
		if err != nil {
			return
		}
	}
}

// SendSerial writes text to the remote shell's stdin.
func (v *VM) SendSerial(text string) error {
	v.mu.Lock()
	stdin := v.stdin
	v.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("sshvm: not booted")
	}
	_, err := io.WriteString(stdin, text)
	return err
}

// WriteFile uploads content to path on the remote host, over a
// separate session, out of band from the interactive shell.
func (v *VM) WriteFile(path string, content []byte) error {
	session, err := v.client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	session.Stdin = strings.NewReader(string(content))
	dir := filepath.Dir(path)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(dir), shellQuote(path))
	return session.Run(cmd)
}

// ReadFile downloads path's content from the remote host.
func (v *VM) ReadFile(path string) ([]byte, error) {
	session, err := v.client.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	out, err := session.Output(fmt.Sprintf("cat %s", shellQuote(path)))
	if err != nil {
		return nil, fmt.Errorf("sshvm: read %s: %w", path, err)
	}
	return out, nil
}

// FileExists checks for path's existence via a remote test(1) call.
func (v *VM) FileExists(path string) (bool, error) {
	session, err := v.client.NewSession()
	if err != nil {
		return false, err
	}
	defer session.Close()

	err = session.Run(fmt.Sprintf("test -e %s", shellQuote(path)))
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*ssh.ExitError); ok {
		return false, nil
	}
	return false, err
}

// Close closes the interactive session and the underlying connection.
func (v *VM) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	if v.session != nil {
		_ = v.session.Close()
	}
	return v.client.Close()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
