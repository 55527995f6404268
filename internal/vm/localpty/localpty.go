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

// Package localpty implements vm.VM against a real local shell started
// under a PTY, using github.com/creack/pty. It is the VM behind
// `clitutor run` when no --remote is given, and behind the module's
// integration tests -- no
// browser/WASM VM is available in this environment, so a real shell is
// the closest stand-in for exercising the Controller end-to-end.
package localpty

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/creack/pty"
)

// VM boots a real /bin/bash under a PTY. The "out-of-band filesystem
// channel" idea is just the regular filesystem here
// (os.WriteFile et al.) since there is no serial-tty/filesystem split
// to preserve outside of a browser-hosted emulator.
type VM struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	ptmx    *os.File
	rootDir string
	closed  bool
}

// New creates a localpty VM rooted at rootDir (created if absent). This
// is used as the sandbox root and should match sentinel.SandboxRoot for
// the Controller's validations to resolve correctly.
func New(rootDir string) (*VM, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("localpty: create sandbox root: %w", err)
	}
	return &VM{rootDir: rootDir}, nil
}

// Boot starts /bin/bash under a PTY and begins relaying its output,
// byte by byte, to onByte.
func (v *VM) Boot(ctx context.Context, onByte func(b byte)) error {
	cmd := exec.CommandContext(ctx, "/bin/bash", "--noprofile", "--norc")
	cmd.Dir = v.rootDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "HOME="+v.rootDir)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 40, Cols: 120})
	if err != nil {
		return fmt.Errorf("localpty: start shell: %w", err)
	}

	v.mu.Lock()
	v.cmd = cmd
	v.ptmx = ptmx
	v.mu.Unlock()

	go v.relay(onByte)
	return nil
}

func (v *VM) relay(onByte func(b byte)) {
	buf := make([]byte, 4096)
	for {
		v.mu.Lock()
		ptmx := v.ptmx
		v.mu.Unlock()
		if ptmx == nil {
			return
		}
		n, err := ptmx.Read(buf)
		for i := 0; i < n; i++ {
			onByte(buf[i])
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			return
		}
	}
}

// SendSerial writes text to the PTY master, as if typed at the
// keyboard.
func (v *VM) SendSerial(text string) error {
	v.mu.Lock()
	ptmx := v.ptmx
	v.mu.Unlock()
	if ptmx == nil {
		return fmt.Errorf("localpty: not booted")
	}
	_, err := ptmx.WriteString(text)
	return err
}

// WriteFile writes content directly to the sandbox filesystem, out of
// band from the PTY.
func (v *VM) WriteFile(path string, content []byte) error {
	abs := v.resolve(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, content, 0o644)
}

// ReadFile reads a file directly from the sandbox filesystem.
func (v *VM) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(v.resolve(path))
}

// FileExists reports whether path exists on the sandbox filesystem.
func (v *VM) FileExists(path string) (bool, error) {
	_, err := os.Stat(v.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// resolve maps an absolute sandbox path onto the host filesystem
// rooted at v.rootDir, so validations phrased against
// sentinel.SandboxRoot (/home/student) land in the right place even
// though the real shell's $HOME differs from that literal path on the
// host.
func (v *VM) resolve(path string) string {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel("/home/student", path)
		if err == nil && !isOutsideSandbox(rel) {
			return filepath.Join(v.rootDir, rel)
		}
	}
	return filepath.Join(v.rootDir, path)
}

func isOutsideSandbox(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".."
}

// Close terminates the shell process and closes the PTY.
func (v *VM) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	if v.ptmx != nil {
		_ = v.ptmx.Close()
	}
	if v.cmd != nil && v.cmd.Process != nil {
		_ = v.cmd.Process.Kill()
	}
	return nil
}
