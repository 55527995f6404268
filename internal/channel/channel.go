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

// Package channel wraps a vm.VM with the operations the Session Driver
// needs: booting, sending input, out-of-band file access, and the two
// shell-probe conveniences (directory-with-a-file, grep-across-tree)
// that are built from the VM's narrower primitives. It mirrors the
// Channel found in terminal-emulation middleware -- a layer
// between raw I/O and the thing that actually interprets a session --
// generalized from keystroke prediction to the Controller's
// capture/validate flow.
package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nosshtradamus/clitutor/internal/lesson"
	"github.com/nosshtradamus/clitutor/internal/parser"
	"github.com/nosshtradamus/clitutor/internal/sentinel"
	"github.com/nosshtradamus/clitutor/internal/vm"
)

// SandboxRoot is the fixed sandbox directory every VM is seeded with.
const SandboxRoot = sentinel.SandboxRoot

// Channel is the Driver-facing handle on a booted VM.
type Channel struct {
	v vm.VM
	p *parser.Parser
}

// New wraps v, feeding its serial bytes through p via a coalescer owned
// by the caller (the Driver wires coalescer.New(p.ProcessOutput) as the
// VM's byte sink in Boot).
func New(v vm.VM, p *parser.Parser) *Channel {
	return &Channel{v: v, p: p}
}

// Boot starts the VM, relaying bytes to onByte (expected to be a
// coalescer feeding the Channel's Parser).
func (c *Channel) Boot(ctx context.Context, onByte vm.ByteSink) error {
	return c.v.Boot(ctx, onByte)
}

// SendSerial forwards text to the VM's serial input.
func (c *Channel) SendSerial(text string) error {
	return c.v.SendSerial(text)
}

// WriteFile creates or overwrites a file out of band, so its content
// is never echoed into the captured/display stream.
func (c *Channel) WriteFile(path string, content []byte) error {
	return c.v.WriteFile(path, content)
}

// ReadFile reads a file out of band.
func (c *Channel) ReadFile(path string) ([]byte, error) {
	return c.v.ReadFile(path)
}

// FileExists reports a file's existence out of band.
func (c *Channel) FileExists(path string) (bool, error) {
	return c.v.FileExists(path)
}

// WaitForShell blocks until the Parser reports ready (the first
// CMD_END has been observed), or ctx is done.
func (c *Channel) WaitForShell(ctx context.Context) error {
	const poll = 20 * time.Millisecond
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if c.p.Ready() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// probeTimeout bounds how long a filesystem probe waits for its two
// sentinel pairs to come back before giving up.
const probeTimeout = 2 * time.Second

// resultProbe runs cmd as two serial commands -- output redirected to
// a temp file, then the temp file's content read back and the temp
// file deleted -- the shape dir_with_file/any_file_contains need.
// Each command produces a sentinel pair; callers must have
// pre-incremented the Parser's skipCaptures by 2 before calling this,
// so neither pair re-enters the Session Driver's command callback. The
// second command's (suppressed) capture is recovered via
// Parser.AwaitSkippedResult rather than out-of-band file access,
// because the probe's whole point is running shell glob/regex syntax
// (find, grep) the out-of-band file API cannot express.
func (c *Channel) resultProbe(cmd string) (string, error) {
	tmp := fmt.Sprintf("/tmp/.clitutor_probe_%d", probeCounter.next())

	firstDone := c.p.AwaitSkippedResult()
	if err := c.v.SendSerial(fmt.Sprintf("( %s ) > %s 2>/dev/null\n", cmd, tmp)); err != nil {
		return "", err
	}
	if err := c.awaitProbeStep(firstDone); err != nil {
		return "", err
	}

	secondDone := c.p.AwaitSkippedResult()
	if err := c.v.SendSerial(fmt.Sprintf("cat %s; rm -f %s\n", tmp, tmp)); err != nil {
		return "", err
	}
	result, err := c.awaitProbeResult(secondDone)
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

func (c *Channel) awaitProbeStep(done <-chan lesson.CommandResult) error {
	select {
	case <-done:
		return nil
	case <-time.After(probeTimeout):
		return fmt.Errorf("channel: probe step timed out after %s", probeTimeout)
	}
}

func (c *Channel) awaitProbeResult(done <-chan lesson.CommandResult) (lesson.CommandResult, error) {
	select {
	case r := <-done:
		return r, nil
	case <-time.After(probeTimeout):
		return lesson.CommandResult{}, fmt.Errorf("channel: probe result timed out after %s", probeTimeout)
	}
}

// HasDirWithFile reports whether root contains any directory (at
// depth 2) holding at least one regular file. Callers must pre-
// increment skipCaptures by 2 before calling this.
func (c *Channel) HasDirWithFile(root string) (bool, error) {
	out, err := c.resultProbe(fmt.Sprintf("find %s -mindepth 2 -maxdepth 2 -type f", root))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// FindFileContaining probes root for any file (recursively) containing
// needle. Same two-command, pre-incremented-skipCaptures contract as
// HasDirWithFile.
func (c *Channel) FindFileContaining(root, needle string) (bool, error) {
	out, err := c.resultProbe(fmt.Sprintf("grep -rl %s %s", strconv.Quote(needle), root))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Close tears down the underlying VM.
func (c *Channel) Close() error {
	return c.v.Close()
}

type counter struct{ n int }

func (c *counter) next() int { c.n++; return c.n }

var probeCounter = &counter{}
