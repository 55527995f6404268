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

// Package vm defines the abstraction the Session Channel drives: a
// serial byte stream plus an out-of-band filesystem interface. In
// production this is satisfied by a browser-hosted emulator; this
// module provides a fake (for unit tests) and a local-PTY-backed
// implementation (for integration tests and the demo CLI) satisfying
// the same interface.
package vm

import "context"

// ByteSink receives one raw serial byte at a time, in order.
type ByteSink func(b byte)

// VM is the narrow capability surface the Session Channel depends on.
// The Controller never parses shell syntax or emulates the shell; it
// only needs a byte-level serial channel and an out-of-band file
// channel so that seed scripts and the bash startup file are not
// echoed to the visible terminal.
type VM interface {
	// Boot starts the VM (or, for already-running implementations, is a
	// no-op) and registers onByte to receive serial output. It returns
	// once the underlying process/emulator has started, not once the
	// shell is interactive -- callers wait for that separately via the
	// Session Channel's WaitForShell.
	Boot(ctx context.Context, onByte ByteSink) error

	// SendSerial forwards text to the VM's serial input, as if typed.
	SendSerial(text string) error

	// WriteFile creates or overwrites a file in the VM's filesystem
	// through an out-of-band channel, not through the serial tty, so its
	// content is never echoed into the captured/display stream.
	WriteFile(path string, content []byte) error

	// ReadFile reads a file from the VM's filesystem out-of-band.
	ReadFile(path string) ([]byte, error)

	// FileExists reports whether path exists in the VM's filesystem.
	FileExists(path string) (bool, error)

	// Close tears down the VM.
	Close() error
}
