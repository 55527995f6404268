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

// Package fakevm provides an in-process vm.VM double driven entirely
// by test code: serial bytes are injected directly rather than
// produced by a real shell, and the filesystem is an in-memory map.
// It is the VM used by the channel and driver unit tests.
package fakevm

import (
	"context"
	"fmt"
	"sync"

	"github.com/nosshtradamus/clitutor/internal/vm"
)

// Handler is invoked for every SendSerial call, so tests can script
// shell-like responses (e.g. emit the sentinel pair for a "command").
type Handler func(text string, emit func([]byte))

// VM is a fake vm.VM for tests.
type VM struct {
	mu     sync.Mutex
	files  map[string][]byte
	onByte vm.ByteSink
	sent   []string
	handler Handler
	closed bool
}

// New creates a fake VM. handler may be nil if the test only cares
// about driving bytes manually via Emit.
func New(handler Handler) *VM {
	return &VM{
		files:   make(map[string][]byte),
		handler: handler,
	}
}

func (f *VM) Boot(_ context.Context, onByte vm.ByteSink) error {
	f.mu.Lock()
	f.onByte = onByte
	f.mu.Unlock()
	return nil
}

func (f *VM) SendSerial(text string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fmt.Errorf("fakevm: closed")
	}
	f.sent = append(f.sent, text)
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(text, f.Emit)
	}
	return nil
}

// Emit delivers bytes to the registered serial sink, as if produced by
// the VM's shell.
func (f *VM) Emit(data []byte) {
	f.mu.Lock()
	sink := f.onByte
	f.mu.Unlock()
	if sink == nil {
		return
	}
	for _, b := range data {
		sink(b)
	}
}

func (f *VM) WriteFile(path string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	f.files[path] = cp
	return nil
}

func (f *VM) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("fakevm: %s: no such file", path)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (f *VM) FileExists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok, nil
}

func (f *VM) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SentCommands returns every string passed to SendSerial, in order,
// for test assertions.
func (f *VM) SentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}
