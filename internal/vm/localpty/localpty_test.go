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

package localpty

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBootEchoesShellOutput is an integration test: it spawns a real
// /bin/bash. It is skipped in -short runs since CI sandboxes do not
// always grant PTY allocation. The file-operation tests below need no
// shell and always run.
func TestBootEchoesShellOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY-backed shell")
	}

	dir := t.TempDir()
	v, err := New(dir)
	require.NoError(t, err)
	defer v.Close()

	var mu sync.Mutex
	var buf strings.Builder
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, v.Boot(ctx, func(b byte) {
		mu.Lock()
		buf.WriteByte(b)
		mu.Unlock()
	}))

	require.NoError(t, v.SendSerial("echo hi-from-pty\n"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(buf.String(), "hi-from-pty")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWriteReadFileExistsRoundtrip(t *testing.T) {
	dir := t.TempDir()
	v, err := New(dir)
	require.NoError(t, err)
	defer v.Close()

	ok, err := v.FileExists("/home/student/notes.txt")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.WriteFile("/home/student/notes.txt", []byte("hello")))

	ok, err = v.FileExists("/home/student/notes.txt")
	require.NoError(t, err)
	require.True(t, ok)

	content, err := v.ReadFile("/home/student/notes.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestWriteFileRejectsPathEscapeBySandboxing(t *testing.T) {
	dir := t.TempDir()
	v, err := New(dir)
	require.NoError(t, err)
	defer v.Close()

	// a path outside /home/student is treated as relative to the
	// sandbox root rather than escaping it.
	require.NoError(t, v.WriteFile("/etc/passwd", []byte("x")))
	content, err := v.ReadFile("/etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "x", string(content))
}
