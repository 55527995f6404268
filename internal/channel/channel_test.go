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

package channel

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosshtradamus/clitutor/internal/lesson"
	"github.com/nosshtradamus/clitutor/internal/parser"
	"github.com/nosshtradamus/clitutor/internal/sentinel"
	"github.com/nosshtradamus/clitutor/internal/vm/fakevm"
)

// shellScript mimics enough of a real shell to drive the Parser's
// sentinel protocol: any line ending in a newline is echoed, then
// followed by its canned response (if any) and a CMD_END/CMD_START
// pair, as the bash prompt hook would produce.
func shellScript(responses map[string]string) fakevm.Handler {
	return func(text string, emit func([]byte)) {
		resp := responses[text]
		emit([]byte(text))
		emit([]byte(resp))
		emit([]byte(sentinel.FormatCmdEnd(0, sentinel.DefaultCwd)))
		emit([]byte(sentinel.FormatCmdStart()))
	}
}

func bootedChannel(t *testing.T, handler fakevm.Handler) (*Channel, *parser.Parser) {
	t.Helper()
	p := parser.New()
	co := newTestCoalescer(p)
	v := fakevm.New(handler)
	c := New(v, p)

	require.NoError(t, c.Boot(context.Background(), co))
	// consume the boot-time CMD_START/CMD_END the real shell emits on
	// its own once the prompt hook is sourced.
	v.Emit([]byte(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, sentinel.DefaultCwd)))
	require.Eventually(t, func() bool { return p.Ready() }, time.Second, time.Millisecond)
	return c, p
}

// newTestCoalescer feeds bytes to the parser one at a time -- tests
// don't need the real coalescer's batching, just something satisfying
// vm.ByteSink.
func newTestCoalescer(p *parser.Parser) func(b byte) {
	return func(b byte) {
		p.ProcessOutput(string(b))
	}
}

func TestWaitForShellReturnsOnceReady(t *testing.T) {
	c, _ := bootedChannel(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.WaitForShell(ctx))
}

func TestWaitForShellRespectsContextCancellation(t *testing.T) {
	p := parser.New()
	v := fakevm.New(nil)
	c := New(v, p)
	require.NoError(t, c.Boot(context.Background(), newTestCoalescer(p)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitForShell(ctx))
}

func TestHasDirWithFileReadsBackProbeOutput(t *testing.T) {
	calls := 0
	handler := func(text string, emit func([]byte)) {
		calls++
		var resp string
		if strings.Contains(text, "find") {
			resp = ""
		} else if strings.Contains(text, "cat") {
			resp = "/home/student/d/x\n"
		}
		emit([]byte(text))
		emit([]byte(resp))
		emit([]byte(sentinel.FormatCmdEnd(0, sentinel.DefaultCwd)))
		emit([]byte(sentinel.FormatCmdStart()))
	}
	c, p := bootedChannel(t, handler)

	p.IncrementSkipCaptures(2)
	found, err := c.HasDirWithFile(SandboxRoot)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, calls)
}

func TestHasDirWithFileFalseWhenProbeEmpty(t *testing.T) {
	c, p := bootedChannel(t, shellScript(nil))

	p.IncrementSkipCaptures(2)
	found, err := c.HasDirWithFile(SandboxRoot)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindFileContainingReadsBackGrepOutput(t *testing.T) {
	handler := func(text string, emit func([]byte)) {
		var resp string
		if strings.Contains(text, "cat") {
			resp = "/home/student/notes.txt\n"
		}
		emit([]byte(text))
		emit([]byte(resp))
		emit([]byte(sentinel.FormatCmdEnd(0, sentinel.DefaultCwd)))
		emit([]byte(sentinel.FormatCmdStart()))
	}
	c, p := bootedChannel(t, handler)

	p.IncrementSkipCaptures(2)
	found, err := c.FindFileContaining(SandboxRoot, "needle")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestProbeNeverReachesCommandCallback(t *testing.T) {
	var commands int
	c, p := bootedChannel(t, shellScript(nil))
	p.SetCommandCallback(func(_ lesson.CommandResult) { commands++ })

	p.IncrementSkipCaptures(2)
	_, err := c.HasDirWithFile(SandboxRoot)
	require.NoError(t, err)
	assert.Equal(t, 0, commands)
}
