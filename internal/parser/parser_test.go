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

package parser

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosshtradamus/clitutor/internal/lesson"
	"github.com/nosshtradamus/clitutor/internal/sentinel"
)

type capture struct {
	mu       sync.Mutex
	displays []string
	commands []lesson.CommandResult
	readies  int
}

func (c *capture) onDisplay(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displays = append(c.displays, text)
}

func (c *capture) onCommand(r lesson.CommandResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, r)
}

func (c *capture) onReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readies++
}

func (c *capture) snapshotDisplay() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.displays, "")
}

func newWiredParser() (*Parser, *capture) {
	p := New()
	c := &capture{}
	p.SetDisplayCallback(c.onDisplay)
	p.SetCommandCallback(c.onCommand)
	p.SetReadyCallback(c.onReady)
	return p, c
}

func TestFirstCmdEndIsSkippedAndSetsReady(t *testing.T) {
	p, c := newWiredParser()
	chunk := sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student")
	p.ProcessOutput(chunk)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 1, c.readies)
	assert.Empty(t, c.commands, "boot-time prompt must be skipped")
	assert.True(t, p.Ready())
}

func TestEmptyCaptureProducesEmptyStdout(t *testing.T) {
	p, c := newWiredParser()
	// consume the boot-time skip first
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))

	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.commands, 1)
	assert.Equal(t, "", c.commands[0].Stdout)
}

func TestOrderingDisplayBeforeCommandWithinOneChunk(t *testing.T) {
	p, _ := newWiredParser()
	var order []string
	p.SetDisplayCallback(func(text string) { order = append(order, "display:"+text) })
	p.SetCommandCallback(func(r lesson.CommandResult) { order = append(order, "command") })
	p.SetReadyCallback(func() {})

	// consume boot skip
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))
	order = nil

	// one chunk: <output> CMD_END <prompt-bytes> CMD_START
	chunk := "hello\n" + sentinel.FormatCmdEnd(0, "/home/student") + "prompt$ " + sentinel.FormatCmdStart()
	p.ProcessOutput(chunk)

	require.Len(t, order, 2)
	assert.Equal(t, "display:hello\nprompt$ ", order[0])
	assert.Equal(t, "command", order[1])
}

func TestMutingWithholdsDisplayButNotCapture(t *testing.T) {
	p, c := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student")) // boot skip

	p.ProcessOutput(sentinel.FormatCmdStart())
	p.Mute()
	p.ProcessOutput("secret output\n")
	p.ProcessOutput(sentinel.FormatCmdEnd(0, "/home/student"))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.commands, 1)
	assert.Equal(t, "", c.commands[0].Stdout) // first line removed, nothing else
	for _, d := range c.displays {
		assert.NotContains(t, d, "secret output")
	}
}

func TestMuteClearsOnNextCmdStart(t *testing.T) {
	p, c := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))

	p.Mute()
	p.ProcessOutput(sentinel.FormatCmdStart())
	p.ProcessOutput("visible\n")
	p.ProcessOutput(sentinel.FormatCmdEnd(0, "/home/student"))

	assert.Contains(t, c.snapshotDisplay(), "visible")
}

func TestSkipCapturesDecrementsAndSuppressesEvent(t *testing.T) {
	p, c := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student")) // boot skip

	p.IncrementSkipCaptures(2)
	for i := 0; i < 2; i++ {
		p.ProcessOutput(sentinel.FormatCmdStart())
		p.ProcessOutput("temp file contents\n")
		p.ProcessOutput(sentinel.FormatCmdEnd(0, "/home/student"))
	}
	c.mu.Lock()
	assert.Empty(t, c.commands)
	c.mu.Unlock()

	// a following normal command should produce an event again
	p.ProcessOutput(sentinel.FormatCmdStart())
	p.ProcessOutput("real output\n")
	p.ProcessOutput(sentinel.FormatCmdEnd(0, "/home/student"))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.commands, 1)
}

func TestSentinelSplitAcrossEveryByteBoundaryParsesIdentically(t *testing.T) {
	marker := sentinel.FormatCmdEnd(3, "/home/student/x")
	whole := sentinel.FormatCmdStart() + marker

	for split := 1; split < len(whole); split++ {
		p, c := newWiredParser()
		p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student")) // boot skip
		p.ProcessOutput(sentinel.FormatCmdStart())
		p.ProcessOutput("x\n")

		first, second := whole[:split], whole[split:]
		p.ProcessOutput(first)
		p.ProcessOutput(second)

		c.mu.Lock()
		require.Lenf(t, c.commands, 1, "split at byte %d", split)
		assert.Equal(t, 3, c.commands[0].ReturnCode)
		c.mu.Unlock()
	}
}

func TestMalformedSentinelFlushedAfterSafetyWindow(t *testing.T) {
	p, c := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))

	p.ProcessOutput(sentinel.FormatCmdStart())
	// a stray, never-completed delimiter: looks like the start of a sentinel
	// but no closing delimiter ever arrives.
	p.ProcessOutput("before \x1fCMD_")

	require.Eventually(t, func() bool {
		return strings.Contains(c.snapshotDisplay(), "CMD_")
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestResetReturnsToBootingState(t *testing.T) {
	p, _ := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))
	require.True(t, p.Ready())

	p.Reset()
	assert.False(t, p.Ready())
	assert.Equal(t, sentinel.DefaultCwd, p.Cwd())
}

func TestANSIStrippedFromCapturedStdoutButNotFromDisplay(t *testing.T) {
	p, c := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))

	p.ProcessOutput(sentinel.FormatCmdStart())
	colored := "prompt$ ls\n\x1b[31mred text\x1b[0m\n"
	p.ProcessOutput(colored)
	p.ProcessOutput(sentinel.FormatCmdEnd(0, "/home/student"))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.commands, 1)
	assert.Equal(t, "red text\n", c.commands[0].Stdout)
	assert.Contains(t, c.snapshotDisplay(), "\x1b[31m")
}

func TestQueuedSystemMessageHeldUntilReady(t *testing.T) {
	p := New()
	var displays []string
	var mu sync.Mutex
	p.SetDisplayCallback(func(text string) {
		mu.Lock()
		displays = append(displays, text)
		mu.Unlock()
	})

	p.QueueSystemMessage("hello")
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, displays)
	mu.Unlock()

	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student"))
	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(displays, "")
	assert.Contains(t, joined, "hello")
}

func TestCwdTracksMostRecentCmdEnd(t *testing.T) {
	p, _ := newWiredParser()
	p.ProcessOutput(sentinel.FormatCmdStart() + sentinel.FormatCmdEnd(0, "/home/student/work"))
	assert.Equal(t, "/home/student/work", p.Cwd())
}
