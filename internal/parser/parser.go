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

// Package parser implements the Sentinel Parser: the
// component that splits a stream of display-granular chunks into a
// (display-segment, sentinel-event) stream, tracks CaptureState, and
// owns the mute and system-message-queue mechanisms.
package parser

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nosshtradamus/clitutor/internal/lesson"
	"github.com/nosshtradamus/clitutor/internal/sentinel"
)

// partialSafetyWindow is how long the Parser waits for a trailing,
// apparently-truncated sentinel to complete before giving up and
// flushing it as plain bytes.
const partialSafetyWindow = 50 * time.Millisecond

// messageFlushWindow is the idle window after which queued system
// messages are flushed even without a subsequent ProcessOutput call.
const messageFlushWindow = 8 * time.Millisecond

// sentinelPattern matches a complete CMD_START or CMD_END marker,
// delimiter included. The CMD_END body may contain any characters
// except the delimiter itself in its cwd segment.
var sentinelPattern = regexp.MustCompile(
	"\x1f(CMD_START|CMD_END:[0-9]+:[^\x1f]*)\x1f",
)

// DisplayFunc receives bytes the user should see.
type DisplayFunc func(text string)

// CommandFunc receives a completed, non-skipped command capture.
type CommandFunc func(result lesson.CommandResult)

// ReadyFunc is invoked the first time a CMD_END is observed.
type ReadyFunc func()

// Parser is the Sentinel Parser. It is not safe to share a single
// instance across VMs, but it is safe to call its methods from
// multiple goroutines (e.g. the mute setter racing the byte-delivery
// goroutine); all mutable state is guarded by mu.
type Parser struct {
	mu sync.Mutex

	state   CaptureState
	muted   bool
	partial string

	displayCallback DisplayFunc
	commandCallback CommandFunc
	readyCallback   ReadyFunc

	partialTimer *time.Timer

	messageQueue []string
	messageTimer *time.Timer

	skipWatchers []chan lesson.CommandResult
}

// New creates a Parser in the BOOTING state (ready=false).
func New() *Parser {
	return &Parser{state: newCaptureState()}
}

// SetDisplayCallback installs the function invoked with display bytes.
// The Session Driver swaps this to a no-op during validation and
// restores it afterward; safe to call concurrently with
// ProcessOutput because the field is read under mu.
func (p *Parser) SetDisplayCallback(fn DisplayFunc) {
	p.mu.Lock()
	p.displayCallback = fn
	p.mu.Unlock()
}

// SetCommandCallback installs the function invoked once per completed,
// non-skipped capture.
func (p *Parser) SetCommandCallback(fn CommandFunc) {
	p.mu.Lock()
	p.commandCallback = fn
	p.mu.Unlock()
}

// SetReadyCallback installs the function invoked the first time the
// Parser observes a CMD_END.
func (p *Parser) SetReadyCallback(fn ReadyFunc) {
	p.mu.Lock()
	p.readyCallback = fn
	p.mu.Unlock()
}

// Ready reports whether the first CMD_END has been observed.
func (p *Parser) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Ready
}

// Cwd reports the working directory captured by the most recent
// CMD_END, or the default sandbox-relative cwd before the first one.
func (p *Parser) Cwd() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Cwd
}

// IncrementSkipCaptures increases the number of upcoming completed
// captures that will be discarded instead of emitted as CommandResults.
// Callers (the Session Channel's two-round-trip filesystem helpers, the
// Session Driver's seeding step) must call this before sending serial
// commands whose sentinel pairs should not reach the Validator.
func (p *Parser) IncrementSkipCaptures(n int) {
	p.mu.Lock()
	p.state.SkipCaptures += n
	p.mu.Unlock()
}

// AwaitSkippedResult registers interest in the next skipped CMD_END
// (one whose capture is discarded by SkipCaptures rather than handed
// to the command callback) and returns a channel that receives its raw
// CommandResult. This is how the Session Channel's two-round-trip
// filesystem probes (HasDirWithFile, FindFileContaining) read back a
// shell command's output without ever re-entering the Session Driver's
// handleCommand guard chain: the external command callback stays
// silent for skipped captures, but the caller that issued the probe
// still needs to see what it printed.
func (p *Parser) AwaitSkippedResult() <-chan lesson.CommandResult {
	ch := make(chan lesson.CommandResult, 1)
	p.mu.Lock()
	p.skipWatchers = append(p.skipWatchers, ch)
	p.mu.Unlock()
	return ch
}

// Mute withholds subsequent display bytes from the display callback
// until the next CMD_START, without affecting capture. It is cleared
// automatically on CMD_START, never by a timer, which is the
// discipline adopted here.
func (p *Parser) Mute() {
	p.mu.Lock()
	p.muted = true
	p.mu.Unlock()
}

// QueueSystemMessage appends a message to the internal queue. Queued
// messages are flushed atomically -- never interleaved with raw serial
// display bytes produced in the same flush -- either at the start of
// the next ProcessOutput call or after an 8ms idle timer. Messages
// queued before Ready is observed are held until it fires.
func (p *Parser) QueueSystemMessage(text string) {
	p.mu.Lock()
	p.messageQueue = append(p.messageQueue, text)
	if p.messageTimer == nil {
		p.messageTimer = time.AfterFunc(messageFlushWindow, p.flushMessagesFromTimer)
	}
	p.mu.Unlock()
}

func (p *Parser) flushMessagesFromTimer() {
	p.flushMessages()
}

// flushMessages atomically drains the message queue to the display
// callback as a single write, formatted as cyan text prefixed with a
// triangle glyph, each preceded by a carriage return and erase-to-EOL
// so it overwrites any partial prompt on the current terminal row.
func (p *Parser) flushMessages() {
	p.mu.Lock()
	if !p.state.Ready || len(p.messageQueue) == 0 {
		p.mu.Unlock()
		return
	}
	msgs := p.messageQueue
	p.messageQueue = nil
	if p.messageTimer != nil {
		p.messageTimer.Stop()
		p.messageTimer = nil
	}
	cb := p.displayCallback
	p.mu.Unlock()

	if cb == nil {
		return
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString("\r\x1b[K\x1b[36m▲ ")
		sb.WriteString(m)
		sb.WriteString("\x1b[0m\r\n")
	}
	cb(sb.String())
}

// Reset clears every field back to the BOOTING initial state and
// cancels any pending timers. Used when leaving a lesson.
func (p *Parser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = newCaptureState()
	p.muted = false
	p.partial = ""
	if p.partialTimer != nil {
		p.partialTimer.Stop()
		p.partialTimer = nil
	}
	p.messageQueue = nil
	if p.messageTimer != nil {
		p.messageTimer.Stop()
		p.messageTimer = nil
	}
	p.skipWatchers = nil
}

// ProcessOutput is the Parser's main entry point: one display-granular
// chunk in, zero-or-more display/command callback invocations out.
//
// Ordering contract: within this call, the display
// callback is invoked (at most once, with all accumulated display
// segments concatenated) strictly before the command callback is
// invoked for any completed captures produced by the same chunk. This
// is load-bearing: the Session Driver may replace the display callback
// with a no-op immediately upon the command callback firing, so display
// bytes sharing a chunk with the terminating sentinel must already be
// on their way out.
func (p *Parser) ProcessOutput(chunk string) {
	p.flushMessages()

	p.mu.Lock()
	full := p.partial + chunk
	p.partial = ""
	if p.partialTimer != nil {
		p.partialTimer.Stop()
		p.partialTimer = nil
	}

	var display strings.Builder
	var completed []lesson.CommandResult
	readyFired := false

	matches := sentinelPattern.FindAllStringSubmatchIndex(full, -1)
	pos := 0
	for _, m := range matches {
		matchStart, matchEnd := m[0], m[1]
		bodyStart, bodyEnd := m[2], m[3]

		before := full[pos:matchStart]
		p.emitSegmentLocked(before, &display)

		body := full[bodyStart:bodyEnd]
		if ev, ok := sentinel.ParseBody(body); ok {
			result, fired := p.handleEventLocked(ev)
			if result != nil {
				completed = append(completed, *result)
			}
			readyFired = readyFired || fired
		}
		pos = matchEnd
	}

	tail := full[pos:]
	if idx := strings.IndexByte(tail, sentinel.Delimiter); idx >= 0 {
		p.emitSegmentLocked(tail[:idx], &display)
		p.partial = tail[idx:]
		p.partialTimer = time.AfterFunc(partialSafetyWindow, p.flushPartialSafety)
	} else {
		p.emitSegmentLocked(tail, &display)
	}

	cb := p.displayCallback
	readyCb := p.readyCallback
	p.mu.Unlock()

	// Ready fires before display/command delivery: it is logically part
	// of bringing the Parser out of BOOTING, and any queued system
	// messages held pending Ready must be flushed before this chunk's
	// own display segments so they appear in the order they were queued.
	if readyFired {
		if readyCb != nil {
			readyCb()
		}
		p.flushMessages()
	}

	if display.Len() > 0 && cb != nil {
		cb(display.String())
	}
	for _, result := range completed {
		p.invokeCommandCallback(result)
	}
}

func (p *Parser) invokeCommandCallback(result lesson.CommandResult) {
	p.mu.Lock()
	cb := p.commandCallback
	p.mu.Unlock()
	if cb != nil {
		cb(result)
	}
}

// flushPartialSafety is the 50ms fallback: a sentinel that never
// completed (no matching trailing delimiter arrived in time) is
// eventually flushed as plain bytes, so it is displayed/captured like
// any other text rather than silently disappearing. The Parser never
// throws on malformed input; this is how that guarantee is kept.
func (p *Parser) flushPartialSafety() {
	p.mu.Lock()
	if p.partial == "" {
		p.mu.Unlock()
		return
	}
	text := p.partial
	p.partial = ""
	p.partialTimer = nil

	var display strings.Builder
	p.emitSegmentLocked(text, &display)
	cb := p.displayCallback
	p.mu.Unlock()

	if display.Len() > 0 && cb != nil {
		cb(display.String())
	}
}

// emitSegmentLocked appends text to the in-flight capture (if
// capturing) regardless of mute state, and appends it to the display
// builder unless muted. Must be called with mu held.
func (p *Parser) emitSegmentLocked(text string, display *strings.Builder) {
	if text == "" {
		return
	}
	if p.state.Capturing {
		p.state.Chunks = append(p.state.Chunks, text)
	}
	if !p.muted {
		display.WriteString(text)
	}
}

// handleEventLocked applies one sentinel event to CaptureState and
// returns a CommandResult if this CMD_END should be emitted (i.e. it
// was not skipped), plus whether this event was the first CMD_END ever
// observed (i.e. the BOOTING -> IDLE transition). Must be called with
// mu held.
func (p *Parser) handleEventLocked(ev sentinel.Event) (*lesson.CommandResult, bool) {
	switch ev.Kind {
	case sentinel.KindCmdStart:
		p.muted = false
		p.state.Capturing = true
		p.state.Chunks = nil
		return nil, false
	case sentinel.KindCmdEnd:
		p.state.Capturing = false
		p.state.Cwd = ev.Cwd

		firstEver := !p.state.Ready
		if firstEver {
			p.state.Ready = true
		}

		if p.state.SkipCaptures > 0 {
			p.state.SkipCaptures--
			joined := strings.Join(p.state.Chunks, "")
			skipped := lesson.CommandResult{
				Stdout:     cleanCapturedText(joined),
				ReturnCode: ev.ExitCode,
				Cwd:        ev.Cwd,
			}
			if len(p.skipWatchers) > 0 {
				watcher := p.skipWatchers[0]
				p.skipWatchers = p.skipWatchers[1:]
				watcher <- skipped
			}
			return nil, firstEver
		}

		joined := strings.Join(p.state.Chunks, "")
		stdout := cleanCapturedText(joined)
		return &lesson.CommandResult{
			Stdout:     stdout,
			ReturnCode: ev.ExitCode,
			Cwd:        ev.Cwd,
		}, firstEver
	default:
		return nil, false
	}
}

// csiPattern matches ANSI CSI sequences, including private/parameterized
// forms: ESC [ <parameter bytes> <intermediate bytes> <final byte>.
var csiPattern = regexp.MustCompile("\x1b\\[[0-?]*[ -/]*[@-~]")

// oscPattern matches ANSI OSC sequences terminated by BEL or ST.
var oscPattern = regexp.MustCompile("\x1b\\][^\x07]*(\x07|\x1b\\\\)")

// controlBytePattern matches stray control bytes outside tab/LF that
// must not reach the Validator.
var controlBytePattern = regexp.MustCompile("[\x00-\x08\x0b-\x1f]")

// cleanCapturedText applies the capture-cleanup pipeline: strip CSI,
// strip OSC, strip stray control bytes (preserving tab and LF), then
// remove the first line (the echoed prompt+command).
func cleanCapturedText(raw string) string {
	cleaned := csiPattern.ReplaceAllString(raw, "")
	cleaned = oscPattern.ReplaceAllString(cleaned, "")
	cleaned = controlBytePattern.ReplaceAllString(cleaned, "")
	return removeFirstLine(cleaned)
}

func removeFirstLine(s string) string {
	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return ""
	}
	return s[idx+1:]
}
