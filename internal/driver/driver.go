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

// Package driver implements the Session Driver: the component that
// owns lesson state (current lesson, current exercise index, the
// validating flag) and wires the Sentinel Parser's callbacks to
// sandbox seeding, validation, XP accounting, and progress
// persistence.
package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nosshtradamus/clitutor/internal/channel"
	"github.com/nosshtradamus/clitutor/internal/coalescer"
	"github.com/nosshtradamus/clitutor/internal/lesson"
	"github.com/nosshtradamus/clitutor/internal/logging"
	"github.com/nosshtradamus/clitutor/internal/parser"
	"github.com/nosshtradamus/clitutor/internal/progress"
	"github.com/nosshtradamus/clitutor/internal/sentinel"
	"github.com/nosshtradamus/clitutor/internal/validator"
)

// seedWaitNormal and seedWaitGit bound how long a sandbox-seeding
// script is given to finish before the Driver trusts its output has
// stopped arriving; git operations (clone, init with hooks) routinely
// outrun the normal window.
const (
	seedWaitNormal = 800 * time.Millisecond
	seedWaitGit    = 3 * time.Second

	// postValidationDrain is how long handleCommand waits, with the
	// display callback swapped for a no-op, for any trailing serial
	// output produced by the command under validation (or by the
	// filesystem-kind predicates' own probe commands) to finish
	// arriving before restoring normal display.
	postValidationDrain = 600 * time.Millisecond
)

const bootStartupPath = "/tmp/.clitutor_profile"

var seedCounter atomic.Int64

// Driver is the Session Driver.
type Driver struct {
	mu sync.Mutex

	ch    *channel.Channel
	p     *parser.Parser
	v     *validator.Validator
	store progress.Store
	log   *zap.SugaredLogger

	display parser.DisplayFunc

	current    *lesson.Lesson
	index      int
	validating bool
}

// New builds a Driver around an already-constructed Channel, Parser,
// Validator, and progress Store. log may be nil, in which case a
// no-op logger is used.
func New(ch *channel.Channel, p *parser.Parser, v *validator.Validator, store progress.Store, log *zap.SugaredLogger) *Driver {
	if log == nil {
		log = logging.Noop()
	}
	return &Driver{ch: ch, p: p, v: v, store: store, log: log}
}

// Boot starts the underlying VM, installs the command hook, and waits
// for the shell to become interactive. display receives every byte the
// student should see; the Driver temporarily swaps it for a no-op
// during validation and otherwise leaves it installed as-is.
func (d *Driver) Boot(ctx context.Context, display parser.DisplayFunc) error {
	d.mu.Lock()
	d.display = display
	d.mu.Unlock()

	d.p.SetDisplayCallback(display)
	d.p.SetCommandCallback(d.handleCommand)

	co := coalescer.New(d.p.ProcessOutput)
	if err := d.ch.Boot(ctx, co.PushByte); err != nil {
		return fmt.Errorf("driver: boot vm: %w", err)
	}

	hook, err := sentinel.BuildPromptHook()
	if err != nil {
		return fmt.Errorf("driver: build startup file: %w", err)
	}
	if err := d.ch.WriteFile(bootStartupPath, []byte(hook)); err != nil {
		return fmt.Errorf("driver: write startup file: %w", err)
	}
	if err := d.ch.SendSerial(fmt.Sprintf("source %s\n", bootStartupPath)); err != nil {
		return fmt.Errorf("driver: source startup file: %w", err)
	}

	return d.ch.WaitForShell(ctx)
}

// OpenLesson makes l the active lesson: resets the Parser (a fresh
// CaptureState for a fresh sandbox), seeds the sandbox from l's
// exercises, and restores whatever progress the Store already has for
// l. clean additionally wipes the sandbox root before seeding -- set
// for an explicit lesson switch or /reset, left false when resuming a
// lesson already in progress.
func (d *Driver) OpenLesson(l *lesson.Lesson, clean bool) error {
	d.mu.Lock()
	d.p.Reset()
	d.current = l
	d.index = 0
	d.mu.Unlock()

	if err := d.seedSandbox(l, clean); err != nil {
		return fmt.Errorf("driver: seed sandbox: %w", err)
	}

	d.restoreProgress()
	return nil
}

// seedSandbox writes one script concatenating an optional cleanup line
// with every exercise's sandbox_setup commands (each run from the
// sandbox root) and runs it as a single serial command, muted so none
// of it appears on the student's terminal. The script's own CMD_END is
// suppressed via a single pre-incremented skipCaptures rather than
// recovered -- seeding output is discardable by design.
func (d *Driver) seedSandbox(l *lesson.Lesson, clean bool) error {
	var lines []string
	if clean {
		lines = append(lines, fmt.Sprintf("cd %s && rm -rf -- ./* ./.[!.]* 2>/dev/null", channel.SandboxRoot))
	}
	hasGit := false
	for _, ex := range l.Exercises {
		for _, cmd := range ex.SandboxSetup {
			lines = append(lines, fmt.Sprintf("cd %s && %s", channel.SandboxRoot, cmd))
			if strings.Contains(cmd, "git") {
				hasGit = true
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	script := strings.Join(lines, "\n") + "\n"
	tmp := fmt.Sprintf("/tmp/.clitutor_seed_%d", seedCounter.Add(1))

	if err := d.ch.WriteFile(tmp, []byte(script)); err != nil {
		return err
	}

	d.p.IncrementSkipCaptures(1)
	d.p.Mute()
	if err := d.ch.SendSerial(fmt.Sprintf("bash %s > /dev/null 2>&1; rm -f %s\n", tmp, tmp)); err != nil {
		return err
	}

	wait := seedWaitNormal
	if hasGit {
		wait = seedWaitGit
	}
	time.Sleep(wait)
	return nil
}

// restoreProgress marks every exercise the Store already records as
// completed, and positions the current index just past the last
// completed exercise (equal to the exercise count once every exercise
// is done).
func (d *Driver) restoreProgress() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return
	}
	lastCompleted := -1
	for i := range d.current.Exercises {
		ex := &d.current.Exercises[i]
		state, ok := d.store.Get(d.current.ID, ex.ID)
		if !ok || !state.Completed {
			continue
		}
		ex.Completed = true
		ex.Attempts = state.Attempts
		ex.HintsUsed = state.HintsUsed
		lastCompleted = i
	}
	d.index = lastCompleted + 1
}

// handleCommand is the Parser's command callback: it runs the guard
// chain, and for anything that survives it, drives one validation
// attempt. Order matters here and is not incidental: validating and
// no-lesson checks must precede the completed-exercise check (a
// command arriving mid-validation or with no lesson open says nothing
// about a particular exercise), and the bare-Enter suppression must
// come last, since it only applies to a specific, still-open,
// output-kind exercise.
func (d *Driver) handleCommand(result lesson.CommandResult) {
	d.mu.Lock()
	if d.validating || d.current == nil || d.index >= len(d.current.Exercises) {
		d.mu.Unlock()
		return
	}
	ex := &d.current.Exercises[d.index]
	if ex.Completed {
		d.mu.Unlock()
		return
	}
	if ex.ValidationType.IsOutputKind() && strings.TrimSpace(result.Stdout) == "" && result.ReturnCode == 0 {
		d.mu.Unlock()
		return
	}

	ex.Attempts++
	d.validating = true
	prevDisplay := d.display
	if ex.ValidationType.IssuesExtraShellCommands() {
		d.p.IncrementSkipCaptures(2)
	}
	d.mu.Unlock()

	d.p.SetDisplayCallback(func(string) {})
	verdict := d.v.Check(*ex, result)
	time.Sleep(postValidationDrain)
	d.p.SetDisplayCallback(prevDisplay)

	d.mu.Lock()
	d.validating = false
	d.mu.Unlock()

	if verdict.Passed {
		d.onPass(ex, verdict)
	} else {
		d.onFail(ex, verdict)
	}
}

// onPass marks ex completed, computes and persists its XP, queues the
// success message plus a banner for whatever comes next, and kicks a
// fresh prompt.
func (d *Driver) onPass(ex *lesson.Exercise, verdict validator.Result) {
	d.mu.Lock()
	ex.Completed = true
	xp := lesson.ComputeXP(ex.XP, ex.Difficulty, ex.FirstTry, ex.HintsUsed)
	state := lesson.ExerciseState{Completed: true, XPEarned: xp, Attempts: ex.Attempts, HintsUsed: ex.HintsUsed}
	lessonID, exerciseID := d.current.ID, ex.ID
	d.mu.Unlock()

	if err := d.store.Put(lessonID, exerciseID, state); err != nil {
		d.log.Warnw("failed to persist exercise completion", "lesson", lessonID, "exercise", exerciseID, "error", err)
	}
	d.p.QueueSystemMessage(fmt.Sprintf("%s (+%d XP)", verdict.Message, xp))

	d.mu.Lock()
	d.index++
	var banner string
	if d.index < len(d.current.Exercises) {
		banner = d.current.Exercises[d.index].Title
	} else {
		banner = fmt.Sprintf("lesson %q complete", d.current.Title)
	}
	d.mu.Unlock()
	d.p.QueueSystemMessage(banner)

	d.kickPrompt()
}

// onFail records the missed first try and queues the failure message;
// the exercise stays current so the student's next command is
// re-validated against it.
func (d *Driver) onFail(ex *lesson.Exercise, verdict validator.Result) {
	d.mu.Lock()
	ex.FirstTry = false
	d.mu.Unlock()
	d.p.QueueSystemMessage(verdict.Message)
	d.kickPrompt()
}

// kickPrompt sends a bare newline to force a fresh, visible prompt
// after a system message, suppressing the CMD_END it produces so it
// does not re-enter the guard chain as a bare-Enter attempt against
// whatever exercise is now current.
func (d *Driver) kickPrompt() {
	d.p.IncrementSkipCaptures(1)
	if err := d.ch.SendSerial("\n"); err != nil {
		d.log.Warnw("failed to kick a fresh prompt", "error", err)
	}
}

// Hint reveals the next unused hint for the current exercise, if any
// remain, and records that it was used (for XP penalty purposes). ok
// is false if there is no current exercise or its hints are exhausted.
func (d *Driver) Hint() (hint string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil || d.index >= len(d.current.Exercises) {
		return "", false
	}
	ex := &d.current.Exercises[d.index]
	if ex.HintsUsed >= len(ex.Hints) {
		return "", false
	}
	hint = ex.Hints[ex.HintsUsed]
	ex.HintsUsed++
	return hint, true
}

// Skip advances past the current exercise without validating it and
// without awarding XP.
func (d *Driver) Skip() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil || d.index >= len(d.current.Exercises) {
		return
	}
	d.index++
}

// Reset re-seeds the active lesson's sandbox from a clean slate,
// exactly as OpenLesson would on a fresh lesson switch.
func (d *Driver) Reset() error {
	d.mu.Lock()
	l := d.current
	d.mu.Unlock()
	if l == nil {
		return fmt.Errorf("driver: no active lesson to reset")
	}
	return d.OpenLesson(l, true)
}

// CurrentExercise returns the exercise the student is currently on, or
// ok=false if no lesson is open or every exercise is complete.
func (d *Driver) CurrentExercise() (ex *lesson.Exercise, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil || d.index >= len(d.current.Exercises) {
		return nil, false
	}
	return &d.current.Exercises[d.index], true
}

// Level reports the student's overall level, derived from total XP
// across every persisted exercise.
func (d *Driver) Level() lesson.Level {
	return lesson.LookupLevel(d.store.TotalXP())
}

// Close tears down the underlying VM.
func (d *Driver) Close() error {
	return d.ch.Close()
}
