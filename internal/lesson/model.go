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

// Package lesson holds the data model shared by the Validator and the
// Session Driver: exercises, validation kinds, command results, and
// lesson progress, plus the XP formula and level table.
package lesson

// CommandResult is the captured outcome of one completed shell command,
// produced by the Sentinel Parser and handed to the Session Driver.
// Stdout has already had ANSI stripped and the echoed prompt+command
// line removed; stderr is not separately captured (the shell run is
// unredirected, so both streams interleave in Stdout).
type CommandResult struct {
	Stdout     string
	ReturnCode int
	Cwd        string
}

// ValidationKind enumerates the nine predicate kinds the Validator
// understands.
type ValidationKind string

const (
	OutputEquals    ValidationKind = "output_equals"
	OutputContains  ValidationKind = "output_contains"
	OutputRegex     ValidationKind = "output_regex"
	ExitCode        ValidationKind = "exit_code"
	CwdRegex        ValidationKind = "cwd_regex"
	FileExists      ValidationKind = "file_exists"
	FileContains    ValidationKind = "file_contains"
	DirWithFile     ValidationKind = "dir_with_file"
	AnyFileContains ValidationKind = "any_file_contains"
)

// fsKinds are the validation kinds that consult the filesystem instead
// of (or sometimes in addition to) the captured command output. Bare
// Enter never suppresses these.
var fsKinds = map[ValidationKind]bool{
	FileExists:      true,
	FileContains:    true,
	DirWithFile:     true,
	AnyFileContains: true,
}

// IsFilesystemKind reports whether a validation kind consults the
// filesystem rather than (only) the captured command result.
func (k ValidationKind) IsFilesystemKind() bool {
	return fsKinds[k]
}

// IssuesExtraShellCommands reports whether evaluating this kind causes
// the Validator to run additional shell commands of its own (each of
// which produces its own sentinel pair), requiring the caller to
// pre-increment skipCaptures by 2 before invoking the Validator.
func (k ValidationKind) IssuesExtraShellCommands() bool {
	return k == DirWithFile || k == AnyFileContains
}

// outputKinds are the four kinds subject to the bare-Enter guard.
var outputKinds = map[ValidationKind]bool{
	OutputEquals:   true,
	OutputContains: true,
	OutputRegex:    true,
	ExitCode:       true,
}

// IsOutputKind reports whether a validation kind is one of the four
// subject to bare-Enter suppression.
func (k ValidationKind) IsOutputKind() bool {
	return outputKinds[k]
}

// Exercise is one step within a Lesson.
// The first eight fields are immutable once loaded; the remaining four
// mutate over the course of a session.
type Exercise struct {
	ID             string         `yaml:"id"`
	Title          string         `yaml:"title"`
	XP             int            `yaml:"xp"`
	Difficulty     int            `yaml:"difficulty"`
	SandboxSetup   []string       `yaml:"sandbox_setup,omitempty"`
	ValidationType ValidationKind `yaml:"validation_type"`
	Expected       string         `yaml:"expected"`
	Hints          []string       `yaml:"hints,omitempty"`

	Attempts  int  `yaml:"-"`
	FirstTry  bool `yaml:"-"`
	HintsUsed int  `yaml:"-"`
	Completed bool `yaml:"-"`
}

// Lesson is an ordered sequence of exercises plus metadata used by
// lesson loading/selection (the lesson-markdown parser itself is out
// of scope; this is the narrow exercise contract the
// Controller consumes).
type Lesson struct {
	ID        string     `yaml:"id"`
	Title     string     `yaml:"title"`
	Exercises []Exercise `yaml:"exercises"`
}

// ExerciseState is the persisted, per-exercise slice of Lesson
// Progress.
type ExerciseState struct {
	Completed bool `json:"completed"`
	XPEarned  int  `json:"xp_earned"`
	Attempts  int  `json:"attempts"`
	HintsUsed int  `json:"hints_used"`
}
