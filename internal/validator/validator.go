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

// Package validator implements the nine exercise-validation predicate
// kinds: each takes an Exercise and a CommandResult and reports
// pass/fail plus an explanatory message. No predicate ever panics or
// returns an error that escapes the package -- an invalid regex, a
// malformed file_contains expected value, or an unparseable exit code
// all just fail the check with a message, the same way a bad user
// command fails a check rather than crashing the session.
package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nosshtradamus/clitutor/internal/channel"
	"github.com/nosshtradamus/clitutor/internal/lesson"
)

// Result is the outcome of one validation attempt.
type Result struct {
	Passed  bool
	Message string
}

func pass(msg string) Result { return Result{Passed: true, Message: msg} }
func fail(msg string) Result { return Result{Passed: false, Message: msg} }

// FileSystem is the narrow surface the filesystem-kind predicates
// need from a Channel -- kept as an interface so tests can stub it
// without standing up a whole fake VM.
type FileSystem interface {
	FileExists(path string) (bool, error)
	HasDirWithFile(root string) (bool, error)
	FindFileContaining(root, needle string) (bool, error)
}

var _ FileSystem = (*channel.Channel)(nil)

// Validator dispatches an Exercise's ValidationKind to its predicate.
type Validator struct {
	fs FileSystem
}

// New builds a Validator that resolves filesystem-kind predicates
// through fs.
func New(fs FileSystem) *Validator {
	return &Validator{fs: fs}
}

// Check runs ex's predicate against result.
func (v *Validator) Check(ex lesson.Exercise, result lesson.CommandResult) Result {
	switch ex.ValidationType {
	case lesson.OutputEquals:
		return checkOutputEquals(ex, result)
	case lesson.OutputContains:
		return checkOutputContains(ex, result)
	case lesson.OutputRegex:
		return checkOutputRegex(ex, result)
	case lesson.ExitCode:
		return checkExitCode(ex, result)
	case lesson.CwdRegex:
		return checkCwdRegex(ex, result)
	case lesson.FileExists:
		return v.checkFileExists(ex, result)
	case lesson.FileContains:
		return v.checkFileContains(ex, result)
	case lesson.DirWithFile:
		return v.checkDirWithFile()
	case lesson.AnyFileContains:
		return v.checkAnyFileContains(ex)
	default:
		return fail(fmt.Sprintf("unknown validation kind %q", ex.ValidationType))
	}
}

func checkOutputEquals(ex lesson.Exercise, result lesson.CommandResult) Result {
	got := strings.TrimSpace(result.Stdout)
	want := strings.TrimSpace(ex.Expected)
	if got == want {
		return pass("output matches")
	}
	return fail(fmt.Sprintf("expected output %q, got %q", want, got))
}

func checkOutputContains(ex lesson.Exercise, result lesson.CommandResult) Result {
	want := strings.TrimSpace(ex.Expected)
	if strings.Contains(result.Stdout, want) {
		return pass("output contains expected text")
	}
	return fail(fmt.Sprintf("output did not contain %q", want))
}

func checkOutputRegex(ex lesson.Exercise, result lesson.CommandResult) Result {
	re, err := regexp.Compile(ex.Expected)
	if err != nil {
		return fail(fmt.Sprintf("invalid regex %q: %v", ex.Expected, err))
	}
	if re.MatchString(result.Stdout) {
		return pass("output matches pattern")
	}
	return fail(fmt.Sprintf("output did not match pattern %q", ex.Expected))
}

func checkExitCode(ex lesson.Exercise, result lesson.CommandResult) Result {
	want, err := strconv.Atoi(strings.TrimSpace(ex.Expected))
	if err != nil {
		return fail(fmt.Sprintf("expected value %q is not an integer", ex.Expected))
	}
	if result.ReturnCode == want {
		return pass("exit code matches")
	}
	return fail(fmt.Sprintf("expected exit code %d, got %d", want, result.ReturnCode))
}

func checkCwdRegex(ex lesson.Exercise, result lesson.CommandResult) Result {
	re, err := regexp.Compile(ex.Expected)
	if err != nil {
		return fail(fmt.Sprintf("invalid regex %q: %v", ex.Expected, err))
	}
	if re.MatchString(result.Cwd) {
		return pass("working directory matches")
	}
	return fail(fmt.Sprintf("working directory %q did not match pattern %q", result.Cwd, ex.Expected))
}

// resolvePath implements the shared "sandbox_root/expected OR
// cwd/expected" resolution rule for file_exists and file_contains.
func resolvePath(cwd, expected string) []string {
	if filepath.IsAbs(expected) {
		return []string{expected}
	}
	return []string{
		filepath.Join(channel.SandboxRoot, expected),
		filepath.Join(cwd, expected),
	}
}

func (v *Validator) checkFileExists(ex lesson.Exercise, result lesson.CommandResult) Result {
	for _, candidate := range resolvePath(result.Cwd, ex.Expected) {
		exists, err := v.fs.FileExists(candidate)
		if err != nil {
			continue
		}
		if exists {
			return pass(fmt.Sprintf("%s exists", candidate))
		}
	}
	return fail(fmt.Sprintf("%s does not exist", ex.Expected))
}

func (v *Validator) checkFileContains(ex lesson.Exercise, result lesson.CommandResult) Result {
	path, needle, ok := strings.Cut(ex.Expected, "::")
	if !ok {
		return fail(fmt.Sprintf("file_contains expected value %q is missing '::'", ex.Expected))
	}
	needle = strings.TrimSpace(needle)

	for _, candidate := range resolvePath(result.Cwd, strings.TrimSpace(path)) {
		content, err := readViaFileSystem(v.fs, candidate)
		if err != nil {
			continue
		}
		if strings.Contains(content, needle) {
			return pass(fmt.Sprintf("%s contains %q", candidate, needle))
		}
	}
	return fail(fmt.Sprintf("no candidate file for %q contained %q", path, needle))
}

// fileReader is satisfied by channel.Channel (which has ReadFile) but
// not required by the narrower FileSystem interface, since only
// file_contains needs it; this keeps FileSystem minimal for tests that
// don't care about file content.
type fileReader interface {
	ReadFile(path string) ([]byte, error)
}

func readViaFileSystem(fs FileSystem, path string) (string, error) {
	reader, ok := fs.(fileReader)
	if !ok {
		return "", fmt.Errorf("validator: filesystem does not support ReadFile")
	}
	content, err := reader.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (v *Validator) checkDirWithFile() Result {
	found, err := v.fs.HasDirWithFile(channel.SandboxRoot)
	if err != nil {
		return fail(fmt.Sprintf("probe failed: %v", err))
	}
	if found {
		return pass("found a directory containing a file")
	}
	return fail("no directory containing a file was found")
}

func (v *Validator) checkAnyFileContains(ex lesson.Exercise) Result {
	needle := strings.TrimSpace(ex.Expected)
	found, err := v.fs.FindFileContaining(channel.SandboxRoot, needle)
	if err != nil {
		return fail(fmt.Sprintf("probe failed: %v", err))
	}
	if found {
		return pass(fmt.Sprintf("found a file containing %q", needle))
	}
	return fail(fmt.Sprintf("no file containing %q was found", needle))
}
