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

import "github.com/nosshtradamus/clitutor/internal/sentinel"

// CaptureState is the Parser's private state machine, described in
// the Parser's own bookkeeping. It is owned exclusively by the Parser; nothing else
// mutates it.
type CaptureState struct {
	Capturing    bool
	Chunks       []string
	Cwd          string
	SkipCaptures int
	Ready        bool
}

// newCaptureState returns the initial state: not capturing, default
// cwd, one capture pre-armed to be skipped (the boot-time prompt), not
// ready.
func newCaptureState() CaptureState {
	return CaptureState{
		Cwd:          sentinel.DefaultCwd,
		SkipCaptures: 1,
	}
}
