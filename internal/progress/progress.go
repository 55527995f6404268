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

// Package progress persists per-exercise completion state across
// sessions: which exercises are done, how many attempts each took, how
// many hints were used, and total XP earned.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/nosshtradamus/clitutor/internal/lesson"
)

// Store is the persistence interface the Session Driver depends on.
type Store interface {
	// Get returns the recorded state for an exercise, and whether any
	// record exists at all.
	Get(lessonID, exerciseID string) (lesson.ExerciseState, bool)
	// Put records (overwriting) the state for an exercise.
	Put(lessonID, exerciseID string, state lesson.ExerciseState) error
	// TotalXP sums XPEarned across every recorded exercise.
	TotalXP() int
}

type key struct {
	lessonID   string
	exerciseID string
}

// Memory is an in-process Store with no persistence across restarts --
// the default for tests and for sessions that don't care about
// surviving a process exit.
type Memory struct {
	mu     sync.Mutex
	states map[key]lesson.ExerciseState
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{states: make(map[key]lesson.ExerciseState)}
}

func (m *Memory) Get(lessonID, exerciseID string) (lesson.ExerciseState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[key{lessonID, exerciseID}]
	return s, ok
}

func (m *Memory) Put(lessonID, exerciseID string, state lesson.ExerciseState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key{lessonID, exerciseID}] = state
	return nil
}

func (m *Memory) TotalXP() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, s := range m.states {
		total += s.XPEarned
	}
	return total
}

// record is the JSON-on-disk shape for one exercise's state, keyed by
// lesson+exercise so the file stays a flat, readable list rather than
// a nested structure that needs a schema to skim.
type record struct {
	LessonID   string              `json:"lesson_id"`
	ExerciseID string              `json:"exercise_id"`
	State      lesson.ExerciseState `json:"state"`
}

// File is a JSON-file-backed Store, written atomically (write to a
// temp file, then rename) so a crash mid-save never leaves a
// truncated progress file behind.
type File struct {
	mu      sync.Mutex
	path    string
	records map[key]lesson.ExerciseState
}

// NewFile loads path if it exists, or starts empty if it does not.
func NewFile(path string) (*File, error) {
	f := &File{path: path, records: make(map[key]lesson.ExerciseState)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress: read %s: %w", path, err)
	}
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("progress: parse %s: %w", path, err)
	}
	for _, r := range recs {
		f.records[key{r.LessonID, r.ExerciseID}] = r.State
	}
	return f, nil
}

func (f *File) Get(lessonID, exerciseID string) (lesson.ExerciseState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.records[key{lessonID, exerciseID}]
	return s, ok
}

func (f *File) Put(lessonID, exerciseID string, state lesson.ExerciseState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key{lessonID, exerciseID}] = state
	return f.saveLocked()
}

func (f *File) TotalXP() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, s := range f.records {
		total += s.XPEarned
	}
	return total
}

func (f *File) saveLocked() error {
	recs := make([]record, 0, len(f.records))
	for k, v := range f.records {
		recs = append(recs, record{LessonID: k.lessonID, ExerciseID: k.exerciseID, State: v})
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("progress: marshal: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("progress: write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("progress: rename temp file: %w", err)
	}
	return nil
}
