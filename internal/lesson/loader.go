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

package lesson

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a single lesson definition from a YAML file. Lesson
// markdown/prose content is out of scope; this loads only
// the exercise contract (id, title, xp, difficulty, sandbox_setup,
// validation_type, expected, hints) a lesson author writes alongside
// the markdown.
func LoadFile(path string) (*Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lesson file %s: %w", path, err)
	}
	var l Lesson
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse lesson file %s: %w", path, err)
	}
	for i := range l.Exercises {
		l.Exercises[i].FirstTry = true
	}
	return &l, nil
}
