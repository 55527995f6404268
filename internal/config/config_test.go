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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsEmptyLessonDir(t *testing.T) {
	c := Default()
	c.LessonDir = ""
	assert.Error(t, c.Validate())
}

func TestProgressPathDefaultsUnderLessonDir(t *testing.T) {
	c := Default()
	c.LessonDir = "lessons"
	assert.Equal(t, "lessons/.clitutor-progress.json", c.ProgressPath())
}

func TestProgressPathHonorsExplicitOverride(t *testing.T) {
	c := Default()
	c.ProgressFile = "/var/lib/clitutor/progress.json"
	assert.Equal(t, "/var/lib/clitutor/progress.json", c.ProgressPath())
}
