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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeXPDefaultScenario(t *testing.T) {
	// base=20, difficulty=1, first try, 0 hints => multiplier 1.50, XP = 30
	xp := ComputeXP(20, 1, true, 0)
	assert.Equal(t, 30, xp)
}

func TestComputeXPFullHintPenaltyStaysAboveFloor(t *testing.T) {
	xp := ComputeXP(20, 1, false, 5)
	// multiplier would be 1.00 - 0.50 = 0.50, still above floor
	assert.Equal(t, 10, xp)
}

func TestComputeXPNeverBelowFloor(t *testing.T) {
	// difficulty 1 (no bonus), not first try, heavy hint use
	xp := ComputeXP(100, 1, false, 10)
	assert.Equal(t, 50, xp) // multiplier 1.00 - 0.50 = 0.50, above the 0.25 floor
}

func TestComputeXPDifficultyBonus(t *testing.T) {
	xp := ComputeXP(20, 4, false, 0)
	// multiplier = 1.00 + 0.10*3 = 1.30
	assert.Equal(t, 26, xp)
}

func TestLookupLevelAtZero(t *testing.T) {
	lvl := LookupLevel(0)
	assert.Equal(t, "Newbie", lvl.Title)
	assert.Equal(t, 0, lvl.Index)
}

func TestLookupLevelAtTop(t *testing.T) {
	lvl := LookupLevel(6500)
	assert.Equal(t, "BDFL", lvl.Title)
	assert.Equal(t, 1.0, lvl.Progress)
}

func TestLookupLevelBeyondTop(t *testing.T) {
	lvl := LookupLevel(50000)
	assert.Equal(t, "BDFL", lvl.Title)
	assert.Equal(t, 1.0, lvl.Progress)
}

func TestLookupLevelMidway(t *testing.T) {
	lvl := LookupLevel(175) // between Apprentice(100) and Tinkerer(250)
	assert.Equal(t, "Apprentice", lvl.Title)
	assert.InDelta(t, 0.5, lvl.Progress, 0.001)
}
