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

import "math"

// ComputeXP implements the XP formula: a base XP value
// scaled by a multiplier that rewards difficulty and first-try
// completion, and penalizes hint use, floored at 0.25.
func ComputeXP(baseXP, difficulty int, firstTry bool, hintsUsed int) int {
	multiplier := 1.00
	multiplier += 0.10 * float64(difficulty-1)
	if firstTry {
		multiplier += 0.50
	}
	multiplier -= hintPenalty(hintsUsed)
	if multiplier < 0.25 {
		multiplier = 0.25
	}
	return int(math.Floor(float64(baseXP) * multiplier))
}

func hintPenalty(hintsUsed int) float64 {
	switch {
	case hintsUsed <= 0:
		return 0.00
	case hintsUsed == 1:
		return 0.10
	case hintsUsed == 2:
		return 0.30
	default:
		return 0.50
	}
}

// LevelEntry is one row of the Level Table: the cumulative XP
// threshold at which a title is reached.
type LevelEntry struct {
	Threshold int
	Title     string
}

// LevelTable is the fixed, 17-entry progression,
// constant for the lifetime of the process.
var LevelTable = []LevelEntry{
	{0, "Newbie"},
	{100, "Apprentice"},
	{250, "Tinkerer"},
	{450, "Script Kiddie"},
	{700, "Shell Adept"},
	{1000, "Pipe Fitter"},
	{1350, "Process Wrangler"},
	{1750, "Filesystem Navigator"},
	{2200, "Regex Whisperer"},
	{2700, "Permissions Paladin"},
	{3250, "Daemon Tamer"},
	{3850, "Package Sage"},
	{4500, "Kernel Curious"},
	{5200, "Systems Architect"},
	{5950, "Root Cause Analyst"},
	{6250, "Maintainer"},
	{6500, "BDFL"},
}

// Level describes a point's position within the Level Table.
type Level struct {
	Index    int
	Title    string
	Progress float64 // fraction of the way through this level, [0,1]
}

// LookupLevel finds the greatest index i such that
// LevelTable[i].Threshold <= totalXP.
func LookupLevel(totalXP int) Level {
	idx := 0
	for i, entry := range LevelTable {
		if entry.Threshold <= totalXP {
			idx = i
		} else {
			break
		}
	}
	floor := LevelTable[idx].Threshold
	var progress float64
	if idx == len(LevelTable)-1 {
		progress = 1.0
	} else {
		ceiling := LevelTable[idx+1].Threshold
		progress = float64(totalXP-floor) / float64(ceiling-floor)
	}
	return Level{Index: idx, Title: LevelTable[idx].Title, Progress: progress}
}
