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

// Package config holds the Config struct bound to cobra flags in
// cmd/clitutor: a single struct that is easy to construct directly in
// tests without going through cobra at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is every knob the Session Driver and its collaborators need.
type Config struct {
	// LessonDir is where lesson YAML files are loaded from.
	LessonDir string
	// ProgressFile is where completion state is persisted. Empty means
	// the default file under LessonDir (see ProgressPath).
	ProgressFile string
	// SandboxRoot records the sandbox directory. Nothing in the module
	// reads it: seeding and validation always use the fixed
	// sentinel.SandboxRoot.
	SandboxRoot string
	// LogLevel is one of debug/info/warn/error.
	LogLevel string
	// Remote, when set, selects sshvm over localpty and gives the
	// target host (user@host:port).
	Remote string
	// IdentityFiles lists SSH private key paths to try, in order, for
	// --remote sessions.
	IdentityFiles []string
	// KnownHostsFile, when set, enables host-key verification for
	// --remote sessions via golang.org/x/crypto/ssh/knownhosts.
	KnownHostsFile string
}

// Default returns a Config with the module's baked-in defaults.
func Default() Config {
	return Config{
		LessonDir:   "lessons",
		SandboxRoot: "/home/student",
		LogLevel:    "info",
	}
}

// Validate checks field combinations that cobra's flag types alone
// can't express: the lesson directory must be set, and when --remote
// is set, a lesson directory that exists must also be stat-able. The
// user@host form of --remote is not checked here.
func (c Config) Validate() error {
	if c.LessonDir == "" {
		return fmt.Errorf("config: lesson directory must not be empty")
	}
	if c.Remote != "" {
		if _, err := os.Stat(c.LessonDir); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: lesson directory %s: %w", c.LessonDir, err)
		}
	}
	return nil
}

// ProgressPath returns the configured progress file as given,
// defaulting to a dotfile inside the lesson directory when unset.
func (c Config) ProgressPath() string {
	if c.ProgressFile != "" {
		return c.ProgressFile
	}
	return filepath.Join(c.LessonDir, ".clitutor-progress.json")
}
