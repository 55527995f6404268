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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nosshtradamus/clitutor/internal/channel"
	"github.com/nosshtradamus/clitutor/internal/config"
	"github.com/nosshtradamus/clitutor/internal/driver"
	"github.com/nosshtradamus/clitutor/internal/lesson"
	"github.com/nosshtradamus/clitutor/internal/logging"
	"github.com/nosshtradamus/clitutor/internal/parser"
	"github.com/nosshtradamus/clitutor/internal/progress"
	"github.com/nosshtradamus/clitutor/internal/validator"
	"github.com/nosshtradamus/clitutor/internal/vm"
	"github.com/nosshtradamus/clitutor/internal/vm/localpty"
	"github.com/nosshtradamus/clitutor/internal/vm/sshvm"
)

var cfg = config.Default()

var requestedLessonID string

var rootCmd = &cobra.Command{
	Use:   "clitutor",
	Short: "Interactive command-line exercises over a sentinel-delimited shell session",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start an interactive lesson session",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runSession()
	},
}

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "inspect available lessons",
}

var lessonListCmd = &cobra.Command{
	Use:   "list",
	Short: "list every lesson found under the lesson directory",
	RunE: func(_ *cobra.Command, _ []string) error {
		lessons, err := loadLessons(cfg.LessonDir)
		if err != nil {
			return err
		}
		for i, l := range lessons {
			fmt.Printf("%2d. %-10s %-30s (%d exercises)\n", i+1, l.ID, l.Title, len(l.Exercises))
		}
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "inspect recorded progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print total XP, level, and per-lesson completion",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := progress.NewFile(cfg.ProgressPath())
		if err != nil {
			return err
		}
		lessons, err := loadLessons(cfg.LessonDir)
		if err != nil {
			return err
		}
		level := lesson.LookupLevel(store.TotalXP())
		fmt.Printf("Level %d: %s (%d XP, %.0f%% to next)\n", level.Index, level.Title, store.TotalXP(), level.Progress*100)
		for _, l := range lessons {
			done := 0
			for _, ex := range l.Exercises {
				if state, ok := store.Get(l.ID, ex.ID); ok && state.Completed {
					done++
				}
			}
			fmt.Printf("  %-10s %d/%d exercises complete\n", l.ID, done, len(l.Exercises))
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.LessonDir, "lessons", cfg.LessonDir, "directory of lesson YAML files")
	flags.StringVar(&cfg.ProgressFile, "progress-file", cfg.ProgressFile, "path to the progress JSON file (defaults under --lessons)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")
	flags.StringVar(&cfg.Remote, "remote", "", "user@host:port of a remote shell; empty runs a local PTY instead")
	flags.StringArrayVar(&cfg.IdentityFiles, "identity", nil, "SSH private key path, repeatable (only with --remote)")
	flags.StringVar(&cfg.KnownHostsFile, "known-hosts", "", "known_hosts file for host-key verification (only with --remote)")

	runCmd.Flags().StringVar(&requestedLessonID, "lesson", "", "lesson id to open; defaults to the first lesson found")

	lessonCmd.AddCommand(lessonListCmd)
	progressCmd.AddCommand(progressShowCmd)
	rootCmd.AddCommand(runCmd, lessonCmd, progressCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// loadLessons reads every *.yaml file directly under dir as a lesson
// definition, sorted by file name so listing and default-selection
// order is stable across runs.
func loadLessons(dir string) ([]*lesson.Lesson, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list lesson files in %s: %w", dir, err)
	}
	sort.Strings(matches)
	lessons := make([]*lesson.Lesson, 0, len(matches))
	for _, path := range matches {
		l, err := lesson.LoadFile(path)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, nil
}

func selectLesson(lessons []*lesson.Lesson, id string) (*lesson.Lesson, error) {
	if len(lessons) == 0 {
		return nil, fmt.Errorf("no lessons found")
	}
	if id == "" {
		return lessons[0], nil
	}
	for _, l := range lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("no lesson with id %q", id)
}

func runSession() error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	lessons, err := loadLessons(cfg.LessonDir)
	if err != nil {
		return err
	}
	active, err := selectLesson(lessons, requestedLessonID)
	if err != nil {
		return err
	}

	store, err := progress.NewFile(cfg.ProgressPath())
	if err != nil {
		return err
	}

	v, err := dialVM(logger)
	if err != nil {
		return err
	}

	p := parser.New()
	ch := channel.New(v, p)
	val := validator.New(ch)
	drv := driver.New(ch, p, val, store, logger)
	defer func() {
		if err := drv.Close(); err != nil {
			logger.Warnw("error closing session", "error", err)
		}
	}()

	restore, err := enterRawMode()
	if err != nil {
		logger.Warnw("stdin is not a terminal; running without raw mode", "error", err)
	} else {
		defer restore()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := drv.Boot(ctx, func(text string) { fmt.Fprint(os.Stdout, text) }); err != nil {
		return fmt.Errorf("boot session: %w", err)
	}
	if err := drv.OpenLesson(active, true); err != nil {
		return fmt.Errorf("open lesson %s: %w", active.ID, err)
	}
	if ex, ok := drv.CurrentExercise(); ok {
		fmt.Fprintf(os.Stdout, "\r\n\x1b[36m▲ %s: %s\x1b[0m\r\n", active.Title, ex.Title)
	}

	return inputLoop(ctx, drv, ch, lessons)
}

func dialVM(logger *zap.SugaredLogger) (vm.VM, error) {
	if cfg.Remote == "" {
		dir, err := os.MkdirTemp("", "clitutor-sandbox-")
		if err != nil {
			return nil, fmt.Errorf("create local sandbox dir: %w", err)
		}
		return localpty.New(dir)
	}

	user, addr := cfg.Remote, ""
	if at := strings.IndexByte(cfg.Remote, '@'); at >= 0 {
		user, addr = cfg.Remote[:at], cfg.Remote[at+1:]
	}
	if addr == "" {
		return nil, fmt.Errorf("--remote must be of the form user@host:port")
	}
	logger.Infow("dialing remote shell", "user", user, "addr", addr)
	return sshvm.Dial(sshvm.Options{
		Addr:           addr,
		User:           user,
		IdentityFiles:  cfg.IdentityFiles,
		KnownHostsFile: cfg.KnownHostsFile,
		PasswordPrompt: readPassword,
	})
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(data), err
}

// enterRawMode puts stdin into raw mode so keystrokes reach this
// process one at a time instead of being line-buffered by the local
// tty driver; inputLoop then does its own line buffering before
// anything is sent to the shell. When stdin is not a terminal, e.g.
// under test harnesses, it changes nothing and returns a no-op restore
// func together with an error.
func enterRawMode() (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, oldState) }, nil
}

// slashCommands are intercepted client-side rather than forwarded to
// the shell; everything else typed at the prompt is sent verbatim.
var slashCommands = map[string]bool{
	"/help": true, "/lessons": true, "/lesson": true, "/hint": true,
	"/skip": true, "/reset": true, "/status": true, "/sidebar": true,
	"/close": true, "/back": true,
}

// inputLoop reads stdin byte by byte, buffering one line at a time so
// a leading slash-command can be recognized before anything reaches
// the shell. A recognized line is handled locally and never
// forwarded; anything else is sent as a single line once Enter is
// seen.
func inputLoop(ctx context.Context, drv *driver.Driver, ch *channel.Channel, lessons []*lesson.Lesson) error {
	var line []byte
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return nil
		}
		b := buf[0]
		if b != '\r' && b != '\n' {
			line = append(line, b)
			continue
		}
		text := string(line)
		line = line[:0]
		fields := strings.Fields(strings.TrimSpace(text))
		if len(fields) > 0 && slashCommands[fields[0]] {
			handleSlashCommand(drv, ch, lessons, fields)
			continue
		}
		if err := ch.SendSerial(text + "\n"); err != nil {
			return err
		}
	}
}

func handleSlashCommand(drv *driver.Driver, ch *channel.Channel, lessons []*lesson.Lesson, fields []string) {
	msg := dispatchSlashCommand(drv, lessons, fields)
	fmt.Fprintf(os.Stdout, "\r\n\x1b[36m▲ %s\x1b[0m\r\n", msg)
	// clear whatever the shell's own line discipline thinks is pending
	// and kick a fresh prompt, without forwarding any of this to the
	// command guard chain.
	if err := ch.SendSerial("\x15\r"); err != nil {
		fmt.Fprintf(os.Stderr, "clitutor: %v\n", err)
	}
}

func dispatchSlashCommand(drv *driver.Driver, lessons []*lesson.Lesson, fields []string) string {
	switch fields[0] {
	case "/hint":
		hint, ok := drv.Hint()
		if !ok {
			return "no more hints for this exercise"
		}
		return "hint: " + hint
	case "/skip":
		drv.Skip()
		if ex, ok := drv.CurrentExercise(); ok {
			return "skipped -- next: " + ex.Title
		}
		return "skipped -- lesson complete"
	case "/reset":
		if err := drv.Reset(); err != nil {
			return err.Error()
		}
		return "sandbox reset"
	case "/status":
		level := drv.Level()
		if ex, ok := drv.CurrentExercise(); ok {
			return fmt.Sprintf("level %s, current exercise: %s", level.Title, ex.Title)
		}
		return fmt.Sprintf("level %s, lesson complete", level.Title)
	case "/lessons":
		names := make([]string, len(lessons))
		for i, l := range lessons {
			names[i] = fmt.Sprintf("%d:%s", i+1, l.ID)
		}
		return "available lessons: " + strings.Join(names, ", ")
	case "/lesson":
		if len(fields) < 2 {
			return "usage: /lesson <N>"
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(lessons) {
			return fmt.Sprintf("no lesson numbered %s", fields[1])
		}
		target := lessons[n-1]
		if err := drv.OpenLesson(target, true); err != nil {
			return err.Error()
		}
		return "opened lesson " + target.ID
	case "/help":
		return "commands: /help /lessons /lesson <N> /hint /skip /reset /status"
	case "/sidebar", "/close", "/back":
		return fields[0] + " has no effect outside the browser UI"
	default:
		return "unrecognized command " + fields[0]
	}
}
