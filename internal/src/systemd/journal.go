package systemd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultLogLines is how many journal entries get_logs returns, and the most it
// ever returns.
const DefaultLogLines = 20

const noEntries = "-- No entries --"

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Journal reads unit logs through journalctl, non-interactively.
type Journal struct {
	Path    string
	Lines   int
	Timeout time.Duration

	run Runner
}

type JournalOption func(*Journal)

func WithJournalPath(path string) JournalOption {
	return func(j *Journal) {
		if path != "" {
			j.Path = path
		}
	}
}

// WithJournalLines lowers the tail length. Values above DefaultLogLines are capped.
func WithJournalLines(n int) JournalOption {
	return func(j *Journal) {
		if n > 0 {
			j.Lines = min(n, DefaultLogLines)
		}
	}
}

func WithJournalTimeout(d time.Duration) JournalOption {
	return func(j *Journal) {
		if d > 0 {
			j.Timeout = d
		}
	}
}

func WithRunner(r Runner) JournalOption {
	return func(j *Journal) {
		j.run = r
	}
}

func NewJournal(opts ...JournalOption) *Journal {
	j := &Journal{
		Path:    "journalctl",
		Lines:   DefaultLogLines,
		Timeout: 10 * time.Second,
		run:     execRunner,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Tail returns the last Lines entries of the unit and how many lines it kept.
func (j *Journal) Tail(ctx context.Context, unit string) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	n := j.Lines
	if n <= 0 || n > DefaultLogLines {
		n = DefaultLogLines
	}

	out, err := j.run(ctx, j.Path,
		"--unit", unit,
		"--lines", strconv.Itoa(n),
		"--no-pager",
		"--quiet",
	)
	if err != nil {
		return "", 0, fmt.Errorf("journalctl %v: %w", unit, err)
	}

	lines := lastLines(string(out), n)
	if len(lines) == 0 {
		return noEntries, 0, nil
	}

	return strings.Join(lines, "\n"), len(lines), nil
}

// lastLines keeps at most n trailing non-empty lines. journalctl may print more
// than asked when entries span multiple lines.
func lastLines(out string, n int) []string {
	out = strings.TrimRight(out, "\n")
	if strings.TrimSpace(out) == "" {
		return nil
	}

	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}
