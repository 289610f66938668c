package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"amequeue/internal/logging"
)

const defaultPoll = 250 * time.Millisecond

// Options controls a tail.
type Options struct {
	// Lines is how many trailing lines to print before following. Zero
	// prints none.
	Lines  int
	Follow bool
	// Poll is the follow interval; zero selects 250ms.
	Poll time.Duration
	// Match, when set, drops lines it rejects.
	Match func(line string) bool
}

// Tail passes the last opts.Lines lines of path to emit and, with Follow,
// every line appended afterwards until ctx is done. A missing file yields no
// lines; in follow mode Tail waits for it to appear.
func Tail(ctx context.Context, path string, opts Options, emit func(line string)) error {
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}
	match := opts.Match
	if match == nil {
		match = func(string) bool { return true }
	}

	lines, offset, err := readLast(path, opts.Lines, match)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		next, newOffset, err := readFrom(path, offset)
		if err != nil {
			return err
		}
		offset = newOffset
		for _, line := range next {
			if match(line) {
				emit(line)
			}
		}
	}
}

// JobFilter matches lines logged for the job with the given id.
func JobFilter(id string) func(string) bool {
	id = strings.TrimSpace(id)
	console := "[job " + logging.ShortID(id) + "]"
	structured := fmt.Sprintf("%q:%q", logging.FieldJobID, id)
	return func(line string) bool {
		return strings.Contains(line, console) || strings.Contains(line, structured)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}

func readLast(path string, limit int, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	scanner := newScanner(file)
	for scanner.Scan() {
		if limit <= 0 || !match(scanner.Text()) {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return ring, offset, nil
}

// readFrom returns complete lines written after offset. A file shorter than
// offset was truncated or replaced and is read from the start.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return nil, offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// Leave a partial trailing line for the next read.
			break
		}
		if err != nil {
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, offset, nil
}
