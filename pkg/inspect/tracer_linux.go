//go:build linux

package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long the reader waits before rechecking its
// context, in milliseconds.
const pollInterval = 100

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Tracer collects IN_ACCESS events for files in a fixed set of directories.
type Tracer struct {
	fd     int
	root   string
	dirs   map[int32]string
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once

	mu       sync.Mutex
	accessed map[string]struct{}
	err      error
}

// Start watches every dir (relative to root, slash separated) and begins
// reading events on a background goroutine. Directories that no longer
// exist in the working tree are skipped.
func Start(ctx context.Context, root string, dirs []string, logger *slog.Logger) (*Tracer, error) {
	if logger == nil {
		logger = discardLogger
	}
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}

	t := &Tracer{
		fd:       fd,
		root:     root,
		dirs:     make(map[int32]string, len(dirs)),
		logger:   logger,
		done:     make(chan struct{}),
		accessed: make(map[string]struct{}),
	}
	for _, d := range dirs {
		abs := filepath.Join(root, filepath.FromSlash(d))
		wd, err := unix.InotifyAddWatch(fd, abs, unix.IN_ACCESS)
		if err != nil {
			if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
				logger.Debug("inspect: skip missing directory", slog.String("dir", d))
				continue
			}
			unix.Close(fd)
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
		t.dirs[int32(wd)] = d
	}
	logger.Debug("inspect: watching", slog.Int("directories", len(t.dirs)))

	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)
	return t, nil
}

// Stop ends the reader, waits for it and returns the accessed paths,
// repository-relative and sorted.
func (t *Tracer) Stop() ([]string, error) {
	t.stop.Do(func() {
		t.cancel()
		<-t.done
		unix.Close(t.fd)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.accessed))
	for p := range t.accessed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, t.err
}

func (t *Tracer) loop(ctx context.Context) {
	defer close(t.done)
	var buf [unix.SizeofInotifyEvent * 4096]byte
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-ctx.Done():
			// Events queued before cancellation are still ours.
			t.drain(buf[:])
			return
		default:
		}
		n, err := unix.Poll(fds, pollInterval)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			t.fail(fmt.Errorf("poll inotify: %w", err))
			return
		}
		if n > 0 {
			t.drain(buf[:])
		}
	}
}

func (t *Tracer) drain(buf []byte) {
	for {
		n, err := unix.Read(t.fd, buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return
		case err != nil:
			t.fail(fmt.Errorf("read inotify: %w", err))
			return
		case n < unix.SizeofInotifyEvent:
			return
		}
		t.consume(buf[:n])
	}
}

func (t *Tracer) consume(buf []byte) {
	for off := 0; off+unix.SizeofInotifyEvent <= len(buf); {
		ev := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
		start := off + unix.SizeofInotifyEvent
		end := start + int(ev.Len)
		if end > len(buf) {
			return
		}
		name := strings.TrimRight(string(buf[start:end]), "\x00")
		off = end

		if ev.Mask&unix.IN_ACCESS == 0 || ev.Mask&unix.IN_ISDIR != 0 || name == "" {
			continue
		}
		dir, ok := t.dirs[ev.Wd]
		if !ok {
			continue
		}
		p := path.Join(dir, name)
		t.mu.Lock()
		if _, dup := t.accessed[p]; !dup {
			t.logger.Debug("inspect: accessed", slog.String("path", p))
			t.accessed[p] = struct{}{}
		}
		t.mu.Unlock()
	}
}

func (t *Tracer) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
}

// Run starts a tracer, runs cmd to completion and returns what it read. A
// non-zero exit status of cmd is logged, not returned.
func Run(ctx context.Context, root string, dirs []string, cmd *exec.Cmd, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = discardLogger
	}
	t, err := Start(ctx, root, dirs, logger)
	if err != nil {
		return nil, err
	}
	runErr := cmd.Run()
	accessed, err := t.Stop()
	if err != nil {
		return nil, err
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		logger.Warn("inspect: command failed", slog.String("command", cmd.Path), slog.Int("exit_code", exitErr.ExitCode()))
	} else if runErr != nil {
		return nil, fmt.Errorf("run %s: %w", cmd.Path, runErr)
	}
	return accessed, nil
}
