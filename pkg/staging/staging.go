// Package staging manages the directories browser downloads land in.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// DirName is the name of the staging subdirectory inside the output directory.
const DirName = "downloads"

// Default wait settings for Await.
const (
	DefaultTimeout  = 2 * time.Minute
	DefaultInterval = time.Second
)

var (
	ErrDirNotEmpty     = errors.New("directory not empty")
	ErrDownloadTimeout = errors.New("timed out waiting for download")

	errNotReady = errors.New("download not ready")
)

// partialSuffixes mark files a browser is still writing.
var partialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// Dir returns the staging directory for an output directory.
func Dir(outputDir string) string {
	return filepath.Join(outputDir, DirName)
}

// EnsureEmpty makes sure dir exists and has no entries. An existing non-empty
// directory is cleared when clean is set and rejected with ErrDirNotEmpty
// otherwise.
func EnsureEmpty(dir string, clean bool) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return nil
	}
	if !clean {
		return fmt.Errorf("%w: %s has %d entries", ErrDirNotEmpty, dir, len(entries))
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
	}
	return nil
}

// WaitConfig bounds Await.
type WaitConfig struct {
	// Timeout is the longest Await waits for a file. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Interval is the delay between directory listings. Defaults to DefaultInterval.
	Interval time.Duration
}

func (c WaitConfig) withDefaults() WaitConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Await polls dir until a finished file appears and returns its path.
// A missing directory counts as not ready yet; any other listing error is
// returned immediately. When nothing shows up within the timeout the error
// wraps ErrDownloadTimeout.
func Await(ctx context.Context, dir string, cfg WaitConfig) (string, error) {
	cfg = cfg.withDefaults()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var found string
	err := retry.Do(
		func() error {
			name, err := finished(dir)
			if err != nil {
				return err
			}
			if name == "" {
				return errNotReady
			}
			found = filepath.Join(dir, name)
			return nil
		},
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errNotReady)
		}),
		retry.Attempts(uint(cfg.Timeout/cfg.Interval)+1),
		retry.Delay(cfg.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.Context(waitCtx),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return found, nil
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, errNotReady) || errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: nothing in %s after %s", ErrDownloadTimeout, dir, cfg.Timeout)
	}
	return "", err
}

// finished returns the name of the first completed file in dir, or "" if
// there is none yet.
func finished(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		return e.Name(), nil
	}
	return "", nil
}

func isPartial(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Move renames src to dst, replacing dst if it exists, and returns the size
// of the moved file.
func Move(src, dst string) (int64, error) {
	if err := os.Rename(src, dst); err != nil {
		return 0, fmt.Errorf("moving %s to %s: %w", filepath.Base(src), dst, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", dst, err)
	}
	return info.Size(), nil
}
