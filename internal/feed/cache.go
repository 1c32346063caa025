package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores raw fetched documents under a live directory and holds a
// quarantine directory for files awaiting physical deletion. Writes go
// through a temp file and rename so a concurrent reader never observes a
// partial file.
type FileCache struct {
	liveDir       string
	quarantineDir string
}

func NewFileCache(liveDir, quarantineDir string) (*FileCache, error) {
	for _, dir := range []string{liveDir, quarantineDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating cache dir %s: %w", dir, err)
		}
	}
	return &FileCache{
		liveDir:       liveDir,
		quarantineDir: quarantineDir,
	}, nil
}

func (c *FileCache) Path(name string) string {
	return filepath.Join(c.liveDir, name)
}

func (c *FileCache) Write(name string, data []byte) (string, error) {
	dst := c.Path(name)

	tmp, err := os.CreateTemp(c.liveDir, name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("error creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("error writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("error closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("error publishing cache file: %w", err)
	}
	return dst, nil
}

func (c *FileCache) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(c.Path(name))
	if err != nil {
		return nil, fmt.Errorf("error reading cache file: %w", err)
	}
	return data, nil
}

// Quarantine moves a live file into the quarantine directory and restarts
// its age clock at now, so the retention window for manual recovery counts
// from the move and not from the original fetch. A file that is already gone
// from the live directory is not an error; the move is the first phase of a
// two-phase delete and may be retried.
func (c *FileCache) Quarantine(name string, now time.Time) error {
	src := c.Path(name)
	dst := filepath.Join(c.quarantineDir, name)

	err := os.Rename(src, dst)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error quarantining %s: %w", name, err)
	}
	if err := os.Chtimes(dst, now, now); err != nil {
		return fmt.Errorf("error stamping quarantined %s: %w", name, err)
	}
	return nil
}

// QuarantinedBefore lists quarantined file names whose modification time is
// older than the cutoff.
func (c *FileCache) QuarantinedBefore(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(c.quarantineDir)
	if err != nil {
		return nil, fmt.Errorf("error reading quarantine dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// RemoveQuarantined unlinks a file from quarantine. Files are never removed
// from the live directory directly.
func (c *FileCache) RemoveQuarantined(name string) error {
	err := os.Remove(filepath.Join(c.quarantineDir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing quarantined %s: %w", name, err)
	}
	return nil
}
