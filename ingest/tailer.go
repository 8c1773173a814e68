package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/logger"
	"github.com/activecm/beaconwatch/metrics"
)

// Tailer reads newly appended lines from a conn.log file and parses them
// into FlowRecords, advancing an in-memory byte offset. The offset is never
// persisted across restarts. A new Tailer starts at the file's current end
// (see NewTailer), so Run does not read lines that were already in the file
// when it started, including lines appended while the process was not
// running; only ReadBacklog reads the file from byte zero.
type Tailer struct {
	afs       afero.Fs
	cfg       config.Ingest
	offset    int64
	zlog      zerolog.Logger
	lineCount int
}

// NewTailer creates a Tailer for the configured log path. It seeks to the
// current end of file so only subsequently appended lines are read.
func NewTailer(afs afero.Fs, cfg config.Ingest) (*Tailer, error) {
	info, err := afs.Stat(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", cfg.LogPath, err)
	}

	return &Tailer{
		afs:    afs,
		cfg:    cfg,
		offset: info.Size(),
		zlog:   logger.GetLogger(),
	}, nil
}

// ReadBacklog parses every line currently in the file from the beginning,
// used by `ingest --once`. It does not move the live tailing offset.
func (t *Tailer) ReadBacklog(ctx context.Context, out chan<- database.FlowRecord) error {
	file, err := t.afs.Open(t.cfg.LogPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = t.scan(ctx, file, out)
	return err
}

// Run watches the log file's parent directory for writes and streams newly
// appended lines into out until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context, out chan<- database.FlowRecord) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(t.cfg.LogPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	// drain whatever has accumulated since the offset was captured
	if err := t.poll(ctx, out); err != nil {
		t.zlog.Error().Err(err).Msg("initial poll of conn log failed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(t.cfg.LogPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.poll(ctx, out); err != nil {
				t.zlog.Error().Err(err).Msg("polling conn log failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.zlog.Error().Err(err).Msg("fsnotify watcher error")
		}
	}
}

// poll reads any bytes appended since the last read offset.
func (t *Tailer) poll(ctx context.Context, out chan<- database.FlowRecord) error {
	file, err := t.afs.Open(t.cfg.LogPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	// file was truncated or replaced (e.g. log rotation): restart from 0
	if info.Size() < t.offset {
		t.offset = 0
	}

	if _, err := file.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	consumed, err := t.scan(ctx, file, out)
	if err != nil {
		return err
	}

	// only advance past the bytes that ended in a complete line; a
	// trailing partial line (caught mid-write) is left for the next poll
	t.offset += consumed
	return nil
}

// scan reads complete, newline-terminated lines from r and emits parsed
// FlowRecords on out, returning the number of bytes consumed. A trailing
// chunk with no terminating newline is never consumed, so a line caught
// mid-write is retried whole on the next call instead of being parsed as
// malformed and permanently skipped.
func (t *Tailer) scan(ctx context.Context, r io.Reader, out chan<- database.FlowRecord) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64

	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// raw holds a non-terminated trailing chunk; don't consume it
				return consumed, nil
			}
			return consumed, err
		}

		select {
		case <-ctx.Done():
			return consumed, ctx.Err()
		default:
		}

		consumed += int64(len(raw))
		line := strings.TrimRight(string(raw), "\r\n")
		if IsDirectiveOrBlank(line) {
			continue
		}

		rec, err := ParseLine(line, t.cfg.MinFields)
		if err != nil {
			t.zlog.Warn().Err(err).Msg("skipping malformed conn log line")
			continue
		}
		t.lineCount++

		select {
		case out <- rec:
			metrics.FlowsIngested.Inc()
		case <-ctx.Done():
			return consumed, ctx.Err()
		}
	}
}

// LinesRead returns the number of successfully parsed lines seen so far,
// used to drive the backlog-scan progress bar.
func (t *Tailer) LinesRead() int {
	return t.lineCount
}
