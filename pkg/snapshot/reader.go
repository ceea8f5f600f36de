package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/0xmhha/bead-sync/pkg/logger"
)

// reader implements the Reader interface over .beads/issues.jsonl.
type reader struct {
	config ReaderConfig
	logger logger.Logger
}

// NewReader creates a snapshot reader.
func NewReader(cfg ReaderConfig, log logger.Logger) Reader {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}

	return &reader{
		config: cfg,
		logger: log,
	}
}

// Read implements Reader.Read.
//
// Transient open/read failures (the tracker holds the file briefly
// during its own rewrite) are retried a bounded number of times with a
// fixed delay before being surfaced.
func (r *reader) Read(ctx context.Context, root string) (*Snapshot, error) {
	if root == "" {
		return nil, ErrEmptyRoot
	}

	path := filepath.Join(root, BeadsDirName, SnapshotFileName)

	var snap *Snapshot
	operation := func() error {
		s, err := r.readOnce(path)
		if err != nil {
			if os.IsNotExist(err) {
				// A project without an export is empty, permanently.
				snap = &Snapshot{}
				return nil
			}
			if os.IsPermission(err) {
				return backoff.Permanent(err)
			}
			r.logger.Debug("snapshot read failed, retrying",
				"path", path,
				"error", err)
			return err
		}
		snap = s
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.config.RetryInterval), r.config.MaxRetries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	return snap, nil
}

// readOnce scans the JSONL file line by line. Blank and malformed lines
// are skipped so a single bad record never poisons the whole snapshot.
func (r *reader) readOnce(path string) (*Snapshot, error) {
	// #nosec G304: path is derived from a registered project root
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			r.logger.Warn("failed to close snapshot file",
				"path", path,
				"error", closeErr)
		}
	}()

	snap := &Snapshot{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var issue Issue
		if unmarshalErr := json.Unmarshal(line, &issue); unmarshalErr != nil {
			r.logger.Warn("skipping malformed snapshot line",
				"path", path,
				"line", lineNo,
				"error", unmarshalErr)
			continue
		}
		if issue.ID == "" {
			r.logger.Warn("skipping snapshot line without id",
				"path", path,
				"line", lineNo)
			continue
		}

		snap.Issues = append(snap.Issues, issue)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}
