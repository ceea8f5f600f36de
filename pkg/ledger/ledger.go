package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/mailbox"
)

// ledger implements the Ledger interface over active.json/history.jsonl.
type ledger struct {
	config  Config
	logger  logger.Logger
	mailbox mailbox.Reader

	activePath  string
	historyPath string
	lockPath    string
}

// New creates a ledger rooted at cfg.Dir.
func New(cfg Config, mb mailbox.Reader, log logger.Logger) (Ledger, error) {
	if cfg.Dir == "" {
		return nil, &Error{Code: CodeInvalidArgument, Message: "ledger directory is required"}
	}
	if cfg.MinTTLMinutes <= 0 {
		cfg.MinTTLMinutes = DefaultMinTTLMinutes
	}
	if cfg.MaxTTLMinutes <= 0 {
		cfg.MaxTTLMinutes = DefaultMaxTTLMinutes
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	log.Info("reservation ledger initialized",
		"dir", cfg.Dir,
		"ttl_min", cfg.MinTTLMinutes,
		"ttl_max", cfg.MaxTTLMinutes)

	return &ledger{
		config:      cfg,
		logger:      log,
		mailbox:     mb,
		activePath:  filepath.Join(cfg.Dir, ActiveFileName),
		historyPath: filepath.Join(cfg.Dir, HistoryFileName),
		lockPath:    filepath.Join(cfg.Dir, lockFileName),
	}, nil
}

// Reserve implements Ledger.Reserve.
func (l *ledger) Reserve(agent, scope, issueID string, ttlMinutes int, takeoverStale bool) (*Reservation, error) {
	if agent == "" {
		return nil, &Error{Code: CodeInvalidArgument, Message: "agent id is required"}
	}
	if scope == "" {
		return nil, &Error{Code: CodeInvalidArgument, Message: "scope is required"}
	}
	if ttlMinutes < l.config.MinTTLMinutes || ttlMinutes > l.config.MaxTTLMinutes {
		return nil, &Error{
			Code: CodeInvalidTTL,
			Message: fmt.Sprintf("ttl %d minutes outside accepted range [%d, %d]",
				ttlMinutes, l.config.MinTTLMinutes, l.config.MaxTTLMinutes),
		}
	}

	var created *Reservation

	err := l.mutate(func(now time.Time, af *activeFile) ([]historyEntry, error) {
		normScope, _ := normalizeScope(scope)

		// Any overlap with a live claim blocks, regardless of how the two
		// scopes are worded: the point of the ledger is that two agents
		// never edit overlapping scopes.
		for i := range af.Reservations {
			existing := &af.Reservations[i]
			if existing.State != StateActive {
				continue
			}
			if ClassifyOverlap(existing.Scope, scope) != OverlapDisjoint {
				return nil, &Error{
					Code:    CodeConflict,
					Message: fmt.Sprintf("scope %s overlaps active reservation %s", scope, existing.Scope),
					Holder:  existing.AgentID,
				}
			}
		}

		for i := range af.Reservations {
			existing := &af.Reservations[i]
			if existing.State != StateExpired {
				continue
			}
			existingNorm, _ := normalizeScope(existing.Scope)
			if existingNorm != normScope {
				continue
			}
			if !takeoverStale {
				return nil, &Error{
					Code:    CodeStaleReservation,
					Message: fmt.Sprintf("scope %s has an expired reservation; retry with takeover to claim it", scope),
					Holder:  existing.AgentID,
				}
			}
			// Retire the expired entry; it was logged as expired when
			// swept, so no extra history entry here.
			af.Reservations = append(af.Reservations[:i], af.Reservations[i+1:]...)
			break
		}

		r := Reservation{
			ID:        uuid.NewString(),
			Scope:     scope,
			AgentID:   agent,
			IssueID:   issueID,
			State:     StateActive,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Duration(ttlMinutes) * time.Minute),
		}
		af.Reservations = append(af.Reservations, r)
		created = &r

		return []historyEntry{{At: now, Event: "created", Reservation: r}}, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("scope reserved",
		"agent", agent,
		"scope", scope,
		"issue", issueID,
		"expires_at", created.ExpiresAt)

	return created, nil
}

// Release implements Ledger.Release.
func (l *ledger) Release(agent, scope string) error {
	if agent == "" {
		return &Error{Code: CodeInvalidArgument, Message: "agent id is required"}
	}
	if scope == "" {
		return &Error{Code: CodeInvalidArgument, Message: "scope is required"}
	}

	err := l.mutate(func(now time.Time, af *activeFile) ([]historyEntry, error) {
		normScope, _ := normalizeScope(scope)

		for i := range af.Reservations {
			existing := &af.Reservations[i]
			existingNorm, _ := normalizeScope(existing.Scope)
			if existingNorm != normScope {
				continue
			}

			if existing.State == StateExpired {
				// Already swept; the caller holds nothing releasable.
				return nil, &Error{
					Code:    CodeNotFound,
					Message: fmt.Sprintf("reservation on %s already expired", scope),
				}
			}

			if existing.AgentID != agent {
				return nil, &Error{
					Code:    CodeNotOwner,
					Message: fmt.Sprintf("reservation on %s is not held by %s", scope, agent),
					Holder:  existing.AgentID,
				}
			}

			released := *existing
			released.State = StateReleased
			released.ReleasedAt = &now
			af.Reservations = append(af.Reservations[:i], af.Reservations[i+1:]...)

			return []historyEntry{{At: now, Event: "released", Reservation: released}}, nil
		}

		return nil, &Error{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("no reservation on %s", scope),
		}
	})
	if err != nil {
		return err
	}

	l.logger.Info("scope released", "agent", agent, "scope", scope)
	return nil
}

// Status implements Ledger.Status.
func (l *ledger) Status(filter Filter) (*StatusReport, error) {
	report := &StatusReport{}

	err := l.mutate(func(now time.Time, af *activeFile) ([]historyEntry, error) {
		for _, r := range af.Reservations {
			if r.State != StateActive {
				continue
			}
			if filter.AgentID != "" && r.AgentID != filter.AgentID {
				continue
			}
			if filter.IssueID != "" && r.IssueID != filter.IssueID {
				continue
			}
			report.Active = append(report.Active, r)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if l.mailbox != nil {
		acks, ackErr := l.mailbox.Unacked(mailbox.Filter{
			AgentID: filter.AgentID,
			IssueID: filter.IssueID,
		})
		if ackErr != nil {
			// The mailbox is a black-box collaborator; its failure must
			// not take status down with it.
			l.logger.Warn("failed to read mailbox", "error", ackErr)
		} else {
			report.PendingAcks = acks
		}
	}

	return report, nil
}

// mutate runs one read-sweep-modify-write cycle under the file lock.
//
// The sweep's transitions are persisted even when fn rejects the
// operation, so each expiry is logged to history exactly once no matter
// which operation first observes it.
func (l *ledger) mutate(fn func(now time.Time, af *activeFile) ([]historyEntry, error)) error {
	lock, err := acquireLock(l.lockPath)
	if err != nil {
		return &Error{Code: CodeInternal, Message: err.Error()}
	}
	defer releaseLock(lock)

	af, err := l.load()
	if err != nil {
		return err
	}

	now := l.config.Clock()
	entries := l.sweep(af, now)

	fnEntries, fnErr := fn(now, af)
	if fnErr == nil {
		entries = append(entries, fnEntries...)
	}

	if saveErr := l.save(af); saveErr != nil {
		return &Error{Code: CodeInternal, Message: saveErr.Error()}
	}
	l.appendHistory(entries)

	return fnErr
}

// sweep marks overdue active reservations expired in place. Entries stay
// in the file so a later reserve can detect the stale claim and demand
// an explicit takeover; the state flip doubles as the logged-once marker.
func (l *ledger) sweep(af *activeFile, now time.Time) []historyEntry {
	var entries []historyEntry

	for i := range af.Reservations {
		r := &af.Reservations[i]
		if r.State == StateActive && !now.Before(r.ExpiresAt) {
			r.State = StateExpired
			entries = append(entries, historyEntry{At: now, Event: "expired", Reservation: *r})
			l.logger.Debug("reservation expired",
				"agent", r.AgentID,
				"scope", r.Scope)
		}
	}

	return entries
}

// load reads the active set, retrying transient failures briefly. A
// missing file is an empty ledger.
func (l *ledger) load() (*activeFile, error) {
	var data []byte

	operation := func() error {
		d, err := os.ReadFile(l.activePath)
		if err != nil {
			if os.IsNotExist(err) {
				data = nil
				return nil
			}
			return err
		}
		data = d
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 3)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, &Error{Code: CodeInternal, Message: fmt.Sprintf("failed to read active set: %v", err)}
	}

	af := &activeFile{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, af); err != nil {
			return nil, &Error{Code: CodeInternal, Message: fmt.Sprintf("active set is corrupt: %v", err)}
		}
	}

	return af, nil
}

// save rewrites the active set atomically.
func (l *ledger) save(af *activeFile) error {
	data, err := json.MarshalIndent(af, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode active set: %w", err)
	}

	tmp, err := os.CreateTemp(l.config.Dir, ".active-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write active set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), l.activePath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace active set: %w", err)
	}

	return nil
}

// appendHistory appends entries to the audit log. The log is advisory:
// a failed append is logged, never fatal to the operation it records.
func (l *ledger) appendHistory(entries []historyEntry) {
	if len(entries) == 0 {
		return
	}

	f, err := os.OpenFile(l.historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- path is inside the configured ledger dir
	if err != nil {
		l.logger.Warn("failed to open history log", "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.logger.Warn("failed to close history log", "error", closeErr)
		}
	}()

	for _, entry := range entries {
		line, marshalErr := json.Marshal(entry)
		if marshalErr != nil {
			l.logger.Warn("failed to encode history entry", "error", marshalErr)
			continue
		}
		if _, writeErr := f.Write(append(line, '\n')); writeErr != nil {
			l.logger.Warn("failed to append history entry", "error", writeErr)
			return
		}
	}
}
