package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrNoSnapshotWriter = errors.New("service: snapshots disabled")

// TakeSnapshot writes the book as of the last journaled sequence and
// drops the journal segments it covers. Processing role only.
func (p *Pipeline) TakeSnapshot() error {
	if p.snaps == nil {
		return ErrNoSnapshotWriter
	}
	seq := p.journalSeq.Current()

	if p.journal != nil {
		if err := p.journal.Sync(); err != nil {
			return fmt.Errorf("sync journal: %w", err)
		}
	}
	if err := p.snaps.Write(seq, p.book); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	// Truncate journal after snapshot
	if p.journal != nil {
		if err := p.journal.TruncateBefore(seq); err != nil {
			p.log.Warn("journal truncate failed", zap.Uint64("seq", seq), zap.Error(err))
		}
	}
	p.log.Debug("snapshot written", zap.Uint64("seq", seq), zap.Int("orders", p.book.Len()))
	return nil
}
