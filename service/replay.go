package service

import (
	"fmt"

	"go.uber.org/zap"

	"tickloop/domain/orderbook"
	entrywal "tickloop/infra/wal/entry"
	"tickloop/snapshot"
	"tickloop/wire"
)

/*
Restore rebuilds the book from the newest snapshot and the journal
records written after it.

IMPORTANT:
- This MUST run before either loop is started
- The outbox is NOT replayed; the broadcaster drains it on its own
*/
func (p *Pipeline) Restore(snapshotPath, journalDir string) error {
	var snapSeq uint64
	if snapshotPath != "" {
		seq, err := snapshot.Load(snapshotPath, p.book)
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		snapSeq = seq
	}

	var maxID uint64
	p.book.Walk(func(o orderbook.Order) {
		maxID = max(maxID, o.ID)
	})

	lastSeq := snapSeq
	replayed := 0
	if journalDir != "" {
		seq, err := entrywal.Replay(journalDir, func(rec *entrywal.Record) error {
			if rec.Type != entrywal.RecordMarketData || rec.Seq <= snapSeq {
				return nil
			}
			msg, err := wire.ParseMarketData(rec.Data)
			if err != nil {
				return fmt.Errorf("journal seq %d: %w", rec.Seq, err)
			}
			p.applyToBook(msg)
			maxID = max(maxID, msg.OrderID)
			replayed++
			return nil
		})
		if err != nil {
			return fmt.Errorf("restore journal: %w", err)
		}
		lastSeq = max(lastSeq, seq)
	}

	// Resume sequencing AFTER replay
	p.journalSeq.Reset(lastSeq)
	if maxID > p.orderIDs.Current() {
		p.orderIDs.Reset(maxID)
	}
	p.lastBid, p.lastAsk = p.book.BestBid(), p.book.BestAsk()
	p.publishTop()

	p.log.Info("restore completed",
		zap.Uint64("snapshot_seq", snapSeq),
		zap.Uint64("last_seq", lastSeq),
		zap.Int("replayed", replayed),
		zap.Int("orders", p.book.Len()),
	)
	return nil
}
