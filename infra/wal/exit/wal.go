package exit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one emitted order awaiting or past publication. Payload is
// the order's wire record.
type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeaderSize = 1 + 4 + 8

var (
	ErrNotFound     = errors.New("outbox: order not found")
	errRecordLength = errors.New("outbox: invalid record length")
)

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, recordHeaderSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeaderSize:], r.Payload)
	return buf
}

// decodeRecord copies b; pebble owns the slice it hands out.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordHeaderSize {
		return Record{}, errRecordLength
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[recordHeaderSize:]),
	}, nil
}

// -------------------- Outbox --------------------

// Outbox durably records orders the strategy emitted so a broadcaster
// can publish them at least once. Safe for concurrent use.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", dir, err)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// PutNew records an emitted order in StateNew.
func (o *Outbox) PutNew(orderID uint64, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return o.db.Set(keyFor(orderID), encodeRecord(rec), pebble.Sync)
}

// UpdateState moves an order to state, keeping its payload.
func (o *Outbox) UpdateState(orderID uint64, state State, retries uint32) error {
	rec, err := o.Get(orderID)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(orderID), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) Delete(orderID uint64) error {
	return o.db.Delete(keyFor(orderID), pebble.Sync)
}

func (o *Outbox) Get(orderID uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(orderID))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanByState calls fn, in order id order, for every record in state.
func (o *Outbox) ScanByState(state State, fn func(orderID uint64, rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}

		rec, err := decodeRecord(val)
		if err != nil {
			return err
		}

		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}

		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// PurgeAcked deletes every acknowledged record and returns how many
// were removed.
func (o *Outbox) PurgeAcked() (int, error) {
	var ids []uint64
	err := o.ScanByState(StateAcked, func(id uint64, _ Record) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return 0, err
	}

	b := o.db.NewBatch()
	defer b.Close()
	for _, id := range ids {
		if err := b.Delete(keyFor(id), nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// -------------------- Helpers --------------------

const keyPrefix = "order/"

func keyFor(orderID uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", orderID))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &id)
	return id, err
}
