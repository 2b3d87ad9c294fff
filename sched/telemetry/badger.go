package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/multierr"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/std/types/lockfree"
	"github.com/zjkmxy/pktsched/std/types/optional"
	"github.com/zjkmxy/pktsched/std/utils"
)

const recordVersion = 1

var ErrBadRecord = errors.New("malformed drop record")

// writeBatch is the part of *badger.WriteBatch used by the writer.
type writeBatch interface {
	Set(k, v []byte) error
	Flush() error
	Cancel()
}

// BadgerSink persists drop records. Record only enqueues; a single writer
// goroutine batches records into the database.
type BadgerSink struct {
	db       *badger.DB
	queue    *lockfree.YiQueue[Record]
	seq      uint64
	newBatch func() writeBatch

	stop chan struct{}
	wg   sync.WaitGroup
	err  error

	written atomic.Uint64
	failed  atomic.Uint64
}

// OpenBadgerSink opens (or creates) the database at path. An empty path
// keeps the database in memory.
func OpenBadgerSink(path string) (*BadgerSink, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open drop database: %w", err)
	}

	s := &BadgerSink{
		db:    db,
		queue: lockfree.NewYiQueue[Record](),
		stop:  make(chan struct{}),
	}
	s.newBatch = func() writeBatch { return db.NewWriteBatch() }
	if err := s.loadSeq(); err != nil {
		db.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *BadgerSink) String() string {
	return "badger-sink"
}

func (s *BadgerSink) Record(r *Record) {
	s.queue.Push(*r)
}

// Written returns the number of records persisted so far.
func (s *BadgerSink) Written() uint64 {
	return s.written.Load()
}

// Failed returns the number of records lost to storage errors.
func (s *BadgerSink) Failed() uint64 {
	return s.failed.Load()
}

// Close flushes pending records and closes the database.
func (s *BadgerSink) Close() error {
	close(s.stop)
	s.wg.Wait()
	return multierr.Combine(s.err, s.db.Close())
}

// Scan calls fn for every stored record in insertion order until fn
// returns false.
func (s *BadgerSink) Scan(fn func(seq uint64, r Record) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key())
			var r Record
			err := item.Value(func(val []byte) error {
				var err error
				r, err = decodeRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if !fn(seq, r) {
				return nil
			}
		}
		return nil
	})
}

func (s *BadgerSink) loadSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if it.Valid() {
			s.seq = binary.BigEndian.Uint64(it.Item().Key()) + 1
		}
		return nil
	})
}

func (s *BadgerSink) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.queue.Notify:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

// flush drains the whole queue even on error: Push only wakes the writer
// when the queue was empty. Records that cannot be stored count as failed.
func (s *BadgerSink) flush() {
	if s.queue.Len() == 0 {
		return
	}

	wb := s.newBatch()
	defer wb.Cancel()

	var n, lost uint64
	var setErr error
	for r := range s.queue.Iter() {
		if setErr != nil {
			lost++
			continue
		}
		key := binary.BigEndian.AppendUint64(nil, s.seq)
		s.seq++
		if setErr = wb.Set(key, encodeRecord(&r)); setErr != nil {
			lost++
			continue
		}
		n++
	}
	if setErr != nil {
		s.fail(lost, setErr)
	}
	if err := wb.Flush(); err != nil {
		s.fail(n, err)
		return
	}
	s.written.Add(n)
}

func (s *BadgerSink) fail(lost uint64, err error) {
	s.failed.Add(lost)
	s.err = multierr.Append(s.err, err)
	core.Log.Error(s, "Unable to store drop records", "lost", lost, "err", err)
}

func encodeRecord(r *Record) []byte {
	b := make([]byte, 0, 24+len(r.Site))
	b = append(b, recordVersion, byte(r.Rep), byte(r.Dir))
	b = binary.BigEndian.AppendUint16(b, uint16(r.Reason))
	b = binary.BigEndian.AppendUint16(b, uint16(r.Flags))
	pid := optional.CastInt[int32, uint32](r.PID)
	b = append(b, utils.If[byte](pid.IsSet(), 1, 0))
	b = binary.BigEndian.AppendUint32(b, pid.GetOr(0))
	b = binary.BigEndian.AppendUint32(b, r.FlowID)
	b = binary.BigEndian.AppendUint32(b, r.Length)
	b = append(b, r.Site...)
	return b
}

func decodeRecord(b []byte) (r Record, err error) {
	const fixed = 3 + 2 + 2 + 1 + 4 + 4 + 4
	if len(b) < fixed || b[0] != recordVersion {
		return r, ErrBadRecord
	}
	r.Rep = defn.Representation(b[1])
	r.Dir = defn.Direction(b[2])
	r.Reason = defn.DropReason(binary.BigEndian.Uint16(b[3:]))
	r.Flags = defn.DropFlags(binary.BigEndian.Uint16(b[5:]))
	if b[7] == 1 {
		r.PID = optional.CastInt[uint32, int32](optional.Some(binary.BigEndian.Uint32(b[8:])))
	}
	r.FlowID = binary.BigEndian.Uint32(b[12:])
	r.Length = binary.BigEndian.Uint32(b[16:])
	r.Site = defn.DropSite(b[fixed:])
	return r, nil
}

// badgerLogger routes badger's own logging into core.Log.
type badgerLogger struct{}

func (badgerLogger) String() string { return "badger" }

func (l badgerLogger) Errorf(f string, v ...any) {
	core.Log.Error(l, fmt.Sprintf(f, v...))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	core.Log.Warn(l, fmt.Sprintf(f, v...))
}

func (l badgerLogger) Infof(f string, v ...any) {
	core.Log.Debug(l, fmt.Sprintf(f, v...))
}

func (l badgerLogger) Debugf(f string, v ...any) {
	core.Log.Trace(l, fmt.Sprintf(f, v...))
}
