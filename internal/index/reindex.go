package index

import (
	"bytes"
	"log/slog"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// progressInterval is how many records pass between progress reports
// during reindex.
const progressInterval = 10000

// ProgressFunc receives reindex progress: the pass name and the number of
// records visited so far.
type ProgressFunc func(pass string, count int)

// SetProgressFunc installs a reindex progress hook. Pass nil to remove it.
func (e *Engine) SetProgressFunc(fn ProgressFunc) {
	e.progress = fn
}

// Reindex rebuilds every index record from the data records: the overlay
// is reset, all existing index records are staged for deletion, records
// whose storage key no longer matches the current identifier mode are
// rekeyed, and every record is indexed again. The result commits as one
// transaction.
func (e *Engine) Reindex() error {
	if e.kv.ReadOnly() {
		return direrrors.New(direrrors.ErrCodeStoreReadOnly,
			"index: reindex of a read-only database", store.ErrReadOnly)
	}

	// Pick up the current @INDEXLIST before rebuilding against it.
	if err := e.loadSettings(); err != nil {
		return err
	}

	// Drop any in-flight transaction state and start clean.
	if e.overlay != nil {
		if err := e.Cancel(); err != nil {
			return err
		}
	}
	if err := e.Begin(); err != nil {
		return err
	}

	if err := e.stageIndexPurge(); err != nil {
		_ = e.Cancel()
		return err
	}
	if err := e.rekeyPass(); err != nil {
		_ = e.Cancel()
		return err
	}
	if err := e.reindexPass(); err != nil {
		_ = e.Cancel()
		return err
	}

	return e.Commit()
}

// stageIndexPurge stages an empty list into the overlay for every existing
// index record, so the rebuild starts from nothing and untouched records
// are deleted at commit. The separator is part of the prefix check:
// @INDEXLIST must survive.
func (e *Engine) stageIndexPurge() error {
	plain := []byte(dnKeyPrefix + IndexPrefix + keySep)
	trunc := []byte(dnKeyPrefix + IndexPrefix + truncKeySep)
	return e.kv.Iterate(func(key, _ []byte) error {
		upper := bytes.ToUpper(key)
		if !bytes.HasPrefix(upper, plain) && !bytes.HasPrefix(upper, trunc) {
			return nil
		}
		e.overlay.put(string(key[len(dnKeyPrefix):]), &DNList{})
		return nil
	})
}

type rekeyOp struct {
	oldKey, newKey, value []byte
}

// rekeyPass moves every data record whose storage key differs from what
// the current identifier mode derives. Failures are latched and surfaced
// after the scan completes, so one bad record does not hide the rest.
func (e *Engine) rekeyPass() error {
	var ops []rekeyOp
	var firstErr error
	count := 0

	err := e.kv.Iterate(func(key, value []byte) error {
		if !isDataKey(key) {
			return nil
		}
		count++
		e.reportProgress("rekey", count)

		msg, err := message.Unpack(value, message.UnpackNoDataCopy)
		if err != nil {
			if firstErr == nil {
				firstErr = direrrors.CorruptIndex("index: unpack record during rekey", err)
			}
			return nil
		}
		want, err := e.RecordKey(msg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		if !bytes.Equal(want, key) {
			ops = append(ops, rekeyOp{
				oldKey: append([]byte(nil), key...),
				newKey: want,
				value:  append([]byte(nil), value...),
			})
		}
		return nil
	})
	if err != nil {
		return direrrors.StorageError("index: rekey scan", err)
	}
	if firstErr != nil {
		return firstErr
	}

	for _, op := range ops {
		if err := e.kv.UpdateKey(op.oldKey, op.newKey, op.value); err != nil {
			return direrrors.OperationsError("index: rekey record", err)
		}
	}

	if len(ops) > 0 {
		e.log.Info("index: rekeyed records", slog.Int("count", len(ops)))
	}
	return nil
}

// reindexPass rebuilds the index entries of every data record. Keys are
// collected up front so the rebuild never reads through the store while an
// iteration is in flight.
func (e *Engine) reindexPass() error {
	var keys [][]byte
	err := e.kv.Iterate(func(key, _ []byte) error {
		if isDataKey(key) {
			keys = append(keys, append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return direrrors.StorageError("index: reindex scan", err)
	}

	for i, key := range keys {
		e.reportProgress("reindex", i+1)

		value, err := e.kv.Get(key)
		if err != nil {
			return direrrors.StorageError("index: read record during reindex", err)
		}
		msg, err := message.Unpack(value, message.UnpackNoDataCopy)
		if err != nil {
			return direrrors.CorruptIndex("index: unpack record during reindex", err)
		}
		id, err := e.messageID(msg)
		if err != nil {
			return err
		}
		if err := e.addAll(msg, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reportProgress(pass string, count int) {
	if count%progressInterval != 0 {
		return
	}
	e.log.Warn("index: reindex in progress",
		slog.String("pass", pass),
		slog.Int("records", count))
	if e.progress != nil {
		e.progress(pass, count)
	}
}
