package index

import (
	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// txOverlay is the in-memory overlay of modified index records during a
// transaction. Every index store between Begin and Commit lands here keyed
// by the index record DN; repeated writes to one key collapse so only the
// final list is persisted. Flushed on commit, discarded on cancel.
type txOverlay struct {
	lists map[string]*DNList
}

func newTxOverlay() *txOverlay {
	return &txOverlay{lists: make(map[string]*DNList)}
}

func (o *txOverlay) get(keyDN string) (*DNList, bool) {
	l, ok := o.lists[keyDN]
	return l, ok
}

// put installs or replaces the list under keyDN. The overlay owns the list
// until commit or cancel.
func (o *txOverlay) put(keyDN string, l *DNList) {
	o.lists[keyDN] = l
}

// Begin opens a write transaction on the backing store and the overlay.
func (e *Engine) Begin() error {
	if e.overlay != nil {
		return direrrors.OperationsError("index: transaction already open", store.ErrInTransaction)
	}
	if err := e.kv.Begin(); err != nil {
		return err
	}
	e.overlay = newTxOverlay()
	return nil
}

// InTransaction reports whether a transaction is open.
func (e *Engine) InTransaction() bool {
	return e.overlay != nil
}

// Commit flushes the overlay and commits the backing-store transaction.
//
// The overlay is iterated in unspecified order; a failing write is latched
// and iteration continues so every entry gets its attempt, then the first
// error surfaces and the transaction is cancelled. The overlay is freed
// regardless of outcome.
func (e *Engine) Commit() error {
	if e.overlay == nil {
		return direrrors.OperationsError("index: commit without transaction", store.ErrNoTransaction)
	}

	var firstErr error
	for keyDN, l := range e.overlay.lists {
		if err := e.storeListDirect(keyDN, l); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.overlay = nil

	if firstErr != nil {
		_ = e.kv.Cancel()
		return firstErr
	}

	if err := e.bumpSequence(); err != nil {
		_ = e.kv.Cancel()
		return err
	}

	return e.kv.Commit()
}

// Cancel discards the overlay and rolls back the backing-store transaction.
func (e *Engine) Cancel() error {
	if e.overlay == nil {
		return direrrors.OperationsError("index: cancel without transaction", store.ErrNoTransaction)
	}
	e.overlay = nil
	return e.kv.Cancel()
}
