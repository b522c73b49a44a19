package store

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// recordsBucket is the single bucket holding all records.
var recordsBucket = []byte("records")

// errNoBucket marks a read against a database that never saw a write (the
// bucket is created on first writable open).
var errNoBucket = errors.New("store: records bucket missing")

// boltKV is the bbolt-backed KV implementation.
type boltKV struct {
	db       *bolt.DB
	lock     *fileLock
	readOnly bool

	// tx is the open write transaction, nil outside Begin/Commit.
	tx *bolt.Tx
}

// OpenBolt opens (creating if necessary) a bbolt database.
func OpenBolt(opts Options) (KV, error) {
	lock := newFileLock(opts.Path)
	if err := lock.acquire(opts.ReadOnly); err != nil {
		return nil, err
	}

	db, err := bolt.Open(opts.Path, 0o644, &bolt.Options{
		Timeout:  time.Second,
		ReadOnly: opts.ReadOnly,
	})
	if err != nil {
		_ = lock.release()
		return nil, fmt.Errorf("store: open bolt database %s: %w", opts.Path, err)
	}

	if !opts.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, berr := tx.CreateBucketIfNotExists(recordsBucket)
			return berr
		})
		if err != nil {
			_ = db.Close()
			_ = lock.release()
			return nil, fmt.Errorf("store: create records bucket: %w", err)
		}
	}

	return &boltKV{db: db, lock: lock, readOnly: opts.ReadOnly}, nil
}

func (s *boltKV) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.view(func(b *bolt.Bucket) error {
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if errors.Is(err, errNoBucket) {
		return nil, ErrNotFound
	}
	return out, err
}

func (s *boltKV) Put(key, value []byte, flag PutFlag) error {
	return s.update(func(b *bolt.Bucket) error {
		if flag == Insert && b.Get(key) != nil {
			return ErrExists
		}
		return b.Put(key, value)
	})
}

func (s *boltKV) Delete(key []byte) error {
	return s.update(func(b *bolt.Bucket) error {
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}

func (s *boltKV) Iterate(fn Visitor) error {
	err := s.view(func(b *bolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, StopIteration) || errors.Is(err, errNoBucket) {
		return nil
	}
	return err
}

func (s *boltKV) UpdateKey(oldKey, newKey, value []byte) error {
	if bytes.Equal(oldKey, newKey) {
		return s.Put(newKey, value, Replace)
	}
	return s.update(func(b *bolt.Bucket) error {
		if b.Get(oldKey) == nil {
			return ErrNotFound
		}
		if b.Get(newKey) != nil {
			return ErrExists
		}
		if err := b.Delete(oldKey); err != nil {
			return err
		}
		return b.Put(newKey, value)
	})
}

func (s *boltKV) Begin() error {
	if s.readOnly {
		return ErrReadOnly
	}
	if s.tx != nil {
		return ErrInTransaction
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *boltKV) Commit() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

func (s *boltKV) Cancel() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("store: cancel transaction: %w", err)
	}
	return nil
}

func (s *boltKV) InTransaction() bool {
	return s.tx != nil
}

func (s *boltKV) ReadOnly() bool {
	return s.readOnly
}

func (s *boltKV) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	err := s.db.Close()
	if lerr := s.lock.release(); err == nil {
		err = lerr
	}
	return err
}

// view runs fn against the records bucket inside the open transaction, or a
// short-lived read transaction when none is open.
func (s *boltKV) view(fn func(*bolt.Bucket) error) error {
	if s.tx != nil {
		b := s.tx.Bucket(recordsBucket)
		if b == nil {
			return fmt.Errorf("store: records bucket missing")
		}
		return fn(b)
	}
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b == nil {
			return errNoBucket
		}
		return fn(b)
	})
}

// update runs fn against the records bucket inside the open transaction, or
// a short-lived write transaction when none is open.
func (s *boltKV) update(fn func(*bolt.Bucket) error) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if s.tx != nil {
		b := s.tx.Bucket(recordsBucket)
		if b == nil {
			return fmt.Errorf("store: records bucket missing")
		}
		return fn(b)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(recordsBucket))
	})
}
