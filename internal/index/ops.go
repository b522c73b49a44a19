package index

import (
	"fmt"
	"strconv"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// AddRecord stores a message and indexes it. Outside an open transaction
// the operation runs in its own; inside one it joins it.
func (e *Engine) AddRecord(msg *message.Message) error {
	return e.inTx(func() error {
		key, err := e.RecordKey(msg)
		if err != nil {
			return err
		}
		data, err := msg.Pack()
		if err != nil {
			return direrrors.OperationsError("index: pack record", err)
		}

		flag := store.Insert
		if msg.DN.IsSpecial() {
			flag = store.Replace
		}
		if err := e.kv.Put(key, data, flag); err != nil {
			if err == store.ErrExists {
				return direrrors.New(direrrors.ErrCodeRecordExists,
					fmt.Sprintf("a record already exists at %s", msg.DN.String()), err)
			}
			return direrrors.StorageError("index: store record", err)
		}
		return e.AddNew(msg)
	})
}

// DeleteRecord removes the record at the given DN and all its index
// entries.
func (e *Engine) DeleteRecord(d *dn.DN) error {
	return e.inTx(func() error {
		msg, key, err := e.resolveDN(d)
		if err != nil {
			return err
		}
		if !msg.DN.IsSpecial() {
			if err := e.Delete(msg); err != nil {
				return err
			}
		}
		if err := e.kv.Delete(key); err != nil {
			return direrrors.StorageError("index: delete record", err)
		}
		return nil
	})
}

// ModifyRecord replaces the record at msg.DN with msg, reindexing it.
func (e *Engine) ModifyRecord(msg *message.Message) error {
	return e.inTx(func() error {
		old, key, err := e.resolveDN(msg.DN)
		if err != nil {
			return err
		}
		if !old.DN.IsSpecial() {
			if err := e.Delete(old); err != nil {
				return err
			}
		}

		data, err := msg.Pack()
		if err != nil {
			return direrrors.OperationsError("index: pack record", err)
		}
		newKey, err := e.RecordKey(msg)
		if err != nil {
			return err
		}
		if err := e.kv.UpdateKey(key, newKey, data); err != nil {
			return direrrors.StorageError("index: rewrite record", err)
		}
		return e.AddNew(msg)
	})
}

// FetchRecord returns the record stored at the given DN.
func (e *Engine) FetchRecord(d *dn.DN) (*message.Message, error) {
	msg, _, err := e.resolveDN(d)
	return msg, err
}

// resolveDN locates the record for a DN, returning the message and its
// storage key.
func (e *Engine) resolveDN(d *dn.DN) (*message.Message, []byte, error) {
	if d.IsSpecial() || !e.GUIDMode() {
		key := []byte(dnKeyPrefix + d.CaseFold())
		if d.IsSpecial() {
			key = []byte(dnKeyPrefix + d.String())
		}
		data, err := e.kv.Get(key)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, nil, direrrors.New(direrrors.ErrCodeRecordMissing,
					fmt.Sprintf("no record at %s", d.String()), err)
			}
			return nil, nil, direrrors.StorageError("index: fetch record", err)
		}
		msg, err := message.Unpack(data, 0)
		if err != nil {
			return nil, nil, direrrors.CorruptIndex("index: unpack record", err)
		}
		return msg, key, nil
	}

	res, err := e.planBaseDN(d)
	if err != nil {
		return nil, nil, err
	}
	if res.Kind != PlanList || res.List.Len() == 0 {
		return nil, nil, direrrors.New(direrrors.ErrCodeRecordMissing,
			fmt.Sprintf("no record at %s", d.String()), nil)
	}
	for _, id := range res.List.IDs {
		msg, err := e.fetchByID(id)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, nil, err
		}
		if msg.DN.Equal(d) {
			return msg, e.dataKey(id), nil
		}
	}
	return nil, nil, direrrors.New(direrrors.ErrCodeRecordMissing,
		fmt.Sprintf("no record at %s", d.String()), nil)
}

// inTx runs fn inside the open transaction, or wraps it in its own.
func (e *Engine) inTx(fn func() error) error {
	if e.overlay != nil {
		return fn()
	}
	if err := e.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = e.Cancel()
		return err
	}
	return e.Commit()
}

// SequenceNumber returns the number of committed write transactions, from
// the @BASEINFO control record.
func (e *Engine) SequenceNumber() (uint64, error) {
	data, err := e.kv.Get([]byte(dnKeyPrefix + BaseInfoDN))
	if err != nil {
		if err == store.ErrNotFound {
			return 0, nil
		}
		return 0, direrrors.StorageError("index: load @BASEINFO", err)
	}
	msg, err := message.Unpack(data, 0)
	if err != nil {
		return 0, direrrors.CorruptIndex("index: unpack @BASEINFO", err)
	}
	el := msg.Element(AttrSequenceNumber)
	if el == nil || len(el.Values) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(el.Values[0]), 10, 64)
	if err != nil {
		return 0, direrrors.CorruptIndex("index: bad @BASEINFO sequence number", err)
	}
	return n, nil
}

// bumpSequence increments the @BASEINFO sequence number inside the open
// backing-store transaction.
func (e *Engine) bumpSequence() error {
	seq, err := e.SequenceNumber()
	if err != nil {
		return err
	}
	msg := message.New(dn.MustParse(BaseInfoDN))
	msg.Set(AttrSequenceNumber, []byte(strconv.FormatUint(seq+1, 10)))
	data, err := msg.Pack()
	if err != nil {
		return direrrors.OperationsError("index: pack @BASEINFO", err)
	}
	if err := e.kv.Put([]byte(dnKeyPrefix+BaseInfoDN), data, store.Replace); err != nil {
		return direrrors.StorageError("index: store @BASEINFO", err)
	}
	return nil
}
