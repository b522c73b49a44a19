package index

import (
	"fmt"
	"strconv"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// loadList loads the index record stored under keyDN. Within a transaction
// the overlay entry is returned by reference, so mutations become visible
// to later loads before commit. A missing record yields an empty list.
func (e *Engine) loadList(keyDN string) (*DNList, error) {
	if e.overlay != nil {
		if l, ok := e.overlay.get(keyDN); ok {
			return l, nil
		}
	}

	data, err := e.kv.Get([]byte(dnKeyPrefix + keyDN))
	if err != nil {
		if err == store.ErrNotFound {
			return &DNList{}, nil
		}
		return nil, direrrors.StorageError("index: load index record", err)
	}

	return e.decodeList(keyDN, data)
}

// decodeList unpacks an index record and validates its format discipline.
func (e *Engine) decodeList(keyDN string, data []byte) (*DNList, error) {
	msg, err := message.Unpack(data, 0)
	if err != nil {
		return nil, direrrors.CorruptIndex(
			fmt.Sprintf("index: unpack index record %s", keyDN), err)
	}

	ver := msg.Element(AttrVersion)
	if ver == nil || len(ver.Values) == 0 {
		return nil, direrrors.CorruptIndex(
			fmt.Sprintf("index: record %s has no %s", keyDN, AttrVersion), nil)
	}
	version, err := strconv.Atoi(string(ver.Values[0]))
	if err != nil || version != e.expectedVersion() {
		return nil, direrrors.CorruptIndex(
			fmt.Sprintf("index: record %s has version %s, want %d",
				keyDN, ver.Values[0], e.expectedVersion()), nil)
	}

	l := &DNList{}
	ids := msg.Element(AttrIndex)
	if ids == nil {
		return l, nil
	}

	if version == versionGUID {
		// v3: a single value packing N GUIDs contiguously.
		if len(ids.Values) != 1 {
			return nil, direrrors.CorruptIndex(
				fmt.Sprintf("index: v3 record %s has %d values, want 1", keyDN, len(ids.Values)), nil)
		}
		packed := ids.Values[0]
		if len(packed) == 0 || len(packed)%guidSize != 0 {
			return nil, direrrors.CorruptIndex(
				fmt.Sprintf("index: v3 record %s has %d packed bytes, not a positive multiple of %d",
					keyDN, len(packed), guidSize), nil)
		}
		l.IDs = make([][]byte, 0, len(packed)/guidSize)
		for off := 0; off < len(packed); off += guidSize {
			l.IDs = append(l.IDs, packed[off:off+guidSize])
		}
		return l, nil
	}

	// v2: one linearised DN per value.
	l.IDs = make([][]byte, 0, len(ids.Values))
	for _, v := range ids.Values {
		l.IDs = append(l.IDs, v)
	}
	return l, nil
}

// storeList saves an index record. Within a transaction the list is
// installed in the overlay, which owns it until commit; otherwise it is
// written through immediately. An empty list deletes the record.
func (e *Engine) storeList(keyDN string, l *DNList) error {
	if e.overlay != nil {
		e.overlay.put(keyDN, l)
		return nil
	}
	return e.storeListDirect(keyDN, l)
}

// storeListDirect writes an index record to the backing store, bypassing
// the overlay. Used by the non-transactional path and by overlay flush.
func (e *Engine) storeListDirect(keyDN string, l *DNList) error {
	key := []byte(dnKeyPrefix + keyDN)

	if l.Len() == 0 {
		err := e.kv.Delete(key)
		if err != nil && err != store.ErrNotFound {
			return direrrors.StorageError("index: delete index record", err)
		}
		return nil
	}

	msg := message.New(dn.MustParse(keyDN))
	msg.Set(AttrVersion, []byte(strconv.Itoa(e.expectedVersion())))

	if e.GUIDMode() {
		packed := make([]byte, 0, l.Len()*guidSize)
		for _, id := range l.IDs {
			packed = append(packed, id...)
		}
		msg.Set(AttrIndex, packed)
	} else {
		values := make([][]byte, l.Len())
		copy(values, l.IDs)
		msg.Set(AttrIndex, values...)
	}

	data, err := msg.Pack()
	if err != nil {
		return direrrors.OperationsError("index: pack index record", err)
	}
	if err := e.kv.Put(key, data, store.Replace); err != nil {
		return direrrors.StorageError("index: store index record", err)
	}
	return nil
}
