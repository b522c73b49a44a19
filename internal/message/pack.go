package message

import (
	"encoding/binary"
	"fmt"

	"github.com/Aman-CERP/dirkv/internal/dn"
)

// packVersion is the current record pack format version.
const packVersion uint32 = 1

// PackFlags controls how Unpack materialises a record.
type PackFlags uint32

const (
	// UnpackDNOnly stops unpacking after the DN. Elements are left empty.
	// Used by scans that only need to derive the record's storage key.
	UnpackDNOnly PackFlags = 1 << iota

	// UnpackNoDataCopy leaves values aliasing the raw record buffer instead
	// of copying them out. The caller must not mutate values and must not
	// use them past the buffer's lifetime.
	UnpackNoDataCopy
)

// Pack serialises a message into the on-disk record format:
//
//	u32 version | u32 dnlen | dn bytes | u32 nelems |
//	  per element: u32 namelen | name | u32 nvals |
//	    per value: u32 vallen | bytes
//
// All integers are little-endian. The DN is stored in its extended
// linearised form so GUID components survive a round trip.
func (m *Message) Pack() ([]byte, error) {
	if m.DN == nil {
		return nil, fmt.Errorf("message: pack of message without DN")
	}

	dnBytes := []byte(m.DN.ExtendedString())
	size := 4 + 4 + len(dnBytes) + 4
	for _, el := range m.Elements {
		size += 4 + len(el.Name) + 4
		for _, v := range el.Values {
			size += 4 + len(v)
		}
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, packVersion)
	buf = appendBytes(buf, dnBytes)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Elements)))
	for _, el := range m.Elements {
		buf = appendBytes(buf, []byte(el.Name))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(el.Values)))
		for _, v := range el.Values {
			buf = appendBytes(buf, v)
		}
	}
	return buf, nil
}

// Unpack deserialises a packed record.
func Unpack(data []byte, flags PackFlags) (*Message, error) {
	r := reader{buf: data}

	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version != packVersion {
		return nil, fmt.Errorf("message: unknown pack version %d", version)
	}

	dnBytes, err := r.bytes()
	if err != nil {
		return nil, err
	}
	if len(dnBytes) == 0 {
		return nil, fmt.Errorf("message: record has no DN")
	}
	d, err := dn.Parse(string(dnBytes))
	if err != nil {
		return nil, fmt.Errorf("message: bad DN in record: %w", err)
	}

	msg := &Message{DN: d}
	if flags&UnpackDNOnly != 0 {
		return msg, nil
	}

	nelems, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if int(nelems) > len(data) {
		return nil, fmt.Errorf("message: element count %d exceeds record size", nelems)
	}

	msg.Elements = make([]Element, 0, nelems)
	for i := uint32(0); i < nelems; i++ {
		name, err := r.bytes()
		if err != nil {
			return nil, err
		}
		nvals, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if int(nvals) > len(data) {
			return nil, fmt.Errorf("message: value count %d exceeds record size", nvals)
		}
		el := Element{Name: string(name), Values: make([]Value, 0, nvals)}
		for j := uint32(0); j < nvals; j++ {
			v, err := r.bytes()
			if err != nil {
				return nil, err
			}
			if flags&UnpackNoDataCopy == 0 {
				v = append([]byte(nil), v...)
			}
			el.Values = append(el.Values, Value(v))
		}
		msg.Elements = append(msg.Elements, el)
	}

	return msg, nil
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) uint32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("message: truncated record at offset %d", r.off)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.buf) {
		return nil, fmt.Errorf("message: truncated record at offset %d", r.off)
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}
