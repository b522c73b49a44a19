// Package index implements the secondary indexing engine for dirkv.
//
// The engine materialises, maintains, and consults index records keyed by
// (attribute, value) pairs to accelerate filter evaluation over the backing
// store. Index records are messages stored under synthesised DNs of the form
// "@INDEX:<attr>:<value>", holding a list of entry identifiers: either
// case-folded linearised DNs (format version 2) or packed 16-byte GUIDs
// (format version 3). The identifier scheme is fixed for the lifetime of the
// database by the @INDEXLIST control record.
package index

import (
	"fmt"
	"log/slog"
	"strings"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/schema"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// Special DNs and attribute names. These are stable on-disk names; changing
// any of them makes existing databases unreadable.
const (
	// IndexPrefix starts every index record DN.
	IndexPrefix = "@INDEX"
	// IndexListDN is the control record declaring indexed attributes.
	IndexListDN = "@INDEXLIST"
	// BaseInfoDN is the control record carrying the sequence number.
	BaseInfoDN = "@BASEINFO"

	// AttrIndex holds the entry identifiers of an index record.
	AttrIndex = "@IDX"
	// AttrVersion holds the index record format version.
	AttrVersion = "@IDXVERSION"
	// AttrIndexedAttrs lists indexed attribute names on @INDEXLIST.
	AttrIndexedAttrs = "@IDXATTR"
	// AttrOneLevel is the parent->children index family; on @INDEXLIST its
	// presence enables one-level indexing.
	AttrOneLevel = "@IDXONE"
	// AttrDNIndex is the DN->GUID index family.
	AttrDNIndex = "@IDXDN"
	// AttrGUID on @INDEXLIST names the attribute whose value is the entry
	// GUID; presence selects GUID identifier mode.
	AttrGUID = "@IDXGUID"
	// AttrDNGUID on @INDEXLIST names the extended DN component carrying the
	// GUID, enabling O(1) base lookups.
	AttrDNGUID = "@IDX_DN_GUID"
	// AttrSequenceNumber on @BASEINFO counts committed write transactions.
	AttrSequenceNumber = "@SEQUENCE_NUMBER"
)

// Index record format versions.
const (
	// versionDNList marks the legacy DN-list format.
	versionDNList = 2
	// versionGUID marks the GUID-packed format.
	versionGUID = 3
)

// guidSize is the fixed length of a GUID entry identifier.
const guidSize = 16

// keyReserve is the storage-key wrapper overhead reserved out of the maximum
// key length: the "DN=" prefix plus a terminator.
const keyReserve = 4

// Storage key prefixes for data records.
const (
	dnKeyPrefix   = "DN="
	guidKeyPrefix = "GUID="
)

// Options carries the process-wide engine configuration that does not live
// in the @INDEXLIST control record.
type Options struct {
	// MaxKeyLength caps storage key length; 0 means unlimited.
	MaxKeyLength int
	// DisallowDNFilter rejects (dn=...) equality filters.
	DisallowDNFilter bool
}

// settings is the engine state loaded from @INDEXLIST.
type settings struct {
	// guidAttr names the attribute carrying the 16-byte entry GUID. Empty
	// selects DN identifier mode.
	guidAttr string
	// guidDNComponent names the extended DN component carrying the GUID.
	guidDNComponent string
	// oneLevel enables the parent->children index family.
	oneLevel bool
	// attrs holds lower-cased indexed attribute names from @INDEXLIST.
	attrs map[string]bool
}

// Engine is the indexing engine. One logical writer at a time; callers
// serialise. The engine performs no locking itself.
type Engine struct {
	kv       store.KV
	schema   *schema.Registry
	opts     Options
	settings settings
	log      *slog.Logger

	// overlay is the transaction write-through cache, nil outside a
	// transaction.
	overlay *txOverlay

	// progress, when set, receives reindex progress reports.
	progress ProgressFunc
}

// New creates an engine over the given store and schema, loading the index
// settings from the @INDEXLIST control record.
func New(kv store.KV, reg *schema.Registry, logger *slog.Logger, opts Options) (*Engine, error) {
	if kv == nil || reg == nil {
		return nil, direrrors.OperationsError("index: nil store or schema", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		kv:     kv,
		schema: reg,
		opts:   opts,
		log:    logger,
	}
	if err := e.loadSettings(); err != nil {
		return nil, err
	}
	return e, nil
}

// GUIDMode reports whether entry identifiers are GUIDs.
func (e *Engine) GUIDMode() bool {
	return e.settings.guidAttr != ""
}

// GUIDAttr returns the configured GUID attribute name, or "".
func (e *Engine) GUIDAttr() string {
	return e.settings.guidAttr
}

// OneLevelIndexed reports whether the parent->children family is maintained.
func (e *Engine) OneLevelIndexed() bool {
	return e.settings.oneLevel
}

// loadSettings reads the @INDEXLIST control record into the engine. A
// missing record leaves indexing to the schema flags alone.
func (e *Engine) loadSettings() error {
	e.settings = settings{attrs: make(map[string]bool)}

	data, err := e.kv.Get([]byte(dnKeyPrefix + IndexListDN))
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return direrrors.StorageError("index: load @INDEXLIST", err)
	}

	msg, err := message.Unpack(data, 0)
	if err != nil {
		return direrrors.CorruptIndex("index: unpack @INDEXLIST", err)
	}

	if el := msg.Element(AttrIndexedAttrs); el != nil {
		for _, v := range el.Values {
			e.settings.attrs[strings.ToLower(string(v))] = true
		}
	}
	if el := msg.Element(AttrOneLevel); el != nil && len(el.Values) > 0 {
		e.settings.oneLevel = string(el.Values[0]) == "1"
	}
	if el := msg.Element(AttrGUID); el != nil && len(el.Values) > 0 {
		e.settings.guidAttr = string(el.Values[0])
	}
	if el := msg.Element(AttrDNGUID); el != nil && len(el.Values) > 0 {
		e.settings.guidDNComponent = string(el.Values[0])
	}

	return nil
}

// isIndexed reports whether an attribute has an equality index. With a
// schema override hook installed the resolved schema flags decide; otherwise
// a registered FlagIndexed or membership in @INDEXLIST does.
func (e *Engine) isIndexed(attr string) bool {
	if strings.HasPrefix(attr, "@") {
		return false
	}
	if e.schema.HasOverride() {
		return e.schema.AttributeByName(attr).Flags&schema.FlagIndexed != 0
	}
	if e.schema.AttributeByName(attr).Flags&schema.FlagIndexed != 0 {
		return true
	}
	return e.settings.attrs[strings.ToLower(attr)]
}

// isUnique reports whether an attribute carries a uniqueness constraint.
func (e *Engine) isUnique(attr string) bool {
	return e.schema.AttributeByName(attr).Flags&schema.FlagUnique != 0
}

// expectedVersion returns the index record format version for the current
// identifier mode.
func (e *Engine) expectedVersion() int {
	if e.GUIDMode() {
		return versionGUID
	}
	return versionDNList
}

// messageID derives the entry identifier for a message: the 16-byte GUID
// attribute value in GUID mode, the case-folded linearised DN otherwise.
func (e *Engine) messageID(msg *message.Message) ([]byte, error) {
	if !e.GUIDMode() {
		return []byte(msg.DN.CaseFold()), nil
	}
	el := msg.Element(e.settings.guidAttr)
	if el == nil || len(el.Values) == 0 {
		return nil, direrrors.OperationsError(
			fmt.Sprintf("index: record %s has no %s value", msg.DN.String(), e.settings.guidAttr), nil)
	}
	if len(el.Values[0]) != guidSize {
		return nil, direrrors.OperationsError(
			fmt.Sprintf("index: record %s has a %d-byte %s value, want %d",
				msg.DN.String(), len(el.Values[0]), e.settings.guidAttr, guidSize), nil)
	}
	return el.Values[0], nil
}

// dataKey builds the backing-store key for an entry identifier.
func (e *Engine) dataKey(id []byte) []byte {
	if e.GUIDMode() {
		return append([]byte(guidKeyPrefix), id...)
	}
	return append([]byte(dnKeyPrefix), id...)
}

// RecordKey builds the backing-store key for a message. Special '@' DNs are
// always stored by DN, independent of identifier mode.
func (e *Engine) RecordKey(msg *message.Message) ([]byte, error) {
	if msg.DN.IsSpecial() {
		return []byte(dnKeyPrefix + msg.DN.String()), nil
	}
	id, err := e.messageID(msg)
	if err != nil {
		return nil, err
	}
	return e.dataKey(id), nil
}

// fetchByID dereferences an entry identifier into its message, or
// store.ErrNotFound.
func (e *Engine) fetchByID(id []byte) (*message.Message, error) {
	data, err := e.kv.Get(e.dataKey(id))
	if err != nil {
		return nil, err
	}
	msg, err := message.Unpack(data, 0)
	if err != nil {
		return nil, direrrors.CorruptIndex("index: unpack data record", err)
	}
	return msg, nil
}
