package index

import (
	"encoding/base64"
	"fmt"
	"strings"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/schema"
)

// Index key separators. Untruncated keys use ':', truncated keys use '#'.
// The two namespaces never collide even when a truncated value prefix
// equals an untruncated value; the literal scheme is an on-disk contract.
const (
	keySep      = ":"
	truncKeySep = "#"
)

// indexKey derives the index record DN for an (attribute, value) pair:
//
//	@INDEX:<attr>:<value>          untruncated, raw
//	@INDEX:<attr>::<b64>           untruncated, base64
//	@INDEX#<attr>#<value-prefix>   truncated, raw
//	@INDEX#<attr>##<b64-prefix>    truncated, base64
//
// Attribute names fold to lower case; values canonicalise through the
// attribute's schema syntax. '@'-prefixed attributes take the value
// verbatim. Reports whether the key was truncated to fit MaxKeyLength.
func (e *Engine) indexKey(attr string, value []byte) (key string, truncated bool, err error) {
	var canonical []byte
	b64 := false

	if strings.HasPrefix(attr, "@") {
		canonical = value
		// DN values held by the one-level and DN->GUID families are already
		// normalised, so GUID mode never base64-encodes them.
		if !(e.GUIDMode() && (attr == AttrDNIndex || attr == AttrOneLevel)) {
			b64 = schema.NeedsB64(canonical)
		}
	} else {
		attr = strings.ToLower(attr)
		def := e.schema.AttributeByName(attr)
		canonical, err = def.Syntax.Canonicalise(value)
		if err != nil {
			return "", false, fmt.Errorf("index: canonicalise %s value: %w", attr, err)
		}
		b64 = schema.NeedsB64(canonical)
	}

	if b64 {
		canonical = []byte(base64.StdEncoding.EncodeToString(canonical))
	}

	sepLen := 2 // "@INDEX" ":" attr ":" value
	if b64 {
		sepLen = 3 // the b64 marker doubles the value separator
	}
	nominal := len(IndexPrefix) + sepLen + len(attr) + len(canonical)

	maxLen := e.opts.MaxKeyLength
	if maxLen == 0 || nominal <= maxLen-keyReserve {
		sep := keySep
		valSep := sep
		if b64 {
			valSep = sep + sep
		}
		return IndexPrefix + sep + attr + valSep + string(canonical), false, nil
	}

	room := maxLen - keyReserve - len(IndexPrefix) - sepLen - len(attr)
	if room <= 0 {
		return "", false, direrrors.New(direrrors.ErrCodeKeyTooLong,
			fmt.Sprintf("index: attribute %s cannot fit a key under the %d byte limit", attr, maxLen), nil)
	}

	valSep := truncKeySep
	if b64 {
		valSep = truncKeySep + truncKeySep
	}
	return IndexPrefix + truncKeySep + attr + valSep + string(canonical[:room]), true, nil
}

// oneLevelKey derives the index key holding the children of parentFold, the
// case-folded parent DN.
func (e *Engine) oneLevelKey(parentFold string) (string, bool, error) {
	return e.indexKey(AttrOneLevel, []byte(parentFold))
}

// dnIndexKey derives the DN->GUID index key for dnFold, a case-folded DN.
func (e *Engine) dnIndexKey(dnFold string) (string, bool, error) {
	return e.indexKey(AttrDNIndex, []byte(dnFold))
}
