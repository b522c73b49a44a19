// Package schema provides attribute definitions for dirkv: syntaxes with
// canonicalisation and comparison, index flags, and a cached registry.
package schema

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/dirkv/internal/dn"
)

// Syntax defines value semantics for an attribute: how values canonicalise
// into index keys and how two values compare.
type Syntax interface {
	// Name returns the syntax identifier.
	Name() string

	// Canonicalise normalises a value for use in index keys. It fails for
	// values that have no canonical form (for example wildcards in a
	// case-ignore string).
	Canonicalise(value []byte) ([]byte, error)

	// Compare orders two canonical values. Returns <0, 0 or >0.
	Compare(a, b []byte) int
}

// Built-in syntax names.
const (
	SyntaxCaseIgnore = "caseIgnoreString"
	SyntaxInteger    = "integer"
	SyntaxOctet      = "octetString"
	SyntaxDN         = "distinguishedName"
	SyntaxBoolean    = "boolean"
)

// BySyntaxName returns a built-in syntax by name.
func BySyntaxName(name string) (Syntax, bool) {
	switch name {
	case SyntaxCaseIgnore:
		return caseIgnoreSyntax{}, true
	case SyntaxInteger:
		return integerSyntax{}, true
	case SyntaxOctet:
		return octetSyntax{}, true
	case SyntaxDN:
		return dnSyntax{}, true
	case SyntaxBoolean:
		return booleanSyntax{}, true
	}
	return nil, false
}

// caseIgnoreSyntax folds case and collapses whitespace.
type caseIgnoreSyntax struct{}

func (caseIgnoreSyntax) Name() string { return SyntaxCaseIgnore }

func (caseIgnoreSyntax) Canonicalise(value []byte) ([]byte, error) {
	s := string(value)
	if strings.ContainsRune(s, '*') {
		return nil, fmt.Errorf("schema: wildcard has no canonical form")
	}
	s = strings.Join(strings.Fields(s), " ")
	return []byte(strings.ToLower(s)), nil
}

func (cs caseIgnoreSyntax) Compare(a, b []byte) int {
	ca, err := cs.Canonicalise(a)
	if err != nil {
		ca = bytes.ToLower(a)
	}
	cb, err := cs.Canonicalise(b)
	if err != nil {
		cb = bytes.ToLower(b)
	}
	return bytes.Compare(ca, cb)
}

// integerSyntax canonicalises to the decimal form of the value.
type integerSyntax struct{}

func (integerSyntax) Name() string { return SyntaxInteger }

func (integerSyntax) Canonicalise(value []byte) ([]byte, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(value)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("schema: not an integer: %q", value)
	}
	return []byte(strconv.FormatInt(n, 10)), nil
}

func (integerSyntax) Compare(a, b []byte) int {
	na, erra := strconv.ParseInt(strings.TrimSpace(string(a)), 10, 64)
	nb, errb := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if erra != nil || errb != nil {
		return bytes.Compare(a, b)
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}

// octetSyntax treats values as opaque bytes.
type octetSyntax struct{}

func (octetSyntax) Name() string { return SyntaxOctet }

func (octetSyntax) Canonicalise(value []byte) ([]byte, error) {
	return value, nil
}

func (octetSyntax) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// dnSyntax canonicalises values as case-folded DNs.
type dnSyntax struct{}

func (dnSyntax) Name() string { return SyntaxDN }

func (dnSyntax) Canonicalise(value []byte) ([]byte, error) {
	d, err := dn.Parse(string(value))
	if err != nil {
		return nil, err
	}
	return []byte(d.CaseFold()), nil
}

func (ds dnSyntax) Compare(a, b []byte) int {
	ca, err := ds.Canonicalise(a)
	if err != nil {
		ca = a
	}
	cb, err := ds.Canonicalise(b)
	if err != nil {
		cb = b
	}
	return bytes.Compare(ca, cb)
}

// booleanSyntax canonicalises to "TRUE" or "FALSE".
type booleanSyntax struct{}

func (booleanSyntax) Name() string { return SyntaxBoolean }

func (booleanSyntax) Canonicalise(value []byte) ([]byte, error) {
	switch strings.ToUpper(strings.TrimSpace(string(value))) {
	case "TRUE", "1", "YES":
		return []byte("TRUE"), nil
	case "FALSE", "0", "NO":
		return []byte("FALSE"), nil
	}
	return nil, fmt.Errorf("schema: not a boolean: %q", value)
}

func (bs booleanSyntax) Compare(a, b []byte) int {
	ca, _ := bs.Canonicalise(a)
	cb, _ := bs.Canonicalise(b)
	return bytes.Compare(ca, cb)
}
