package index

import (
	"fmt"
	"log/slog"
	"strings"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// AddNew indexes a freshly stored message: the DN->GUID mapping (GUID
// mode), the parent->children mapping (when one-level indexing is on), and
// one equality entry per value of every indexed attribute. Partial failure
// unwinds the whole add. '@'-prefixed DNs are never indexed.
func (e *Engine) AddNew(msg *message.Message) error {
	if msg.DN.IsSpecial() {
		return nil
	}
	id, err := e.messageID(msg)
	if err != nil {
		return err
	}

	if err := e.addAll(msg, id); err != nil {
		// Roll back whatever part of the add succeeded.
		if derr := e.Delete(msg); derr != nil {
			e.log.Warn("index: rollback after failed add",
				slog.String("dn", msg.DN.String()),
				slog.String("error", derr.Error()))
		}
		return err
	}
	return nil
}

func (e *Engine) addAll(msg *message.Message, id []byte) error {
	if e.GUIDMode() {
		if err := e.add1(msg, AttrDNIndex, []byte(msg.DN.CaseFold()), id); err != nil {
			return err
		}
	}
	if err := e.indexOneLevel(msg, id, true); err != nil {
		return err
	}
	for _, el := range msg.Elements {
		if !e.isIndexed(el.Name) {
			continue
		}
		for _, v := range el.Values {
			if err := e.add1(msg, el.Name, v, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes every index entry for a message. Failures are latched and
// surfaced after all families have been attempted, so a partial add can be
// unwound as far as possible.
func (e *Engine) Delete(msg *message.Message) error {
	if msg.DN.IsSpecial() {
		return nil
	}
	id, err := e.messageID(msg)
	if err != nil {
		return err
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.GUIDMode() {
		keep(e.delValue1(AttrDNIndex, []byte(msg.DN.CaseFold()), id))
	}
	keep(e.indexOneLevel(msg, id, false))
	for _, el := range msg.Elements {
		if !e.isIndexed(el.Name) {
			continue
		}
		for _, v := range el.Values {
			keep(e.delValue1(el.Name, v, id))
		}
	}
	return firstErr
}

// AddElement indexes all values of one element, as part of a modify.
func (e *Engine) AddElement(msg *message.Message, el *message.Element) error {
	if msg.DN.IsSpecial() || !e.isIndexed(el.Name) {
		return nil
	}
	id, err := e.messageID(msg)
	if err != nil {
		return err
	}
	for _, v := range el.Values {
		if err := e.add1(msg, el.Name, v, id); err != nil {
			return err
		}
	}
	return nil
}

// DelElement removes all values of one element from the index.
func (e *Engine) DelElement(msg *message.Message, el *message.Element) error {
	if msg.DN.IsSpecial() || !e.isIndexed(el.Name) {
		return nil
	}
	id, err := e.messageID(msg)
	if err != nil {
		return err
	}
	for _, v := range el.Values {
		if err := e.delValue1(el.Name, v, id); err != nil {
			return err
		}
	}
	return nil
}

// DelValue removes a single value of one element from the index.
func (e *Engine) DelValue(msg *message.Message, el *message.Element, i int) error {
	if msg.DN.IsSpecial() || !e.isIndexed(el.Name) {
		return nil
	}
	id, err := e.messageID(msg)
	if err != nil {
		return err
	}
	return e.delValue1(el.Name, el.Values[i], id)
}

// add1 adds one (attribute, value) -> id entry: the atomic per-value
// addition enforcing the uniqueness constraints.
func (e *Engine) add1(msg *message.Message, attr string, value, id []byte) error {
	key, truncated, err := e.indexKey(attr, value)
	if err != nil {
		return err
	}

	// Uniqueness cannot be enforced under a truncated key: distinct values
	// sharing the prefix would collide silently.
	if truncated && e.isUnique(attr) {
		return direrrors.ConstraintViolation(
			fmt.Sprintf("unique index %s on %s cannot use a truncated key", attr, msg.DN.String()))
	}

	l, err := e.loadList(key)
	if err != nil {
		return err
	}

	switch {
	case attr == AttrDNIndex:
		if err := e.checkDNUnique(msg, key, l, truncated); err != nil {
			return err
		}
	case !strings.HasPrefix(attr, "@") && e.isUnique(attr):
		if l.Len() > 0 {
			return direrrors.ConstraintViolation(
				fmt.Sprintf("unique index violation on %s adding %s", attr, msg.DN.String()))
		}
	}

	if e.GUIDMode() && !truncated && e.find(l, id) >= 0 {
		// Duplicate value on a multi-valued attribute; kept, deduplicated
		// at search delivery.
		e.log.Warn("index: duplicate id in index entry",
			slog.String("attr", attr),
			slog.String("dn", msg.DN.String()))
	}

	e.insert(l, append([]byte(nil), id...))
	return e.storeList(key, l)
}

// checkDNUnique enforces that only one record exists per DN in the
// DN->GUID family. With an untruncated key a non-empty list is already a
// violation. Under truncation the list may hold other DNs sharing the
// prefix, so each stored id is probed; ids whose record has vanished are
// stale and skipped.
func (e *Engine) checkDNUnique(msg *message.Message, key string, l *DNList, truncated bool) error {
	if l.Len() == 0 {
		return nil
	}
	if !truncated {
		return direrrors.ConstraintViolation(
			fmt.Sprintf("a record already exists at %s", msg.DN.String()))
	}
	fold := msg.DN.CaseFold()
	for _, existing := range l.IDs {
		other, err := e.fetchByID(existing)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return err
		}
		if other.DN.CaseFold() == fold {
			return direrrors.ConstraintViolation(
				fmt.Sprintf("a record already exists at %s", msg.DN.String()))
		}
	}
	return nil
}

// delValue1 is the mirror of add1: remove one (attribute, value) -> id
// entry. A missing entry is not an error.
func (e *Engine) delValue1(attr string, value, id []byte) error {
	key, _, err := e.indexKey(attr, value)
	if err != nil {
		return err
	}
	l, err := e.loadList(key)
	if err != nil {
		return err
	}
	i := e.find(l, id)
	if i < 0 {
		return nil
	}
	l.remove(i)
	return e.storeList(key, l)
}

// indexOneLevel maintains the parent->children family for a message.
func (e *Engine) indexOneLevel(msg *message.Message, id []byte, add bool) error {
	if !e.settings.oneLevel || msg.DN.IsSpecial() {
		return nil
	}
	parent, ok := msg.DN.Parent()
	if !ok {
		return nil
	}
	fold := []byte(parent.CaseFold())
	if add {
		return e.add1(msg, AttrOneLevel, fold, id)
	}
	return e.delValue1(AttrOneLevel, fold, id)
}
