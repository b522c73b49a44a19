package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/schema"
)

// b64Prefix marks base64-encoded values in JSON documents.
const b64Prefix = "b64:"

// doc is the JSON exchange form of a directory entry.
type doc struct {
	DN    string              `json:"dn"`
	Attrs map[string][]string `json:"attrs"`
}

// decodeDocs reads a JSON stream of documents: either a single object, an
// array, or concatenated objects (JSON lines).
func decodeDocs(r io.Reader) ([]*message.Message, error) {
	dec := json.NewDecoder(r)
	var msgs []*message.Message
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("parse document: %w", err)
		}

		var batch []doc
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("parse document array: %w", err)
			}
		} else {
			var d doc
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, fmt.Errorf("parse document: %w", err)
			}
			batch = []doc{d}
		}

		for _, d := range batch {
			msg, err := docToMessage(d)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func docToMessage(d doc) (*message.Message, error) {
	parsed, err := dn.Parse(d.DN)
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", d.DN, err)
	}
	msg := message.New(parsed)
	for name, values := range d.Attrs {
		for _, v := range values {
			decoded, err := decodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("document %q, attribute %s: %w", d.DN, name, err)
			}
			msg.Add(name, decoded)
		}
	}
	return msg, nil
}

func messageToDoc(msg *message.Message) doc {
	d := doc{
		DN:    msg.DN.String(),
		Attrs: make(map[string][]string, len(msg.Elements)),
	}
	for _, el := range msg.Elements {
		values := make([]string, len(el.Values))
		for i, v := range el.Values {
			values[i] = encodeValue(v)
		}
		d.Attrs[el.Name] = values
	}
	return d
}

// encodeValue renders a value for JSON output, base64-encoding anything
// that is not printable.
func encodeValue(v []byte) string {
	if schema.NeedsB64(v) {
		return b64Prefix + base64.StdEncoding.EncodeToString(v)
	}
	return string(v)
}

func decodeValue(s string) ([]byte, error) {
	if strings.HasPrefix(s, b64Prefix) {
		return base64.StdEncoding.DecodeString(s[len(b64Prefix):])
	}
	return []byte(s), nil
}
