package schema

// NeedsB64 is the shared predicate deciding whether a value must be base64
// encoded when written into a textual context such as an index key. A value
// needs encoding when it is empty, starts or ends with a space, starts with
// a colon or less-than sign, or contains a byte outside printable ASCII.
func NeedsB64(value []byte) bool {
	if len(value) == 0 {
		return true
	}
	if value[0] == ' ' || value[0] == ':' || value[0] == '<' {
		return true
	}
	if value[len(value)-1] == ' ' {
		return true
	}
	for _, b := range value {
		if b < 0x20 || b > 0x7e {
			return true
		}
	}
	return false
}
