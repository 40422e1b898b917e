package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedObject decodes a JSON object while preserving source key order,
// which encoding/json's map[string]T decoding does not guarantee. It is used
// wherever the spec requires "declaration order" semantics (the
// field-conditions map, §4.5) or single-key-object discrimination ($func,
// tagged scalars).
type orderedObject struct {
	keys   []string
	values map[string]json.RawMessage
}

func (o orderedObject) has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o orderedObject) get(key string) json.RawMessage {
	return o.values[key]
}

func decodeOrderedObject(data []byte) (orderedObject, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return orderedObject{}, false
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return orderedObject{}, false
	}

	out := orderedObject{values: make(map[string]json.RawMessage)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return orderedObject{}, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return orderedObject{}, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return orderedObject{}, false
		}
		if _, dup := out.values[key]; !dup {
			out.keys = append(out.keys, key)
		}
		out.values[key] = raw
	}
	return out, true
}

// exprTagKeys are the single-key object tags recognized as Expression shapes.
var exprTagKeys = map[string]bool{
	"$date": true, "$timestamp": true, "$uuid": true, "$jsonb": true,
	"$field": true, "$var": true, "$func": true, "$cond": true,
}

func invalidExpressionShape(data []byte) error {
	return &CompileError{Kind: ErrInvalidConfig, Message: fmt.Sprintf("invalid expression shape: %s", string(data))}
}
