package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

// triggerEncMode encodes trigger documents deterministically, so equal
// triggers produce equal blobs.
var triggerEncMode cbor.EncMode

var triggerDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	triggerEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trigger CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	triggerDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trigger CBOR decoder mode: %v", err))
	}
}

// marshalTrigger converts a trigger to the stored CBOR blob.
func marshalTrigger(t trigger.Trigger) ([]byte, error) {
	data, err := triggerEncMode.Marshal(trigger.ToDocument(t))
	if err != nil {
		return nil, fmt.Errorf("marshal trigger: %w", err)
	}
	return data, nil
}

// unmarshalTrigger parses a stored CBOR blob.
func unmarshalTrigger(data []byte) (trigger.Trigger, error) {
	var doc trigger.Document
	if err := triggerDecMode.Unmarshal(data, &doc); err != nil {
		return trigger.Trigger{}, fmt.Errorf("unmarshal trigger: %w", err)
	}
	t, err := doc.Trigger()
	if err != nil {
		return trigger.Trigger{}, fmt.Errorf("unmarshal trigger: %w", err)
	}
	return t, nil
}

// marshalArgs converts edit arguments to canonical JSON TEXT for storage.
func marshalArgs(args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	data, err := trigger.Canonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT. Numbers stay json.Number so
// large integers survive.
func unmarshalArgs(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	args, err := decodeJSONObject(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

func editFromRow(op, args string) (compose.Edit, error) {
	m, err := unmarshalArgs(args)
	if err != nil {
		return compose.Edit{}, err
	}
	return compose.Edit{Op: op, Args: m}, nil
}

func decodeJSONObject(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
