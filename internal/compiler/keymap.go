package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/keytrigger/internal/trigger"
)

// KeyMapSpec is a named trigger compiled from CUE.
type KeyMapSpec struct {
	Name    string
	Trigger trigger.Trigger

	// Pos is the position of the key map struct; KeyPos holds the position
	// of each key, in order.
	Pos    token.Pos
	KeyPos []token.Pos
}

var (
	keyMapFields = fieldSet("mode", "click_type", "legacy_screen_off", "options", "keys")
	optionFields = fieldSet(
		"vibrate", "long_press_double_vibration", "long_press_delay", "double_press_delay",
		"vibrate_duration", "sequence_timeout", "trigger_from_other_apps", "show_toast",
	)
	keyFields = fieldSet(
		"type", "uid", "click_type", "key_code", "scan_code", "device", "low_level_device",
		"scan_code_detection", "consume_event", "requires_input_method", "gesture", "assistant",
		"button_id", "button",
	)
)

// CompileKeyMap parses a CUE value into a KeyMapSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the key map struct itself, labelled with its name:
//
//	keymap: "volume chord": {
//		mode:       "parallel"
//		click_type: "long_press"
//		keys: [
//			{type: "physical", key_code: "VOLUME_UP"},
//			{type: "physical", key_code: "VOLUME_DOWN", device: "internal"},
//		]
//	}
//
// Key codes may be written as numbers or as names such as "VOLUME_UP". A
// device is "any", "internal", an external descriptor, or a struct with
// kind, descriptor and name.
func CompileKeyMap(v cue.Value) (*KeyMapSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &KeyMapSpec{Pos: v.Pos()}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		spec.Name = labelName(sels[len(sels)-1])
	}
	if err := checkFields(v, "", keyMapFields); err != nil {
		return nil, err
	}

	var doc trigger.Document
	var err error
	if doc.Mode, err = optString(v, "mode"); err != nil {
		return nil, err
	}
	if doc.ClickType, err = optString(v, "click_type"); err != nil {
		return nil, err
	}
	if doc.LegacyScreenOff, err = optBool(v, "legacy_screen_off"); err != nil {
		return nil, err
	}
	if doc.Options, err = parseOptions(v); err != nil {
		return nil, err
	}

	keysVal := v.LookupPath(cue.ParsePath("keys"))
	if !keysVal.Exists() {
		return nil, &CompileError{Field: "keys", Message: "keys is required", Pos: v.Pos()}
	}
	iter, err := keysVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	doc.Keys = []trigger.KeyDocument{}
	for i := 0; iter.Next(); i++ {
		kv := iter.Value()
		kd, err := parseKey(kv, fmt.Sprintf("keys[%d]", i))
		if err != nil {
			return nil, err
		}
		// Surface variant errors at the key rather than the key map.
		if _, err := kd.Key(); err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("keys[%d]", i), Message: err.Error(), Pos: kv.Pos()}
		}
		doc.Keys = append(doc.Keys, kd)
		spec.KeyPos = append(spec.KeyPos, kv.Pos())
	}

	spec.Trigger, err = doc.Trigger()
	if err != nil {
		return nil, &CompileError{Field: "keymap", Message: err.Error(), Pos: v.Pos()}
	}
	return spec, nil
}

func parseOptions(v cue.Value) (*trigger.OptionsDocument, error) {
	ov := v.LookupPath(cue.ParsePath("options"))
	if !ov.Exists() {
		return nil, nil
	}
	if err := checkFields(ov, "options.", optionFields); err != nil {
		return nil, err
	}

	o := &trigger.OptionsDocument{}
	var err error
	bools := []struct {
		name string
		dst  *bool
	}{
		{"vibrate", &o.Vibrate},
		{"long_press_double_vibration", &o.LongPressDoubleVibration},
		{"trigger_from_other_apps", &o.TriggerFromOtherApps},
		{"show_toast", &o.ShowToast},
	}
	for _, b := range bools {
		if *b.dst, err = optBool(ov, b.name); err != nil {
			return nil, err
		}
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"long_press_delay", &o.LongPressDelay},
		{"double_press_delay", &o.DoublePressDelay},
		{"vibrate_duration", &o.VibrateDuration},
		{"sequence_timeout", &o.SequenceTimeout},
	}
	for _, n := range ints {
		val, ok, err := optInt(ov, n.name)
		if err != nil {
			return nil, err
		}
		if ok {
			*n.dst = val
		}
	}
	return o, nil
}

// parseKey reads one key struct into its document form.
func parseKey(v cue.Value, field string) (trigger.KeyDocument, error) {
	var kd trigger.KeyDocument
	if err := checkFields(v, field+".", keyFields); err != nil {
		return kd, err
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return kd, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	var err error
	if kd.Type, err = typeVal.String(); err != nil {
		return kd, formatCUEError(err)
	}

	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"uid", &kd.UID},
		{"click_type", &kd.ClickType},
		{"gesture", &kd.Gesture},
		{"assistant", &kd.Assistant},
		{"button_id", &kd.ButtonID},
	} {
		if *s.dst, err = optString(v, s.name); err != nil {
			return kd, err
		}
	}
	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"scan_code_detection", &kd.ScanCodeDetection},
		{"requires_input_method", &kd.RequiresInputMethod},
	} {
		if *b.dst, err = optBool(v, b.name); err != nil {
			return kd, err
		}
	}

	if kd.KeyCode, err = parseKeyCode(v, field); err != nil {
		return kd, err
	}
	if sc, ok, err := optInt(v, "scan_code"); err != nil {
		return kd, err
	} else if ok {
		kd.ScanCode = &sc
	}
	if cv := v.LookupPath(cue.ParsePath("consume_event")); cv.Exists() {
		consume, err := cv.Bool()
		if err != nil {
			return kd, formatCUEError(err)
		}
		kd.ConsumeEvent = &consume
	}
	if kd.Device, err = parseDevice(v, field); err != nil {
		return kd, err
	}
	if kd.LowLevelDevice, err = parseLowLevelDevice(v, field); err != nil {
		return kd, err
	}
	if bv := v.LookupPath(cue.ParsePath("button")); bv.Exists() {
		kd.Button = &trigger.ButtonDocument{}
		if kd.Button.Label, err = optString(bv, "label"); err != nil {
			return kd, err
		}
		if kd.Button.Layout, err = optString(bv, "layout"); err != nil {
			return kd, err
		}
	}
	return kd, nil
}

// parseKeyCode accepts an int or a key code name.
func parseKeyCode(v cue.Value, field string) (int, error) {
	kv := v.LookupPath(cue.ParsePath("key_code"))
	if !kv.Exists() {
		return trigger.KeyCodeUnknown, nil
	}
	switch kv.IncompleteKind() {
	case cue.IntKind:
		n, err := kv.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return int(n), nil
	case cue.StringKind:
		s, err := kv.String()
		if err != nil {
			return 0, formatCUEError(err)
		}
		code, err := trigger.ParseKeyCode(s)
		if err != nil {
			return 0, &CompileError{Field: field + ".key_code", Message: err.Error(), Pos: kv.Pos()}
		}
		return code, nil
	default:
		return 0, &CompileError{
			Field:   field + ".key_code",
			Message: fmt.Sprintf("key_code must be an int or a name, got %v", kv.IncompleteKind()),
			Pos:     kv.Pos(),
		}
	}
}

// parseDevice accepts "any", "internal", an external descriptor, or a
// {kind, descriptor, name} struct.
func parseDevice(v cue.Value, field string) (*trigger.DeviceDocument, error) {
	dv := v.LookupPath(cue.ParsePath("device"))
	if !dv.Exists() {
		return nil, nil
	}
	if dv.IncompleteKind() == cue.StringKind {
		s, err := dv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch s {
		case "any", "internal":
			return &trigger.DeviceDocument{Kind: s}, nil
		default:
			return &trigger.DeviceDocument{Kind: "external", Descriptor: s}, nil
		}
	}
	if err := checkFields(dv, field+".device.", fieldSet("kind", "descriptor", "name")); err != nil {
		return nil, err
	}
	d := &trigger.DeviceDocument{}
	var err error
	if d.Kind, err = optString(dv, "kind"); err != nil {
		return nil, err
	}
	if d.Descriptor, err = optString(dv, "descriptor"); err != nil {
		return nil, err
	}
	if d.Name, err = optString(dv, "name"); err != nil {
		return nil, err
	}
	return d, nil
}

func parseLowLevelDevice(v cue.Value, field string) (*trigger.LowLevelDeviceDocument, error) {
	dv := v.LookupPath(cue.ParsePath("low_level_device"))
	if !dv.Exists() {
		return nil, nil
	}
	if err := checkFields(dv, field+".low_level_device.", fieldSet("name", "bus", "vendor", "product")); err != nil {
		return nil, err
	}
	d := &trigger.LowLevelDeviceDocument{}
	var err error
	if d.Name, err = optString(dv, "name"); err != nil {
		return nil, err
	}
	for _, n := range []struct {
		name string
		dst  *int
	}{
		{"bus", &d.Bus},
		{"vendor", &d.Vendor},
		{"product", &d.Product},
	} {
		val, _, err := optInt(dv, n.name)
		if err != nil {
			return nil, err
		}
		*n.dst = val
	}
	return d, nil
}

// checkFields rejects labels outside allowed, reporting them in sorted
// order.
func checkFields(v cue.Value, prefix string, allowed map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	var unknown []string
	var pos token.Pos
	for iter.Next() {
		label := labelName(iter.Selector())
		if !allowed[label] {
			if len(unknown) == 0 {
				pos = iter.Value().Pos()
			}
			unknown = append(unknown, label)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &CompileError{
		Field:   prefix + unknown[0],
		Message: fmt.Sprintf("unknown field(s): %s", strings.Join(unknown, ", ")),
		Pos:     pos,
	}
}

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func labelName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

func optString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optBool(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optInt(v cue.Value, path string) (int, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return 0, false, nil
	}
	if k := f.IncompleteKind(); k == cue.FloatKind || k == cue.NumberKind {
		return 0, false, &CompileError{
			Field:   path,
			Message: "must be an int, not a float",
			Pos:     f.Pos(),
		}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return int(n), true, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
