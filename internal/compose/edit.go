package compose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/keytrigger/internal/trigger"
)

// ErrUnknownOp is returned by Apply for an edit name that is not registered.
var ErrUnknownOp = errors.New("unknown edit op")

// Edit is a named composition call with loosely typed arguments, as read
// from edit scripts, scenarios and the interactive shell.
//
// Keys are addressed by "uid" or by zero-based "index".
type Edit struct {
	Op   string         `yaml:"op" json:"op"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// String renders the edit as "op key=value ...", arguments sorted.
func (e Edit) String() string {
	if len(e.Args) == 0 {
		return e.Op
	}
	names := make([]string, 0, len(e.Args))
	for name := range e.Args {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(e.Op)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Args[name])
	}
	return b.String()
}

// ArgError reports a missing or malformed edit argument.
type ArgError struct {
	Op      string
	Arg     string
	Message string
}

// Error implements the error interface.
func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: argument %q: %s", e.Op, e.Arg, e.Message)
}

type editFunc func(t trigger.Trigger, a args, siblings []trigger.Trigger) (trigger.Trigger, error)

var registry = map[string]editFunc{
	"add_physical_key":  applyAddPhysicalKey,
	"add_low_level_key": applyAddLowLevelKey,
	"add_gesture_key": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		g, err := a.gesture("gesture")
		if err != nil {
			return t, err
		}
		return AddGestureKey(t, g), nil
	},
	"add_assistant_key": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		at, err := a.assistant("assistant")
		if err != nil {
			return t, err
		}
		return AddAssistantKey(t, at)
	},
	"add_on_screen_key": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		id, err := a.str("button_id")
		if err != nil {
			return t, err
		}
		var ref *trigger.ButtonRef
		if a.has("label") || a.has("layout") {
			ref = &trigger.ButtonRef{Label: a.optStr("label"), Layout: a.optStr("layout")}
		}
		return AddOnScreenKey(t, id, ref), nil
	},

	"set_parallel_mode": func(t trigger.Trigger, _ args, _ []trigger.Trigger) (trigger.Trigger, error) {
		return SetParallelMode(t), nil
	},
	"set_sequence_mode": func(t trigger.Trigger, _ args, _ []trigger.Trigger) (trigger.Trigger, error) {
		return SetSequenceMode(t), nil
	},
	"set_undefined_mode": func(t trigger.Trigger, _ args, _ []trigger.Trigger) (trigger.Trigger, error) {
		return SetUndefinedMode(t)
	},
	"set_short_press": func(t trigger.Trigger, _ args, _ []trigger.Trigger) (trigger.Trigger, error) {
		return SetShortPress(t)
	},
	"set_long_press": func(t trigger.Trigger, _ args, _ []trigger.Trigger) (trigger.Trigger, error) {
		return SetLongPress(t)
	},
	"set_double_press": func(t trigger.Trigger, _ args, _ []trigger.Trigger) (trigger.Trigger, error) {
		return SetDoublePress(t)
	},

	"remove_key": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		return RemoveKey(t, uid)
	},
	"move_key": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		from, err := a.integer("from")
		if err != nil {
			return t, err
		}
		to, err := a.integer("to")
		if err != nil {
			return t, err
		}
		return MoveKey(t, from, to)
	},
	"set_key_click_type": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		s, err := a.str("click_type")
		if err != nil {
			return t, err
		}
		c, err := trigger.ParseClickType(s)
		if err != nil {
			return t, a.fail("click_type", "%v", err)
		}
		return SetKeyClickType(t, uid, c)
	},
	"set_key_device": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		d, err := a.device()
		if err != nil {
			return t, err
		}
		return SetKeyDevice(t, uid, d)
	},
	"set_consume_event": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		on, err := a.boolean("consume")
		if err != nil {
			return t, err
		}
		return SetConsumeEvent(t, uid, on)
	},
	"set_assistant_type": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		at, err := a.assistant("assistant")
		if err != nil {
			return t, err
		}
		return SetAssistantType(t, uid, at)
	},
	"set_gesture_type": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		g, err := a.gesture("gesture")
		if err != nil {
			return t, err
		}
		return SetGestureType(t, uid, g)
	},
	"set_scan_code_detection": func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		uid, err := a.keyUID(t)
		if err != nil {
			return t, err
		}
		on, err := a.boolean("enabled")
		if err != nil {
			return t, err
		}
		return SetScanCodeDetection(t, uid, on)
	},

	"set_vibrate":                     toggle(always(SetVibrate)),
	"set_trigger_from_other_apps":     toggle(always(SetTriggerFromOtherApps)),
	"set_show_toast":                  toggle(always(SetShowToast)),
	"set_long_press_double_vibration": toggle(SetLongPressDoubleVibration),
	"set_legacy_screen_off":           toggle(SetLegacyScreenOff),

	"set_long_press_delay":   millis(SetLongPressDelay),
	"set_double_press_delay": millis(SetDoublePressDelay),
	"set_vibrate_duration":   millis(SetVibrateDuration),
	"set_sequence_timeout":   millis(SetSequenceTimeout),
}

func toggle(fn func(trigger.Trigger, bool) (trigger.Trigger, error)) editFunc {
	return func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		on, err := a.boolean("on")
		if err != nil {
			return t, err
		}
		return fn(t, on)
	}
}

func always(fn func(trigger.Trigger, bool) trigger.Trigger) func(trigger.Trigger, bool) (trigger.Trigger, error) {
	return func(t trigger.Trigger, on bool) (trigger.Trigger, error) {
		return fn(t, on), nil
	}
}

func millis(fn func(trigger.Trigger, int) (trigger.Trigger, error)) editFunc {
	return func(t trigger.Trigger, a args, _ []trigger.Trigger) (trigger.Trigger, error) {
		ms, err := a.integer("ms")
		if err != nil {
			return t, err
		}
		return fn(t, ms)
	}
}

func applyAddPhysicalKey(t trigger.Trigger, a args, siblings []trigger.Trigger) (trigger.Trigger, error) {
	code, err := a.keyCode("key_code")
	if err != nil {
		return t, err
	}
	p := PhysicalKeyParams{KeyCode: code}
	if a.has("scan_code") {
		sc, err := a.integer("scan_code")
		if err != nil {
			return t, err
		}
		p.ScanCode = trigger.NewScanCode(sc)
	}
	if p.Device, err = a.device(); err != nil {
		return t, err
	}
	if a.has("requires_input_method") {
		if p.RequiresInputMethod, err = a.boolean("requires_input_method"); err != nil {
			return t, err
		}
	}
	return AddPhysicalKey(t, p, siblings...), nil
}

func applyAddLowLevelKey(t trigger.Trigger, a args, siblings []trigger.Trigger) (trigger.Trigger, error) {
	code, err := a.keyCode("key_code")
	if err != nil {
		return t, err
	}
	sc, err := a.integer("scan_code")
	if err != nil {
		return t, err
	}
	dev, err := a.str("device")
	if err != nil {
		return t, err
	}
	p := LowLevelKeyParams{
		KeyCode:  code,
		ScanCode: sc,
		Device:   trigger.LowLevelDevice{Name: dev},
	}
	for name, dst := range map[string]*int{"bus": &p.Device.Bus, "vendor": &p.Device.Vendor, "product": &p.Device.Product} {
		if !a.has(name) {
			continue
		}
		if *dst, err = a.integer(name); err != nil {
			return t, err
		}
	}
	return AddLowLevelKey(t, p, siblings...), nil
}

// Apply runs e against t. Refused edits return t unchanged together with a
// *RejectedError; malformed arguments return an *ArgError.
func Apply(t trigger.Trigger, e Edit, siblings []trigger.Trigger) (trigger.Trigger, error) {
	fn, ok := registry[e.Op]
	if !ok {
		return t, fmt.Errorf("%w: %q", ErrUnknownOp, e.Op)
	}
	out, err := fn(t, args{op: e.Op, m: e.Args}, siblings)
	if err != nil {
		return t, err
	}
	return out, nil
}

// Ops returns the registered edit names in sorted order.
func Ops() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type args struct {
	op string
	m  map[string]any
}

func (a args) has(name string) bool {
	_, ok := a.m[name]
	return ok
}

func (a args) fail(name, format string, v ...any) error {
	return &ArgError{Op: a.op, Arg: name, Message: fmt.Sprintf(format, v...)}
}

func (a args) str(name string) (string, error) {
	v, ok := a.m[name]
	if !ok {
		return "", a.fail(name, "required")
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (a args) optStr(name string) string {
	if !a.has(name) {
		return ""
	}
	s, _ := a.str(name)
	return s
}

func (a args) integer(name string) (int, error) {
	v, ok := a.m[name]
	if !ok {
		return 0, a.fail(name, "required")
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, a.fail(name, "not an integer: %s", n)
		}
		return int(i), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, a.fail(name, "not an integer: %v", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, a.fail(name, "not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, a.fail(name, "not an integer: %v", v)
	}
}

func (a args) boolean(name string) (bool, error) {
	v, ok := a.m[name]
	if !ok {
		return false, a.fail(name, "required")
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, a.fail(name, "not a boolean: %q", b)
		}
		return parsed, nil
	default:
		return false, a.fail(name, "not a boolean: %v", v)
	}
}

func (a args) keyCode(name string) (int, error) {
	v, ok := a.m[name]
	if !ok {
		return 0, a.fail(name, "required")
	}
	if s, isString := v.(string); isString {
		code, err := trigger.ParseKeyCode(s)
		if err != nil {
			return 0, a.fail(name, "%v", err)
		}
		return code, nil
	}
	return a.integer(name)
}

func (a args) gesture(name string) (trigger.GestureType, error) {
	s, err := a.str(name)
	if err != nil {
		return "", err
	}
	g := trigger.GestureType(s)
	if !g.Valid() {
		return "", a.fail(name, "unknown gesture %q", s)
	}
	return g, nil
}

func (a args) assistant(name string) (trigger.AssistantType, error) {
	s, err := a.str(name)
	if err != nil {
		return "", err
	}
	at := trigger.AssistantType(s)
	if !at.Valid() {
		return "", a.fail(name, "unknown assistant type %q", s)
	}
	return at, nil
}

// device reads "device" as any, internal or an external descriptor, with an
// optional "device_name". A missing device is Any.
func (a args) device() (trigger.Device, error) {
	if !a.has("device") {
		return trigger.AnyDevice{}, nil
	}
	s, err := a.str("device")
	if err != nil {
		return nil, err
	}
	switch s {
	case "", "any":
		return trigger.AnyDevice{}, nil
	case "internal":
		return trigger.InternalDevice{}, nil
	default:
		return trigger.ExternalDevice{Descriptor: s, Name: a.optStr("device_name")}, nil
	}
}

// keyUID resolves the addressed key from "uid" or "index".
func (a args) keyUID(t trigger.Trigger) (string, error) {
	if a.has("uid") {
		return a.str("uid")
	}
	if !a.has("index") {
		return "", a.fail("uid", "uid or index required")
	}
	i, err := a.integer("index")
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(t.Keys) {
		return "", reject(a.op, RejectIndexOutOfRange, "no key at index %d", i)
	}
	return t.Keys[i].KeyUID(), nil
}
