package trigger

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Key document type tags.
const (
	KeyTypePhysical  = "physical"
	KeyTypeLowLevel  = "low_level"
	KeyTypeGesture   = "gesture"
	KeyTypeAssistant = "assistant"
	KeyTypeOnScreen  = "on_screen"
)

// Mode document names.
const (
	ModeNameUndefined = "undefined"
	ModeNameParallel  = "parallel"
	ModeNameSequence  = "sequence"
)

// Document is the serializable form of a Trigger, shared by JSON, YAML,
// CBOR and CUE. Field names are the wire names.
type Document struct {
	Keys            []KeyDocument    `json:"keys" yaml:"keys"`
	Mode            string           `json:"mode" yaml:"mode"`
	ClickType       string           `json:"click_type,omitempty" yaml:"click_type,omitempty"`
	LegacyScreenOff bool             `json:"legacy_screen_off,omitempty" yaml:"legacy_screen_off,omitempty"`
	Options         *OptionsDocument `json:"options,omitempty" yaml:"options,omitempty"`
}

// OptionsDocument is the serializable form of Options.
type OptionsDocument struct {
	Vibrate                  bool `json:"vibrate,omitempty" yaml:"vibrate,omitempty"`
	LongPressDoubleVibration bool `json:"long_press_double_vibration,omitempty" yaml:"long_press_double_vibration,omitempty"`
	LongPressDelay           int  `json:"long_press_delay,omitempty" yaml:"long_press_delay,omitempty"`
	DoublePressDelay         int  `json:"double_press_delay,omitempty" yaml:"double_press_delay,omitempty"`
	VibrateDuration          int  `json:"vibrate_duration,omitempty" yaml:"vibrate_duration,omitempty"`
	SequenceTimeout          int  `json:"sequence_timeout,omitempty" yaml:"sequence_timeout,omitempty"`
	TriggerFromOtherApps     bool `json:"trigger_from_other_apps,omitempty" yaml:"trigger_from_other_apps,omitempty"`
	ShowToast                bool `json:"show_toast,omitempty" yaml:"show_toast,omitempty"`
}

// KeyDocument is the serializable form of a Key. Type selects the variant
// and decides which of the remaining fields apply.
type KeyDocument struct {
	Type                string                  `json:"type" yaml:"type"`
	UID                 string                  `json:"uid,omitempty" yaml:"uid,omitempty"`
	ClickType           string                  `json:"click_type,omitempty" yaml:"click_type,omitempty"`
	KeyCode             int                     `json:"key_code,omitempty" yaml:"key_code,omitempty"`
	ScanCode            *int                    `json:"scan_code,omitempty" yaml:"scan_code,omitempty"`
	Device              *DeviceDocument         `json:"device,omitempty" yaml:"device,omitempty"`
	LowLevelDevice      *LowLevelDeviceDocument `json:"low_level_device,omitempty" yaml:"low_level_device,omitempty"`
	ScanCodeDetection   bool                    `json:"scan_code_detection,omitempty" yaml:"scan_code_detection,omitempty"`
	ConsumeEvent        *bool                   `json:"consume_event,omitempty" yaml:"consume_event,omitempty"`
	RequiresInputMethod bool                    `json:"requires_input_method,omitempty" yaml:"requires_input_method,omitempty"`
	Gesture             string                  `json:"gesture,omitempty" yaml:"gesture,omitempty"`
	Assistant           string                  `json:"assistant,omitempty" yaml:"assistant,omitempty"`
	ButtonID            string                  `json:"button_id,omitempty" yaml:"button_id,omitempty"`
	Button              *ButtonDocument         `json:"button,omitempty" yaml:"button,omitempty"`
}

// DeviceDocument is the serializable form of a physical Device.
// Kind is "internal", "external" or "any".
type DeviceDocument struct {
	Kind       string `json:"kind" yaml:"kind"`
	Descriptor string `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

// LowLevelDeviceDocument is the serializable form of a LowLevelDevice.
type LowLevelDeviceDocument struct {
	Name    string `json:"name" yaml:"name"`
	Bus     int    `json:"bus" yaml:"bus"`
	Vendor  int    `json:"vendor" yaml:"vendor"`
	Product int    `json:"product" yaml:"product"`
}

// ButtonDocument is the serializable form of a ButtonRef.
type ButtonDocument struct {
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// ToDocument converts t to its serializable form.
func ToDocument(t Trigger) Document {
	doc := Document{
		Keys:            make([]KeyDocument, 0, len(t.Keys)),
		LegacyScreenOff: t.LegacyScreenOff,
	}
	for _, k := range t.Keys {
		doc.Keys = append(doc.Keys, keyToDocument(k))
	}
	switch m := ModeOf(t).(type) {
	case Parallel:
		doc.Mode = ModeNameParallel
		doc.ClickType = m.ClickType.String()
	case Sequence:
		doc.Mode = ModeNameSequence
	default:
		doc.Mode = ModeNameUndefined
	}
	if t.Options != (Options{}) {
		o := t.Options
		doc.Options = &OptionsDocument{
			Vibrate:                  o.Vibrate,
			LongPressDoubleVibration: o.LongPressDoubleVibration,
			LongPressDelay:           o.LongPressDelay,
			DoublePressDelay:         o.DoublePressDelay,
			VibrateDuration:          o.VibrateDuration,
			SequenceTimeout:          o.SequenceTimeout,
			TriggerFromOtherApps:     o.TriggerFromOtherApps,
			ShowToast:                o.ShowToast,
		}
	}
	return doc
}

func keyToDocument(k Key) KeyDocument {
	switch key := k.(type) {
	case PhysicalKey:
		consume := key.ConsumeEvent
		doc := KeyDocument{
			Type:                KeyTypePhysical,
			UID:                 key.UID,
			ClickType:           key.Click.String(),
			KeyCode:             key.KeyCode,
			Device:              deviceToDocument(key.Device),
			ScanCodeDetection:   key.ScanCodeDetection,
			ConsumeEvent:        &consume,
			RequiresInputMethod: key.RequiresInputMethod,
		}
		if key.ScanCode.Valid {
			sc := key.ScanCode.Value
			doc.ScanCode = &sc
		}
		return doc
	case LowLevelKey:
		sc := key.ScanCode
		return KeyDocument{
			Type:      KeyTypeLowLevel,
			UID:       key.UID,
			ClickType: key.Click.String(),
			KeyCode:   key.KeyCode,
			ScanCode:  &sc,
			LowLevelDevice: &LowLevelDeviceDocument{
				Name:    key.Device.Name,
				Bus:     key.Device.Bus,
				Vendor:  key.Device.Vendor,
				Product: key.Device.Product,
			},
			ScanCodeDetection: key.ScanCodeDetection,
		}
	case GestureKey:
		return KeyDocument{
			Type:      KeyTypeGesture,
			UID:       key.UID,
			ClickType: key.Click.String(),
			Gesture:   string(key.Gesture),
		}
	case AssistantKey:
		return KeyDocument{
			Type:      KeyTypeAssistant,
			UID:       key.UID,
			ClickType: key.Click.String(),
			Assistant: string(key.Assistant),
		}
	case OnScreenKey:
		doc := KeyDocument{
			Type:      KeyTypeOnScreen,
			UID:       key.UID,
			ClickType: key.Click.String(),
			ButtonID:  key.ButtonID,
		}
		if key.Button != nil {
			doc.Button = &ButtonDocument{Label: key.Button.Label, Layout: key.Button.Layout}
		}
		return doc
	default:
		panic(fmt.Sprintf("trigger: unknown key type %T", k))
	}
}

func deviceToDocument(d Device) *DeviceDocument {
	switch dev := d.(type) {
	case InternalDevice:
		return &DeviceDocument{Kind: "internal"}
	case ExternalDevice:
		return &DeviceDocument{Kind: "external", Descriptor: dev.Descriptor, Name: dev.Name}
	default:
		return &DeviceDocument{Kind: "any"}
	}
}

// Trigger converts the document back to a Trigger. Keys without a uid get
// one assigned in order.
func (d Document) Trigger() (Trigger, error) {
	t := Trigger{LegacyScreenOff: d.LegacyScreenOff}

	switch d.Mode {
	case "", ModeNameUndefined:
		t.Mode = Undefined{}
	case ModeNameSequence:
		t.Mode = Sequence{}
	case ModeNameParallel:
		c := ShortPress
		if d.ClickType != "" {
			parsed, err := ParseClickType(d.ClickType)
			if err != nil {
				return Trigger{}, fmt.Errorf("mode: %w", err)
			}
			c = parsed
		}
		t.Mode = Parallel{ClickType: c}
	default:
		return Trigger{}, fmt.Errorf("mode: unknown mode %q", d.Mode)
	}

	keys := make([]Key, 0, len(d.Keys))
	for i, kd := range d.Keys {
		k, err := kd.Key()
		if err != nil {
			return Trigger{}, fmt.Errorf("keys[%d]: %w", i, err)
		}
		if k.KeyUID() == "" {
			k = AssignUID(k, keys)
		}
		keys = append(keys, k)
	}
	t.Keys = keys

	if o := d.Options; o != nil {
		t.Options = Options{
			Vibrate:                  o.Vibrate,
			LongPressDoubleVibration: o.LongPressDoubleVibration,
			LongPressDelay:           o.LongPressDelay,
			DoublePressDelay:         o.DoublePressDelay,
			VibrateDuration:          o.VibrateDuration,
			SequenceTimeout:          o.SequenceTimeout,
			TriggerFromOtherApps:     o.TriggerFromOtherApps,
			ShowToast:                o.ShowToast,
		}
	}
	return t, nil
}

// Key converts a key document to its variant.
func (kd KeyDocument) Key() (Key, error) {
	click := ShortPress
	if kd.ClickType != "" {
		c, err := ParseClickType(kd.ClickType)
		if err != nil {
			return nil, err
		}
		click = c
	}

	switch kd.Type {
	case KeyTypePhysical:
		dev, err := kd.Device.device()
		if err != nil {
			return nil, err
		}
		k := PhysicalKey{
			UID:                 kd.UID,
			KeyCode:             kd.KeyCode,
			Device:              dev,
			Click:               click,
			ScanCodeDetection:   kd.ScanCodeDetection,
			ConsumeEvent:        true,
			RequiresInputMethod: kd.RequiresInputMethod,
		}
		if kd.ScanCode != nil {
			k.ScanCode = NewScanCode(*kd.ScanCode)
		}
		if kd.ConsumeEvent != nil {
			k.ConsumeEvent = *kd.ConsumeEvent
		}
		return k, nil
	case KeyTypeLowLevel:
		if kd.ScanCode == nil {
			return nil, fmt.Errorf("low_level key requires scan_code")
		}
		if kd.LowLevelDevice == nil {
			return nil, fmt.Errorf("low_level key requires low_level_device")
		}
		return LowLevelKey{
			UID:      kd.UID,
			KeyCode:  kd.KeyCode,
			ScanCode: *kd.ScanCode,
			Device: LowLevelDevice{
				Name:    kd.LowLevelDevice.Name,
				Bus:     kd.LowLevelDevice.Bus,
				Vendor:  kd.LowLevelDevice.Vendor,
				Product: kd.LowLevelDevice.Product,
			},
			Click:             click,
			ScanCodeDetection: kd.ScanCodeDetection,
		}, nil
	case KeyTypeGesture:
		g := GestureType(kd.Gesture)
		if !g.Valid() {
			return nil, fmt.Errorf("unknown gesture %q", kd.Gesture)
		}
		return GestureKey{UID: kd.UID, Gesture: g, Click: click}, nil
	case KeyTypeAssistant:
		a := AssistantType(kd.Assistant)
		if kd.Assistant == "" {
			a = AssistantAny
		}
		if !a.Valid() {
			return nil, fmt.Errorf("unknown assistant type %q", kd.Assistant)
		}
		return AssistantKey{UID: kd.UID, Assistant: a, Click: click}, nil
	case KeyTypeOnScreen:
		if kd.ButtonID == "" {
			return nil, fmt.Errorf("on_screen key requires button_id")
		}
		k := OnScreenKey{UID: kd.UID, ButtonID: kd.ButtonID, Click: click}
		if kd.Button != nil {
			k.Button = &ButtonRef{Label: kd.Button.Label, Layout: kd.Button.Layout}
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown key type %q", kd.Type)
	}
}

func (d *DeviceDocument) device() (Device, error) {
	if d == nil {
		return AnyDevice{}, nil
	}
	switch d.Kind {
	case "internal":
		return InternalDevice{}, nil
	case "any", "":
		return AnyDevice{}, nil
	case "external":
		if d.Descriptor == "" {
			return nil, fmt.Errorf("external device requires descriptor")
		}
		return ExternalDevice{Descriptor: d.Descriptor, Name: d.Name}, nil
	default:
		return nil, fmt.Errorf("unknown device kind %q", d.Kind)
	}
}

// MarshalJSON encodes t as a Document.
func (t Trigger) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToDocument(t))
}

// UnmarshalJSON decodes a Document into t.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	decoded, err := doc.Trigger()
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

// MarshalYAML encodes t as a Document.
func (t Trigger) MarshalYAML() (any, error) {
	return ToDocument(t), nil
}

// UnmarshalYAML decodes a Document into t.
func (t *Trigger) UnmarshalYAML(node *yaml.Node) error {
	var doc Document
	if err := node.Decode(&doc); err != nil {
		return err
	}
	decoded, err := doc.Trigger()
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}
