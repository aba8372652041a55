package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/keytrigger/internal/trigger"
)

// Product identifies a paid feature.
type Product string

const (
	ProductAssistantTrigger Product = "assistant_trigger"
	ProductFloatingButtons  Product = "floating_buttons"
)

// PurchaseState is how far the purchase lookup got.
type PurchaseState uint8

const (
	PurchasesUnknown PurchaseState = iota
	PurchasesLoaded
	PurchasesVerificationFailed
)

func (s PurchaseState) String() string {
	switch s {
	case PurchasesLoaded:
		return "loaded"
	case PurchasesVerificationFailed:
		return "verification_failed"
	default:
		return "unknown"
	}
}

// Purchases is the outcome of the purchase lookup. Products is only
// meaningful once State is PurchasesLoaded.
type Purchases struct {
	State    PurchaseState
	Products []Product
}

// Missing reports whether p is known not to include product.
func (p Purchases) Missing(product Product) bool {
	return p.State == PurchasesLoaded && !slices.Contains(p.Products, product)
}

// Connectivity is the elevated bridge connection state.
type Connectivity uint8

const (
	ConnectivityUnknown Connectivity = iota
	Connected
	Disconnected
)

func (c Connectivity) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Fact is a yes or no fact about the environment that may not be known
// yet. The zero value is unknown.
type Fact uint8

const (
	FactUnknown Fact = iota
	FactTrue
	FactFalse
)

// FactOf returns the known fact b.
func FactOf(b bool) Fact {
	if b {
		return FactTrue
	}
	return FactFalse
}

// IsTrue reports whether f is known to hold.
func (f Fact) IsTrue() bool { return f == FactTrue }

// IsFalse reports whether f is known not to hold.
func (f Fact) IsFalse() bool { return f == FactFalse }

func (f Fact) String() string {
	switch f {
	case FactTrue:
		return "true"
	case FactFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Snapshot is the environment a classification runs against. Callers build
// a fresh snapshot whenever a fact changes. The zero Snapshot knows nothing
// and so reports no errors.
type Snapshot struct {
	ImeChosen             Fact
	DndAccessGranted      Fact
	RootGranted           Fact
	ShowDpadImeSetupError bool
	Purchases             Purchases
	BridgeUnsupported     bool
	Bridge                Connectivity

	// Devices lists the visible low-level devices. Nil means unknown.
	Devices []trigger.LowLevelDevice

	// PhoneCallConstraint is set when keys can only be read through the
	// input method during a call.
	PhoneCallConstraint bool
}

// Permissive returns a snapshot in which nothing is missing: every
// permission granted, input method chosen, everything else unknown.
func Permissive() Snapshot {
	return Snapshot{
		ImeChosen:        FactTrue,
		DndAccessGranted: FactTrue,
		RootGranted:      FactTrue,
	}
}

// SnapshotDocument is the YAML/JSON form of a Snapshot. Omitted facts take
// the permissive value.
type SnapshotDocument struct {
	ImeChosen             *bool                     `yaml:"ime_chosen,omitempty" json:"ime_chosen,omitempty"`
	DndAccessGranted      *bool                     `yaml:"dnd_access_granted,omitempty" json:"dnd_access_granted,omitempty"`
	RootGranted           *bool                     `yaml:"root_granted,omitempty" json:"root_granted,omitempty"`
	ShowDpadImeSetupError bool                      `yaml:"show_dpad_ime_setup_error,omitempty" json:"show_dpad_ime_setup_error,omitempty"`
	Purchases             *PurchasesDocument        `yaml:"purchases,omitempty" json:"purchases,omitempty"`
	Bridge                *BridgeDocument           `yaml:"bridge,omitempty" json:"bridge,omitempty"`
	Devices               *[]trigger.LowLevelDevice `yaml:"devices,omitempty" json:"devices,omitempty"`
	PhoneCallConstraint   bool                      `yaml:"phone_call_constraint,omitempty" json:"phone_call_constraint,omitempty"`
}

// PurchasesDocument is the wire form of Purchases.
type PurchasesDocument struct {
	State    string    `yaml:"state" json:"state"`
	Products []Product `yaml:"products,omitempty" json:"products,omitempty"`
}

// BridgeDocument is the wire form of the bridge facts.
type BridgeDocument struct {
	Unsupported bool   `yaml:"unsupported,omitempty" json:"unsupported,omitempty"`
	Connection  string `yaml:"connection,omitempty" json:"connection,omitempty"`
}

// Snapshot converts the document.
func (d SnapshotDocument) Snapshot() (Snapshot, error) {
	s := Permissive()
	if d.ImeChosen != nil {
		s.ImeChosen = FactOf(*d.ImeChosen)
	}
	if d.DndAccessGranted != nil {
		s.DndAccessGranted = FactOf(*d.DndAccessGranted)
	}
	if d.RootGranted != nil {
		s.RootGranted = FactOf(*d.RootGranted)
	}
	s.ShowDpadImeSetupError = d.ShowDpadImeSetupError
	s.PhoneCallConstraint = d.PhoneCallConstraint

	if d.Purchases != nil {
		switch d.Purchases.State {
		case "", "unknown":
			s.Purchases.State = PurchasesUnknown
		case "loaded":
			s.Purchases.State = PurchasesLoaded
		case "verification_failed":
			s.Purchases.State = PurchasesVerificationFailed
		default:
			return Snapshot{}, fmt.Errorf("purchases.state: unknown state %q", d.Purchases.State)
		}
		for _, p := range d.Purchases.Products {
			if p != ProductAssistantTrigger && p != ProductFloatingButtons {
				return Snapshot{}, fmt.Errorf("purchases.products: unknown product %q", p)
			}
		}
		s.Purchases.Products = slices.Clone(d.Purchases.Products)
	}

	if d.Bridge != nil {
		s.BridgeUnsupported = d.Bridge.Unsupported
		switch d.Bridge.Connection {
		case "", "unknown":
			s.Bridge = ConnectivityUnknown
		case "connected":
			s.Bridge = Connected
		case "disconnected":
			s.Bridge = Disconnected
		default:
			return Snapshot{}, fmt.Errorf("bridge.connection: unknown state %q", d.Bridge.Connection)
		}
	}

	if d.Devices != nil {
		s.Devices = make([]trigger.LowLevelDevice, len(*d.Devices))
		copy(s.Devices, *d.Devices)
	}
	return s, nil
}

// DecodeSnapshot reads a YAML or JSON snapshot document. Unknown fields
// are errors.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var doc SnapshotDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Permissive(), nil
		}
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc.Snapshot()
}

// LoadSnapshot reads a snapshot file.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	s, err := DecodeSnapshot(bytes.NewReader(data))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
