package classify

import (
	"slices"

	"github.com/roach88/keytrigger/internal/trigger"
)

// rule reports whether its error applies to key.
type rule struct {
	err   TriggerError
	match func(t trigger.Trigger, key trigger.Key, env Snapshot) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{FloatingButtonDeleted, func(_ trigger.Trigger, key trigger.Key, _ Snapshot) bool {
		k, ok := key.(trigger.OnScreenKey)
		return ok && k.Button == nil
	}},
	{SystemBridgeUnsupported, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		_, ok := key.(trigger.LowLevelKey)
		return ok && env.BridgeUnsupported
	}},
	{SystemBridgeDisconnected, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		_, ok := key.(trigger.LowLevelKey)
		return ok && env.Bridge == Disconnected
	}},
	{EvdevDeviceNotFound, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		k, ok := key.(trigger.LowLevelKey)
		return ok && env.Devices != nil && !slices.Contains(env.Devices, k.Device)
	}},
	{DndAccessDenied, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		k, ok := key.(trigger.PhysicalKey)
		return ok && trigger.IsVolumeKeyCode(k.KeyCode) && env.DndAccessGranted.IsFalse()
	}},
	{ScreenOffRootDenied, func(t trigger.Trigger, key trigger.Key, env Snapshot) bool {
		k, ok := key.(trigger.PhysicalKey)
		return ok && t.LegacyScreenOff && env.RootGranted.IsFalse() &&
			!trigger.IsVolumeKeyCode(k.KeyCode) && trigger.CanDetectWhenScreenOff(k.KeyCode)
	}},
	{CantDetectInPhoneCall, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		_, ok := key.(trigger.PhysicalKey)
		return ok && env.PhoneCallConstraint && env.ImeChosen.IsFalse()
	}},
	{DpadImeNotSelected, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		k, ok := key.(trigger.PhysicalKey)
		if !ok || !env.ShowDpadImeSetupError || !env.ImeChosen.IsFalse() {
			return false
		}
		return trigger.IsDpadKeyCode(k.KeyCode) || k.RequiresInputMethod
	}},
	{PurchaseVerificationFailed, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		return isPaidKey(key) && env.Purchases.State == PurchasesVerificationFailed
	}},
	{AssistantTriggerNotPurchased, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		_, ok := key.(trigger.AssistantKey)
		return ok && env.Purchases.Missing(ProductAssistantTrigger)
	}},
	{FloatingButtonsNotPurchased, func(_ trigger.Trigger, key trigger.Key, env Snapshot) bool {
		_, ok := key.(trigger.OnScreenKey)
		return ok && env.Purchases.Missing(ProductFloatingButtons)
	}},
	{MigrateScreenOffTrigger, func(t trigger.Trigger, key trigger.Key, _ Snapshot) bool {
		return IsScreenOffMigrationRequired(t, key)
	}},
}

func isPaidKey(key trigger.Key) bool {
	switch key.(type) {
	case trigger.AssistantKey, trigger.OnScreenKey:
		return true
	default:
		return false
	}
}

// Classify returns the highest priority error for key, or false when the
// key works in env.
func Classify(t trigger.Trigger, key trigger.Key, env Snapshot) (TriggerError, bool) {
	if key == nil {
		return "", false
	}
	for _, r := range rules {
		if r.match(t, key, env) {
			return r.err, true
		}
	}
	return "", false
}

// IsScreenOffMigrationRequired reports whether key belongs to a legacy
// screen-off trigger that should be recreated with a low-level key. Only
// volume keys read through the standard path qualify.
func IsScreenOffMigrationRequired(t trigger.Trigger, key trigger.Key) bool {
	k, ok := key.(trigger.PhysicalKey)
	return ok && t.LegacyScreenOff && trigger.IsVolumeKeyCode(k.KeyCode)
}

// KeyError is the classification of one key of a trigger.
type KeyError struct {
	Index int          `json:"index" yaml:"index"`
	UID   string       `json:"uid" yaml:"uid"`
	Error TriggerError `json:"error" yaml:"error"`
}

// ClassifyTrigger classifies every key of t and returns the failing ones in
// key order.
func ClassifyTrigger(t trigger.Trigger, env Snapshot) []KeyError {
	var out []KeyError
	for i, k := range t.Keys {
		if e, ok := Classify(t, k, env); ok {
			out = append(out, KeyError{Index: i, UID: k.KeyUID(), Error: e})
		}
	}
	return out
}
