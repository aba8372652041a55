package classify

// TriggerError names a problem that keeps a trigger key from working. It is
// advisory: the caller renders it with a fix-it affordance.
type TriggerError string

const (
	// FloatingButtonDeleted: the on-screen button the key points at is gone.
	FloatingButtonDeleted TriggerError = "FLOATING_BUTTON_DELETED"

	// SystemBridgeUnsupported: the device cannot run the elevated bridge.
	SystemBridgeUnsupported TriggerError = "SYSTEM_BRIDGE_UNSUPPORTED"

	// SystemBridgeDisconnected: low-level keys need the bridge running.
	SystemBridgeDisconnected TriggerError = "SYSTEM_BRIDGE_DISCONNECTED"

	// EvdevDeviceNotFound: the key's low-level device is not connected.
	EvdevDeviceNotFound TriggerError = "EVDEV_DEVICE_NOT_FOUND"

	// DndAccessDenied: volume keys cannot be read in do-not-disturb mode
	// without notification policy access.
	DndAccessDenied TriggerError = "DND_ACCESS_DENIED"

	// ScreenOffRootDenied: the legacy screen-off detector needs root.
	ScreenOffRootDenied TriggerError = "SCREEN_OFF_ROOT_DENIED"

	// CantDetectInPhoneCall: during calls keys only arrive through the
	// input method.
	CantDetectInPhoneCall TriggerError = "CANT_DETECT_IN_PHONE_CALL"

	// DpadImeNotSelected: dpad keys only arrive through the input method.
	DpadImeNotSelected TriggerError = "DPAD_IME_NOT_SELECTED"

	// PurchaseVerificationFailed: purchases could not be checked.
	PurchaseVerificationFailed TriggerError = "PURCHASE_VERIFICATION_FAILED"

	// AssistantTriggerNotPurchased: assistant keys are a paid feature.
	AssistantTriggerNotPurchased TriggerError = "ASSISTANT_TRIGGER_NOT_PURCHASED"

	// FloatingButtonsNotPurchased: on-screen buttons are a paid feature.
	FloatingButtonsNotPurchased TriggerError = "FLOATING_BUTTONS_NOT_PURCHASED"

	// MigrateScreenOffTrigger: a legacy screen-off volume trigger should be
	// recreated with a low-level key.
	MigrateScreenOffTrigger TriggerError = "MIGRATE_SCREEN_OFF_TRIGGER"
)

// All lists every error kind in priority order.
var All = []TriggerError{
	FloatingButtonDeleted,
	SystemBridgeUnsupported,
	SystemBridgeDisconnected,
	EvdevDeviceNotFound,
	DndAccessDenied,
	ScreenOffRootDenied,
	CantDetectInPhoneCall,
	DpadImeNotSelected,
	PurchaseVerificationFailed,
	AssistantTriggerNotPurchased,
	FloatingButtonsNotPurchased,
	MigrateScreenOffTrigger,
}

// Remedy is the kind of fix-it action the UI offers for an error.
type Remedy string

const (
	RemedyNone              Remedy = "none"
	RemedyGrantDndAccess    Remedy = "grant_dnd_access"
	RemedyGrantRoot         Remedy = "grant_root"
	RemedyChooseInputMethod Remedy = "choose_input_method"
	RemedyPurchase          Remedy = "purchase"
	RemedyRefreshPurchases  Remedy = "refresh_purchases"
	RemedyStartBridge       Remedy = "start_bridge"
	RemedyMigrateTrigger    Remedy = "migrate_trigger"
)

// Remedy returns the fix-it kind for e. Errors the user cannot fix from
// the app map to RemedyNone.
func (e TriggerError) Remedy() Remedy {
	switch e {
	case DndAccessDenied:
		return RemedyGrantDndAccess
	case ScreenOffRootDenied:
		return RemedyGrantRoot
	case CantDetectInPhoneCall, DpadImeNotSelected:
		return RemedyChooseInputMethod
	case AssistantTriggerNotPurchased, FloatingButtonsNotPurchased:
		return RemedyPurchase
	case PurchaseVerificationFailed:
		return RemedyRefreshPurchases
	case SystemBridgeDisconnected:
		return RemedyStartBridge
	case MigrateScreenOffTrigger:
		return RemedyMigrateTrigger
	default:
		return RemedyNone
	}
}

// Product returns the product a purchase error refers to.
func (e TriggerError) Product() (Product, bool) {
	switch e {
	case AssistantTriggerNotPurchased:
		return ProductAssistantTrigger, true
	case FloatingButtonsNotPurchased:
		return ProductFloatingButtons, true
	default:
		return "", false
	}
}
