// Package harness runs scripted editing sessions against the editor and
// compares their traces with golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: volume_chord
//	description: "What this scenario validates"
//	trigger:                      # optional starting trigger
//	  mode: undefined
//	  keys:
//	    - {type: physical, key_code: 25}
//	siblings:                     # other key maps in the library
//	  - name: keyboard
//	    trigger: {mode: undefined, keys: [...]}
//	environment:                  # or environment_file: env.yaml
//	  dnd_access_granted: false
//	steps:
//	  - op: add_physical_key
//	    args: {key_code: VOLUME_UP}
//	    expect: {mode: "parallel(short_press)", keys: 2}
//	  - op: set_long_press
//	    expect: {rejected: EMPTY_TRIGGER}
//	assertions:
//	  - type: mode
//	    mode: "parallel(short_press)"
//	  - type: key_error
//	    index: 0
//	    error: DND_ACCESS_DENIED
//
// # Assertion Types
//
//   - mode: the final mode, rendered as by trigger.Mode.String
//   - key_count: the number of final keys
//   - key: fields of one key (type, click_type, key_code, scan_code_detection, consume_event)
//   - key_error: the classification of one key
//   - no_errors: no key is classified with an error
//   - option: one trigger option or legacy_screen_off
//
// # Deterministic Testing
//
// Every scenario gets a fresh in-memory library and an editor with a fixed
// session token. After the steps, the recorded edits are replayed from the
// starting trigger and must reproduce the final hash.
package harness
