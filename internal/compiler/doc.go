// Package compiler turns key-map sources into triggers and checks them.
//
// CUE key maps are compiled with CompileKeyMap; JSON and YAML trigger
// documents are checked against an embedded JSON Schema and decoded with
// ParseDocument. Validate applies the structural trigger rules and returns
// every problem it finds as an E1xx ValidationError.
package compiler
