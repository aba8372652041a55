package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/keytrigger/internal/compiler"
)

// LoadMode controls how errors are handled during key map loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedKeyMap is a key map that compiled and passed validation.
type LoadedKeyMap struct {
	compiler.KeyMapSpec
	File string
}

// LoadResult contains the key maps loaded from a file or directory.
type LoadResult struct {
	KeyMaps   []LoadedKeyMap
	FileCount int
}

// Find returns the key map with the given name.
func (r *LoadResult) Find(name string) (LoadedKeyMap, bool) {
	for _, km := range r.KeyMaps {
		if km.Name == name {
			return km, true
		}
	}
	return LoadedKeyMap{}, false
}

// LoadError represents an error that occurred during key map loading.
type LoadError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func (e *LoadError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Code, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Error code constants shared by all CLI commands. Key map rule
// violations use the compiler's E1xx codes.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No key map files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeCompileFailed = "E008" // CUE key map did not compile
)

// LoadKeyMaps loads key maps from a file or from the files directly
// inside a directory. CUE files hold any number of key maps under
// "keymap"; a JSON or YAML file holds one trigger document named after
// the file. Every key map is validated, and names must be unique.
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadKeyMaps(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindKeyMapFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no key map files found in %s", path)}}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	failFast := func() bool { return mode == LoadModeFailFast && len(errs) > 0 }

	var cueFiles []string
	for _, f := range files {
		if filepath.Ext(f) == ".cue" {
			cueFiles = append(cueFiles, f)
			continue
		}
		km, docErrs := loadDocument(f)
		errs = append(errs, docErrs...)
		if failFast() {
			return result, errs
		}
		if len(docErrs) == 0 {
			result.KeyMaps = append(result.KeyMaps, km)
		}
	}

	if len(cueFiles) > 0 {
		kms, cueErrs := loadCUE(cueFiles, mode)
		result.KeyMaps = append(result.KeyMaps, kms...)
		errs = append(errs, cueErrs...)
		if failFast() {
			return result, errs
		}
	}

	errs = append(errs, duplicateNames(result.KeyMaps)...)
	if failFast() {
		return result, errs[:1]
	}
	return result, errs
}

// FindKeyMapFiles returns the .cue, .json, .yaml and .yml files directly
// inside dir, sorted.
func FindKeyMapFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isKeyMapFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isKeyMapFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// loadDocument loads a single JSON or YAML trigger document.
func loadDocument(path string) (LoadedKeyMap, []error) {
	format, err := compiler.FormatFromPath(path)
	if err != nil {
		return LoadedKeyMap{}, []error{&LoadError{Code: compiler.ErrUnknownFormat, Message: err.Error(), File: path}}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedKeyMap{}, []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), File: path}}
	}

	t, verrs := compiler.ParseDocument(data, format)
	if len(verrs) > 0 {
		return LoadedKeyMap{}, validationLoadErrors(path, verrs)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return LoadedKeyMap{KeyMapSpec: compiler.KeyMapSpec{Name: name, Trigger: t}, File: path}, nil
}

// loadCUE builds the CUE files as one instance and compiles every field
// under "keymap".
func loadCUE(files []string, mode LoadMode) ([]LoadedKeyMap, []error) {
	dir := filepath.Dir(files[0])
	args := make([]string, len(files))
	for i, f := range files {
		args[i] = filepath.Base(f)
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded", File: dir}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err), File: dir}}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), File: dir}}
	}

	keymaps := value.LookupPath(cue.ParsePath("keymap"))
	if !keymaps.Exists() {
		return nil, nil
	}
	iter, err := keymaps.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating key maps: %v", err), File: dir}}
	}

	var kms []LoadedKeyMap
	var errs []error
	for iter.Next() {
		spec, err := compiler.CompileKeyMap(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "keymap."+iter.Label()))
			if mode == LoadModeFailFast {
				return kms, errs
			}
			continue
		}
		file := fileOf(spec.Pos, dir)
		if verrs := compiler.Validate(spec); len(verrs) > 0 {
			errs = append(errs, validationLoadErrors(file, verrs)...)
			if mode == LoadModeFailFast {
				return kms, errs
			}
			continue
		}
		kms = append(kms, LoadedKeyMap{KeyMapSpec: *spec, File: file})
	}
	return kms, errs
}

func fileOf(pos token.Pos, fallback string) string {
	if pos.IsValid() && pos.Filename() != "" {
		return pos.Filename()
	}
	return fallback
}

func validationLoadErrors(file string, verrs []compiler.ValidationError) []error {
	errs := make([]error, len(verrs))
	for i, ve := range verrs {
		errs[i] = &LoadError{
			Code:    ve.Code,
			Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message),
			File:    file,
			Line:    ve.Line,
		}
	}
	return errs
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		le := &LoadError{Code: ErrCodeCompileFailed, Message: fmt.Sprintf("%s: %s: %s", context, ce.Field, ce.Message)}
		if ce.Pos.IsValid() {
			le.File = ce.Pos.Filename()
			le.Line = ce.Pos.Line()
		}
		return le
	}
	return &LoadError{Code: ErrCodeCompileFailed, Message: fmt.Sprintf("%s: %v", context, err)}
}

// duplicateNames reports every key map whose name was already used.
func duplicateNames(kms []LoadedKeyMap) []error {
	first := make(map[string]string, len(kms))
	var errs []error
	for _, km := range kms {
		if prev, dup := first[km.Name]; dup {
			errs = append(errs, &LoadError{
				Code:    compiler.ErrDuplicateKeyMap,
				Message: fmt.Sprintf("key map %q already defined in %s", km.Name, prev),
				File:    km.File,
			})
			continue
		}
		first[km.Name] = km.File
	}
	return errs
}
