// Package architecture loads and validates the architecture lock: the
// contracts, schemas and decision log a project commits to before coding
// sessions start.
//
// The files live in <project>/architecture/. Loaders check structure and
// required fields only; they do not interpret contract or schema content.
package architecture

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Directory and file names of the architecture lock.
const (
	DirName       = "architecture"
	ContractsFile = "contracts.yaml"
	SchemasFile   = "schemas.yaml"
	DecisionsFile = "decisions.yaml"
)

// RequiredFiles must all exist for the architecture to count as locked.
var RequiredFiles = []string{ContractsFile, SchemasFile, DecisionsFile}

// ValidationError reports a malformed architecture file.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.File + ": " + e.Message
}

func invalid(file, format string, args ...any) *ValidationError {
	return &ValidationError{File: file, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// missingFields lists the required fields of v that are empty, in
// declaration order.
func missingFields(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// Dir returns the architecture directory of a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, DirName)
}

// FilePath returns the path of one architecture file.
func FilePath(projectDir, name string) string {
	return filepath.Join(Dir(projectDir), name)
}

// typeName names a decoded YAML value the way error messages describe it.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case map[string]any:
		return "dict"
	case []any:
		return "list"
	case string:
		return "str"
	case int, int64, uint64:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// readDocument reads file and checks it is a mapping whose listKey, when
// present, is a list of mappings. It returns nil data for a missing file.
func readDocument(path, file, listKey, itemLabel, parseFormat string) ([]byte, []map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, invalid(file, "failed to read: %v", err)
	}

	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, invalid(file, parseFormat, err)
	}
	if root == nil {
		return data, nil, nil
	}
	doc, ok := root.(map[string]any)
	if !ok {
		return nil, nil, invalid(file, "Invalid format: expected dict, got %s", typeName(root))
	}

	rawList, present := doc[listKey]
	if !present || rawList == nil {
		return data, nil, nil
	}
	list, ok := rawList.([]any)
	if !ok {
		return nil, nil, invalid(file, "Invalid '%s' field: expected list, got %s", listKey, typeName(rawList))
	}

	items := make([]map[string]any, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, nil, invalid(file, "Invalid %s at index %d: expected dict, got %s", itemLabel, i, typeName(item))
		}
		items = append(items, m)
	}
	return data, items, nil
}

// ValidateFiles checks that every required file exists and loads
// cleanly. It returns every problem found.
func ValidateFiles(projectDir string) (bool, []string) {
	dir := Dir(projectDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false, []string{"Architecture directory does not exist"}
	}

	var errs []string
	for _, name := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			errs = append(errs, "Missing required file: "+name)
		}
	}
	if len(errs) > 0 {
		return false, errs
	}

	if _, err := LoadContracts(projectDir); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := LoadSchemas(projectDir); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := LoadDecisions(projectDir); err != nil {
		errs = append(errs, err.Error())
	}
	return len(errs) == 0, errs
}

// IsLocked reports whether all required architecture files exist.
func IsLocked(projectDir string) bool {
	for _, name := range RequiredFiles {
		if _, err := os.Stat(FilePath(projectDir, name)); err != nil {
			return false
		}
	}
	return true
}

// CleanupPartial removes an architecture directory left incomplete by a
// failed architecture session. A complete directory, a symlink, or a path
// that resolves outside the project is left alone. It reports whether
// anything was removed.
func CleanupPartial(projectDir string) (bool, error) {
	dir := Dir(projectDir)
	info, err := os.Lstat(dir)
	if err != nil {
		return false, nil
	}
	if !info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		return false, nil
	}

	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false, nil
	}
	resolvedProject, err := filepath.EvalSymlinks(projectDir)
	if err != nil {
		return false, nil
	}
	rel, err := filepath.Rel(resolvedProject, resolvedDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}

	if IsLocked(projectDir) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove partial architecture: %w", err)
	}
	return true, nil
}
