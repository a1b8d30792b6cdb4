// internal/ledger/feature.go
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// FeatureListFile is the feature ledger file name.
const FeatureListFile = "feature_list.json"

// Feature is one entry of the feature ledger. Its index in the list is its
// identity. Fields the agent adds that are not modelled here (category,
// steps, ...) are kept in Extra and written back unchanged.
type Feature struct {
	Description           string   `json:"description"`
	Passes                bool     `json:"passes"`
	RequiresManualTesting bool     `json:"requires_manual_testing,omitempty"`
	TestSteps             []string `json:"test_steps,omitempty"`
	ExpectedResult        string   `json:"expected_result,omitempty"`
	Dependencies          []int    `json:"dependencies,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// featureFields are the keys owned by Feature itself.
var featureFields = map[string]bool{
	"description":             true,
	"passes":                  true,
	"requires_manual_testing": true,
	"test_steps":              true,
	"expected_result":         true,
	"dependencies":            true,
}

type featureAlias Feature

// UnmarshalJSON decodes known fields and stashes the rest in Extra.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var a featureAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Feature(a)
	for k, v := range raw {
		if featureFields[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = map[string]json.RawMessage{}
		}
		f.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes known fields merged with Extra.
func (f Feature) MarshalJSON() ([]byte, error) {
	known, err := encodeNoEscape(featureAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return known, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return encodeNoEscape(merged)
}

func encodeNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Path returns the feature ledger path for dir.
func Path(dir string) string {
	return filepath.Join(dir, FeatureListFile)
}

// Exists reports whether dir has a feature ledger.
func Exists(dir string) bool {
	return fileutil.Exists(Path(dir))
}

// Load reads the feature ledger. Unlike the count queries it reports
// read and decode failures.
func Load(dir string) ([]Feature, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, err
	}
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, err
	}
	return features, nil
}

// Save replaces the ledger atomically.
func Save(dir string, features []Feature) error {
	if features == nil {
		features = []Feature{}
	}
	return fileutil.AtomicWriteJSON(Path(dir), features)
}

// loadOrEmpty is Load with the empty-state default.
func loadOrEmpty(dir string) []Feature {
	features, err := Load(dir)
	if err != nil {
		return nil
	}
	return features
}

// CountPassing returns (passing, total). A missing or malformed ledger
// counts as (0, 0).
func CountPassing(dir string) (passing, total int) {
	features := loadOrEmpty(dir)
	for _, f := range features {
		if f.Passes {
			passing++
		}
	}
	return passing, len(features)
}

// TestCounts partitions the ledger by manual vs automated testing.
// AutomatedTotal+ManualTotal always equals Total.
type TestCounts struct {
	Total            int `json:"total"`
	Passing          int `json:"passing"`
	AutomatedTotal   int `json:"automated_total"`
	AutomatedPassing int `json:"automated_passing"`
	ManualTotal      int `json:"manual_total"`
	ManualPassing    int `json:"manual_passing"`
}

// Tally computes TestCounts for a feature list.
func Tally(features []Feature) TestCounts {
	var c TestCounts
	for _, f := range features {
		c.Total++
		if f.Passes {
			c.Passing++
		}
		if f.RequiresManualTesting {
			c.ManualTotal++
			if f.Passes {
				c.ManualPassing++
			}
		} else {
			c.AutomatedTotal++
			if f.Passes {
				c.AutomatedPassing++
			}
		}
	}
	return c
}

// CountByType tallies the ledger in dir.
func CountByType(dir string) TestCounts {
	return Tally(loadOrEmpty(dir))
}

// AutomatedComplete reports whether at least one automated test exists
// and every automated test passes.
func (c TestCounts) AutomatedComplete() bool {
	return c.AutomatedTotal > 0 && c.AutomatedPassing == c.AutomatedTotal
}

// AllPassing reports whether the ledger is non-empty and fully passing.
func (c TestCounts) AllPassing() bool {
	return c.Total > 0 && c.Passing == c.Total
}

// IsAutomatedWorkComplete reports whether validation may start even
// though manual tests remain.
func IsAutomatedWorkComplete(dir string) bool {
	return CountByType(dir).AutomatedComplete()
}

// MarkTestsFailed flips the listed features from passing to failing.
// Out-of-range indices are reported but do not stop the valid ones from
// being applied. Features already failing are not counted. reasons is
// informational; the ledger schema has no field for it.
func MarkTestsFailed(dir string, indices []int, reasons map[int]string) (updated int, errs []string) {
	path := Path(dir)
	if !fileutil.Exists(path) {
		return 0, []string{"feature_list.json does not exist"}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, []string{fmt.Sprintf("Failed to read feature_list.json: %v", err)}
	}
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return 0, []string{fmt.Sprintf("Failed to read feature_list.json: %v", err)}
	}

	maxIndex := len(features) - 1
	for _, idx := range indices {
		if idx < 0 || idx > maxIndex {
			errs = append(errs, fmt.Sprintf("Invalid test index: %d (max: %d)", idx, maxIndex))
			continue
		}
		if features[idx].Passes {
			features[idx].Passes = false
			updated++
		}
	}

	if err := Save(dir, features); err != nil {
		errs = append(errs, fmt.Sprintf("Failed to write feature_list.json: %v", err))
	}
	return updated, errs
}
