// internal/architecture/decisions.go
package architecture

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// Decision is one entry of the append-only decision log.
type Decision struct {
	ID                     string   `yaml:"id" validate:"required"`
	Timestamp              string   `yaml:"timestamp"`
	Session                int      `yaml:"session"`
	Topic                  string   `yaml:"topic" validate:"required"`
	Choice                 string   `yaml:"choice" validate:"required"`
	AlternativesConsidered []string `yaml:"alternatives_considered"`
	Rationale              string   `yaml:"rationale"`
	ConstraintsCreated     []string `yaml:"constraints_created"`
	AffectsFeatures        []int    `yaml:"affects_features"`
}

// Affects reports whether the decision lists feature index idx.
func (d Decision) Affects(idx int) bool {
	for _, f := range d.AffectsFeatures {
		if f == idx {
			return true
		}
	}
	return false
}

// LoadDecisions loads decisions.yaml. A missing file yields no decisions.
func LoadDecisions(projectDir string) ([]Decision, error) {
	data, _, err := readDocument(FilePath(projectDir, DecisionsFile), DecisionsFile, "decisions", "decision",
		"Failed to parse decisions.yaml: %v")
	if err != nil || data == nil {
		return nil, err
	}

	var doc struct {
		Decisions []Decision `yaml:"decisions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(DecisionsFile, "Failed to parse decisions.yaml: %v", err)
	}
	for i, d := range doc.Decisions {
		if missing := missingFields(d); len(missing) > 0 {
			return nil, invalid(DecisionsFile, "Decision at index %d missing required fields: %s", i, strings.Join(missing, ", "))
		}
	}
	return doc.Decisions, nil
}

// AppendDecision adds d to the end of decisions.yaml, creating the file
// and directory when needed. Existing entries, keys and comments are
// kept as they are.
func AppendDecision(projectDir string, d Decision) error {
	if missing := missingFields(d); len(missing) > 0 {
		return fmt.Errorf("decision missing required fields: %s", strings.Join(missing, ", "))
	}
	if err := os.MkdirAll(Dir(projectDir), 0o755); err != nil {
		return fmt.Errorf("create architecture dir: %w", err)
	}
	path := FilePath(projectDir, DecisionsFile)

	var doc yaml.Node
	data, err := os.ReadFile(path)
	switch {
	case err == nil && len(bytes.TrimSpace(data)) > 0:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return invalid(DecisionsFile, "Failed to parse decisions.yaml: %v", err)
		}
	case err == nil || os.IsNotExist(err):
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
		root := doc.Content[0]
		appendKey(root, "version", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: "1"})
		appendKey(root, "locked_at", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: time.Now().UTC().Format(time.RFC3339)})
	default:
		return fmt.Errorf("read decisions: %w", err)
	}

	if len(doc.Content) == 0 {
		return invalid(DecisionsFile, "Invalid format: expected dict")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return invalid(DecisionsFile, "Invalid format: expected dict")
	}
	list := lookupKey(root, "decisions")
	if list == nil || list.Kind != yaml.SequenceNode {
		list = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setKey(root, "decisions", list)
	}

	var entry yaml.Node
	if err := entry.Encode(normalized(d)); err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	list.Content = append(list.Content, &entry)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode decisions: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return fileutil.AtomicWrite(path, buf.Bytes())
}

// normalized replaces nil slices with empty ones so the file always
// carries every key.
func normalized(d Decision) Decision {
	if d.AlternativesConsidered == nil {
		d.AlternativesConsidered = []string{}
	}
	if d.ConstraintsCreated == nil {
		d.ConstraintsCreated = []string{}
	}
	if d.AffectsFeatures == nil {
		d.AffectsFeatures = []int{}
	}
	return d
}

func lookupKey(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setKey(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	appendKey(m, key, value)
}

func appendKey(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

// NextDecisionID returns the ID following the last decision: "DR-001"
// for an empty log, otherwise the last DR number plus one, or the count
// plus one when the last ID is not numbered.
func NextDecisionID(projectDir string) (string, error) {
	decisions, err := LoadDecisions(projectDir)
	if err != nil {
		return "", err
	}
	if len(decisions) == 0 {
		return "DR-001", nil
	}
	last := decisions[len(decisions)-1].ID
	if _, num, ok := strings.Cut(last, "-"); ok {
		if n, err := strconv.Atoi(num); err == nil {
			return fmt.Sprintf("DR-%03d", n+1), nil
		}
	}
	return fmt.Sprintf("DR-%03d", len(decisions)+1), nil
}

// RelevantDecisions returns the decisions that affect feature idx.
func RelevantDecisions(projectDir string, idx int) ([]Decision, error) {
	decisions, err := LoadDecisions(projectDir)
	if err != nil {
		return nil, err
	}
	var out []Decision
	for _, d := range decisions {
		if d.Affects(idx) {
			out = append(out, d)
		}
	}
	return out, nil
}

// AllConstraints flattens the constraints of every decision in order.
func AllConstraints(projectDir string) ([]string, error) {
	decisions, err := LoadDecisions(projectDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range decisions {
		out = append(out, d.ConstraintsCreated...)
	}
	return out, nil
}

// ValidateFeatureRefs reports decisions whose affects_features point past
// the end of a feature list of featureCount entries. The result is
// advisory; nothing is rejected at write time.
func ValidateFeatureRefs(decisions []Decision, featureCount int) []string {
	var warnings []string
	for _, d := range decisions {
		for _, idx := range d.AffectsFeatures {
			if idx < 0 || idx >= featureCount {
				warnings = append(warnings, fmt.Sprintf(
					"decision %s references feature %d, but the feature list has %d entries", d.ID, idx, featureCount))
			}
		}
	}
	return warnings
}
