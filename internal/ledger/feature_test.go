package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLedger(t *testing.T, dir string, features []Feature) {
	t.Helper()
	require.NoError(t, Save(dir, features))
}

func tenFeatures(passing ...int) []Feature {
	features := make([]Feature, 10)
	for i := range features {
		features[i].Description = fmt.Sprintf("feature %d", i)
	}
	for _, i := range passing {
		features[i].Passes = true
	}
	return features
}

func TestCountPassing(t *testing.T) {
	dir := t.TempDir()

	p, total := CountPassing(dir)
	assert.Equal(t, 0, p)
	assert.Equal(t, 0, total)

	writeLedger(t, dir, tenFeatures(1, 2, 3))
	p, total = CountPassing(dir)
	assert.Equal(t, 3, p)
	assert.Equal(t, 10, total)
}

func TestCountPassing_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("{not json"), 0o644))

	p, total := CountPassing(dir)
	assert.Zero(t, p)
	assert.Zero(t, total)
	assert.Equal(t, TestCounts{}, CountByType(dir))
}

func TestCountByType(t *testing.T) {
	dir := t.TempDir()
	writeLedger(t, dir, []Feature{
		{Description: "a", Passes: true},
		{Description: "b"},
		{Description: "c", Passes: true, RequiresManualTesting: true},
		{Description: "d", RequiresManualTesting: true},
		{Description: "e", RequiresManualTesting: true},
	})

	c := CountByType(dir)
	assert.Equal(t, TestCounts{
		Total: 5, Passing: 2,
		AutomatedTotal: 2, AutomatedPassing: 1,
		ManualTotal: 3, ManualPassing: 1,
	}, c)
	assert.Equal(t, c.Total, c.AutomatedTotal+c.ManualTotal)
	assert.Equal(t, c.Passing, c.AutomatedPassing+c.ManualPassing)
}

func TestIsAutomatedWorkComplete(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
		want     bool
	}{
		{"empty ledger", []Feature{}, false},
		{"only manual tests", []Feature{{RequiresManualTesting: true, Passes: true}}, false},
		{"automated failing", []Feature{{Passes: true}, {}}, false},
		{"automated passing, manual pending", []Feature{{Passes: true}, {RequiresManualTesting: true}}, true},
		{"all passing", []Feature{{Passes: true}, {Passes: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeLedger(t, dir, tt.features)
			assert.Equal(t, tt.want, IsAutomatedWorkComplete(dir))
		})
	}

	assert.False(t, IsAutomatedWorkComplete(t.TempDir()), "missing ledger")
}

func TestMarkTestsFailed(t *testing.T) {
	dir := t.TempDir()
	writeLedger(t, dir, tenFeatures(5))

	updated, errs := MarkTestsFailed(dir, []int{5, 999}, map[int]string{5: "button broken"})
	assert.Equal(t, 1, updated)
	assert.Equal(t, []string{"Invalid test index: 999 (max: 9)"}, errs)

	features, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, features[5].Passes)
	assert.NoFileExists(t, Path(dir)+".tmp")

	updated, errs = MarkTestsFailed(dir, []int{5}, nil)
	assert.Equal(t, 0, updated, "already failing features are not counted")
	assert.Empty(t, errs)
}

func TestMarkTestsFailed_NegativeIndex(t *testing.T) {
	dir := t.TempDir()
	writeLedger(t, dir, tenFeatures(0))

	updated, errs := MarkTestsFailed(dir, []int{-1, 0}, nil)
	assert.Equal(t, 1, updated)
	assert.Equal(t, []string{"Invalid test index: -1 (max: 9)"}, errs)
}

func TestMarkTestsFailed_Errors(t *testing.T) {
	dir := t.TempDir()
	updated, errs := MarkTestsFailed(dir, []int{0}, nil)
	assert.Zero(t, updated)
	assert.Equal(t, []string{"feature_list.json does not exist"}, errs)

	require.NoError(t, os.WriteFile(Path(dir), []byte("[{"), 0o644))
	updated, errs = MarkTestsFailed(dir, []int{0}, nil)
	assert.Zero(t, updated)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Failed to read feature_list.json:")
}

func TestFeature_PreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	raw := `[{"category": "functional", "description": "Login <form>", "passes": true, "steps": ["open", "click"]}]`
	require.NoError(t, os.WriteFile(Path(dir), []byte(raw), 0o644))

	_, errs := MarkTestsFailed(dir, []int{0}, nil)
	require.Empty(t, errs)

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Login <form>", "html is not escaped")

	var back []map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "functional", back[0]["category"])
	assert.Equal(t, []any{"open", "click"}, back[0]["steps"])
	assert.Equal(t, false, back[0]["passes"])
}

func TestSave_EmptyWritesArray(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, nil))
	data, err := os.ReadFile(filepath.Join(dir, FeatureListFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
