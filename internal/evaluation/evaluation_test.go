package evaluation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
)

const sampleSpec = `# Todo App

Users must create todo items with a title. The system should display all todo items in a list.
Admins must export monthly reports. Settings page remains unchanged`

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Coverage: 0.5, Testability: 0.2, Granularity: 0.2, Independence: 0.105}.Validate())

	err := Weights{Coverage: 0.5, Testability: 0.5, Granularity: 0.5}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestSpecCoverage(t *testing.T) {
	p := DefaultPatterns()

	t.Run("empty inputs", func(t *testing.T) {
		score, _ := SpecCoverage(nil, sampleSpec, p)
		assert.Zero(t, score)
		score, _ = SpecCoverage([]ledger.Feature{{Description: "x"}}, "", p)
		assert.Zero(t, score)
	})

	t.Run("partial coverage", func(t *testing.T) {
		features := []ledger.Feature{
			{Description: "User can create todo items with a title"},
			{Description: "Display all todo items in a list view"},
		}
		score, uncovered := SpecCoverage(features, sampleSpec, p)
		assert.InDelta(t, 2.0/3.0, score, 1e-9)
		require.Len(t, uncovered, 1)
		assert.Contains(t, uncovered[0], "export monthly")
	})

	t.Run("header fallback", func(t *testing.T) {
		spec := "# Overview\n## Authentication flow\n## Tax"
		score, _ := SpecCoverage([]ledger.Feature{{Description: "authentication flow works"}}, spec, p)
		assert.InDelta(t, 0.5, score, 1e-9, "two headers qualify; one is covered")
	})

	t.Run("nothing extractable", func(t *testing.T) {
		score, _ := SpecCoverage([]ledger.Feature{{Description: "x"}}, "tiny", p)
		assert.Equal(t, 0.5, score)
	})
}

func TestTestability(t *testing.T) {
	p := DefaultPatterns()
	assert.Zero(t, Testability(nil, p))

	full := ledger.Feature{
		Description:    "Login",
		TestSteps:      []string{"Navigate to /login", "Enter credentials", "Click submit"},
		ExpectedResult: "Dashboard displays the user name",
	}
	assert.InDelta(t, 1.0, Testability([]ledger.Feature{full}, p), 1e-9)

	vagueSteps := ledger.Feature{TestSteps: []string{"login works", "it is fine"}, Description: "page shows a banner"}
	assert.InDelta(t, 0.5, Testability([]ledger.Feature{vagueSteps}, p), 1e-9)

	assert.Zero(t, Testability([]ledger.Feature{{Description: "nothing to verify"}}, p))
}

func TestGranularity(t *testing.T) {
	assert.Zero(t, Granularity(nil))

	ideal := ledger.Feature{
		Description: strings.Repeat("a", 150),
		TestSteps:   []string{"1", "2", "3"},
	}
	assert.InDelta(t, 1.0, Granularity([]ledger.Feature{ideal}), 1e-9, "bonus is clamped")

	tiny := ledger.Feature{Description: "short"}
	assert.InDelta(t, 0.5, Granularity([]ledger.Feature{tiny}), 1e-9)

	compound := ledger.Feature{
		Description: "Create and edit and delete and archive items in the main list view of the app",
		TestSteps:   []string{"1", "2"},
	}
	assert.InDelta(t, 0.4, Granularity([]ledger.Feature{compound}), 1e-9)
}

func TestIndependence(t *testing.T) {
	assert.Zero(t, Independence(nil))
	assert.Equal(t, 1.0, Independence([]ledger.Feature{{Description: "Standalone widget"}}))

	dependent := ledger.Feature{
		Description:  "After login, then open feature #3 settings",
		Dependencies: []int{1, 2},
	}
	// 2 deps (0.2) + "after" + "then" (0.2) + one feature ref (0.1)
	assert.InDelta(t, 0.5, Independence([]ledger.Feature{dependent}), 1e-9)
}

func TestEvaluate(t *testing.T) {
	features := []ledger.Feature{{Description: "User can create todo items with a title"}}
	r, err := Evaluate(features, sampleSpec, DefaultWeights(), nil)
	require.NoError(t, err)

	want := r.Coverage*0.4 + r.Testability*0.3 + r.Granularity*0.2 + r.Independence*0.1
	assert.InDelta(t, want, r.Aggregate, 1e-9)
	assert.Equal(t, 1, r.FeatureCount)
	assert.Equal(t, DefaultWeights(), r.Weights)

	_, err = Evaluate(features, sampleSpec, Weights{Coverage: 2}, nil)
	assert.Error(t, err)
}

func TestLoadAndEvaluate(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadAndEvaluate(dir, "", DefaultWeights())
	assert.ErrorIs(t, err, ErrNoFeatureList)

	require.NoError(t, ledger.Save(dir, []ledger.Feature{{Description: "User can create todo items with a title"}}))
	r, err := LoadAndEvaluate(dir, "", DefaultWeights())
	require.NoError(t, err)
	assert.Zero(t, r.Coverage, "no spec found")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ledger.SpecsDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ledger.SpecsDir, ledger.AppSpecFile), []byte(sampleSpec), 0o644))
	r, err = LoadAndEvaluate(dir, "", DefaultWeights())
	require.NoError(t, err)
	assert.Greater(t, r.Coverage, 0.0)

	custom := filepath.Join(dir, "custom.md")
	require.NoError(t, os.WriteFile(custom, []byte("tiny"), 0o644))
	r, err = LoadAndEvaluate(dir, custom, DefaultWeights())
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.Coverage)

	require.NoError(t, os.WriteFile(ledger.Path(dir), []byte("{broken"), 0o644))
	_, err = LoadAndEvaluate(dir, "", DefaultWeights())
	assert.ErrorIs(t, err, ErrNoFeatureList)
}
