package imageprocessor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuningFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultTuningIsValid(t *testing.T) {
	assert.NoError(t, DefaultTuning().Validate())
}

func TestLoadTuningEmptyPathReturnsDefaults(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestLoadTuningOverridesOnlyNamedKeys(t *testing.T) {
	path := writeTuningFile(t, `
max_features = 500
bonus_multiplier = 1.1

[rendered]
ratio_threshold = 0.7
`)

	tuning, err := LoadTuning(path)
	require.NoError(t, err)

	defaults := DefaultTuning()
	assert.Equal(t, 500, tuning.MaxFeatures)
	assert.InDelta(t, 1.1, tuning.BonusMultiplier, 1e-9)
	assert.InDelta(t, 0.7, tuning.Rendered.RatioThreshold, 1e-9)

	assert.Equal(t, defaults.Rendered.MaxDistance, tuning.Rendered.MaxDistance)
	assert.Equal(t, defaults.Photographed, tuning.Photographed)
	assert.Equal(t, defaults.MedianKernel, tuning.MedianKernel)
}

func TestLoadTuningRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"even median kernel":  "median_kernel = 4",
		"single neighbour":    "k_neighbours = 1",
		"flat scale factor":   "scale_factor = 1.0",
		"zero morph kernel":   "[photographed]\nmorph_kernel = 0",
		"malformed document":  "max_features = ",
		"wrong value type":    `max_features = "many"`,
		"even denoise window": "denoise_search = 20",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTuning(writeTuningFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadTuningMissingFile(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestBranchSelection(t *testing.T) {
	tuning := DefaultTuning()

	assert.Equal(t, tuning.Rendered, tuning.Branch(Rendered))
	assert.Equal(t, tuning.Photographed, tuning.Branch(Photographed))

	assert.Equal(t, tuning.Rendered, tuning.PairBranch(Rendered, Rendered))
	assert.Equal(t, tuning.Photographed, tuning.PairBranch(Rendered, Photographed))
	assert.Equal(t, tuning.Photographed, tuning.PairBranch(Photographed, Rendered))
}
