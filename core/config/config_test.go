package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.ChunkSize)
	assert.Equal(t, 2048, cfg.NumFreqs)
	assert.True(t, cfg.Orthogonal)
	assert.True(t, cfg.SkipAllocFlags)
	assert.True(t, cfg.SqueezeQueries)
	assert.Equal(t, "PWGTP", cfg.WeightColumn)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
chunk_size: 1024
n_freqs: 128
seed: 7
skip_rff: true
skip_feats: [WKHP, SCHL]
subsets: "AGEP >= 65, SEX == 1"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, 128, cfg.NumFreqs)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.True(t, cfg.SkipRFF)
	assert.Equal(t, []string{"WKHP", "SCHL"}, cfg.SkipFeats)
	assert.Equal(t, "AGEP >= 65, SEX == 1", cfg.Subsets)
	// Untouched keys keep their defaults.
	assert.Equal(t, "PWGTP", cfg.WeightColumn)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: -1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
