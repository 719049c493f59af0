package markup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMappingConfig_IsValid(t *testing.T) {
	cfg := DefaultMappingConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Location", cfg.DefaultIcon)
	assert.Equal(t, DefaultFuzzyThreshold, cfg.FuzzyThreshold)
	assert.Equal(t, DefaultPrecision, cfg.Precision)
	assert.NotEmpty(t, cfg.SymbolMap)
	assert.NotEmpty(t, cfg.KeywordRules)
	assert.NotEmpty(t, cfg.Icons)
}

func TestMappingConfig_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")

	cfg := DefaultMappingConfig()
	cfg.FuzzyThreshold = 0.7
	cfg.SymbolMap["my-symbol"] = "Sasquatch"
	require.NoError(t, SaveMappingConfig(path, cfg))

	loaded, err := LoadMappingConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.7, loaded.FuzzyThreshold)
	assert.Equal(t, "Sasquatch", loaded.SymbolMap["my-symbol"])
	assert.Equal(t, cfg.DefaultIcon, loaded.DefaultIcon)
	assert.Equal(t, len(cfg.WaypointPalette.Colors), len(loaded.WaypointPalette.Colors))
	assert.Equal(t, len(cfg.TrackPalette.Colors), len(loaded.TrackPalette.Colors))
}

func TestLoadMappingConfig_MissingFile(t *testing.T) {
	_, err := LoadMappingConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestMappingConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MappingConfig)
	}{
		{"missing default icon", func(c *MappingConfig) { c.DefaultIcon = "" }},
		{"threshold above one", func(c *MappingConfig) { c.FuzzyThreshold = 1.5 }},
		{"threshold negative", func(c *MappingConfig) { c.FuzzyThreshold = -0.1 }},
		{"empty waypoint palette", func(c *MappingConfig) { c.WaypointPalette.Colors = nil }},
		{"bad palette default", func(c *MappingConfig) { c.TrackPalette.Default = "chartreuse" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMappingConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTargetIcons_FallsBackToTables(t *testing.T) {
	cfg := &MappingConfig{
		SymbolMap:    map[string]string{"a": "Camp", "b": "View"},
		KeywordRules: []KeywordRule{{Icon: "Hazard", Keywords: []string{"x"}}},
	}
	icons := cfg.TargetIcons()
	assert.Equal(t, []string{"Camp", "Hazard", "View"}, icons)
}
