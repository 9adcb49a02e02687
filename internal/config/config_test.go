package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestDefault_Valid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_ReportsOffendingKey(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Bundle)
		key    string
	}{
		{"schema version", func(b *Bundle) { b.SchemaVersion = 7 }, "schema_version"},
		{"weeks per year", func(b *Bundle) { b.Economy.WeeksPerYear = 0 }, "economy.weeks_per_year"},
		{"noise order", func(b *Bundle) { b.Investment.Noise.MinFraction = 0.5 }, "investment.noise"},
		{"panic mode", func(b *Bundle) { b.Investment.Liquidation.Panic.Mode = "sideways" }, "investment.liquidation.panic.mode"},
		{"frequency dist", func(b *Bundle) { b.Claims.FrequencyDistribution = "binomial" }, "claims.frequency_distribution"},
		{"pareto alpha", func(b *Bundle) { b.Lines[0].ParetoAlpha = 1 }, "lines[auto].pareto_alpha"},
		{"escalation order", func(b *Bundle) { b.Compliance.Penalty.Escalation = []float64{2, 1} }, "compliance.penalty.escalation"},
		{"unauthorized grace", func(b *Bundle) {
			b.Compliance.GraceEligible = append(b.Compliance.GraceEligible, model.ViolationOperatingUnauthorized)
		}, "compliance.grace_eligible"},
		{"missing tier", func(b *Bundle) { b.Tiers = b.Tiers[:2] }, "tiers"},
		{"transition sum", func(b *Bundle) { b.Economy.Phases[0].Transitions[0].Probability = 0.5 }, "economy.phases[expansion].transitions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Default()
			tt.mutate(b)
			err := b.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidBundle))
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestLoad_RoundTripsDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, Default()))

	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	want := Default()
	assert.Equal(t, want.SchemaVersion, b.SchemaVersion)
	assert.Equal(t, want.States, b.States)
	assert.Equal(t, want.Tiers, b.Tiers)
	assert.Equal(t, want.Demand, b.Demand)
	assert.Equal(t, want.Investment.Noise, b.Investment.Noise)
	assert.Equal(t, want.Investment.Liquidation, b.Investment.Liquidation)
	assert.Equal(t, want.Compliance.Penalty, b.Compliance.Penalty)
	assert.Equal(t, want.Compliance.GraceEligible, b.Compliance.GraceEligible)
}

func TestParse_UpgradesVersionOne(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, Default()))

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &raw))
	raw["schema_version"] = 1
	inv := raw["investment"].(map[string]any)
	delete(inv, "noise")
	inv["noise_range"] = 0.25
	inv["noise_floor"] = 0.05
	legacy, err := yaml.Marshal(raw)
	require.NoError(t, err)

	b, err := Parse(bytes.NewReader(legacy), "yaml")
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, b.SchemaVersion)
	assert.Equal(t, NoiseCurve{MaxFraction: 0.25, MinFraction: 0.05, Exponent: 1, NoCFOPenalty: legacyNoCFOPenalty}, b.Investment.Noise)
	assert.Equal(t, Default().Investment.Returns, b.Investment.Returns)
}

func TestParse_RejectsUnknownVersion(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("schema_version: 9\n")), "yaml")
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "schema_version", cfgErr.Key)

	_, err = Parse(bytes.NewReader([]byte("economy: {}\n")), "yaml")
	require.ErrorIs(t, err, ErrInvalidBundle)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	b, err := LoadOrDefault("  ")
	require.NoError(t, err)
	assert.Equal(t, Default(), b)
}

// --- Lookups ---

func TestEscalation_RepeatsLastFactor(t *testing.T) {
	b := Default()
	assert.Equal(t, 1.0, b.Escalation(1))
	assert.Equal(t, 1.5, b.Escalation(2))
	assert.Equal(t, 3.0, b.Escalation(4))
	assert.Equal(t, 3.0, b.Escalation(9))
}

func TestGraceEligible_NeverForUnauthorized(t *testing.T) {
	b := Default()
	b.Compliance.GraceEligible = model.ViolationTypes
	assert.False(t, b.GraceEligible(model.ViolationOperatingUnauthorized))
	assert.True(t, b.GraceEligible(model.ViolationLateFiling))
}

func TestMinimumCapital(t *testing.T) {
	b := Default()
	floor := b.MinimumCapital(decimalFromInt(1_000_000))
	assert.Equal(t, "1000000", floor.String())
	byPremium := b.MinimumCapital(decimalFromInt(20_000_000))
	assert.Equal(t, "4000000", byPremium.String())
}

func TestTierPermitted(t *testing.T) {
	b := Default()
	assert.False(t, b.TierPermitted(RegulationStrict, model.TierBasic))
	assert.True(t, b.TierPermitted(RegulationStrict, model.TierPremium))
	assert.True(t, b.TierPermitted(RegulationLight, model.TierBasic))
}

func TestBasePrice(t *testing.T) {
	b := Default()
	p, ok := b.BasePrice("CA", "auto")
	require.True(t, ok)
	assert.Equal(t, "1500", p.String())
	_, ok = b.BasePrice("ZZ", "auto")
	assert.False(t, ok)
}

func TestLoadRuntime_Defaults(t *testing.T) {
	t.Setenv("TURN_BUDGET", "not-a-duration")
	t.Setenv("TURN_PARALLELISM", "4")
	t.Setenv("SEMESTER_SEED", "42")
	rt := LoadRuntime()
	assert.Equal(t, 15*time.Minute, rt.TurnBudget)
	assert.Equal(t, 4, rt.TurnParallelism)
	assert.Equal(t, uint64(42), rt.SemesterSeed)
	assert.Equal(t, []string{"*"}, rt.AllowedOrigins)
}

func TestLoadRuntime_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://game.example.edu , ,https://admin.example.edu")
	rt := LoadRuntime()
	assert.Equal(t, []string{"https://game.example.edu", "https://admin.example.edu"}, rt.AllowedOrigins)
}
