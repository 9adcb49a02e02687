package claims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/rng"
)

var txAuto = model.MarketKey{State: "TX", Line: "auto"}

func exposure(policies int64, tier model.Tier) Exposure {
	return Exposure{CompanyID: "acme", Key: txAuto, Tier: tier, Policies: policies, MarketGenerosity: 0.5}
}

func gulfStorm() Catastrophe {
	return Catastrophe{Region: "gulf", States: []string{"TX", "LA", "FL"}, Lines: []string{"auto", "homeowners"}, Surge: 4}
}

func TestGenerate_ZeroPoliciesDuringCatastrophe(t *testing.T) {
	g := NewGenerator(config.Default())
	out, err := g.Generate(exposure(0, model.TierStandard), []Catastrophe{gulfStorm()}, rng.New(1, rng.Claims))
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Count)
	assert.True(t, out.Amount.IsZero())
}

func TestGenerate_NonNegativeAcrossDistributions(t *testing.T) {
	for _, freq := range []string{config.DistPoisson, config.DistNegativeBinomial} {
		for _, sev := range []string{config.DistLogNormal, config.DistPareto} {
			b := config.Default()
			b.Claims.FrequencyDistribution = freq
			b.Claims.SeverityDistribution = sev
			g := NewGenerator(b)
			for _, tier := range []model.Tier{model.TierBasic, model.TierStandard, model.TierPremium} {
				for seed := uint64(0); seed < 50; seed++ {
					out, err := g.Generate(exposure(int64(seed*37), tier), nil, rng.New(seed, rng.Claims))
					require.NoError(t, err)
					assert.GreaterOrEqual(t, out.Count, int64(0))
					assert.False(t, out.Amount.IsNegative(), "%s/%s seed %d", freq, sev, seed)
					if out.Count == 0 {
						assert.True(t, out.Amount.IsZero())
					}
				}
			}
		}
	}
}

func TestGenerate_MeanCountMatchesLambda(t *testing.T) {
	g := NewGenerator(config.Default())
	e := exposure(100_000, model.TierStandard)
	lambda, err := g.Frequency(e)
	require.NoError(t, err)

	counts := make([]float64, 2000)
	for i := range counts {
		out, err := g.Generate(e, nil, rng.New(uint64(i), rng.Claims))
		require.NoError(t, err)
		counts[i] = float64(out.Count)
	}
	assert.InEpsilon(t, lambda, stat.Mean(counts, nil), 0.02)
}

func TestFrequency_AdverseSelection(t *testing.T) {
	g := NewGenerator(config.Default())
	generous, err := g.Frequency(exposure(1000, model.TierPremium))
	require.NoError(t, err)
	lean, err := g.Frequency(exposure(1000, model.TierBasic))
	require.NoError(t, err)
	assert.Greater(t, generous, lean)

	// The same tier looks riskier when the rest of the market is stingier.
	e := exposure(1000, model.TierStandard)
	e.MarketGenerosity = 0.2
	stingyMarket, err := g.Frequency(e)
	require.NoError(t, err)
	base, err := g.Frequency(exposure(1000, model.TierStandard))
	require.NoError(t, err)
	assert.Greater(t, stingyMarket, base)
}

func TestMeanSeverity_MoralHazardAndStateCost(t *testing.T) {
	g := NewGenerator(config.Default())
	premium, err := g.MeanSeverity(exposure(1, model.TierPremium))
	require.NoError(t, err)
	basic, err := g.MeanSeverity(exposure(1, model.TierBasic))
	require.NoError(t, err)
	assert.Greater(t, premium, basic)

	ca := exposure(1, model.TierStandard)
	ca.Key = model.MarketKey{State: "CA", Line: "auto"}
	caSev, err := g.MeanSeverity(ca)
	require.NoError(t, err)
	txSev, err := g.MeanSeverity(exposure(1, model.TierStandard))
	require.NoError(t, err)
	assert.Greater(t, caSev, txSev)
}

func TestGenerate_CatastropheCorrelatesCompanies(t *testing.T) {
	g := NewGenerator(config.Default())
	cats := []Catastrophe{gulfStorm()}

	a := exposure(5000, model.TierStandard)
	b := exposure(5000, model.TierPremium)
	b.CompanyID = "globex"
	c := exposure(5000, model.TierStandard)
	c.Key = model.MarketKey{State: "NY", Line: "auto"}

	outA, err := g.Generate(a, cats, rng.New(9, rng.Claims, "acme"))
	require.NoError(t, err)
	outB, err := g.Generate(b, cats, rng.New(9, rng.Claims, "globex"))
	require.NoError(t, err)
	outC, err := g.Generate(c, cats, rng.New(9, rng.Claims, "acme"))
	require.NoError(t, err)

	assert.True(t, outA.Catastrophe)
	assert.True(t, outB.Catastrophe)
	assert.Equal(t, 4.0, outA.Surge)
	assert.False(t, outC.Catastrophe)
	assert.Equal(t, 1.0, outC.Surge)
}

func TestGenerate_CapsSeverityDraws(t *testing.T) {
	b := config.Default()
	b.Claims.MaxSeverityDraws = 10
	g := NewGenerator(b)
	out, err := g.Generate(exposure(500_000, model.TierStandard), nil, rng.New(3, rng.Claims))
	require.NoError(t, err)
	require.Greater(t, out.Count, int64(10))
	assert.True(t, out.Amount.IsPositive())
}

func TestGenerate_Reproducible(t *testing.T) {
	g := NewGenerator(config.Default())
	e := exposure(20_000, model.TierBasic)
	first, err := g.Generate(e, nil, rng.New(11, rng.Claims, "acme"))
	require.NoError(t, err)
	second, err := g.Generate(e, nil, rng.New(11, rng.Claims, "acme"))
	require.NoError(t, err)
	assert.Equal(t, first.Count, second.Count)
	assert.True(t, first.Amount.Equal(second.Amount))
}

func TestGenerate_InvalidParameters(t *testing.T) {
	g := NewGenerator(config.Default())
	tests := []struct {
		name   string
		mutate func(e *Exposure)
	}{
		{"unknown line", func(e *Exposure) { e.Key.Line = "marine" }},
		{"unknown state", func(e *Exposure) { e.Key.State = "ZZ" }},
		{"unknown tier", func(e *Exposure) { e.Tier = "gold" }},
		{"negative policies", func(e *Exposure) { e.Policies = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := exposure(100, model.TierStandard)
			tt.mutate(&e)
			_, err := g.Generate(e, nil, rng.New(1, rng.Claims))
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

// --- Catastrophes ---

func TestCatastrophes_ProbabilityBounds(t *testing.T) {
	b := config.Default()
	for i := range b.Catastrophe.Regions {
		b.Catastrophe.Regions[i].Probability = 1
	}
	g := NewGenerator(b)
	cats := g.Catastrophes(rng.New(5, rng.Catastrophe))
	require.Len(t, cats, len(b.Catastrophe.Regions))
	for i, c := range cats {
		region := b.Catastrophe.Regions[i]
		assert.Equal(t, region.Code, c.Region)
		assert.Equal(t, b.StatesInRegion(region.Code), c.States)
		assert.GreaterOrEqual(t, c.Surge, region.SurgeMin)
		assert.LessOrEqual(t, c.Surge, region.SurgeMax)
	}
	assert.InDelta(t, b.Catastrophe.StressPerEvent*float64(len(cats)), Stress(b, cats), 1e-12)

	for i := range b.Catastrophe.Regions {
		b.Catastrophe.Regions[i].Probability = 0
	}
	assert.Empty(t, NewGenerator(b).Catastrophes(rng.New(5, rng.Catastrophe)))
}

func TestSurgeFor_LineRestriction(t *testing.T) {
	storm := gulfStorm()
	surge, hit := SurgeFor(model.MarketKey{State: "LA", Line: "health"}, []Catastrophe{storm})
	assert.False(t, hit)
	assert.Equal(t, 1.0, surge)

	quake := Catastrophe{Region: "gulf", States: []string{"TX"}, Surge: 2}
	surge, hit = SurgeFor(txAuto, []Catastrophe{storm, quake})
	assert.True(t, hit)
	assert.Equal(t, 8.0, surge)
}
