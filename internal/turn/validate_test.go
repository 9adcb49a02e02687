package turn

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/expansion"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func fixture(id string) *model.CompanyState {
	mid := model.Characteristics{Risk: 40, Duration: 50, Liquidity: 60, Credit: 60, Diversification: 70}
	return &model.CompanyState{
		ID:        id,
		Name:      id + " mutual",
		HomeState: "TX",
		Cash:      d(2_000_000),
		Portfolio: model.Portfolio{Value: d(3_000_000), Target: mid, Actual: mid, Perceived: mid},
		Products: []model.Product{{
			State:            "TX",
			Line:             "auto",
			Tier:             model.TierStandard,
			BasePrice:        d(1200),
			PriceMultiplier:  1,
			ActivePolicies:   1000,
			CumulativeLosses: decimal.Zero,
			TenureTurns:      3,
			MarketShare:      0.05,
		}},
		Authorizations: map[string]int{"TX": 0},
		Staff:          map[model.Role]int{model.RoleCFO: 60, model.RoleCCO: 60},
		CEO:            map[string]int{model.AttrLeadership: 50, model.AttrMarketAcumen: 50},
		Compliance:     model.ComplianceHistory{Filings: map[string]int{"TX": 0}},
	}
}

func TestValidateDecision(t *testing.T) {
	b := config.Default()
	c := fixture("acme")
	c.PendingExpansions = []model.PendingExpansion{{State: "PA", SubmittedTurn: 1, Fee: d(200_000)}}
	bad := model.Characteristics{Risk: 120}

	tests := []struct {
		name  string
		d     model.Decision
		field string // empty means valid
	}{
		{"empty", model.Decision{}, ""},
		{"wrong company", model.Decision{CompanyID: "other"}, "company_id"},
		{"wrong turn", model.Decision{Turn: 9}, "turn"},
		{"reprice", model.Decision{Pricing: []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 1.4}}}, ""},
		{"price above band", model.Decision{Pricing: []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 2.5}}}, "pricing"},
		{"price no product", model.Decision{Pricing: []model.PriceChange{{State: "TX", Line: "health", Multiplier: 1}}}, "pricing"},
		{"priced twice", model.Decision{Pricing: []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 1}, {State: "TX", Line: "auto", Multiplier: 1.1}}}, "pricing"},
		{"unknown tier", model.Decision{TierSwitches: []model.TierSwitch{{State: "TX", Line: "auto", Tier: "gold"}}}, "tier_switches"},
		{"launch", model.Decision{Launches: []model.ProductLaunch{{State: "TX", Line: "health", Tier: model.TierBasic}}}, ""},
		{"launch unauthorized", model.Decision{Launches: []model.ProductLaunch{{State: "FL", Line: "auto", Tier: model.TierBasic}}}, "launches"},
		{"launch existing", model.Decision{Launches: []model.ProductLaunch{{State: "TX", Line: "auto", Tier: model.TierBasic}}}, "launches"},
		{"launch unknown line", model.Decision{Launches: []model.ProductLaunch{{State: "TX", Line: "pet", Tier: model.TierBasic}}}, "launches"},
		{"launch below band", model.Decision{Launches: []model.ProductLaunch{{State: "TX", Line: "health", Tier: model.TierBasic, Multiplier: 0.1}}}, "launches"},
		{"expand", model.Decision{Expansions: []string{"LA"}}, ""},
		{"expand authorized", model.Decision{Expansions: []string{"TX"}}, "expansions"},
		{"expand pending", model.Decision{Expansions: []string{"PA"}}, "expansions"},
		{"expand unknown", model.Decision{Expansions: []string{"ZZ"}}, "expansions"},
		{"hire", model.Decision{Hires: []model.Hire{{Role: model.RoleCUO, Skill: 80}}}, ""},
		{"hire skill", model.Decision{Hires: []model.Hire{{Role: model.RoleCUO, Skill: 101}}}, "hires"},
		{"hire role", model.Decision{Hires: []model.Hire{{Role: "CEO", Skill: 50}}}, "hires"},
		{"fire vacant", model.Decision{Fires: []model.Role{model.RoleCMO}}, "fires"},
		{"hire and fire", model.Decision{Fires: []model.Role{model.RoleCFO}, Hires: []model.Hire{{Role: model.RoleCFO, Skill: 90}}}, "fires"},
		{"filing unauthorized", model.Decision{RateFilings: []string{"FL"}}, "rate_filings"},
		{"portfolio", model.Decision{PortfolioTarget: &bad}, "portfolio_target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := tt.d
			if dec.CompanyID == "" {
				dec.CompanyID = "acme"
			}
			if dec.Turn == 0 {
				dec.Turn = 2
			}
			err := ValidateDecision(b, c, dec, 2)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDecision))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, "acme", ve.CompanyID)
		})
	}
}

func TestValidateDecision_NoChangeDefaultIsValid(t *testing.T) {
	b := config.Default()
	c := fixture("acme")
	assert.NoError(t, ValidateDecision(b, c, model.NoChangeDecision(c, 5), 5))
}

func TestApplyDecision(t *testing.T) {
	b := config.Default()
	c := fixture("acme")
	target := model.Characteristics{Risk: 10, Duration: 20, Liquidity: 90, Credit: 80, Diversification: 50}
	dec := model.Decision{
		CompanyID:       "acme",
		Turn:            3,
		Pricing:         []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 1.2}},
		Launches:        []model.ProductLaunch{{State: "TX", Line: "health", Tier: model.TierPremium}},
		Expansions:      []string{"LA"},
		Hires:           []model.Hire{{Role: model.RoleCUO, Skill: 75}},
		Fires:           []model.Role{model.RoleCCO},
		RateFilings:     []string{"TX"},
		PortfolioTarget: &target,
	}
	require.NoError(t, ValidateDecision(b, c, dec, 3))

	a := applyDecision(b, expansion.NewResolver(b), c, dec, 3)
	assert.Empty(t, a.Warnings)

	require.Len(t, c.Products, 2)
	assert.Equal(t, "auto", c.Products[0].Line)
	assert.Equal(t, 1.2, c.Products[0].PriceMultiplier)
	launched := c.Products[1]
	assert.Equal(t, "health", launched.Line)
	assert.Equal(t, 1.0, launched.PriceMultiplier)
	assert.Equal(t, 3, launched.LaunchedTurn)
	base, _ := b.BasePrice("TX", "health")
	assert.True(t, launched.BasePrice.Equal(base))

	_, hasCCO := c.Skill(model.RoleCCO)
	assert.False(t, hasCCO)
	skill, _ := c.Skill(model.RoleCUO)
	assert.Equal(t, 75, skill)

	fees := d(b.Staffing.HireFee).Add(b.ExpansionFee("LA"))
	assert.True(t, a.CapitalCalls.Equal(fees), a.CapitalCalls.String())
	assert.True(t, c.Cash.Equal(d(2_000_000).Sub(fees)), c.Cash.String())
	require.Len(t, c.PendingExpansions, 1)
	assert.Equal(t, 3, c.PendingExpansions[0].SubmittedTurn)

	assert.Equal(t, 3, c.Compliance.Filings["TX"])
	assert.Equal(t, target, c.Portfolio.Target)
}

func TestApplyDecision_UnfundedExpansionSkipped(t *testing.T) {
	b := config.Default()
	c := fixture("acme")
	c.Cash = d(10_000)
	dec := model.Decision{CompanyID: "acme", Turn: 1, Expansions: []string{"FL"}}

	a := applyDecision(b, expansion.NewResolver(b), c, dec, 1)
	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "expansion skipped")
	assert.Empty(t, c.PendingExpansions)
	assert.True(t, c.Cash.Equal(d(10_000)))
}

func TestLifecycle(t *testing.T) {
	lc := lifecycle{status: StatusPending}
	for _, s := range []Status{StatusValidating, StatusSimulating, StatusAggregating, StatusFinalized} {
		require.NoError(t, lc.advance(s))
	}
	assert.ErrorIs(t, lc.advance(StatusFailed), ErrInvalidTransition)

	skip := lifecycle{status: StatusPending}
	assert.ErrorIs(t, skip.advance(StatusSimulating), ErrInvalidTransition)

	back := lifecycle{status: StatusAggregating}
	assert.ErrorIs(t, back.advance(StatusSimulating), ErrInvalidTransition)

	fail := lifecycle{status: StatusSimulating}
	require.NoError(t, fail.advance(StatusFailed))
	assert.ErrorIs(t, fail.advance(StatusValidating), ErrInvalidTransition)
}
