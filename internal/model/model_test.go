package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestParseMarketKey_Valid(t *testing.T) {
	k, err := ParseMarketKey("TX-auto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.State != "TX" || k.Line != "auto" {
		t.Errorf("expected TX/auto, got %s/%s", k.State, k.Line)
	}
	if k.String() != "TX-auto" {
		t.Errorf("expected round trip, got %s", k)
	}

	k, err = ParseMarketKey(" CA-commercial_property ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Line != "commercial_property" {
		t.Errorf("expected commercial_property, got %s", k.Line)
	}
}

func TestParseMarketKey_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"TX",
		"TX-",
		"-auto",
		"tx-auto",   // lower-case state
		"TEX-auto",  // three-letter state
		"TX-Auto",   // upper-case line
		"TX-auto-1", // trailing segment
	}
	for _, key := range tests {
		_, err := ParseMarketKey(key)
		if err == nil {
			t.Errorf("expected error for key %q", key)
			continue
		}
		if !errors.Is(err, ErrInvalidMarketKey) {
			t.Errorf("expected ErrInvalidMarketKey for %q, got %v", key, err)
		}
	}
}

func TestMarketKey_Less(t *testing.T) {
	a := MarketKey{State: "CA", Line: "health"}
	b := MarketKey{State: "TX", Line: "auto"}
	c := MarketKey{State: "TX", Line: "homeowners"}
	if !a.Less(b) || !b.Less(c) || c.Less(a) || b.Less(b) {
		t.Error("keys should order by state, then line")
	}
}

func TestProduct_Price(t *testing.T) {
	p := Product{BasePrice: d(1200), PriceMultiplier: 1.15}
	if !p.Price().Equal(d(1380)) {
		t.Errorf("expected 1380, got %s", p.Price())
	}
}

func TestCompanyState_CloneIsDeep(t *testing.T) {
	c := &CompanyState{
		ID:                "acme",
		Cash:              d(100),
		Portfolio:         Portfolio{Value: d(900)},
		Products:          []Product{{State: "TX", Line: "auto", PriceMultiplier: 1}},
		Authorizations:    map[string]int{"TX": 0},
		PendingExpansions: []PendingExpansion{{State: "LA", SubmittedTurn: 2}},
		Staff:             map[Role]int{RoleCFO: 50},
		CEO:               map[string]int{AttrLeadership: 60},
		Compliance: ComplianceHistory{
			Filings:    map[string]int{"TX": 1},
			Violations: map[ViolationType]int{},
			GraceFlags: map[ViolationType]bool{},
		},
	}
	cp := c.Clone()
	cp.Products[0].PriceMultiplier = 2
	cp.Authorizations["FL"] = 3
	cp.PendingExpansions[0].State = "NV"
	cp.Staff[RoleCFO] = 99
	cp.CEO[AttrLeadership] = 1
	cp.Compliance.Filings["TX"] = 9

	if c.Products[0].PriceMultiplier != 1 {
		t.Error("products shared with clone")
	}
	if c.Authorized("FL") {
		t.Error("authorizations shared with clone")
	}
	if c.PendingExpansions[0].State != "LA" {
		t.Error("pending expansions shared with clone")
	}
	if c.Staff[RoleCFO] != 50 || c.CEO[AttrLeadership] != 60 {
		t.Error("staff or CEO shared with clone")
	}
	if c.Compliance.Filings["TX"] != 1 {
		t.Error("compliance history shared with clone")
	}
	if !cp.Capital().Equal(d(1000)) {
		t.Errorf("expected capital 1000, got %s", cp.Capital())
	}
}

func TestCompanyState_SortProducts(t *testing.T) {
	c := &CompanyState{Products: []Product{
		{State: "TX", Line: "health"},
		{State: "CA", Line: "auto"},
		{State: "TX", Line: "auto"},
	}}
	c.SortProducts()
	want := []string{"CA-auto", "TX-auto", "TX-health"}
	for i, p := range c.Products {
		if p.Key().String() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.Key())
		}
	}
	if c.Product(MarketKey{State: "TX", Line: "auto"}) != &c.Products[1] {
		t.Error("Product should point into the slice")
	}
}

func TestNoChangeDecision(t *testing.T) {
	c := &CompanyState{
		ID:        "acme",
		Products:  []Product{{State: "TX", Line: "auto", PriceMultiplier: 1.2}},
		Portfolio: Portfolio{Target: Characteristics{Risk: 30, Liquidity: 70}},
	}
	dec := NoChangeDecision(c, 4)
	if dec.CompanyID != "acme" || dec.Turn != 4 {
		t.Errorf("unexpected header %s/%d", dec.CompanyID, dec.Turn)
	}
	if len(dec.Pricing) != 1 || dec.Pricing[0].Multiplier != 1.2 {
		t.Errorf("expected current multiplier kept, got %+v", dec.Pricing)
	}
	if dec.PortfolioTarget == nil || *dec.PortfolioTarget != c.Portfolio.Target {
		t.Error("expected current portfolio target kept")
	}
	if len(dec.Launches)+len(dec.Hires)+len(dec.Expansions)+len(dec.RateFilings) != 0 {
		t.Error("no-change decision must not launch, hire, expand or file")
	}
}

func TestCharacteristics_ValidAndClamp(t *testing.T) {
	c := Characteristics{Risk: -5, Duration: 50, Liquidity: 130, Credit: 0, Diversification: 100}
	if c.Valid() {
		t.Error("out-of-range sliders should be invalid")
	}
	clamped := c.Clamp()
	if !clamped.Valid() || clamped.Risk != 0 || clamped.Liquidity != 100 {
		t.Errorf("unexpected clamp result %+v", clamped)
	}
}
