package model

import "github.com/shopspring/decimal"

// Characteristics are the five portfolio sliders, each on a 0–100 scale.
type Characteristics struct {
	Risk            float64 `json:"risk"`
	Duration        float64 `json:"duration"`
	Liquidity       float64 `json:"liquidity"`
	Credit          float64 `json:"credit"`
	Diversification float64 `json:"diversification"`
}

// Values returns the sliders in canonical order.
func (c Characteristics) Values() [5]float64 {
	return [5]float64{c.Risk, c.Duration, c.Liquidity, c.Credit, c.Diversification}
}

// CharacteristicsFrom builds Characteristics from canonical-order values.
func CharacteristicsFrom(v [5]float64) Characteristics {
	return Characteristics{Risk: v[0], Duration: v[1], Liquidity: v[2], Credit: v[3], Diversification: v[4]}
}

// Clamp bounds every slider to [0, 100].
func (c Characteristics) Clamp() Characteristics {
	v := c.Values()
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
		}
		if v[i] > 100 {
			v[i] = 100
		}
	}
	return CharacteristicsFrom(v)
}

// Valid reports whether every slider lies within [0, 100].
func (c Characteristics) Valid() bool {
	for _, x := range c.Values() {
		if !(x >= 0 && x <= 100) {
			return false
		}
	}
	return true
}

// Portfolio holds a company's invested assets. Actual is ground truth;
// Perceived is what the CFO believes, redrawn every turn.
type Portfolio struct {
	Value           decimal.Decimal `json:"value"`
	Target          Characteristics `json:"target"`
	Actual          Characteristics `json:"actual"`
	Perceived       Characteristics `json:"perceived"`
	ExpectedReturn  float64         `json:"expected_return"`  // weekly, on actual characteristics
	PerceivedReturn float64         `json:"perceived_return"` // weekly, on perceived characteristics
	ActualReturn    float64         `json:"actual_return"`    // realised last turn
}

// LiquidationTrigger names the cause of a forced sale.
type LiquidationTrigger string

const (
	TriggerCatastropheShortfall LiquidationTrigger = "catastrophe_shortfall"
	TriggerCapitalCall          LiquidationTrigger = "capital_call"
	TriggerMarginCall           LiquidationTrigger = "margin_call"
)

// LiquidationResolution is the terminal state of a liquidation.
type LiquidationResolution string

const (
	ResolutionRaised    LiquidationResolution = "raised"
	ResolutionExhausted LiquidationResolution = "exhausted"
)

// LiquidationStep is one sale out of one asset bucket.
type LiquidationStep struct {
	Bucket             string          `json:"bucket"`
	BookValue          decimal.Decimal `json:"book_value"`
	Proceeds           decimal.Decimal `json:"proceeds"`
	Discount           float64         `json:"discount"` // 1 - proceeds/book
	TrueLiquidity      float64         `json:"true_liquidity"`
	PerceivedLiquidity float64         `json:"perceived_liquidity"`
}

// LiquidationEvent is the immutable record of one forced liquidation.
type LiquidationEvent struct {
	ID           string                `json:"id"`
	CompanyID    string                `json:"company_id"`
	Turn         int                   `json:"turn"`
	Trigger      LiquidationTrigger    `json:"trigger"`
	Required     decimal.Decimal       `json:"required"`
	Steps        []LiquidationStep     `json:"steps"`
	Raised       decimal.Decimal       `json:"raised"`
	RealizedCost decimal.Decimal       `json:"realized_cost"`
	OptimalCost  decimal.Decimal       `json:"optimal_cost"`
	Markdown     decimal.Decimal       `json:"markdown"` // permanent loss on unsold holdings
	Resolution   LiquidationResolution `json:"resolution"`
	SkillUsed    int                   `json:"skill_used"`
	Stress       float64               `json:"stress"`
}
