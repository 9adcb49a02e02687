package config

// legacyNoCFOPenalty is applied to upgraded v1 bundles, which had no
// separate no-CFO multiplier.
const legacyNoCFOPenalty = 1.5

// BundleV1 is the schema_version 1 bundle. It predates the noise curve:
// perception noise was a single linear range from noise_range at skill 0
// down to noise_floor at skill 100.
type BundleV1 struct {
	SchemaVersion int          `mapstructure:"schema_version"`
	Economy       Economy      `mapstructure:"economy"`
	States        []State      `mapstructure:"states"`
	Lines         []Line       `mapstructure:"lines"`
	Tiers         []Tier       `mapstructure:"tiers"`
	Demand        Demand       `mapstructure:"demand"`
	Claims        Claims       `mapstructure:"claims"`
	Catastrophe   Catastrophe  `mapstructure:"catastrophe"`
	Investment    InvestmentV1 `mapstructure:"investment"`
	Compliance    Compliance   `mapstructure:"compliance"`
	Expansion     Expansion    `mapstructure:"expansion"`
	Staffing      Staffing     `mapstructure:"staffing"`
}

// InvestmentV1 is the v1 investment section.
type InvestmentV1 struct {
	MaxAdjustment float64     `mapstructure:"max_adjustment"`
	NoiseRange    float64     `mapstructure:"noise_range"`
	NoiseFloor    float64     `mapstructure:"noise_floor"`
	Returns       Returns     `mapstructure:"returns"`
	Liquidation   Liquidation `mapstructure:"liquidation"`
	Buckets       []Bucket    `mapstructure:"buckets"`
}

// Upgrade converts a v1 bundle to the current schema. The linear noise
// range becomes a curve with exponent 1.
func (o BundleV1) Upgrade() *Bundle {
	return &Bundle{
		SchemaVersion: SchemaVersion,
		Economy:       o.Economy,
		States:        o.States,
		Lines:         o.Lines,
		Tiers:         o.Tiers,
		Demand:        o.Demand,
		Claims:        o.Claims,
		Catastrophe:   o.Catastrophe,
		Investment: Investment{
			MaxAdjustment: o.Investment.MaxAdjustment,
			Noise: NoiseCurve{
				MaxFraction:  o.Investment.NoiseRange,
				MinFraction:  o.Investment.NoiseFloor,
				Exponent:     1,
				NoCFOPenalty: legacyNoCFOPenalty,
			},
			Returns:     o.Investment.Returns,
			Liquidation: o.Investment.Liquidation,
			Buckets:     o.Investment.Buckets,
		},
		Compliance: o.Compliance,
		Expansion:  o.Expansion,
		Staffing:   o.Staffing,
	}
}
