package config

import "github.com/cellis212/insurance-manager-sub000/internal/model"

// Default returns a complete, valid bundle. Each call returns a fresh value
// the caller may modify.
func Default() *Bundle {
	return &Bundle{
		SchemaVersion: SchemaVersion,
		Economy: Economy{
			WeeksPerYear:           52,
			OperatingExpenseRatio:  0.25,
			FixedExpensePerProduct: 2000,
			MinCapitalRatio:        0.20,
			MinCapitalFloor:        1_000_000,
			TargetCashRatio:        0.15,
			Phases: []Phase{
				{Name: model.PhaseExpansion, DemandMultiplier: 1.05, Stress: 0.05, ReturnShift: 0.0002,
					Transitions: []Transition{{To: model.PhaseExpansion, Probability: 0.85}, {To: model.PhasePeak, Probability: 0.15}}},
				{Name: model.PhasePeak, DemandMultiplier: 1.0, Stress: 0.10,
					Transitions: []Transition{{To: model.PhasePeak, Probability: 0.70}, {To: model.PhaseContraction, Probability: 0.30}}},
				{Name: model.PhaseContraction, DemandMultiplier: 0.92, Stress: 0.35, ReturnShift: -0.0004,
					Transitions: []Transition{{To: model.PhaseContraction, Probability: 0.75}, {To: model.PhaseTrough, Probability: 0.25}}},
				{Name: model.PhaseTrough, DemandMultiplier: 0.88, Stress: 0.50, ReturnShift: -0.0002,
					Transitions: []Transition{{To: model.PhaseTrough, Probability: 0.60}, {To: model.PhaseExpansion, Probability: 0.40}}},
			},
		},
		States: []State{
			{Code: "TX", Name: "Texas", Regulation: RegulationStandard, Region: "gulf", CostModifier: 1.00, DemandFactor: 1.2, ExpansionFee: 250_000},
			{Code: "LA", Name: "Louisiana", Regulation: RegulationLight, Region: "gulf", CostModifier: 1.05, DemandFactor: 0.6, ExpansionFee: 150_000},
			{Code: "FL", Name: "Florida", Regulation: RegulationStrict, Region: "gulf", CostModifier: 1.15, DemandFactor: 1.3, ExpansionFee: 400_000},
			{Code: "CA", Name: "California", Regulation: RegulationStrict, Region: "west", CostModifier: 1.25, DemandFactor: 1.5, ExpansionFee: 400_000},
			{Code: "NV", Name: "Nevada", Regulation: RegulationLight, Region: "west", CostModifier: 0.95, DemandFactor: 0.5, ExpansionFee: 150_000},
			{Code: "OR", Name: "Oregon", Regulation: RegulationStandard, Region: "west", CostModifier: 1.00, DemandFactor: 0.6, ExpansionFee: 200_000},
			{Code: "NY", Name: "New York", Regulation: RegulationStrict, Region: "northeast", CostModifier: 1.20, DemandFactor: 1.4, ExpansionFee: 400_000},
			{Code: "PA", Name: "Pennsylvania", Regulation: RegulationStandard, Region: "northeast", CostModifier: 1.00, DemandFactor: 1.0, ExpansionFee: 200_000},
			{Code: "OH", Name: "Ohio", Regulation: RegulationLight, Region: "midwest", CostModifier: 0.90, DemandFactor: 0.9, ExpansionFee: 150_000},
			{Code: "IL", Name: "Illinois", Regulation: RegulationStandard, Region: "midwest", CostModifier: 1.00, DemandFactor: 1.1, ExpansionFee: 200_000},
		},
		Lines: []Line{
			{Code: "auto", BaseDemand: 40_000, ReferencePrice: 1200, BaseFrequency: 0.12, BaseSeverity: 6000, SeveritySigma: 1.0, ParetoAlpha: 2.5, Dispersion: 8},
			{Code: "homeowners", BaseDemand: 25_000, ReferencePrice: 1500, BaseFrequency: 0.06, BaseSeverity: 12000, SeveritySigma: 1.2, ParetoAlpha: 2.2, Dispersion: 5},
			{Code: "health", BaseDemand: 30_000, ReferencePrice: 4800, BaseFrequency: 2.0, BaseSeverity: 1500, SeveritySigma: 1.3, ParetoAlpha: 2.8, Dispersion: 12},
		},
		Tiers: []Tier{
			{Name: model.TierBasic, ElasticityMultiplier: 1.3, VolumeMultiplier: 1.15, SelectionMultiplier: 0.9, Generosity: 0.3, CostSharing: 0.35},
			{Name: model.TierStandard, ElasticityMultiplier: 1.0, VolumeMultiplier: 1.0, SelectionMultiplier: 1.0, Generosity: 0.5, CostSharing: 0.20},
			{Name: model.TierPremium, ElasticityMultiplier: 0.75, VolumeMultiplier: 0.85, SelectionMultiplier: 1.1, Generosity: 0.8, CostSharing: 0.05},
		},
		Demand: Demand{
			ElasticityExponent: 2.0,
			OutsideUtility:     0.5,
			TenureBonus:        0.05,
			TenureCap:          10,
			NewEntrantPenalty:  0.4,
			BrandWeight:        0.3,
			MinMultiplier:      0.5,
			MaxMultiplier:      2.0,
		},
		Claims: Claims{
			FrequencyDistribution:    DistPoisson,
			SeverityDistribution:     DistLogNormal,
			AdverseSelectionStrength: 0.8,
			MoralHazardStrength:      0.3,
			MaxSeverityDraws:         5000,
		},
		Catastrophe: Catastrophe{
			StressPerEvent: 0.15,
			Regions: []Region{
				{Code: "gulf", Probability: 0.04, SurgeMin: 2.0, SurgeMax: 6.0, Lines: []string{"auto", "homeowners"}},
				{Code: "west", Probability: 0.02, SurgeMin: 1.5, SurgeMax: 4.0, Lines: []string{"homeowners"}},
				{Code: "northeast", Probability: 0.015, SurgeMin: 1.5, SurgeMax: 3.0},
				{Code: "midwest", Probability: 0.03, SurgeMin: 1.5, SurgeMax: 3.5, Lines: []string{"auto", "homeowners"}},
			},
		},
		Investment: Investment{
			MaxAdjustment: 10,
			Noise: NoiseCurve{
				MaxFraction:  0.30,
				MinFraction:  0.03,
				Exponent:     1.5,
				NoCFOPenalty: 1.25,
			},
			Returns: Returns{
				BaseWeekly:             0.0006,
				RiskPremium:            0.0012,
				TermPremium:            0.0003,
				CreditSpread:           0.0004,
				LiquidityCost:          0.0003,
				BaseVolatility:         0.002,
				RiskVolatility:         0.018,
				DiversificationBenefit: 0.5,
				MarginCallDrawdown:     0.03,
				MarginCallRatio:        0.5,
			},
			Liquidation: Liquidation{
				LowSkillThreshold:          30,
				HighSkillThreshold:         80,
				ImpactCoefficient:          0.08,
				InformationCoefficient:     0.04,
				ChunkFraction:              0.25,
				PerceptionErrorCoefficient: 0.10,
				MaxDiscount:                0.60,
				Panic: Panic{
					Mode:         PanicAdditive,
					Discount:     0.15,
					Urgency:      1.0,
					UrgencyDecay: 0.10,
				},
			},
			Buckets: []Bucket{
				{Name: "cash_equivalents", Liquidity: 0.98, Base: 0.10, LiquidityLoading: 0.25, RiskLoading: -0.05},
				{Name: "treasuries", Liquidity: 0.92, Base: 0.20, DurationLoading: 0.15, CreditLoading: -0.10, RiskLoading: -0.05},
				{Name: "equities", Liquidity: 0.75, Base: 0.15, RiskLoading: 0.30, DiversificationLoading: 0.05},
				{Name: "corporate_bonds", Liquidity: 0.55, Base: 0.20, CreditLoading: 0.20, DurationLoading: 0.05},
				{Name: "real_estate", Liquidity: 0.15, Base: 0.10, LiquidityLoading: -0.10, RiskLoading: 0.10, DiversificationLoading: 0.10},
			},
		},
		Compliance: Compliance{
			Weights: ComponentWeights{Filing: 0.20, Capital: 0.25, Product: 0.20, Certification: 0.15, Authorization: 0.20},
			FilingIntervals: []FilingInterval{
				{Regulation: RegulationLight, Turns: 26},
				{Regulation: RegulationStandard, Turns: 13},
				{Regulation: RegulationStrict, Turns: 8},
			},
			CapitalZeroRatio: 1.0,
			CapitalFullRatio: 2.0,
			CapitalFinding:   1.25,
			DisallowedTiers: []RegulationTiers{
				{Regulation: RegulationStrict, Tiers: []model.Tier{model.TierBasic}},
			},
			Certifications: []Certification{
				{Name: "actuarial_opinion", Role: model.RoleChiefActuary, MinSkill: 40},
				{Name: "compliance_program", Role: model.RoleCCO, MinSkill: 30},
			},
			Audit: AuditCurve{
				MinProbability:  0.01,
				MaxProbability:  0.50,
				Exponent:        1.5,
				CCOMaxReduction: 0.70,
			},
			Penalty: PenaltySchedule{
				BaseRate:         0.01,
				UnauthorizedRate: 0.05,
				MinPenalty:       10_000,
				Escalation:       []float64{1.0, 1.5, 2.0, 3.0},
				CCOMaxMitigation: 0.30,
			},
			GraceEligible: []model.ViolationType{
				model.ViolationLateFiling,
				model.ViolationCapitalInadequacy,
				model.ViolationProductNoncompliance,
				model.ViolationMissingCertification,
			},
		},
		Expansion: Expansion{
			HomeWeeks:          1,
			BaselineWeeks:      4,
			LightAdjustment:    -1,
			StandardAdjustment: 0,
			StrictAdjustment:   2,
			MinWeeks:           1,
			DefaultFee:         200_000,
		},
		Staffing: Staffing{
			HireFee:           50_000,
			SkillSalaryFactor: 40,
			Salaries: []Salary{
				{Role: model.RoleCUO, Weekly: 4000},
				{Role: model.RoleCFO, Weekly: 4500},
				{Role: model.RoleCMO, Weekly: 3500},
				{Role: model.RoleCCO, Weekly: 3500},
				{Role: model.RoleCTO, Weekly: 4000},
				{Role: model.RoleCRO, Weekly: 3500},
				{Role: model.RoleCAO, Weekly: 3000},
				{Role: model.RoleChiefActuary, Weekly: 4500},
			},
		},
	}
}
