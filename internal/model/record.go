package model

import "time"

// CanonicalRecord is one version of the normalized, structured description of
// a business. Records are append-only: a new version is created only when the
// content fingerprint of the underlying raw listing changes, and versions for
// a business form a gapless sequence starting at 1.
type CanonicalRecord struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id"`
	Version     int    `json:"version"`
	AgentRunID  string `json:"agent_run_id"`
	ContentHash string `json:"content_hash"`

	Financials      *FinancialsDomain `json:"financials,omitempty"`
	Product         *ProductDomain    `json:"product,omitempty"`
	Customers       *CustomersDomain  `json:"customers,omitempty"`
	Operations      *OperationsDomain `json:"operations,omitempty"`
	Technology      *TechnologyDomain `json:"technology,omitempty"`
	Growth          *GrowthDomain     `json:"growth,omitempty"`
	Risks           *RisksDomain      `json:"risks,omitempty"`
	Seller          *SellerDomain     `json:"seller,omitempty"`
	ConfidenceFlags *ConfidenceFlags  `json:"confidence_flags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FinancialsDomain holds financial metrics and valuation data. Every field is
// optional; nil means the listing did not state it.
type FinancialsDomain struct {
	AskingPriceUSD           *float64 `json:"asking_price_usd,omitempty"`
	MonthlyRevenueUSD        *float64 `json:"monthly_revenue_usd,omitempty"`
	AnnualRevenueUSD         *float64 `json:"annual_revenue_usd,omitempty"`
	MonthlyProfitUSD         *float64 `json:"monthly_profit_usd,omitempty"`
	AnnualProfitUSD          *float64 `json:"annual_profit_usd,omitempty"`
	ProfitMarginPercent      *float64 `json:"profit_margin_percent,omitempty"`
	RevenueGrowthRatePercent *float64 `json:"revenue_growth_rate_percent,omitempty"`
}

// ProductDomain holds product and business model details.
type ProductDomain struct {
	BusinessType    *string  `json:"business_type,omitempty"`
	Vertical        *string  `json:"vertical,omitempty"`
	ProductCategory *string  `json:"product_category,omitempty"`
	Features        []string `json:"features,omitempty"`
	TargetMarket    *string  `json:"target_market,omitempty"`
	BusinessModel   *string  `json:"business_model,omitempty"`
}

// CustomersDomain holds customer metrics and segmentation.
type CustomersDomain struct {
	TotalCustomers            *int     `json:"total_customers,omitempty"`
	MonthlyActiveUsers        *int     `json:"monthly_active_users,omitempty"`
	PayingCustomers           *int     `json:"paying_customers,omitempty"`
	ChurnRatePercent          *float64 `json:"churn_rate_percent,omitempty"`
	CustomerConcentrationRisk *string  `json:"customer_concentration_risk,omitempty"`
	CustomerSegments          []string `json:"customer_segments,omitempty"`
}

// OperationsDomain holds operational details and requirements.
type OperationsDomain struct {
	OwnerHoursPerWeek  *int     `json:"owner_hours_per_week,omitempty"`
	FullTimeEmployees  *int     `json:"full_time_employees,omitempty"`
	PartTimeEmployees  *int     `json:"part_time_employees,omitempty"`
	KeyDependencies    []string `json:"key_dependencies,omitempty"`
	KeyPersonRisk      *string  `json:"key_person_risk,omitempty"`
	ScalabilityFactors []string `json:"scalability_factors,omitempty"`
}

// TechnologyDomain holds the technology stack and infrastructure.
type TechnologyDomain struct {
	TechStack         []string `json:"tech_stack,omitempty"`
	HostingProvider   *string  `json:"hosting_provider,omitempty"`
	CodeOwnership     *string  `json:"code_ownership,omitempty"`
	APIDependencies   []string `json:"api_dependencies,omitempty"`
	DataStorage       *string  `json:"data_storage,omitempty"`
	DevelopmentStatus *string  `json:"development_status,omitempty"`
}

// GrowthDomain holds growth metrics and strategies.
type GrowthDomain struct {
	GrowthChannels           []string `json:"growth_channels,omitempty"`
	MonthlyGrowthRatePercent *float64 `json:"monthly_growth_rate_percent,omitempty"`
	MarketingSpendPercent    *float64 `json:"marketing_spend_percent,omitempty"`
	CustomerAcquisitionCost  *float64 `json:"customer_acquisition_cost,omitempty"`
	LifetimeValue            *float64 `json:"lifetime_value,omitempty"`
	GrowthTrends             *string  `json:"growth_trends,omitempty"`
}

// RisksDomain holds the risk assessment.
type RisksDomain struct {
	PlatformDependencyRisk *string `json:"platform_dependency_risk,omitempty"`
	RegulatoryRisk         *string `json:"regulatory_risk,omitempty"`
	IPRisk                 *string `json:"ip_risk,omitempty"`
	CompetitiveRisk        *string `json:"competitive_risk,omitempty"`
	TechnicalDebt          *string `json:"technical_debt,omitempty"`
	MarketRisk             *string `json:"market_risk,omitempty"`
}

// SellerDomain holds seller details and motivations.
type SellerDomain struct {
	Location            *string  `json:"location,omitempty"`
	SellingReason       *string  `json:"selling_reason,omitempty"`
	PostSaleInvolvement *string  `json:"post_sale_involvement,omitempty"`
	TransitionPeriod    *string  `json:"transition_period,omitempty"`
	SellerExperience    *string  `json:"seller_experience,omitempty"`
	BusinessAgeYears    *float64 `json:"business_age_years,omitempty"`
}

// ConfidenceFlags carries the extractor's uncertainty indicators. A nil
// ConfidenceFlags on a record means "no known issues": no penalties are
// applied and no flag-derived uncertainties are emitted. That permissive
// default is a deliberate policy, not an accident.
type ConfidenceFlags struct {
	MissingFinancialData     *bool    `json:"missing_financial_data,omitempty"`
	AssumedValues            []string `json:"assumed_values,omitempty"`
	ContradictoryInformation []string `json:"contradictory_information,omitempty"`
	RequiresFollowup         []string `json:"requires_followup,omitempty"`
	DataQualityScore         *int     `json:"data_quality_score,omitempty"`
	ConfidenceLevel          *string  `json:"confidence_level,omitempty"`
}

// MissingFinancials reports whether the missing-financial-data flag is set.
func (f *ConfidenceFlags) MissingFinancials() bool {
	return f != nil && f.MissingFinancialData != nil && *f.MissingFinancialData
}

// ContentDomains is the ordered list of the eight content domains checked by
// the uncertainty analyzer. ConfidenceFlags is not a content domain.
var ContentDomains = []string{
	"financials", "product", "customers", "operations",
	"technology", "growth", "risks", "seller",
}

// HasDomain reports whether the named content domain is present on the record.
func (r *CanonicalRecord) HasDomain(name string) bool {
	switch name {
	case "financials":
		return r.Financials != nil
	case "product":
		return r.Product != nil
	case "customers":
		return r.Customers != nil
	case "operations":
		return r.Operations != nil
	case "technology":
		return r.Technology != nil
	case "growth":
		return r.Growth != nil
	case "risks":
		return r.Risks != nil
	case "seller":
		return r.Seller != nil
	default:
		return false
	}
}
