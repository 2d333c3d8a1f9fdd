package model

// Category classifies a metric within the ESG taxonomy. The set is closed
// per entity type; section rule tables may only reference categories listed
// here.
type Category string

const (
	CategoryEmissions          Category = "emissions"
	CategoryEnergyUsage        Category = "energy_usage"
	CategoryWaterManagement    Category = "water_management"
	CategoryWasteManagement    Category = "waste_management"
	CategoryBoardComposition   Category = "board_composition"
	CategoryWorkforceDiversity Category = "workforce_diversity"
	CategoryCommunityEngage    Category = "community_engagement"
	CategoryFeeStructure       Category = "fee_structure"
	CategoryKPISummary         Category = "kpi_summary"
	CategoryBagasseUsage       Category = "bagasse_usage"
	CategoryCaneCrushed        Category = "cane_crushed"
)

var knownCategories = map[Category]bool{
	CategoryEmissions:          true,
	CategoryEnergyUsage:        true,
	CategoryWaterManagement:    true,
	CategoryWasteManagement:    true,
	CategoryBoardComposition:   true,
	CategoryWorkforceDiversity: true,
	CategoryCommunityEngage:    true,
	CategoryFeeStructure:       true,
	CategoryKPISummary:         true,
	CategoryBagasseUsage:       true,
	CategoryCaneCrushed:        true,
}

// Known reports whether c belongs to the closed category set.
func (c Category) Known() bool {
	return knownCategories[c]
}
