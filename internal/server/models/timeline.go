package models

// Timeline is the viewer read model of a share:
// category -> year -> quarter -> ordered project summaries.
//
//	{"holding":{"2024":{"1Q":[{...}]}}}
type Timeline map[string]map[string]map[string][]ProjectSummary

// Add appends p under (category, year, quarter), creating the levels as needed.
func (t Timeline) Add(category, year, quarter string, p ProjectSummary) {
	years, ok := t[category]
	if !ok {
		years = make(map[string]map[string][]ProjectSummary)
		t[category] = years
	}
	quarters, ok := years[year]
	if !ok {
		quarters = make(map[string][]ProjectSummary)
		years[year] = quarters
	}
	quarters[quarter] = append(quarters[quarter], p)
}
