package intelligence

import (
	"context"
	"fmt"
	"math"
	"sort"
)

const (
	// InsightOccupancy is the group size used for demand profiling.
	InsightOccupancy = 10
	HighDemandKg     = 2.0
	LowDemandKg      = 0.5
)

type PreferenceProfile struct {
	Code           string             `json:"code"`
	Name           string             `json:"name"`
	Preferences    map[string]float64 `json:"preferences"`
	BreakfastStyle string             `json:"breakfast_style"`
	HighDemand     []string           `json:"high_demand_ingredients"`
	LowDemand      []string           `json:"low_demand_ingredients"`
}

type Compatibility struct {
	Pair   string  `json:"pair"`
	Codes  string  `json:"codes"`
	Score  float64 `json:"compatibility_score"`
	Status string  `json:"status"`
	Note   string  `json:"note"`
}

type DemandingNationality struct {
	Name                 string  `json:"name"`
	TotalPreferenceScore float64 `json:"total_preference_score,omitempty"`
	Note                 string  `json:"note,omitempty"`
}

type CulturalInsightSummary struct {
	MostCompatible       *Compatibility        `json:"most_compatible_pair"`
	LeastCompatible      *Compatibility        `json:"least_compatible_pair"`
	MostDemanding        *DemandingNationality `json:"most_demanding_nationality"`
	LeastDemanding       *DemandingNationality `json:"least_demanding_nationality"`
	DiversityRequirement string                `json:"diversity_requirement"`
}

type CulturalInsights struct {
	PreferenceMatrix map[string]PreferenceProfile `json:"preference_matrix"`
	Compatibility    []Compatibility              `json:"compatibility_analysis"`
	Insights         CulturalInsightSummary       `json:"insights"`
	Recommendations  []string                     `json:"recommendations"`
}

// CompatibilityScore is 100 − mean(|Δbread|, |Δdairy|, |Δspice|) × 50.
func CompatibilityScore(bread, dairy, spice float64) float64 {
	return 100 - (math.Abs(bread)+math.Abs(dairy)+math.Abs(spice))/3*50
}

func compatibilityStatus(score float64) (string, string) {
	switch {
	case score > 80:
		return "HIGH", "Similar preferences, easy to accommodate"
	case score > 60:
		return "MEDIUM", "Moderate differences, manageable with variety"
	default:
		return "LOW", "Significant differences, requires diverse menu"
	}
}

// CulturalInsights profiles every nationality and scores every pair.
func (s *Service) CulturalInsights(ctx context.Context) (*CulturalInsights, error) {
	nats, err := s.nationalities(ctx)
	if err != nil {
		return nil, err
	}
	ings, err := s.forecast.Ingredients(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()

	out := &CulturalInsights{
		PreferenceMatrix: make(map[string]PreferenceProfile, len(nats)),
		Compatibility:    []Compatibility{},
		Recommendations:  []string{},
	}

	batch := s.forecast.Batch()
	for i := range nats {
		nat := &nats[i]
		p := PreferenceProfile{
			Code: nat.Code,
			Name: nat.Name,
			Preferences: map[string]float64{
				"bread": nat.BreadPreference,
				"dairy": nat.DairyPreference,
				"spice": nat.SpiceTolerance,
			},
			BreakfastStyle: nat.BreakfastStyle,
			HighDemand:     []string{},
			LowDemand:      []string{},
		}
		for j := range ings {
			d, err := batch.Demand(ctx, &ings[j], nat, InsightOccupancy, today)
			if err != nil {
				return nil, err
			}
			switch {
			case d > HighDemandKg:
				p.HighDemand = append(p.HighDemand, ings[j].Name)
			case d < LowDemandKg:
				p.LowDemand = append(p.LowDemand, ings[j].Name)
			}
		}
		out.PreferenceMatrix[nat.Code] = p
	}

	for i := 0; i < len(nats); i++ {
		for j := i + 1; j < len(nats); j++ {
			a, b := &nats[i], &nats[j]
			score := CompatibilityScore(
				a.BreadPreference-b.BreadPreference,
				a.DairyPreference-b.DairyPreference,
				a.SpiceTolerance-b.SpiceTolerance,
			)
			status, note := compatibilityStatus(score)
			out.Compatibility = append(out.Compatibility, Compatibility{
				Pair:   a.Name + " + " + b.Name,
				Codes:  a.Code + "-" + b.Code,
				Score:  round1(score),
				Status: status,
				Note:   note,
			})
		}
	}
	sort.SliceStable(out.Compatibility, func(i, j int) bool {
		return out.Compatibility[i].Score > out.Compatibility[j].Score
	})

	sum := &out.Insights
	sum.DiversityRequirement = "MEDIUM"
	if n := len(out.Compatibility); n > 0 {
		most, least := out.Compatibility[0], out.Compatibility[n-1]
		sum.MostCompatible, sum.LeastCompatible = &most, &least
		if least.Score < 60 {
			sum.DiversityRequirement = "HIGH"
		}
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("When hosting %s, you can use a simpler menu", most.Pair),
			fmt.Sprintf("When hosting %s, prepare diverse options", least.Pair),
		)
	}

	if len(nats) > 0 {
		most, least := &nats[0], &nats[0]
		leastDist := neutralDistance(least.BreadPreference, least.DairyPreference, least.SpiceTolerance)
		for i := 1; i < len(nats); i++ {
			n := &nats[i]
			if n.PreferenceSum() > most.PreferenceSum() {
				most = n
			}
			if d := neutralDistance(n.BreadPreference, n.DairyPreference, n.SpiceTolerance); d < leastDist {
				least, leastDist = n, d
			}
		}
		sum.MostDemanding = &DemandingNationality{
			Name:                 most.Name,
			TotalPreferenceScore: math.Round(most.PreferenceSum()*100) / 100,
		}
		sum.LeastDemanding = &DemandingNationality{
			Name: least.Name,
			Note: "Closest to neutral preferences, easiest to accommodate",
		}
		out.Recommendations = append(out.Recommendations, fmt.Sprintf(
			"%s guests require %d%% more bread than average",
			most.Name, int(math.Round((most.BreadPreference-1.0)*100)),
		))
	}
	return out, nil
}

func neutralDistance(bread, dairy, spice float64) float64 {
	return math.Abs(bread-1) + math.Abs(dairy-1) + math.Abs(spice-1)
}
