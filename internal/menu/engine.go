// Package menu builds seasonal menus from traditional dishes and attaches a
// plain-language justification to every recommendation.
package menu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"gorm.io/gorm"
)

const (
	// AffordableUnitCost is the unit cost under which an ingredient counts as cheap.
	AffordableUnitCost = 5.0
	// AffordableShare of cheap ingredients makes a dish cost-effective.
	AffordableShare = 0.7
	// HighlightSeasonScore marks seasonal ingredients worth naming.
	HighlightSeasonScore = 0.8
	// PreferenceMatch is the multiplier above which a guest group favours a category.
	PreferenceMatch = 1.2
)

var monthNotes = map[int]string{
	1:  "Winter citrus season - perfect for fresh orange juice",
	2:  "Late winter - hearty soups and stews tradition",
	3:  "Spring arrives - fresh herbs and greens",
	4:  "Spring abundance - artichokes and fava beans",
	5:  "Late spring - lighter meals, more salads",
	6:  "Summer heat - cold soups and fresh fruits",
	7:  "Peak summer - watermelon and seafood season",
	8:  "Late summer - grilled vegetables tradition",
	9:  "Early autumn - date harvest in Tozeur",
	10: "Autumn - olive harvest and pressing season",
	11: "November - couscous friday tradition emphasized",
	12: "Winter - warm breakfast breads and honey",
}

var nationalityNotes = map[string]string{
	"FRA": "French guests typically prefer lighter breakfasts with pastries",
	"DEU": "German guests appreciate hearty bread selections",
	"ITA": "Italian guests value olive oil and fresh produce",
	"USA": "American guests enjoy variety and familiar options",
	"GBR": "British guests appreciate tea service and baked goods",
}

// Item is one recommended dish.
type Item struct {
	DishID             uint     `json:"dish_id"`
	Name               string   `json:"dish_name"`
	NameAr             string   `json:"name_ar,omitempty"`
	IsTraditional      bool     `json:"is_traditional"`
	MealType           string   `json:"meal_type,omitempty"`
	SeasonalCompliance float64  `json:"seasonal_compliance"`
	CostPerServing     float64  `json:"cost_per_serving"`
	LocalIngredients   int      `json:"local_ingredients"`
	Ingredients        []string `json:"ingredients"`
	Justification      []string `json:"justification"`
}

type Menu struct {
	Month         int      `json:"month"`
	Nationality   string   `json:"nationality,omitempty"`
	Dishes        []Item   `json:"dishes"`
	CulturalNotes []string `json:"cultural_notes"`
}

type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Generate recommends dishes for month, optionally tailored to a nationality.
func (e *Engine) Generate(ctx context.Context, month int, nationalityCode string) (*Menu, error) {
	if month < 1 || month > 12 {
		return nil, apperr.Validation("month must be between 1 and 12")
	}

	var nat *models.Nationality
	if code := strings.ToUpper(strings.TrimSpace(nationalityCode)); code != "" {
		var n models.Nationality
		err := e.db.WithContext(ctx).Where("code = ?", code).First(&n).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("nationality", code)
		}
		if err != nil {
			return nil, apperr.Internal("load nationality", err)
		}
		nat = &n
	}

	var dishes []models.Dish
	if err := e.db.WithContext(ctx).
		Preload("Ingredients.Season").
		Preload("Ingredients.Supplier").
		Order("id asc").
		Find(&dishes).Error; err != nil {
		return nil, apperr.Internal("load dishes", err)
	}

	return Build(dishes, month, nat), nil
}

// Build scores and orders dishes. Dish ingredients must have Season and
// Supplier loaded. nat may be nil.
func Build(dishes []models.Dish, month int, nat *models.Nationality) *Menu {
	items := make([]Item, 0, len(dishes))
	for i := range dishes {
		item, ok := score(&dishes[i], month, nat)
		if ok {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsTraditional != b.IsTraditional {
			return a.IsTraditional
		}
		if a.SeasonalCompliance != b.SeasonalCompliance {
			return a.SeasonalCompliance > b.SeasonalCompliance
		}
		if a.CostPerServing != b.CostPerServing {
			return a.CostPerServing < b.CostPerServing
		}
		return a.DishID < b.DishID
	})

	m := &Menu{Month: month, Dishes: items, CulturalNotes: CulturalNotes(month, "")}
	if nat != nil {
		m.Nationality = nat.Code
		m.CulturalNotes = CulturalNotes(month, nat.Code)
	}
	return m
}

func score(d *models.Dish, month int, nat *models.Nationality) (Item, bool) {
	if len(d.Ingredients) == 0 {
		return Item{}, false
	}

	var inSeason int
	for i := range d.Ingredients {
		if d.Ingredients[i].InSeason(month) {
			inSeason++
		}
	}
	if inSeason == 0 {
		return Item{}, false
	}

	item := Item{
		DishID:             d.ID,
		Name:               d.Name,
		NameAr:             d.NameAr,
		IsTraditional:      d.IsTraditional,
		MealType:           d.MealType,
		SeasonalCompliance: float64(inSeason) / float64(len(d.Ingredients)),
		CostPerServing:     d.Cost(),
		Ingredients:        d.IngredientNames(),
	}
	item.Justification, item.LocalIngredients = Justify(d, month, nat)
	return item, true
}

// Justify explains why a dish is recommended and counts its local ingredients.
func Justify(d *models.Dish, month int, nat *models.Nationality) ([]string, int) {
	var reasons []string

	if d.IsTraditional {
		reasons = append(reasons, "Traditional Tunisian dish preserving culinary heritage")
	}

	var seasonal []string
	var local, affordable int
	for i := range d.Ingredients {
		ing := &d.Ingredients[i]
		if ing.Season != nil && ing.Season.Contains(month) && ing.Season.Score > HighlightSeasonScore {
			seasonal = append(seasonal, ing.Name)
		}
		if ing.Supplier.IsLocal() {
			local++
		}
		if ing.CostPerUnit < AffordableUnitCost {
			affordable++
		}
	}

	if len(seasonal) > 0 {
		reasons = append(reasons, "Uses seasonal ingredients: "+strings.Join(seasonal, ", "))
	}
	if local > 0 {
		reasons = append(reasons, fmt.Sprintf("Sources %d ingredients locally", local))
	}
	if n := len(d.Ingredients); n > 0 && float64(affordable)/float64(n) > AffordableShare {
		reasons = append(reasons, "Cost-effective ingredients")
	}
	if nat != nil {
		if cat, ok := favouredCategory(d, nat); ok {
			reasons = append(reasons, fmt.Sprintf("Matches %s guests' preference for %s", nat.Name, cat))
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Available year-round")
	}
	return reasons, local
}

// favouredCategory returns the first ingredient category the nationality
// rates above PreferenceMatch.
func favouredCategory(d *models.Dish, nat *models.Nationality) (models.IngredientCategory, bool) {
	for i := range d.Ingredients {
		cat := d.Ingredients[i].EffectiveCategory()
		if cat != models.CategoryOther && nat.PreferenceFor(cat) > PreferenceMatch {
			return cat, true
		}
	}
	return "", false
}

// CulturalNotes returns the month note followed by the nationality note when known.
func CulturalNotes(month int, nationalityCode string) []string {
	notes := []string{}
	if n, ok := monthNotes[month]; ok {
		notes = append(notes, n)
	}
	if n, ok := nationalityNotes[strings.ToUpper(nationalityCode)]; ok {
		notes = append(notes, n)
	}
	return notes
}

var defaultBreakfast = []string{"Tabouna bread", "Olive oil", "Honey", "Fresh fruit"}

// Breakfast recommends breakfast items for a nationality. Unknown codes get
// the house default.
func (e *Engine) Breakfast(ctx context.Context, nationalityCode string) ([]string, error) {
	code := strings.ToUpper(strings.TrimSpace(nationalityCode))
	if code == "" {
		return nil, apperr.Validation("nationality is required")
	}

	var nat models.Nationality
	err := e.db.WithContext(ctx).Where("code = ?", code).First(&nat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return append([]string(nil), defaultBreakfast...), nil
	}
	if err != nil {
		return nil, apperr.Internal("load nationality", err)
	}
	return BreakfastFor(&nat), nil
}

func BreakfastFor(nat *models.Nationality) []string {
	items := []string{"Tabouna bread", "Olive oil", "Dates"}

	if nat.BreadPreference > PreferenceMatch {
		items = append(items, "Extra bread varieties")
	}
	if nat.DairyPreference > PreferenceMatch {
		items = append(items, "Yogurt", "Cheese selection")
	}
	if nat.SpiceTolerance > PreferenceMatch {
		items = append(items, "Harissa")
	} else {
		items = append(items, "Mild condiments")
	}

	switch nat.BreakfastStyle {
	case "Continental":
		items = append(items, "Croissants", "Jam selection")
	case "Mediterranean":
		items = append(items, "Olives", "Tomatoes", "Cucumber")
	}
	return items
}
