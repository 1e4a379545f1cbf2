// Package tools holds the deterministic calculators invoked by the tool
// specialist: calorie lookup, BMI, and insurance premium estimation.
// Everything here is pure computation; no network, no LLM.
package tools

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownFood is returned when a food item has no database entry.
var ErrUnknownFood = errors.New("food not found in database")

// foodEntry is nutrition per one serving.
type foodEntry struct {
	Calories float64
	Serving  string
	Protein  float64
	Carbs    float64
	Fat      float64
}

// foodDatabase covers common Indian foods, per serving as noted.
var foodDatabase = map[string]foodEntry{
	// Grains and breads
	"roti":    {120, "1 piece", 3, 20, 3},
	"chapati": {120, "1 piece", 3, 20, 3},
	"naan":    {260, "1 piece", 9, 45, 5},
	"paratha": {200, "1 piece", 4, 30, 7},
	"rice":    {130, "100g cooked", 2.7, 28, 0.3},
	"biryani": {250, "100g", 8, 35, 8},
	"pulao":   {180, "100g", 4, 30, 5},
	"dosa":    {120, "1 plain", 3, 18, 4},
	"idli":    {40, "1 piece", 1.5, 8, 0.2},
	"upma":    {150, "100g", 4, 22, 5},
	"poha":    {180, "100g", 3, 30, 5},

	// Dals and legumes
	"dal":    {110, "100g cooked", 7, 15, 2},
	"rajma":  {130, "100g cooked", 8, 20, 1},
	"chole":  {160, "100g cooked", 9, 25, 3},
	"sambar": {80, "100g", 4, 12, 2},

	// Vegetables and paneer
	"palak paneer": {200, "100g", 10, 8, 15},
	"paneer":       {265, "100g", 18, 1.2, 21},
	"aloo gobi":    {120, "100g", 3, 15, 5},
	"bhindi":       {80, "100g", 2, 10, 3},

	// Non-veg
	"chicken curry":  {180, "100g", 20, 5, 10},
	"butter chicken": {250, "100g", 18, 8, 17},
	"fish curry":     {150, "100g", 18, 4, 7},
	"egg":            {80, "1 boiled", 6, 0.5, 5},

	// Snacks
	"samosa":   {250, "1 piece", 4, 25, 15},
	"pakora":   {150, "5 pieces", 3, 15, 9},
	"vada pav": {300, "1 piece", 6, 40, 12},

	// Drinks
	"chai":       {100, "1 cup", 3, 12, 4},
	"lassi":      {150, "1 glass", 5, 20, 5},
	"buttermilk": {40, "1 glass", 2, 5, 1},

	// Sweets
	"gulab jamun": {150, "1 piece", 2, 25, 5},
	"rasgulla":    {120, "1 piece", 3, 22, 2},
	"jalebi":      {150, "1 piece", 1, 30, 4},
	"kheer":       {180, "100g", 5, 28, 6},
}

// CalorieResult is the scaled nutrition for a food lookup.
type CalorieResult struct {
	Food        string  `json:"food"`
	ServingSize string  `json:"serving_size"`
	Quantity    float64 `json:"quantity"`
	Calories    int     `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Source      string  `json:"source"`
}

// CalculateCalories looks up a food item and scales it by quantity.
// Lookup is exact first, then substring in either direction.
func CalculateCalories(food string, quantity float64) (CalorieResult, error) {
	if quantity <= 0 {
		quantity = 1
	}
	name := strings.ToLower(strings.TrimSpace(food))

	entry, ok := foodDatabase[name]
	matched := name
	if !ok {
		for key, e := range foodDatabase {
			if strings.Contains(name, key) || strings.Contains(key, name) {
				entry, matched, ok = e, key, true
				break
			}
		}
	}
	if !ok {
		return CalorieResult{}, fmt.Errorf("%w: %q", ErrUnknownFood, food)
	}

	return CalorieResult{
		Food:        matched,
		ServingSize: entry.Serving,
		Quantity:    quantity,
		Calories:    int(math.Round(entry.Calories * quantity)),
		Protein:     round1(entry.Protein * quantity),
		Carbs:       round1(entry.Carbs * quantity),
		Fat:         round1(entry.Fat * quantity),
		Source:      "Relay food database",
	}, nil
}

// BMIResult is a BMI reading with its health category.
type BMIResult struct {
	BMI                float64 `json:"bmi"`
	Category           string  `json:"category"`
	HeightCm           float64 `json:"height_cm"`
	WeightKg           float64 `json:"weight_kg"`
	HealthyWeightRange string  `json:"healthy_weight_range"`
	Recommendation     string  `json:"recommendation"`
}

// CalculateBMI computes BMI and classifies it using Asian thresholds,
// which are slightly lower than WHO's.
func CalculateBMI(heightCm, weightKg float64) (BMIResult, error) {
	if heightCm <= 0 || weightKg <= 0 {
		return BMIResult{}, errors.New("height and weight must be positive")
	}

	heightM := heightCm / 100
	bmi := weightKg / (heightM * heightM)

	var category, recommendation string
	switch {
	case bmi < 18.5:
		category = "Underweight"
		recommendation = "Consider consulting a dietitian for healthy weight gain strategies."
	case bmi < 23:
		category = "Normal (Healthy)"
		recommendation = "Great! Maintain your healthy weight with balanced diet and regular exercise."
	case bmi < 25:
		category = "Overweight (Pre-obese)"
		recommendation = "Slight risk. Consider reducing refined carbs and increasing physical activity."
	case bmi < 30:
		category = "Obese Class I"
		recommendation = "Moderate risk. Focus on sustainable weight loss through diet and exercise."
	default:
		category = "Obese Class II+"
		recommendation = "Higher health risk. Please consult a doctor for personalized guidance."
	}

	low := round1(18.5 * heightM * heightM)
	high := round1(23 * heightM * heightM)

	return BMIResult{
		BMI:                round1(bmi),
		Category:           category,
		HeightCm:           heightCm,
		WeightKg:           weightKg,
		HealthyWeightRange: fmt.Sprintf("%.1f - %.1f kg", low, high),
		Recommendation:     recommendation,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
