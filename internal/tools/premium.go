package tools

import (
	"fmt"
	"math"
	"strings"
)

// PremiumEstimate is an annual health insurance premium band, in rupees
// including GST. The band covers typical insurer spread.
type PremiumEstimate struct {
	SumInsured      string   `json:"sum_insured"`
	FamilyType      string   `json:"family_type"`
	Age             int      `json:"age"`
	Low             int      `json:"low"`
	Mid             int      `json:"mid"`
	High            int      `json:"high"`
	TypicalFeatures []string `json:"typical_features"`
	Disclaimer      string   `json:"disclaimer"`
}

// baseRatePerLakh is the approximate annual rate for a young adult.
const baseRatePerLakh = 500

var familyFactors = map[string]float64{
	"individual": 1.0,
	"couple":     1.8,
	"family":     2.5, // 2 adults + 2 children
	"parents":    2.2,
}

// EstimatePremium estimates the annual health insurance premium for the
// given age, coverage (in lakhs), and family type. Rates follow typical
// Indian market bands; ages outside 18-65 need a real quote.
func EstimatePremium(age int, sumInsuredLakhs float64, familyType string) (PremiumEstimate, error) {
	if age < 18 {
		return PremiumEstimate{}, fmt.Errorf("primary insured must be at least 18 years old")
	}
	if age > 65 {
		return PremiumEstimate{}, fmt.Errorf("for seniors above 65, consult insurers directly for accurate quotes")
	}
	if sumInsuredLakhs < 1 {
		return PremiumEstimate{}, fmt.Errorf("minimum sum insured is 1 lakh")
	}

	var ageFactor float64
	switch {
	case age <= 25:
		ageFactor = 0.8
	case age <= 35:
		ageFactor = 1.0
	case age <= 45:
		ageFactor = 1.5
	case age <= 55:
		ageFactor = 2.2
	default:
		ageFactor = 3.0
	}

	familyFactor, ok := familyFactors[strings.ToLower(familyType)]
	if !ok {
		familyFactor = 1.0
		familyType = "individual"
	}

	// Higher coverage earns a lower rate per lakh.
	var siFactor float64
	switch {
	case sumInsuredLakhs <= 3:
		siFactor = 1.2
	case sumInsuredLakhs <= 5:
		siFactor = 1.0
	case sumInsuredLakhs <= 10:
		siFactor = 0.85
	case sumInsuredLakhs <= 25:
		siFactor = 0.75
	default:
		siFactor = 0.65
	}

	base := sumInsuredLakhs * baseRatePerLakh * ageFactor * familyFactor * siFactor
	withGST := base * 1.18

	var features []string
	if sumInsuredLakhs >= 5 {
		features = append(features, "Room rent likely capped at 1-2% of sum insured")
	}
	if sumInsuredLakhs >= 10 {
		features = append(features, "Usually includes OPD and wellness benefits")
	}
	if sumInsuredLakhs >= 15 {
		features = append(features, "Often includes international coverage")
	}
	if sumInsuredLakhs >= 25 {
		features = append(features, "Comprehensive coverage with minimal sub-limits")
	}
	if len(features) == 0 {
		features = []string{"Basic hospitalization coverage"}
	}

	return PremiumEstimate{
		SumInsured:      fmt.Sprintf("₹%g Lakhs", sumInsuredLakhs),
		FamilyType:      capitalize(familyType),
		Age:             age,
		Low:             roundTo100(withGST * 0.7),
		Mid:             roundTo100(withGST),
		High:            roundTo100(withGST * 1.3),
		TypicalFeatures: features,
		Disclaimer:      "This is an estimate for guidance. Actual premiums vary by insurer, health status, and policy features.",
	}, nil
}

func roundTo100(v float64) int {
	return int(math.Round(v/100) * 100)
}

func capitalize(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
