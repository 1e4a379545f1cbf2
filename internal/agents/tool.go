package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/tools"
)

const toolParsePrompt = `You are a tool execution assistant.
Parse the user's request and identify:
1. Which tool to use: "calories", "bmi", or "premium"
2. The parameters needed

Respond in this format:
TOOL: <tool_name>
PARAMS: <param1>=<value1>, <param2>=<value2>

Examples:
"Calculate calories in 2 dosas" -> TOOL: calories, PARAMS: food=dosa, quantity=2
"My BMI for 170cm and 70kg" -> TOOL: bmi, PARAMS: height=170, weight=70
"Premium for 10L cover age 35 family" -> TOOL: premium, PARAMS: age=35, sum=10, type=family`

const toolClarification = "I couldn't understand what calculation you need. Try asking about calories (e.g., 'calories in dosa'), BMI (e.g., 'calculate BMI for 170cm 70kg'), or insurance premium (e.g., 'premium for 10 lakh family plan')."

var (
	toolPattern   = regexp.MustCompile(`(?i)TOOL:\s*(\w+)`)
	paramsPattern = regexp.MustCompile(`(?i)PARAMS:\s*(.+)`)
)

// ToolAgent parses a calculation request with a fast model and executes
// the matching calculator. Parse failures never surface as errors; the
// user gets a clarification request instead.
type ToolAgent struct {
	gen Generator
}

// NewToolAgent creates the tool specialist.
func NewToolAgent(gen Generator) *ToolAgent {
	return &ToolAgent{gen: gen}
}

func (a *ToolAgent) Name() string   { return "Tool Executor" }
func (a *ToolAgent) Intent() Intent { return IntentTool }

// Handle parses, executes, and formats one calculation.
func (a *ToolAgent) Handle(ctx context.Context, message string, pc *Context) Result {
	res := a.gen.Generate(ctx, &router.InferenceRequest{
		Message:            message,
		SystemInstructions: toolParsePrompt,
		Capability:         llm.CapFast,
	})
	if res.Err != nil {
		return Result{Text: toolClarification, Success: false}
	}

	tool, params := parseToolResponse(res.Text)
	if tool == "" {
		return Result{Text: toolClarification, Success: false}
	}

	text, err := a.execute(tool, params)
	if err != nil {
		return Result{
			Text:     fmt.Sprintf("I couldn't run that calculation: %v. %s", err, toolClarification),
			Success:  false,
			Provider: res.Provider,
		}
	}
	return Result{Text: text, Success: true, Provider: res.Provider, UsedFallback: res.UsedFallback}
}

func (a *ToolAgent) execute(tool string, params map[string]string) (string, error) {
	switch tool {
	case "calories":
		quantity, _ := strconv.ParseFloat(params["quantity"], 64)
		result, err := tools.CalculateCalories(params["food"], quantity)
		if err != nil {
			return "", err
		}
		return formatCalories(result), nil

	case "bmi":
		height, _ := strconv.ParseFloat(params["height"], 64)
		weight, _ := strconv.ParseFloat(params["weight"], 64)
		result, err := tools.CalculateBMI(height, weight)
		if err != nil {
			return "", err
		}
		return formatBMI(result), nil

	case "premium":
		age, _ := strconv.Atoi(params["age"])
		if age == 0 {
			age = 30
		}
		sum, _ := strconv.ParseFloat(params["sum"], 64)
		if sum == 0 {
			sum = 5
		}
		familyType := params["type"]
		if familyType == "" {
			familyType = "individual"
		}
		result, err := tools.EstimatePremium(age, sum, familyType)
		if err != nil {
			return "", err
		}
		return formatPremium(result), nil

	default:
		return "", fmt.Errorf("unknown tool %q", tool)
	}
}

// parseToolResponse extracts the TOOL and PARAMS lines from an LLM reply.
func parseToolResponse(s string) (string, map[string]string) {
	params := map[string]string{}

	var tool string
	if m := toolPattern.FindStringSubmatch(s); m != nil {
		tool = strings.ToLower(m[1])
	}
	if m := paramsPattern.FindStringSubmatch(s); m != nil {
		for _, pair := range strings.Split(m[1], ",") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			params[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
	return tool, params
}

func formatCalories(r tools.CalorieResult) string {
	return fmt.Sprintf(`**Calorie Information: %s**

Per %s (x%g):
- Calories: **%d kcal**
- Protein: %.1fg
- Carbs: %.1fg
- Fat: %.1fg

_Source: %s_`,
		r.Food, r.ServingSize, r.Quantity, r.Calories, r.Protein, r.Carbs, r.Fat, r.Source)
}

func formatBMI(r tools.BMIResult) string {
	return fmt.Sprintf(`**Your BMI Analysis**

- BMI: **%.1f** (%s)
- Height: %.0f cm
- Weight: %.0f kg
- Healthy range: %s

**Recommendation:** %s

_Note: BMI is a screening tool. Consult a doctor for a complete assessment._`,
		r.BMI, r.Category, r.HeightCm, r.WeightKg, r.HealthyWeightRange, r.Recommendation)
}

func formatPremium(r tools.PremiumEstimate) string {
	features := ""
	for _, f := range r.TypicalFeatures {
		features += "- " + f + "\n"
	}
	return fmt.Sprintf(`**Health Insurance Premium Estimate**

Coverage: %s, %s, age %d

Estimated annual premium (including GST):
- Low: ₹%d
- Mid: ₹%d
- High: ₹%d

Typical features at this coverage:
%s
_%s_`,
		r.SumInsured, r.FamilyType, r.Age, r.Low, r.Mid, r.High, features, r.Disclaimer)
}
