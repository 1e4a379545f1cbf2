package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/agents"
	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
)

const classifierPrompt = `Classify the user's message into exactly one intent:

- general: greetings, small talk, questions about the assistant
- wellness: health, fitness, nutrition, sleep, mental wellbeing
- protection: insurance, financial protection, coverage planning
- tool: requests for a specific calculation (calories, BMI, premium)
- search: questions needing current information from the web
- research: requests for an in-depth, multi-source report
- analysis: requests to analyze data, numbers, or trends

Respond with the single intent word only.`

// literal greetings short-circuit classification entirely
var greetings = map[string]bool{
	"hello":          true,
	"hi":             true,
	"hey":            true,
	"namaste":        true,
	"good morning":   true,
	"good afternoon": true,
	"good evening":   true,
	"thanks":         true,
	"thank you":      true,
	"bye":            true,
	"goodbye":        true,
}

var intentKeywords = []struct {
	intent   agents.Intent
	keywords []string
}{
	{agents.IntentTool, []string{
		"bmi", "calorie", "premium for", "calculate", "how much premium",
	}},
	{agents.IntentResearch, []string{
		"research", "deep dive", "comprehensive report", "literature review",
	}},
	{agents.IntentSearch, []string{
		"search", "latest", "news", "current", "today", "recent",
	}},
}

// classify resolves the intent for one message. Literal greetings and
// keyword heuristics bypass the model; the classifier model is asked
// only when no heuristic matches, and an invalid or failed answer
// degrades to general.
func (o *Orchestrator) classify(ctx context.Context, message string) agents.Intent {
	if intent, ok := heuristicIntent(message); ok {
		return intent
	}

	res := o.gen.Generate(ctx, &router.InferenceRequest{
		Message:            message,
		SystemInstructions: classifierPrompt,
		Capability:         llm.CapFast,
	})
	if res.Err != nil {
		log.Warn().Err(res.Err).Msg("intent classification failed, using general")
		return agents.IntentGeneral
	}

	word := strings.ToLower(strings.TrimSpace(res.Text))
	if i := strings.IndexAny(word, " \n\t.,:"); i >= 0 {
		word = word[:i]
	}

	intent := agents.Intent(word)
	if !agents.ValidIntents[intent] {
		log.Debug().Str("answer", word).Msg("classifier returned unknown intent")
		return agents.IntentGeneral
	}
	return intent
}

// heuristicIntent applies the fast-path rules.
func heuristicIntent(message string) (agents.Intent, bool) {
	norm := strings.ToLower(strings.TrimSpace(message))
	norm = strings.Trim(norm, "!.?, ")

	if greetings[norm] {
		return agents.IntentGeneral, true
	}

	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(norm, kw) {
				return group.intent, true
			}
		}
	}
	return agents.IntentGeneral, false
}
