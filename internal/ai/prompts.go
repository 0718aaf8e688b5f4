package ai

import (
	"fmt"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

const analysisBase = `You are a market research analyst. The user will give you a product idea. Respond with a single JSON object and nothing else.`

func analysisPrompt(tier plans.PromptTier) string {
	switch tier {
	case plans.TierAdvanced:
		return analysisBase + ` Include the keys: "problem", "audience", "monetization", "competitors" (array), "marketGaps" (array), "demandProbability", "potentialRisks" (array), "marketingStrategies" (array). Be specific and actionable.`
	case plans.TierStandard:
		return analysisBase + ` Include the keys: "problem", "audience", "monetization", "competitors" (array), "marketGaps" (array), "demandProbability".`
	default:
		return analysisBase + ` Include the keys: "problem", "audience", "monetization". Keep each value to two or three sentences.`
	}
}

func buildPlanPrompt(tier plans.PromptTier, platform string) string {
	detail := "three"
	if tier == plans.TierAdvanced {
		detail = "five"
	}
	return fmt.Sprintf(`You are a technical product coach. The user will give you a product idea to build on %s. Respond with a single JSON object with keys "platform" and "phases": an array of %s phases, each with "name", "description" and "prompts" — an array of copy/paste prompts the user can feed to %s to build that phase.`, platform, detail, platform)
}
