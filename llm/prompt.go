package llm

import (
	"fmt"
	"strings"

	"github.com/use-agent/profilescan/models"
)

const systemPrompt = "You are an expert at detecting fake LinkedIn profiles and fraudulent candidates. " +
	"You have years of experience identifying patterns in fake profiles and can quickly spot red flags. " +
	"You always answer with a single JSON object and nothing else."

// reportSchema is the JSON shape the model must return.
const reportSchema = `{
  "framework": ["short description of each evaluation criterion you used"],
  "risk_level": "Low | Medium | High",
  "red_flags": ["..."],
  "positive_signals": ["..."],
  "concerns": ["specific concerns or recommendations"],
  "conclusion": "overall conclusion",
  "confidence": "Low | Medium | High"
}`

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// buildUserPrompt asks the model to build its own evaluation framework and
// apply it to the profile.
func buildUserPrompt(p *models.Profile) string {
	return fmt.Sprintf(`You are an expert recruiter and fraud detection specialist. Your task is to analyze a LinkedIn profile and determine if it shows signs of being a fake or fraudulent candidate profile.

First, develop a framework for evaluating LinkedIn profiles for authenticity. Consider factors such as:
- Profile completeness and consistency
- Timeline gaps or inconsistencies
- Account age indicators (new accounts are often suspicious)
- Quality of content (descriptions, endorsements, posts)
- Network characteristics
- Photo authenticity indicators
- Activity patterns
- Job history credibility
- Education verification markers
- Duplicate or template-like content
- Any other red flags you deem relevant

Then, analyze the following profile data against your framework:

URL: %s
Page Title: %s
Meta Description: %s

Profile Content:
%s

Respond with JSON matching this shape:
%s`, orNA(p.URL), orNA(p.Title), orNA(p.Description), orNA(p.Text), reportSchema)
}
