package service

import (
	"fmt"
	"strings"

	"github.com/Jhoseto/factcheck-api/internal/models"
)

// retryInstruction is appended to the prompt when a previous attempt
// produced output that failed validation. The previous text is discarded
// entirely; the model starts over.
const retryInstruction = "\n\nIMPORTANT: Your previous answer was malformed or incomplete. " +
	"Return ONLY a single valid JSON object. Close all brackets and quotes. " +
	"Fill in ALL required fields completely. Do not truncate any value."

const systemPrompt = "You are a fact-checking analyst. You examine content for factual claims, " +
	"manipulation techniques, and missing context, and you respond with a single JSON object " +
	"matching the requested shape. Never include commentary outside the JSON."

// PromptInput carries the content to analyze.
type PromptInput struct {
	ServiceType models.ServiceType
	Mode        models.AnalysisMode
	TargetURL   string
	Content     string // transcript, page text, post text, or comment batch

	// Page metadata resolved server-side for link analyses
	PageTitle    string
	PageSiteName string
}

// BuildPrompt assembles the analysis prompt for one attempt. retry selects
// the stricter formatting instruction after a failed validation.
func BuildPrompt(in PromptInput, retry bool) string {
	var b strings.Builder

	switch in.ServiceType {
	case models.ServiceVideo:
		b.WriteString("Analyze the following video transcript for factual accuracy.\n")
		b.WriteString("Respond with a JSON object containing:\n")
		b.WriteString(`- "summary": what the video argues (string)` + "\n")
		b.WriteString(`- "claims": array of {"text", "verdict", "explanation"} for each checkable claim` + "\n")
		b.WriteString(`- "quotes": array of notable quoted statements` + "\n")
		b.WriteString(`- "manipulationTechniques": array of {"name", "description"} if any are used` + "\n")
		b.WriteString(`- "overallAssessment": one-line verdict on the video as a whole` + "\n")
		b.WriteString(`- "detailedMetrics": {"accuracy", "context", "sourcing"} scored 0-10` + "\n")
		if in.Mode == models.ModeDeep {
			b.WriteString("Use web search to verify each claim against current sources and cite what you find in the explanations.\n")
		}
	case models.ServiceLink:
		b.WriteString("Analyze the following article for factual accuracy.\n")
		b.WriteString("Respond with a JSON object containing:\n")
		b.WriteString(`- "title": the article title (string)` + "\n")
		b.WriteString(`- "siteName": the publishing site (string)` + "\n")
		b.WriteString(`- "summary": what the article says and how reliable it is (string)` + "\n")
		b.WriteString(`- "claims": array of checkable claims with verdicts` + "\n")
		if in.PageTitle != "" {
			fmt.Fprintf(&b, "Known page title: %s\n", in.PageTitle)
		}
		if in.PageSiteName != "" {
			fmt.Fprintf(&b, "Known site name: %s\n", in.PageSiteName)
		}
	case models.ServiceSocial:
		b.WriteString("Analyze the following social media post for factual accuracy and manipulation.\n")
		b.WriteString("Respond with a JSON object containing:\n")
		b.WriteString(`- "title": a short label for the post (string)` + "\n")
		b.WriteString(`- "siteName": the platform name (string)` + "\n")
		b.WriteString(`- "summary": assessment of the post's claims (string)` + "\n")
	case models.ServiceComments:
		b.WriteString("Analyze the following batch of comments for coordinated narratives and misinformation.\n")
		b.WriteString("Respond with a JSON object containing:\n")
		b.WriteString(`- "title": short label for the thread (string)` + "\n")
		b.WriteString(`- "siteName": the platform name (string)` + "\n")
		b.WriteString(`- "summary": dominant narratives and any misinformation found (string)` + "\n")
	}

	if in.TargetURL != "" {
		fmt.Fprintf(&b, "\nSource URL: %s\n", in.TargetURL)
	}
	b.WriteString("\n--- CONTENT ---\n")
	b.WriteString(in.Content)
	b.WriteString("\n--- END CONTENT ---\n")

	if retry {
		b.WriteString(retryInstruction)
	}
	return b.String()
}

// SystemPrompt returns the shared system instruction.
func SystemPrompt() string {
	return systemPrompt
}
