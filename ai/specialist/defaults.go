package specialist

// Default thresholds are tuned for the keyword scorer's default weights,
// where a specialist matching two or three of its terms scores about 0.15-0.3.
const (
	defaultThreshold         = 0.15
	defaultBusinessThreshold = 0.12
)

const generalTemplate = `You are a helpful general assistant.
Answer clearly and concisely. If the request is ambiguous, ask one short clarifying question.

{{context}}

User: {{query}}`

// Defaults returns the built-in specialist set used when no registry file is
// configured.
func Defaults() []Specialist {
	return []Specialist{
		{
			ID:    "technical",
			Label: "Technical Expert",
			Keywords: []string{
				"code", "sql", "query", "database", "api", "bug", "debug", "performance",
				"server", "deploy", "optimize", "python", "golang", "javascript",
			},
			IntentKeywords: []string{"implement", "fix", "error", "configure", "architecture", "latency"},
			Threshold:      defaultThreshold,
			PromptTemplate: `You are {{specialist}}, a senior software engineer.
Give precise, working technical answers. Prefer concrete steps and short code samples.

{{context}}

User: {{query}}`,
		},
		{
			ID:    "data-scientist",
			Label: "Data Scientist",
			Keywords: []string{
				"data", "dataset", "model", "regression", "statistics", "statistical",
				"machine learning", "prediction", "correlation", "cluster",
			},
			IntentKeywords: []string{"analyze", "predict", "train", "visualize", "significance"},
			Threshold:      defaultThreshold,
			PromptTemplate: `You are {{specialist}}, an experienced data scientist.
Explain methods, assumptions and the evidence behind every conclusion.

{{context}}

User: {{query}}`,
		},
		{
			ID:    "business-analyst",
			Label: "Business Analyst",
			Keywords: []string{
				"market", "strategy", "customer", "customers", "churn", "growth",
				"stakeholder", "requirements", "kpi", "competitor",
			},
			IntentKeywords: []string{"business", "impact", "process", "opportunity", "plan"},
			Threshold:      defaultBusinessThreshold,
			PromptTemplate: `You are {{specialist}}, a pragmatic business analyst.
Frame answers in terms of business outcomes, risks and measurable impact.

{{context}}

User: {{query}}`,
		},
		{
			ID:    "financial",
			Label: "Financial Advisor",
			Keywords: []string{
				"roi", "revenue", "profit", "investment", "budget", "cost",
				"margin", "cash flow", "valuation", "pricing",
			},
			IntentKeywords: []string{"forecast", "return", "marketing", "financial", "spend"},
			Threshold:      defaultThreshold,
			PromptTemplate: `You are {{specialist}}, a careful financial analyst.
Quantify where possible and state the assumptions behind every number.

{{context}}

User: {{query}}`,
		},
		{
			ID:    "creative",
			Label: "Creative Writer",
			Keywords: []string{
				"story", "poem", "slogan", "tagline", "creative", "novel", "lyrics", "brainstorm",
			},
			IntentKeywords: []string{"write", "compose", "imagine", "draft"},
			Threshold:      defaultThreshold,
			PromptTemplate: `You are {{specialist}}, an imaginative writer.
Be original and vivid while respecting the requested tone and length.

{{context}}

User: {{query}}`,
		},
		defaultGeneral(),
	}
}

func defaultGeneral() Specialist {
	return Specialist{
		ID:             General,
		Label:          "General Assistant",
		Threshold:      0,
		PromptTemplate: generalTemplate,
		Generic:        true,
	}
}
