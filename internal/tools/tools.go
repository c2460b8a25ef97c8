// Package tools implements the specialized legal analysis tools. Each tool
// grounds a task specific prompt in the user's document context and runs it
// through the chat model.
package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/models"
	"github.com/lexvault/lexvault/internal/retrieval"
)

// Position is the side a negotiation analysis argues for
type Position string

const (
	PositionBuyer   Position = "buyer"
	PositionSeller  Position = "seller"
	PositionNeutral Position = "neutral"
)

// Valid reports whether the position is one of the supported values
func (p Position) Valid() bool {
	switch p {
	case PositionBuyer, PositionSeller, PositionNeutral:
		return true
	}
	return false
}

var positionDescriptions = map[Position]string{
	PositionBuyer:   "representing the buyer/purchaser/licensee side",
	PositionSeller:  "representing the seller/vendor/licensor side",
	PositionNeutral: "providing balanced analysis for both parties",
}

// Generator runs a system prompt with grounding context through the model
type Generator interface {
	GenerateWithPrompt(ctx context.Context, systemPrompt, input, ragContext string) (string, error)
}

// ContextBuilder assembles retrieval context for a query
type ContextBuilder interface {
	BuildContext(ctx context.Context, query string, userID uuid.UUID, opts retrieval.Options) (*models.RetrievalContext, error)
}

// Result carries a tool's analysis and its retrieval evidence
type Result struct {
	Result    string            `json:"result"`
	Citations []models.Citation `json:"citations"`
}

// Runner executes the legal analysis tools
type Runner struct {
	assembler ContextBuilder
	generator Generator

	matchCount        int
	toolMatchCount    int
	citationMaxLength int
}

// NewRunner creates a tool runner. toolMatchCount applies to the precedent
// finder which casts a wider retrieval net than the other tools.
func NewRunner(assembler ContextBuilder, generator Generator, matchCount, toolMatchCount, citationMaxLength int) *Runner {
	return &Runner{
		assembler:         assembler,
		generator:         generator,
		matchCount:        matchCount,
		toolMatchCount:    toolMatchCount,
		citationMaxLength: citationMaxLength,
	}
}

const clauseAnalyzerPrompt = `You are an expert contract law attorney specializing in clause analysis. Your task is to:

1. IDENTIFY each distinct clause or provision in the provided text
2. ASSESS the risk level of each clause (Low / Medium / High / Critical)
3. FLAG problematic language including:
   - One-sided terms that heavily favor one party
   - Ambiguous or vague language
   - Missing protections or standard safeguards
   - Unusual or non-standard provisions
   - Potential enforceability issues
4. PROVIDE specific recommendations for each flagged item
5. Give an OVERALL risk assessment

Format your response as structured analysis with clear sections. Reference source documents when available using [Source: document_name] format.

DISCLAIMER: This is AI-generated analysis and should not substitute professional legal advice.`

// ClauseAnalyzer breaks contract text into clauses and flags risky language
func (r *Runner) ClauseAnalyzer(ctx context.Context, text string, userID uuid.UUID) (*Result, error) {
	return r.run(ctx, clauseAnalyzerPrompt, text, userID, r.matchCount)
}

// ComplianceChecker evaluates text against a regulatory framework. Both
// jurisdiction and framework are optional and fall back to general wording.
func (r *Runner) ComplianceChecker(ctx context.Context, text string, userID uuid.UUID, jurisdiction, framework string) (*Result, error) {
	if framework == "" {
		framework = "general legal compliance (GDPR, HIPAA, SOX, ADA as applicable)"
	}
	if jurisdiction == "" {
		jurisdiction = "general / international"
	}

	systemPrompt := fmt.Sprintf(`You are a senior compliance officer and legal analyst. Evaluate the provided text against %s requirements for the %s jurisdiction.

Your analysis must:
1. IDENTIFY specific compliance requirements that apply
2. CHECK each requirement against the provided text
3. FLAG any violations or gaps with severity (Minor / Major / Critical)
4. PROVIDE specific recommendations to achieve compliance
5. Give an OVERALL compliance status (Compliant / Partially Compliant / Non-Compliant)

Format your response with clear sections:
- **Applicable Requirements**: List relevant regulations/standards
- **Compliance Status**: Overall assessment
- **Issues Found**: Detailed list of violations/gaps
- **Recommendations**: Specific actions to remediate

Reference source documents when available using [Source: document_name] format.

DISCLAIMER: This is AI-generated compliance analysis and should not substitute professional legal or compliance advice.`, framework, jurisdiction)

	return r.run(ctx, systemPrompt, text, userID, r.matchCount)
}

const precedentFinderPrompt = `You are a legal research specialist with extensive knowledge of case law and legal precedents. Your task is to:

1. SEARCH the provided document context for relevant legal precedents, case references, and legal patterns
2. RANK them by relevance to the user's query
3. For each precedent found, provide:
   - Case name or reference (if available)
   - Brief summary of the relevant holding or principle
   - Relevance score and explanation of why it's relevant
   - How it might apply to the user's situation
4. IDENTIFY any legal patterns or trends across the found precedents
5. SUGGEST additional areas of research

Format as a structured list of precedents with clear relevance indicators.
Reference source documents using [Source: document_name] format.

DISCLAIMER: This is AI-generated legal research and should not substitute professional legal advice.`

// PrecedentFinder searches the user's documents for relevant precedents.
// It retrieves more chunks than the other tools to widen the research base.
func (r *Runner) PrecedentFinder(ctx context.Context, query string, userID uuid.UUID) (*Result, error) {
	return r.run(ctx, precedentFinderPrompt, query, userID, r.toolMatchCount)
}

// NegotiationCoach analyzes a clause from the given negotiation position
func (r *Runner) NegotiationCoach(ctx context.Context, clauseText string, position Position, userID uuid.UUID) (*Result, error) {
	if !position.Valid() {
		return nil, fmt.Errorf("invalid negotiation position: %q", position)
	}

	systemPrompt := fmt.Sprintf(`You are an experienced negotiation attorney %s. Analyze the provided contract clause and provide strategic negotiation guidance.

Your analysis must include:
1. **Clause Assessment**: What this clause means and its practical implications
2. **Leverage Points**: What aspects can be negotiated and why
3. **Counterarguments**: Specific arguments to make for better terms
4. **Alternative Language**: Suggest revised clause text that better serves the client's interests
5. **BATNA Analysis**: Best Alternative to Negotiated Agreement, what happens if this clause can't be agreed upon
6. **Red Lines**: What terms should never be accepted and why
7. **Compromise Positions**: Acceptable middle-ground options

Be specific and practical. Provide actual suggested replacement language where possible.
Reference source documents when available using [Source: document_name] format.

DISCLAIMER: This is AI-generated negotiation guidance and should not substitute professional legal advice.`, positionDescriptions[position])

	return r.run(ctx, systemPrompt, clauseText, userID, r.matchCount)
}

func (r *Runner) run(ctx context.Context, systemPrompt, input string, userID uuid.UUID, matchCount int) (*Result, error) {
	rc, err := r.assembler.BuildContext(ctx, input, userID, retrieval.Options{
		MatchCount:        matchCount,
		CitationMaxLength: r.citationMaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build tool context: %w", err)
	}

	result, err := r.generator.GenerateWithPrompt(ctx, systemPrompt, input, rc.FormattedText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tool analysis: %w", err)
	}

	citations := rc.Citations
	if citations == nil {
		citations = []models.Citation{}
	}

	return &Result{Result: result, Citations: citations}, nil
}
