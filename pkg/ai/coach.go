package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
)

const coachSystemPrompt = "You are an expert coaching sidekick that analyzes live coaching " +
	"conversations and offers timely, context-aware suggestions to deepen impact, provoke " +
	"vision, expand ownership, and unlock stuck moments. You are the brush, not the painter: " +
	"always offer options, never commands."

// coachingCriteria are the dimensions each analysis pass scores 1-10.
var coachingCriteria = map[string]string{
	"clear_vision":         "The coach invites the client towards a clear, measurable, transformative vision.",
	"max_value":            "The maximum value for the call is clear and the client reports value being created.",
	"client_participation": "Client participation is full, exploring who they are becoming.",
	"expand_possibilities": "The coach expands what the client believes is possible.",
	"powerful_questions":   "The coach's key tools are powerful questions and silence.",
	"client_ownership":     "The coach invites the client into ownership rather than solving for them.",
	"disrupt_beliefs":      "The coach disrupts limiting beliefs and creates new actions from insights.",
	"insights_to_actions":  "The client discovers insights that lead to actions and commitments.",
	"energy_dance":         "The coach responds to the client's energy throughout the call.",
}

// CoachingService turns transcript snapshots into coaching analyses and
// final session summaries via the chat completion client.
type CoachingService struct {
	client *OpenAIClient
}

// NewCoachingService creates the analysis collaborator.
func NewCoachingService(client *OpenAIClient) *CoachingService {
	return &CoachingService{client: client}
}

// analysisPayload mirrors the JSON object the model is asked to return.
type analysisPayload struct {
	OverallScore      float64            `json:"overallScore"`
	CriteriaScores    map[string]float64 `json:"criteriaScores"`
	ConversationPhase string             `json:"conversationPhase"`
	Suggestions       []struct {
		Type       string `json:"type"`
		Priority   string `json:"priority"`
		Category   string `json:"category"`
		Suggestion string `json:"suggestion"`
		Rationale  string `json:"rationale"`
		Timing     string `json:"timing"`
	} `json:"suggestions"`
}

// Analyze runs one incremental coaching analysis pass over the final-entry
// view of the transcript. sinceIndex marks how far previous passes got; the
// returned record's cursor covers every entry included in this pass.
func (c *CoachingService) Analyze(ctx context.Context, sessionID string, finalEntries []entities.TranscriptEntry, sinceIndex int) (*entities.CoachingAnalysis, error) {
	if len(finalEntries) == 0 {
		return nil, fmt.Errorf("nothing to analyze for session %s", sessionID)
	}
	if sinceIndex < 0 {
		sinceIndex = 0
	}
	if sinceIndex > len(finalEntries) {
		sinceIndex = len(finalEntries)
	}

	prompt := buildAnalysisPrompt(renderConversation(finalEntries), renderConversation(finalEntries[sinceIndex:]))

	content, err := c.client.ChatCompletion(ctx, coachSystemPrompt, prompt, 0.7, 2000)
	if err != nil {
		return nil, fmt.Errorf("analysis completion failed: %w", err)
	}

	analysis, err := parseAnalysis(sessionID, content)
	if err != nil {
		return nil, err
	}
	// The cursor is what this pass actually covered: the full final view at
	// the time the snapshot was taken.
	analysis.LastAnalyzedTranscriptIndex = len(finalEntries)
	return analysis, nil
}

// Summarize produces the end-of-session narrative from the full final
// transcript, seeded with the last analysis when one exists.
func (c *CoachingService) Summarize(ctx context.Context, sessionID string, finalEntries []entities.TranscriptEntry, last *entities.CoachingAnalysis) (*entities.SessionSummary, error) {
	summary := entities.NewSessionSummary(sessionID)
	if len(finalEntries) == 0 {
		summary.Summary = "No conversation was captured for this session."
		return summary, nil
	}

	var sb strings.Builder
	sb.WriteString("Summarize the following coaching conversation in a few short paragraphs: ")
	sb.WriteString("the key topics, the insights the client reached, and the commitments made. ")
	sb.WriteString("Write plain prose, no headings.\n\n")
	if last != nil {
		fmt.Fprintf(&sb, "The most recent in-call analysis scored the session %.0f/10 in the %s phase.\n\n",
			last.OverallScore, last.ConversationPhase)
	}
	sb.WriteString("CONVERSATION:\n")
	sb.WriteString(renderConversation(finalEntries))

	content, err := c.client.ChatCompletion(ctx, coachSystemPrompt, sb.String(), 0.3, 1500)
	if err != nil {
		return nil, fmt.Errorf("summary completion failed: %w", err)
	}
	summary.Summary = strings.TrimSpace(content)
	return summary, nil
}

func renderConversation(entries []entities.TranscriptEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Speaker, e.Text))
	}
	return strings.Join(lines, "\n")
}

func buildAnalysisPrompt(full, recent string) string {
	var criteria strings.Builder
	for key, desc := range coachingCriteria {
		fmt.Fprintf(&criteria, "- %s: %s\n", key, desc)
	}

	return fmt.Sprintf(`Analyze this live coaching conversation.

COACHING CRITERIA TO SCORE (1-10 each):
%s
FULL CONVERSATION SO FAR:
%s

NEW CONVERSATION SINCE LAST ANALYSIS:
%s

Produce 1-4 immediately usable suggestions targeted at the new portion, each
with timing guidance (now / next_pause / end_of_call), a category, and a
one-line rationale. Identify the conversation phase (opening, exploration,
insight, commitment, closing).

Respond with a single JSON object:
{
  "overallScore": 7,
  "criteriaScores": {"clear_vision": 6},
  "conversationPhase": "exploration",
  "suggestions": [
    {
      "type": "immediate",
      "priority": "high",
      "category": "expand_vision",
      "suggestion": "If this went 10x better than expected, what would it look like?",
      "rationale": "Client is thinking tactically but has not connected to a bigger vision",
      "timing": "next_pause"
    }
  ]
}`, criteria.String(), full, recent)
}

// parseAnalysis decodes the model output into an analysis record, applying
// defaults for fields the model omitted.
func parseAnalysis(sessionID, content string) (*entities.CoachingAnalysis, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}

	analysis := entities.NewCoachingAnalysis(sessionID)
	analysis.OverallScore = payload.OverallScore
	if analysis.OverallScore == 0 {
		analysis.OverallScore = 5
	}
	analysis.ConversationPhase = payload.ConversationPhase
	if analysis.ConversationPhase == "" {
		analysis.ConversationPhase = "exploration"
	}
	analysis.CriteriaScores = payload.CriteriaScores
	if analysis.CriteriaScores == nil {
		analysis.CriteriaScores = map[string]float64{}
	}

	now := time.Now().UTC()
	suggestions := make([]entities.CoachingSuggestion, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		if strings.TrimSpace(s.Suggestion) == "" {
			continue
		}
		sug := entities.CoachingSuggestion{
			ID:         uuid.NewString(),
			Type:       s.Type,
			Priority:   s.Priority,
			Category:   s.Category,
			Suggestion: s.Suggestion,
			Rationale:  s.Rationale,
			Timing:     s.Timing,
			Timestamp:  now,
		}
		if sug.Type == "" {
			sug.Type = "immediate"
		}
		if sug.Priority == "" {
			sug.Priority = "medium"
		}
		if sug.Category == "" {
			sug.Category = "general"
		}
		if sug.Timing == "" {
			sug.Timing = entities.SuggestionTimingNow
		}
		suggestions = append(suggestions, sug)
	}
	analysis.Suggestions = suggestions

	if b, err := json.Marshal(analysis.CriteriaScores); err == nil {
		analysis.CriteriaScoresRaw = datatypes.JSON(b)
	}
	if b, err := json.Marshal(analysis.Suggestions); err == nil {
		analysis.SuggestionsRaw = datatypes.JSON(b)
	}
	return analysis, nil
}
