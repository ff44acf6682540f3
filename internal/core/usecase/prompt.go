package usecase

import (
	"fmt"
	"strings"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

// buildDocumentContext concatenates document texts in upload order, each
// under an index/filename header so the model can attribute claims.
func buildDocumentContext(documents []domain.ParsedDocument) string {
	var parts []string
	for idx, doc := range documents {
		parts = append(parts, fmt.Sprintf("--- Document %d: %s ---", idx+1, doc.Filename))
		parts = append(parts, doc.Text)
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n")
}

func buildLessonSystemPrompt(category domain.LessonCategory) string {
	return fmt.Sprintf(`You are an expert instructional designer and business coach specializing in creating engaging, practical learning experiences.

Your task is to generate a comprehensive coaching lesson based on provided documents and user requirements.

The lesson should be for the category: %s

Generate the lesson with the following structure in JSON format:

{
    "title": "Clear, engaging title for the lesson",
    "description": "Brief description of what the lesson covers (2-3 sentences)",
    "scenario": "A realistic, detailed scenario that learners will work through (3-5 paragraphs)",
    "objectives": [
        "Specific learning objective 1",
        "Specific learning objective 2",
        "Specific learning objective 3"
    ],
    "content": {
        "introduction": "Engaging introduction to the scenario and context",
        "key_concepts": [
            {"concept": "Concept name", "description": "Detailed explanation"},
            {"concept": "Concept name", "description": "Detailed explanation"}
        ],
        "practice_questions": [
            "Thought-provoking question 1",
            "Thought-provoking question 2",
            "Thought-provoking question 3"
        ],
        "coaching_tips": [
            "Tip 1 for coaches",
            "Tip 2 for coaches"
        ]
    },
    "difficulty_level": 1-5 (integer),
    "estimated_duration": estimated time in minutes (integer),
    "tags": ["relevant", "tags", "for", "searchability"]
}

Requirements:
- Base the lesson content on the provided documents
- Make scenarios realistic and relatable to business professionals
- Ensure objectives are specific, measurable, and achievable
- Include practical, actionable insights
- Use professional but conversational tone
- Focus on real-world application

Return ONLY valid JSON without any markdown formatting or code blocks.`, category)
}

func buildLessonUserMessage(prompt, documentContext, additionalContext string) string {
	parts := []string{
		"Please generate a lesson based on the following:",
		"",
		"USER REQUEST: " + prompt,
		"",
	}
	if additionalContext != "" {
		parts = append(parts, "ADDITIONAL CONTEXT: "+additionalContext, "")
	}
	parts = append(parts,
		"SOURCE DOCUMENTS:",
		documentContext,
		"",
		"Generate a comprehensive lesson following the specified JSON structure.",
	)
	return strings.Join(parts, "\n")
}

const refineSystemPrompt = `You are an expert instructional designer.
You will receive a lesson in JSON format and instructions for refinement.
Return the refined lesson in the same JSON format, maintaining the structure but improving based on the feedback.`

func buildRefineUserMessage(currentLesson, instructions string) string {
	return fmt.Sprintf(`Current Lesson:
%s

Refinement Instructions:
%s

Please refine the lesson according to the instructions and return the complete updated lesson in JSON format.`, currentLesson, instructions)
}

const coachingBasePrompt = `You are an expert AI business and personal development coach. Your role is to:
1. Guide users through business scenarios and help them develop professional skills
2. Ask probing questions to encourage critical thinking
3. Provide constructive feedback on user responses
4. Identify patterns in behavior and decision-making
5. Adapt your coaching style to the user's level and needs

Your coaching approach should be:
- Supportive yet challenging
- Focused on practical, actionable insights
- Evidence-based and professional
- Culturally sensitive and inclusive
`

func buildCoachingPrompt(lesson *domain.LessonDraft) string {
	if lesson == nil {
		return coachingBasePrompt
	}

	var objectives strings.Builder
	for _, objective := range lesson.Objectives {
		objectives.WriteString("- " + objective + "\n")
	}

	return coachingBasePrompt + fmt.Sprintf(`
Current Lesson: %s
Type: %s
Scenario: %s

Objectives for this lesson:
%s
Guide the user through this scenario, helping them meet the learning objectives.
`, lesson.Title, lesson.Category, lesson.Scenario, objectives.String())
}

const analysisSystemPrompt = "You are an expert business and leadership coach analyzing user progress. Provide constructive, actionable insights."

const (
	maxSampledMessages   = 5
	maxSampledMessageLen = 100
)

// buildAnalysisPrompt embeds the usage counters and a truncated sample of
// recent user messages into one natural-language analysis request.
func buildAnalysisPrompt(win domain.UsageWindow, pat domain.PatternSummary, recentMessages []string) string {
	avgPerSession := 0.0
	if win.TotalSessions > 0 {
		avgPerSession = float64(win.TotalMessages) / float64(win.TotalSessions)
	}

	var samples []string
	for i, msg := range recentMessages {
		if i >= maxSampledMessages {
			break
		}
		// Truncate by runes, not bytes, so multibyte messages are neither
		// cut short nor split mid-character.
		if runes := []rune(msg); len(runes) > maxSampledMessageLen {
			samples = append(samples, "- "+string(runes[:maxSampledMessageLen])+"...")
			continue
		}
		samples = append(samples, "- "+msg)
	}

	return fmt.Sprintf(`
Analyze the following user coaching data and provide insights:

Session Statistics:
- Total sessions: %d
- Lessons completed: %d
- Total messages: %d
- Average messages per session: %.1f

Pattern Analysis:
- Total interactions analyzed: %d
- Average message length: %.1f characters
- Business focus: %.1f%%
- Leadership focus: %.1f%%

Sample Recent Messages:
%s

Please provide:
1. A concise summary (2-3 sentences) of the user's progress
2. Three key strengths demonstrated
3. Three areas for improvement
4. Three specific recommendations for continued growth

Format your response as JSON with keys: summary, strengths, areas_for_improvement, recommendations, detailed_analysis
`,
		win.TotalSessions,
		win.LessonsCompleted,
		win.TotalMessages,
		avgPerSession,
		pat.MessageCount,
		pat.AvgMessageLength,
		pat.BusinessFocusRatio*100,
		pat.LeadershipFocusRatio*100,
		strings.Join(samples, "\n"),
	)
}
