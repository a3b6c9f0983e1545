package faq

import (
	"fmt"
	"strings"
)

const extractionPromptTemplate = `You are a knowledge base editor for a support help desk. Read the document below and extract every frequently asked question it answers.

Output ONLY a JSON array of objects with exactly two string fields, "question" and "answer". Do not include any other text, prose, or markdown.

Rules:
- Phrase each question the way a user would ask it.
- Keep each answer self-contained and faithful to the document.
- Skip content that is not useful as a standalone question and answer.
- If the document contains no FAQ-worthy content, output an empty array: []

Document:
"""
%s
"""`

const learningPromptTemplate = `You decide whether a support conversation exchange should become a reusable FAQ entry.

Save it only if it is general, reusable knowledge:
- questions about platform features or how the platform works
- troubleshooting steps for common problems
- how-to instructions
- policy questions

Do NOT save it if it is:
- personal or about one specific user's account, tickets or data
- dependent on earlier conversation context to make sense
- a greeting, thanks, or small talk

If it should be saved, output ONLY a JSON object {"question": "...", "answer": "..."} where the question is rephrased for a general audience and the answer is refined to be clear and self-contained.
If it should not be saved, output ONLY {"shouldSave": false}.
Do not include any other text, prose, or markdown.

User question:
%s

Assistant answer:
%s`

// BuildExtractionPrompt embeds document text in the extraction instructions.
func BuildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionPromptTemplate, strings.TrimSpace(text))
}

// BuildLearningPrompt embeds one exchange in the learning instructions.
func BuildLearningPrompt(question, answer string) string {
	return fmt.Sprintf(learningPromptTemplate, strings.TrimSpace(question), strings.TrimSpace(answer))
}
