package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// answerInstructions is the instruction block sent to the generation
// capability, with retrieved passages as the only permitted grounding.
const answerInstructions = `You are a document assistant. Based on the following documents, please answer the question clearly and professionally.

Context from the documents:
%s

Question: %s

Please provide a comprehensive answer based only on the information provided in the documents above. If the documents don't contain enough information to fully answer the question, please say so and suggest what additional information might be needed.

Answer:`

// BuildPrompt assembles the generation prompt from retrieved passages (in
// ranked order) and the question.
func BuildPrompt(results []vector.Result, question string) string {
	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Passage.Text
	}
	return fmt.Sprintf(answerInstructions, strings.Join(contexts, "\n\n"), question)
}

// Citation returns the provenance string for a passage: "page <page> from <source>".
func Citation(p models.Passage) string {
	page := "unknown"
	if p.PageNumber != models.PageUnknown {
		page = strconv.Itoa(p.PageNumber)
	}
	return fmt.Sprintf("page %s from %s", page, p.SourceDocument)
}
