// Package prompt holds the prompt templates sent to the completion model.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// Delimiter separates user-supplied text from instructions in the menu chat stages.
const Delimiter = "####"

// Line prefixes the reasoning stage is asked to emit.
const (
	FoodRelatedLabel = "Food related:"
	OnMenuLabel      = "On menu:"
	ResponseLabel    = "Response to user:"
)

// SuggestionCount is how many titles the model is asked for.
const SuggestionCount = 5

var titleSuggestion = prompts.NewPromptTemplate(`You write short, catchy titles for research papers.

Here are short titles of papers similar to the one below, one per line:
{{.examples}}

Suggest {{.count}} short titles for the following paper in the same style as the titles above.
Do not repeat any of the titles above verbatim.
Answer with a numbered list of titles and nothing else.

Paper title: {{.title}}`, []string{"examples", "count", "title"})

var reasoning = prompts.NewPromptTemplate(`You are a customer service assistant for a restaurant.
The customer query is delimited with {{.delimiter}} characters.

Follow these steps to answer the query.
Step 1: decide whether the query is about food or drink.
Step 2: if it is, find the items the customer mentions in the menu below. The customer may use a shorter or slightly different name than the menu does.
Step 3: write a polite response to the customer. Use the exact item names and prices from the menu. If an item is not on the menu, say so and suggest the closest items that are. If the query is not about food, steer the customer back to the menu.

Write your reasoning for each step, then finish with exactly these three lines:
{{.food_label}} yes or no
{{.menu_label}} yes or no
{{.response_label}} your response to the customer

Menu:
{{.menu}}

{{.delimiter}}{{.query}}{{.delimiter}}`, []string{"delimiter", "food_label", "menu_label", "response_label", "menu", "query"})

var extraction = prompts.NewPromptTemplate(`The text below, delimited with {{.delimiter}} characters, is the reasoning of a restaurant assistant.
Extract only the response the assistant intends to send to the customer.
Output that response and nothing else, without labels or delimiters.

{{.delimiter}}{{.reasoning}}{{.delimiter}}`, []string{"delimiter", "reasoning"})

var refinement = prompts.NewPromptTemplate(`Rewrite the message below, delimited with {{.delimiter}} characters, as one friendly sentence for a restaurant customer.
Keep every item name and price exactly as written.
Output only the rewritten sentence.

{{.delimiter}}{{.text}}{{.delimiter}}`, []string{"delimiter", "text"})

var verification = prompts.NewPromptTemplate(`You check answers written by a restaurant assistant against the menu.

Customer query: {{.delimiter}}{{.query}}{{.delimiter}}
Assistant answer: {{.delimiter}}{{.answer}}{{.delimiter}}

Menu:
{{.menu}}

If every item name and price in the answer matches the menu, output the answer unchanged.
Otherwise output a corrected answer that uses the item names and prices from the menu.
Output only the final answer.`, []string{"delimiter", "query", "answer", "menu"})

// TitleSuggestion asks for new titles for original in the style of retrieved.
func TitleSuggestion(original string, retrieved []string) (string, error) {
	if strings.TrimSpace(original) == "" {
		return "", errors.New("original title is empty")
	}
	return format(titleSuggestion, map[string]any{
		"examples": strings.Join(retrieved, "\n"),
		"count":    SuggestionCount,
		"title":    original,
	})
}

func Reasoning(query, menu string) (string, error) {
	return format(reasoning, map[string]any{
		"delimiter":      Delimiter,
		"food_label":     FoodRelatedLabel,
		"menu_label":     OnMenuLabel,
		"response_label": ResponseLabel,
		"menu":           menu,
		"query":          query,
	})
}

func Extraction(reasoningText string) (string, error) {
	return format(extraction, map[string]any{
		"delimiter": Delimiter,
		"reasoning": reasoningText,
	})
}

func Refinement(extracted string) (string, error) {
	return format(refinement, map[string]any{
		"delimiter": Delimiter,
		"text":      extracted,
	})
}

func Verification(query, refined, menu string) (string, error) {
	return format(verification, map[string]any{
		"delimiter": Delimiter,
		"query":     query,
		"answer":    refined,
		"menu":      menu,
	})
}

func format(t prompts.PromptTemplate, values map[string]any) (string, error) {
	out, err := t.Format(values)
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return out, nil
}
