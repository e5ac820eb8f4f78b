// Package suggest proposes short paper titles from similar indexed titles.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/types"
	"github.com/xhad/promptlab/pkg/processor"
	"github.com/xhad/promptlab/pkg/prompt"
	"k8s.io/klog/v2"
)

// Retriever finds indexed titles close to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.ScoredDocument, error)
}

type SuggesterConfig struct {
	// Similar is the number of retrieved titles placed in the prompt.
	Similar int
}

type Suggester struct {
	config    SuggesterConfig
	retriever Retriever
	completer types.Completer
}

// Suggestion is the outcome of one Suggest call.
type Suggestion struct {
	Title   string
	Similar []models.ScoredDocument
	Prompt  string
	Raw     string
	Titles  []string
}

func NewWithConfig(config SuggesterConfig, retriever Retriever, completer types.Completer) (*Suggester, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if config.Similar <= 0 {
		config.Similar = 10
	}
	return &Suggester{config: config, retriever: retriever, completer: completer}, nil
}

func (s *Suggester) Suggest(ctx context.Context, title string) (*Suggestion, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is empty")
	}
	logger := klog.FromContext(ctx)

	// One extra result covers the paper itself when it is already indexed.
	docs, err := s.retriever.Retrieve(ctx, title, s.config.Similar+1)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve similar titles: %w", err)
	}

	key := processor.Normalize(title)
	similar := make([]models.ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		if processor.Normalize(doc.Text) == key {
			continue
		}
		similar = append(similar, doc)
	}
	if len(similar) > s.config.Similar {
		similar = similar[:s.config.Similar]
	}
	examples := models.Titles(similar)
	logger.V(1).Info("Retrieved similar titles", "title", title, "similar", len(examples))

	p, err := prompt.TitleSuggestion(title, examples)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Send(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}

	return &Suggestion{
		Title:   title,
		Similar: similar,
		Prompt:  p,
		Raw:     raw,
		Titles:  Filter(ParseList(raw), examples),
	}, nil
}

var (
	numbered = regexp.MustCompile(`^\s*\(?\d+[.):]\s+`)
	bulleted = regexp.MustCompile(`^\s*[-*•]\s+`)
)

// ParseList reads the titles out of a model reply. Numbered lines win; a reply
// without numbering is read one title per non-empty line.
func ParseList(raw string) []string {
	var items, plain []string
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case numbered.MatchString(line):
			items = appendClean(items, numbered.ReplaceAllString(line, ""))
		case bulleted.MatchString(line):
			items = appendClean(items, bulleted.ReplaceAllString(line, ""))
		default:
			plain = appendClean(plain, line)
		}
	}
	if len(items) > 0 {
		return items
	}
	return plain
}

func appendClean(list []string, s string) []string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	s = strings.Trim(s, `"'“”`)
	s = strings.TrimSpace(s)
	if s == "" {
		return list
	}
	return append(list, s)
}

// Filter drops titles equal to an excluded one, and repeats, comparing
// normalized text.
func Filter(titles, exclude []string) []string {
	seen := make(map[string]bool, len(titles)+len(exclude))
	for _, t := range exclude {
		seen[processor.Normalize(t)] = true
	}
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		key := processor.Normalize(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
