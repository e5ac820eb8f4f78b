package menuchat

import (
	"errors"
	"strings"

	"github.com/xhad/promptlab/pkg/prompt"
	"k8s.io/klog/v2"
)

const (
	StageReasoning    = "reasoning"
	StageExtraction   = "extraction"
	StageRefinement   = "refinement"
	StageVerification = "verification"
)

// Input carries what a stage may read: the user query, the menu and the
// previous stage's output.
type Input struct {
	Query string
	Menu  string
	Text  string
}

// Stage is one model call in the chain.
type Stage interface {
	Name() string
	// Prompt renders the stage prompt.
	Prompt(in Input) (string, error)
	// Parse validates the model output and returns the text handed to the
	// next stage.
	Parse(output string) (string, error)
}

// reasoningStage keeps the assessment it parsed so the chain reads it once.
type reasoningStage struct {
	assessment Assessment
}

func (*reasoningStage) Name() string { return StageReasoning }

func (*reasoningStage) Prompt(in Input) (string, error) {
	return prompt.Reasoning(in.Query, in.Menu)
}

func (s *reasoningStage) Parse(output string) (string, error) {
	a, err := ParseAssessment(output)
	if err != nil {
		return "", err
	}
	s.assessment = a
	return strings.TrimSpace(output), nil
}

type extractionStage struct{}

func (extractionStage) Name() string { return StageExtraction }

func (extractionStage) Prompt(in Input) (string, error) {
	return prompt.Extraction(in.Text)
}

func (extractionStage) Parse(output string) (string, error) {
	text := stripDelimiters(output)
	if rest, ok := cutLabel(text, prompt.ResponseLabel); ok {
		text = stripDelimiters(rest)
	}
	return nonEmpty(text)
}

type refinementStage struct{}

func (refinementStage) Name() string { return StageRefinement }

func (refinementStage) Prompt(in Input) (string, error) {
	return prompt.Refinement(in.Text)
}

func (refinementStage) Parse(output string) (string, error) {
	return nonEmpty(stripDelimiters(output))
}

type verificationStage struct{}

func (verificationStage) Name() string { return StageVerification }

func (verificationStage) Prompt(in Input) (string, error) {
	return prompt.Verification(in.Query, in.Text, in.Menu)
}

func (verificationStage) Parse(output string) (string, error) {
	return nonEmpty(stripDelimiters(output))
}

// Assessment is the structured part of the reasoning stage output.
type Assessment struct {
	FoodRelated bool
	OnMenu      bool
	Response    string
}

// ParseAssessment reads the labelled lines at the end of a reasoning reply.
// The response label is required and takes everything after it. The yes/no
// labels are false when absent or when the value is neither yes nor no.
func ParseAssessment(text string) (Assessment, error) {
	var a Assessment
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.Trim(stripDelimiters(line), "*_ ")

		if v, ok := cutLabel(line, prompt.FoodRelatedLabel); ok {
			a.FoodRelated = parseYesNo(prompt.FoodRelatedLabel, v)
			continue
		}
		if v, ok := cutLabel(line, prompt.OnMenuLabel); ok {
			a.OnMenu = parseYesNo(prompt.OnMenuLabel, v)
			continue
		}
		if v, ok := cutLabel(line, prompt.ResponseLabel); ok {
			rest := append([]string{v}, lines[i+1:]...)
			a.Response = cleanResponse(strings.Join(rest, "\n"))
			break
		}
	}

	if a.Response == "" {
		return Assessment{}, errors.New("reasoning has no response to the user")
	}
	return a, nil
}

func cutLabel(line, label string) (string, bool) {
	line = strings.TrimSpace(line)
	if len(line) < len(label) || !strings.EqualFold(line[:len(label)], label) {
		return "", false
	}
	return line[len(label):], true
}

func parseYesNo(label, v string) bool {
	v = strings.ToLower(strings.Trim(v, " *_.#"))
	switch {
	case strings.HasPrefix(v, "yes"), strings.HasPrefix(v, "true"):
		return true
	case strings.HasPrefix(v, "no"), strings.HasPrefix(v, "false"):
		return false
	}
	klog.V(1).InfoS("Unrecognized assessment value, using no", "label", label, "value", v)
	return false
}

// cleanResponse drops emphasis markers and delimiters around a response,
// e.g. the closing "**" of a bold label.
func cleanResponse(s string) string {
	for {
		next := stripDelimiters(strings.Trim(strings.TrimSpace(s), "*_"))
		if next == s {
			return s
		}
		s = next
	}
}

func stripDelimiters(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, prompt.Delimiter)
	s = strings.TrimSuffix(s, prompt.Delimiter)
	return strings.TrimSpace(s)
}

func nonEmpty(s string) (string, error) {
	if s == "" {
		return "", errors.New("empty output")
	}
	return s, nil
}
