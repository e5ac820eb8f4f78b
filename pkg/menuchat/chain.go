package menuchat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xhad/promptlab/internal/types"
	"github.com/xhad/promptlab/pkg/errs"
	"k8s.io/klog/v2"
)

// Chain runs the menu stages against one completer. It holds no state
// between calls.
type Chain struct {
	menu      string
	completer types.Completer
}

// Result holds the output of every stage of one Run.
type Result struct {
	Query      string
	Reasoning  string
	Assessment Assessment
	Extracted  string
	Refined    string
	Final      string
}

func NewChain(completer types.Completer, menu string) (*Chain, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if strings.TrimSpace(menu) == "" {
		return nil, errors.New("menu is empty")
	}
	return &Chain{menu: menu, completer: completer}, nil
}

// Run answers query by calling Reason, Extract, Refine and Verify in order.
func (c *Chain) Run(ctx context.Context, query string) (*Result, error) {
	res := &Result{Query: query}
	var err error

	if res.Reasoning, res.Assessment, err = c.Reason(ctx, query); err != nil {
		return res, err
	}
	if res.Extracted, err = c.Extract(ctx, res.Reasoning); err != nil {
		return res, err
	}
	if res.Refined, err = c.Refine(ctx, res.Extracted); err != nil {
		return res, err
	}
	if res.Final, err = c.Verify(ctx, query, res.Refined); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Chain) Reason(ctx context.Context, query string) (string, Assessment, error) {
	if strings.TrimSpace(query) == "" {
		return "", Assessment{}, &errs.StageError{Stage: StageReasoning, Err: errors.New("query is empty")}
	}
	stage := &reasoningStage{}
	out, err := c.run(ctx, stage, Input{Query: query, Menu: c.menu})
	if err != nil {
		return "", Assessment{}, err
	}
	return out, stage.assessment, nil
}

func (c *Chain) Extract(ctx context.Context, reasoning string) (string, error) {
	return c.run(ctx, extractionStage{}, Input{Menu: c.menu, Text: reasoning})
}

func (c *Chain) Refine(ctx context.Context, extracted string) (string, error) {
	return c.run(ctx, refinementStage{}, Input{Menu: c.menu, Text: extracted})
}

func (c *Chain) Verify(ctx context.Context, query, refined string) (string, error) {
	return c.run(ctx, verificationStage{}, Input{Query: query, Menu: c.menu, Text: refined})
}

func (c *Chain) run(ctx context.Context, stage Stage, in Input) (string, error) {
	logger := klog.FromContext(ctx).WithValues("stage", stage.Name())
	start := time.Now()

	p, err := stage.Prompt(in)
	if err != nil {
		return "", &errs.StageError{Stage: stage.Name(), Err: err}
	}
	out, err := c.completer.Send(ctx, p)
	if err != nil {
		return "", &errs.StageError{Stage: stage.Name(), Err: err}
	}
	text, err := stage.Parse(out)
	if err != nil {
		return "", &errs.StageError{Stage: stage.Name(), Err: err}
	}

	logger.V(1).Info("Stage complete", "duration", time.Since(start))
	logger.V(2).Info("Stage output", "text", text)
	return text, nil
}
