package menuchat_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/promptlab/internal/testutil"
	"github.com/xhad/promptlab/pkg/errs"
	"github.com/xhad/promptlab/pkg/menuchat"
	"github.com/xhad/promptlab/pkg/prompt"
)

const cheeseburgerQuery = "What is the price of the cheeseburger?"

// stageOf tells which stage rendered a prompt.
func stageOf(p string) string {
	switch {
	case strings.Contains(p, prompt.ResponseLabel+" your response"):
		return menuchat.StageReasoning
	case strings.Contains(p, "Extract only the response"):
		return menuchat.StageExtraction
	case strings.Contains(p, "one friendly sentence"):
		return menuchat.StageRefinement
	case strings.Contains(p, "check answers"):
		return menuchat.StageVerification
	}
	return ""
}

// restaurantModel mimics a model that gets the item name and price wrong
// until the verification stage.
func restaurantModel(p string) (string, error) {
	switch stageOf(p) {
	case menuchat.StageReasoning:
		return "Step 1: the customer asks about food.\n" +
			"Step 2: the cheeseburger is on the menu.\n" +
			"Step 3: answer with the price.\n" +
			"Food related: yes\n" +
			"On menu: yes\n" +
			"Response to user: #### The cheeseburger costs $5.99. ####", nil
	case menuchat.StageExtraction:
		return "The cheeseburger costs $5.99.", nil
	case menuchat.StageRefinement:
		return "Our tasty cheeseburger is just $5.99!", nil
	case menuchat.StageVerification:
		if strings.Contains(p, "Mini Cheeseburger: $6.99") {
			return "Our tasty Mini Cheeseburger is just $6.99!", nil
		}
		return "Our tasty cheeseburger is just $5.99!", nil
	}
	return "", errors.New("unexpected prompt")
}

func loadMenu(t *testing.T) string {
	t.Helper()
	menu, err := menuchat.LoadMenu(filepath.Join("testdata", "menu.txt"))
	require.NoError(t, err)
	return menu
}

func TestRunCheeseburger(t *testing.T) {
	comp := &testutil.Completer{Reply: restaurantModel}
	chain, err := menuchat.NewChain(comp, loadMenu(t))
	require.NoError(t, err)

	res, err := chain.Run(context.Background(), cheeseburgerQuery)
	require.NoError(t, err)

	assert.Equal(t, cheeseburgerQuery, res.Query)
	assert.Equal(t, menuchat.Assessment{
		FoodRelated: true,
		OnMenu:      true,
		Response:    "The cheeseburger costs $5.99.",
	}, res.Assessment)
	assert.Equal(t, "The cheeseburger costs $5.99.", res.Extracted)
	assert.Contains(t, res.Final, "Mini Cheeseburger")
	assert.Contains(t, res.Final, "$6.99")

	sent := comp.Sent()
	require.Len(t, sent, 4)
	for i, name := range []string{
		menuchat.StageReasoning, menuchat.StageExtraction, menuchat.StageRefinement, menuchat.StageVerification,
	} {
		assert.Equal(t, name, stageOf(sent[i]))
	}
}

func TestRunEqualsExplicitStages(t *testing.T) {
	ctx := context.Background()
	menu := loadMenu(t)

	// Replies depend only on the prompt so both runs see the same outputs.
	reply := func(p string) (string, error) {
		out, err := restaurantModel(p)
		return out + " [" + stageOf(p) + "]", err
	}

	runComp := &testutil.Completer{Reply: reply}
	runChain, err := menuchat.NewChain(runComp, menu)
	require.NoError(t, err)
	res, err := runChain.Run(ctx, cheeseburgerQuery)
	require.NoError(t, err)

	stepComp := &testutil.Completer{Reply: reply}
	stepChain, err := menuchat.NewChain(stepComp, menu)
	require.NoError(t, err)

	reasoning, assessment, err := stepChain.Reason(ctx, cheeseburgerQuery)
	require.NoError(t, err)
	extracted, err := stepChain.Extract(ctx, reasoning)
	require.NoError(t, err)
	refined, err := stepChain.Refine(ctx, extracted)
	require.NoError(t, err)
	final, err := stepChain.Verify(ctx, cheeseburgerQuery, refined)
	require.NoError(t, err)

	assert.Equal(t, &menuchat.Result{
		Query:      cheeseburgerQuery,
		Reasoning:  reasoning,
		Assessment: assessment,
		Extracted:  extracted,
		Refined:    refined,
		Final:      final,
	}, res)
	assert.Equal(t, runComp.Sent(), stepComp.Sent())

	// Each stage consumes exactly the previous stage's output.
	sent := stepComp.Sent()
	assert.Contains(t, sent[1], prompt.Delimiter+reasoning+prompt.Delimiter)
	assert.Contains(t, sent[2], prompt.Delimiter+extracted+prompt.Delimiter)
	assert.Contains(t, sent[3], prompt.Delimiter+refined+prompt.Delimiter)
}

func TestRunStageErrors(t *testing.T) {
	boom := errors.New("provider down")

	tests := []struct {
		name      string
		failStage string
		reply     func(p string) (string, error)
		wantCause error
		wantSent  int
	}{
		{
			name:      "reasoning without response",
			failStage: menuchat.StageReasoning,
			reply: func(p string) (string, error) {
				return "Food related: yes\nOn menu: no", nil
			},
			wantSent: 1,
		},
		{
			name:      "extraction provider failure",
			failStage: menuchat.StageExtraction,
			reply: func(p string) (string, error) {
				if stageOf(p) == menuchat.StageExtraction {
					return "", boom
				}
				return restaurantModel(p)
			},
			wantCause: boom,
			wantSent:  2,
		},
		{
			name:      "empty refinement",
			failStage: menuchat.StageRefinement,
			reply: func(p string) (string, error) {
				if stageOf(p) == menuchat.StageRefinement {
					return " #### ", nil
				}
				return restaurantModel(p)
			},
			wantSent: 3,
		},
		{
			name:      "verification provider failure",
			failStage: menuchat.StageVerification,
			reply: func(p string) (string, error) {
				if stageOf(p) == menuchat.StageVerification {
					return "", boom
				}
				return restaurantModel(p)
			},
			wantCause: boom,
			wantSent:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &testutil.Completer{Reply: tt.reply}
			chain, err := menuchat.NewChain(comp, loadMenu(t))
			require.NoError(t, err)

			_, err = chain.Run(context.Background(), cheeseburgerQuery)
			var se *errs.StageError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.failStage, se.Stage)
			if tt.wantCause != nil {
				assert.ErrorIs(t, err, tt.wantCause)
			}
			assert.Len(t, comp.Sent(), tt.wantSent, "no stage runs after a failure")
		})
	}
}

func TestRunEmptyQuery(t *testing.T) {
	comp := &testutil.Completer{Reply: restaurantModel}
	chain, err := menuchat.NewChain(comp, loadMenu(t))
	require.NoError(t, err)

	_, err = chain.Run(context.Background(), "  ")
	var se *errs.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, menuchat.StageReasoning, se.Stage)
	assert.Empty(t, comp.Sent())
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    menuchat.Assessment
		wantErr bool
	}{
		{
			name: "plain labels",
			text: "Step 1: ...\nFood related: yes\nOn menu: no\nResponse to user: Sorry, we do not serve pizza.",
			want: menuchat.Assessment{FoodRelated: true, Response: "Sorry, we do not serve pizza."},
		},
		{
			name: "markdown and delimiters",
			text: "**Food related:** Yes.\n**On menu:** yes\nResponse to user:#### Our Mini Cheeseburger is $6.99.\nEnjoy! ####",
			want: menuchat.Assessment{FoodRelated: true, OnMenu: true, Response: "Our Mini Cheeseburger is $6.99.\nEnjoy!"},
		},
		{
			name: "not food",
			text: "food related: no\nresponse to user: I can only help with our menu.",
			want: menuchat.Assessment{Response: "I can only help with our menu."},
		},
		{
			name:    "missing response",
			text:    "Food related: yes\nOn menu: yes",
			wantErr: true,
		},
		{
			name:    "empty response",
			text:    "Food related: yes\nResponse to user: ####  ####",
			wantErr: true,
		},
		{
			name: "unrecognized yes/no",
			text: "Food related: maybe\nResponse to user: hi",
			want: menuchat.Assessment{Response: "hi"},
		},
		{
			name: "partial menu match",
			text: "Food related: yes\nOn menu: partially, listed as Mini Cheeseburger\nResponse to user: The Mini Cheeseburger is $6.99.",
			want: menuchat.Assessment{FoodRelated: true, Response: "The Mini Cheeseburger is $6.99."},
		},
		{
			name: "bold response label",
			text: "**Food related:** yes\n**On menu:** yes\n**Response to user:** The Mini Cheeseburger is $6.99.",
			want: menuchat.Assessment{FoodRelated: true, OnMenu: true, Response: "The Mini Cheeseburger is $6.99."},
		},
		{
			name: "bold response label over lines",
			text: "**Response to user:**\n#### The Mini Cheeseburger is $6.99. ####",
			want: menuchat.Assessment{Response: "The Mini Cheeseburger is $6.99."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := menuchat.ParseAssessment(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunPartialMenuMatch(t *testing.T) {
	reply := func(p string) (string, error) {
		if stageOf(p) == menuchat.StageReasoning {
			return "Food related: yes\n" +
				"On menu: partially, listed as Mini Cheeseburger\n" +
				"Response to user: **The Mini Cheeseburger is $6.99.**", nil
		}
		return restaurantModel(p)
	}
	comp := &testutil.Completer{Reply: reply}
	chain, err := menuchat.NewChain(comp, loadMenu(t))
	require.NoError(t, err)

	res, err := chain.Run(context.Background(), cheeseburgerQuery)
	require.NoError(t, err)

	assert.True(t, res.Assessment.FoodRelated)
	assert.False(t, res.Assessment.OnMenu)
	assert.Equal(t, "The Mini Cheeseburger is $6.99.", res.Assessment.Response)
	assert.Len(t, comp.Sent(), 4)
	assert.Contains(t, res.Final, "$6.99")
}

func TestLoadMenu(t *testing.T) {
	menu := loadMenu(t)
	assert.Contains(t, menu, "Mini Cheeseburger: $6.99")

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))

	var le *errs.DataLoadError
	_, err := menuchat.LoadMenu(empty)
	assert.True(t, errors.As(err, &le))

	_, err = menuchat.LoadMenu(filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.As(err, &le))
}

func TestNewChain(t *testing.T) {
	_, err := menuchat.NewChain(nil, "menu")
	assert.Error(t, err)
	_, err = menuchat.NewChain(&testutil.Completer{}, " ")
	assert.Error(t, err)
}
