package dataset_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/promptlab/pkg/dataset"
	"github.com/xhad/promptlab/pkg/errs"
)

func TestLoadCSV(t *testing.T) {
	papers, stats, err := dataset.Load(filepath.Join("testdata", "short_titles.csv"))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, stats.Kept(), len(papers))

	require.Len(t, papers, 2)
	assert.Equal(t, "Self-RAG", papers[0].Title)
	assert.Equal(t, "https://arxiv.org/abs/2310.11511", papers[0].PaperURL)
	assert.Empty(t, papers[0].Abstract)
	assert.Equal(t, "Llemma", papers[1].Title)
	assert.Equal(t, "We present Llemma.", papers[1].Abstract)
}

func TestLoadTSV(t *testing.T) {
	papers, stats, err := dataset.Load(filepath.Join("testdata", "short_titles.tsv"))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Rows)
	require.Len(t, papers, 1)
	assert.Equal(t, "Mistral 7B", papers[0].Title)
	assert.Equal(t, "https://arxiv.org/abs/2310.06825", papers[0].PaperURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := dataset.Load(filepath.Join(t.TempDir(), "nope.csv"))

	var loadErr *errs.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Path, "nope.csv")
}

func TestReadRetention(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kept    int
		dropped int
	}{
		{
			name:  "all complete",
			input: "Title,Description\nA,a\nB,b\n",
			kept:  2,
		},
		{
			name:    "blank cells are dropped",
			input:   "Title,Description\nA,\n,b\n  ,  \nC,c\n",
			kept:    1,
			dropped: 3,
		},
		{
			name:    "short rows are dropped",
			input:   "Title,Description,Abstract\nA\nB,b,x\n",
			kept:    1,
			dropped: 1,
		},
		{
			name:  "header only",
			input: "Title,Description\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			papers, stats, err := dataset.Read(strings.NewReader(tt.input), ',')
			require.NoError(t, err)
			assert.Len(t, papers, tt.kept)
			assert.Equal(t, tt.dropped, stats.Dropped)
			assert.Equal(t, stats.Rows-stats.Dropped, len(papers))
			for _, p := range papers {
				assert.NotEmpty(t, p.Title)
				assert.NotEmpty(t, p.Description)
			}
		})
	}
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing description column", "Title,Abstract\nA,x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := dataset.Read(strings.NewReader(tt.input), ',')
			var loadErr *errs.DataLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, 1, loadErr.Line)
		})
	}
}
