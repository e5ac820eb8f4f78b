// Package dataset reads the short-titles table into paper records.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/pkg/errs"
)

// Stats counts the rows seen while loading.
type Stats struct {
	Rows    int
	Dropped int
}

// Kept is the number of rows that became paper records.
func (s Stats) Kept() int { return s.Rows - s.Dropped }

const (
	colTitle       = "title"
	colDescription = "description"
	colPaperURL    = "paperurl"
	colTweetURL    = "tweeturl"
	colAbstract    = "abstract"
)

// Load reads a CSV file, or a TSV file when the extension is .tsv.
func Load(path string) ([]models.Paper, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, &errs.DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	comma := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		comma = '\t'
	}

	papers, stats, err := Read(f, comma)
	if err != nil {
		var loadErr *errs.DataLoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
			return nil, stats, loadErr
		}
		return nil, stats, &errs.DataLoadError{Path: path, Err: err}
	}
	return papers, stats, nil
}

// Read parses a header row followed by data rows. Rows with an empty title or
// description are dropped.
func Read(r io.Reader, comma rune) ([]models.Paper, Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, &errs.DataLoadError{Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, stats, &errs.DataLoadError{Line: 1, Err: err}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeHeader(name)] = i
	}
	for _, required := range []string{colTitle, colDescription} {
		if _, ok := columns[required]; !ok {
			return nil, stats, &errs.DataLoadError{Line: 1, Err: fmt.Errorf("missing %q column", required)}
		}
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var papers []models.Paper
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, stats, &errs.DataLoadError{Line: line, Err: err}
		}
		stats.Rows++

		paper := models.Paper{
			Title:       field(row, colTitle),
			Description: field(row, colDescription),
			PaperURL:    field(row, colPaperURL),
			TweetURL:    field(row, colTweetURL),
			Abstract:    field(row, colAbstract),
		}
		if paper.Title == "" || paper.Description == "" {
			stats.Dropped++
			continue
		}
		papers = append(papers, paper)
	}

	return papers, stats, nil
}

// normalizeHeader maps "Paper URL", "paper_url" and "PaperURL" to the same key.
func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name)
}
