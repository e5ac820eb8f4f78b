package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/xhad/promptlab/internal/models"
)

type ProcessorConfig struct {
	// IDBytes is how many bytes of the SHA-256 digest make up a document id.
	IDBytes int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.IDBytes <= 0 || config.IDBytes > sha256.Size {
		config.IDBytes = 16
	}

	return Processor{
		config: config,
	}
}

// Process turns papers into documents ready for embedding. Papers that map to
// the same id collapse into one document: the later record's content wins,
// the earlier record's position is kept.
func (p *Processor) Process(papers []models.Paper) []models.IndexedDocument {
	docs := make([]models.IndexedDocument, 0, len(papers))
	position := make(map[string]int, len(papers))

	for _, paper := range papers {
		doc := models.IndexedDocument{
			ID:   p.DocumentID(paper),
			Text: sanitizeUTF8(strings.TrimSpace(paper.Title)),
			Metadata: models.Metadata{
				URL:      paper.PaperURL,
				TweetURL: paper.TweetURL,
				Abstract: sanitizeUTF8(paper.Abstract),
			},
		}

		if i, seen := position[doc.ID]; seen {
			docs[i] = doc
			continue
		}
		position[doc.ID] = len(docs)
		docs = append(docs, doc)
	}

	return docs
}

// DocumentID derives a stable id from the normalized title and the paper URL,
// so re-indexing the same paper overwrites it and two papers sharing a title
// stay apart.
func (p *Processor) DocumentID(paper models.Paper) string {
	h := sha256.New()
	h.Write([]byte(Normalize(paper.Title)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(paper.PaperURL)))
	return hex.EncodeToString(h.Sum(nil)[:p.config.IDBytes])
}

// Normalize lower-cases text, drops invalid UTF-8 and collapses whitespace.
func Normalize(text string) string {
	text = strings.ToLower(sanitizeUTF8(text))
	return strings.Join(strings.Fields(text), " ")
}

// Batches splits docs into consecutive slices of at most size elements.
func Batches(docs []models.IndexedDocument, size int) [][]models.IndexedDocument {
	if size <= 0 {
		size = len(docs)
	}

	var batches [][]models.IndexedDocument
	for i := 0; i < len(docs); i += size {
		end := i + size
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, docs[i:end])
	}
	return batches
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
