package models

// Paper is one row of the short-titles dataset.
type Paper struct {
	Title       string
	Description string
	PaperURL    string
	TweetURL    string
	Abstract    string
}

// Metadata is stored next to every indexed title.
type Metadata struct {
	URL      string `json:"url"`
	TweetURL string `json:"tweet_url,omitempty"`
	Abstract string `json:"abstract,omitempty"`
}

type IndexedDocument struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// ScoredDocument is a query hit. Similarity is cosine similarity, higher is closer.
type ScoredDocument struct {
	IndexedDocument
	Similarity float64
}

// Titles returns the text of every document in order.
func Titles(docs []ScoredDocument) []string {
	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		titles = append(titles, doc.Text)
	}
	return titles
}
