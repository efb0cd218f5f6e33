package result

// SnippetLength is the maximum length, in characters, of a content snippet.
const SnippetLength = 100

// Hit is a single chunk returned by the similarity query.
type Hit struct {
	ChunkUUID string
	MemoUUID  string
	OrgID     string
	ProjectID string
	Content   string
	Position  int
	// Distance is the cosine distance to the query vector; smaller is closer.
	Distance float64
}

// MemoSummary is the title and summary of a memo.
type MemoSummary struct {
	MemoUUID string
	Title    string
	Summary  string
}

// Enriched is a hit joined with its memo summary.
type Enriched struct {
	Hit
	MemoTitle   string
	MemoSummary string
}

// Snippet returns the hit content truncated to SnippetLength characters.
func (e Enriched) Snippet() string { return Truncate(e.Content, SnippetLength) }

// Reranked is a snippet with its relevance score and source metadata. Index is the
// snippet position in the list given to the reranker.
type Reranked struct {
	Index     int
	Snippet   string
	Score     float64
	MemoUUID  string
	MemoTitle string
}

// Ref is the source metadata carried alongside a snippet through reranking.
type Ref struct {
	MemoUUID  string
	MemoTitle string
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
