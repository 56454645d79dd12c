package search

import (
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"
)

// Doc is the indexed projection of an item.
type Doc struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Status      string `json:"status"`
}

// Hit is one keyword-search result.
type Hit struct {
	ItemID int64
	Score  float64
	Rank   int
}

// Index is an in-memory full-text index over item reports. It is rebuilt
// on startup from the database and kept current as items change.
type Index struct {
	idx  bleve.Index
	meta map[string]Doc
	mu   sync.RWMutex
}

// NewIndex builds an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx, meta: make(map[string]Doc)}, nil
}

// IndexItem adds or replaces one item in the index.
func (x *Index) IndexItem(itemID int64, doc Doc) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	id := strconv.FormatInt(itemID, 10)
	x.meta[id] = doc
	return x.idx.Index(id, doc)
}

// RemoveItem drops an item from the index.
func (x *Index) RemoveItem(itemID int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	id := strconv.FormatInt(itemID, 10)
	delete(x.meta, id)
	return x.idx.Delete(id)
}

// Search runs a keyword query and returns up to k item hits ranked by
// relevance.
func (x *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)

	x.mu.RLock()
	res, err := x.idx.Search(req)
	x.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var out []Hit
	for i, hit := range res.Hits {
		itemID, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Hit{ItemID: itemID, Score: hit.Score, Rank: i + 1})
	}
	return out, nil
}
