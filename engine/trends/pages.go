package trends

import (
	"context"
	"iter"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/youtube"
)

// Pages walks search results lazily, following continuation tokens until the
// provider stops returning one or maxPages pages were yielded. A failed page
// is yielded once with its error and ends the sequence. The sequence is
// single-use: ranging over it a second time yields nothing.
func Pages(ctx context.Context, s Searcher, key string, p youtube.SearchParams, maxPages int) iter.Seq2[domain.SearchPage, error] {
	used := false
	return func(yield func(domain.SearchPage, error) bool) {
		if used {
			return
		}
		used = true

		token := ""
		for range maxPages {
			p.PageToken = token
			page, err := s.Search(ctx, key, p)
			if err != nil {
				yield(domain.SearchPage{}, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			token = page.NextPageToken
			if token == "" {
				return
			}
		}
	}
}
