package youtube

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/dnastudio/trendscout/engine/domain"
)

// searchResponse is the Data API v3 search response.
type searchResponse struct {
	Items []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID any    `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// page keeps only items whose id carries a non-empty string video id.
func (r searchResponse) page() domain.SearchPage {
	p := domain.SearchPage{NextPageToken: r.NextPageToken}
	for _, it := range r.Items {
		if id, ok := it.ID.VideoID.(string); ok && id != "" {
			p.VideoIDs = append(p.VideoIDs, id)
		}
	}
	return p
}

func (r searchResponse) titles() []string {
	var out []string
	for _, it := range r.Items {
		if it.Snippet.Title != "" {
			out = append(out, it.Snippet.Title)
		}
	}
	return out
}

// count decodes a statistic the API sends as a string ("1234") or a number.
// Anything unparsable is treated as zero.
type count int64

func (c *count) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil || f < 0 {
			*c = 0
			return nil
		}
		n = int64(f)
	}
	if n < 0 {
		n = 0
	}
	*c = count(n)
	return nil
}

// videosResponse is the Data API v3 videos response.
type videosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    count `json:"viewCount"`
			LikeCount    count `json:"likeCount"`
			CommentCount count `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

func (r videosResponse) details() []domain.VideoDetail {
	out := make([]domain.VideoDetail, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, domain.VideoDetail{
			ID:       it.ID,
			Title:    it.Snippet.Title,
			Duration: it.ContentDetails.Duration,
			Views:    int64(it.Statistics.ViewCount),
			Likes:    int64(it.Statistics.LikeCount),
			Comments: int64(it.Statistics.CommentCount),
		})
	}
	return out
}

// channelsResponse is the Data API v3 channels response (part=id).
type channelsResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

var _ json.Unmarshaler = (*count)(nil)
