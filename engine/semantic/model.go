package semantic

// SimilarTitle is one video title returned by a similarity search.
type SimilarTitle struct {
	VideoID string  `json:"videoId"`
	Title   string  `json:"title"`
	Query   string  `json:"query"`
	Region  string  `json:"region"`
	Views   int64   `json:"views"`
	Score   float32 `json:"score"`
}

// Payload keys stored on every point.
const (
	keyVideoID = "video_id"
	keyTitle   = "title"
	keyQuery   = "query"
	keyRegion  = "region"
	keyViews   = "views"
)
