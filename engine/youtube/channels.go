package youtube

import (
	"context"
	"net/url"
	"regexp"
)

var handlePattern = regexp.MustCompile(`/@([A-Za-z0-9._-]+)`)

// ExtractHandle returns the @handle of a channel URL without the "@", or ""
// when the URL has none.
func ExtractHandle(channelURL string) string {
	m := handlePattern.FindStringSubmatch(channelURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ChannelIDForHandle resolves a handle to its channel id. An unknown handle
// yields "" and no error.
func (c *Client) ChannelIDForHandle(ctx context.Context, key, handle string) (string, error) {
	params := url.Values{
		"part":      {"id"},
		"forHandle": {handle},
		"key":       {key},
	}
	var cr channelsResponse
	if err := c.get(ctx, "channels", params, &cr); err != nil {
		return "", err
	}
	if len(cr.Items) == 0 {
		return "", nil
	}
	return cr.Items[0].ID, nil
}

// ChannelTitles returns up to n titles of a channel's most viewed videos.
func (c *Client) ChannelTitles(ctx context.Context, key, channelID string, n int) ([]string, error) {
	return c.SearchTitles(ctx, key, SearchParams{
		ChannelID:  channelID,
		MaxResults: n,
		Order:      OrderViewCount,
	})
}
