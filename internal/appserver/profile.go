package appserver

import (
	"context"
	"fmt"
	"net/url"
)

// UserProfile fetches the raw profile object for a chat user. The structure
// varies across server versions; callers search it along fixed paths.
func (c *Client) UserProfile(ctx context.Context, userID string) (map[string]any, error) {
	data, err := c.getJSON(ctx, fmt.Sprintf("/api/users/%s", url.PathEscape(userID)), nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}
