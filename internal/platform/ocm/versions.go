package ocm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const versionsPageSize = 100

type versionList struct {
	Items []struct {
		RawID string `json:"raw_id"`
	} `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// ListVersions returns the raw ids of the enabled versions of a channel group.
func (c *Client) ListVersions(ctx context.Context, channel string) ([]string, error) {
	var versions []string
	for page := 1; ; page++ {
		var list versionList
		query := url.Values{
			"search": {fmt.Sprintf("enabled = 'true' AND channel_group = '%s'", channel)},
			"page":   {strconv.Itoa(page)},
			"size":   {strconv.Itoa(versionsPageSize)},
		}
		if err := c.do(ctx, http.MethodGet, versionsPath, query, nil, &list); err != nil {
			return nil, err
		}
		for _, item := range list.Items {
			if item.RawID != "" {
				versions = append(versions, item.RawID)
			}
		}
		if len(list.Items) < versionsPageSize || page*versionsPageSize >= list.Total {
			return versions, nil
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
