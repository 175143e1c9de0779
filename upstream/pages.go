package upstream

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/teranos/legisync/logger"
)

// PageSet is the outcome of GetAllPages. A failed page ends the walk early and
// the items accumulated so far are still returned; Err records why.
type PageSet struct {
	Items    []json.RawMessage
	Pages    int  // page requests issued
	Complete bool // last page reached (short page)
	Err      error
}

// GetAllPages walks pages 1..n of path, requesting a fixed page size, until a
// page comes back short, the page ceiling is reached, or a page request fails
// after retries.
func (c *Client) GetAllPages(ctx context.Context, path string, query url.Values, opts ...RequestOption) PageSet {
	rc := c.requestConfig(opts)
	var set PageSet

	for page := 1; ; page++ {
		q := url.Values{}
		for key, values := range query {
			q[key] = append([]string(nil), values...)
		}
		q.Set(rc.pageParam, strconv.Itoa(page))
		q.Set(rc.sizeParam, strconv.Itoa(rc.pageSize))

		payload, err := c.do(ctx, "GET", path, q, nil, rc)
		set.Pages++
		if err != nil {
			c.logger.Warnw("Page request failed, keeping partial results",
				logger.FieldPath, path,
				logger.FieldPage, page,
				logger.FieldCount, len(set.Items),
				logger.FieldError, err.Error(),
			)
			set.Err = err
			return set
		}

		items := payload.Items()
		set.Items = append(set.Items, items...)

		if len(items) < rc.pageSize {
			set.Complete = true
			return set
		}

		if rc.maxPages > 0 && page >= rc.maxPages {
			c.logger.Infow("Page ceiling reached",
				logger.FieldPath, path,
				logger.FieldPage, page,
				logger.FieldCount, len(set.Items),
			)
			return set
		}

		if _, ok := payload.Next(); !ok {
			c.logger.Debugw("Full page without next link, continuing", logger.FieldPath, path, logger.FieldPage, page)
		}

		if err := sleep(ctx, c.cfg.PageDelay); err != nil {
			set.Err = err
			return set
		}
	}
}
