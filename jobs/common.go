// Package jobs holds the synchronization jobs, one per entity type of the
// Câmara dos Deputados open data API. Each is a small strategy the etl
// engine drives; the engine owns retries, isolation, chunking and progress.
package jobs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/etl"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/upstream"
)

const dateLayout = "2006-01-02"

// periodPath is <root>/legislaturas/<N>/<parts...>
func periodPath(jc *etl.JobContext, parts ...string) string {
	segs := append([]string{jc.Settings.RootCollection, "legislaturas", strconv.Itoa(jc.Period.Number)}, parts...)
	return strings.Join(segs, "/")
}

// currentPath is <root>/atual/<collection>, the "current period" index
func currentPath(jc *etl.JobContext, collection string) string {
	return jc.Settings.RootCollection + "/atual/" + collection
}

// decodeAll decodes raw entities, counting undecodable ones as extract failures
func decodeAll[T any](jc *etl.JobContext, label string, raws []json.RawMessage) []T {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			jc.Stats.Extract.Fail(1)
			jc.Stats.RecordError()
			jc.Logger.Warnw("Item excluded, undecodable payload", logger.FieldLabel, label, logger.FieldError, err.Error())
			continue
		}
		out = append(out, v)
	}
	return out
}

// fetchAll walks every page of path. A partial result is kept and logged; it
// is an error only when nothing at all came back.
func fetchAll(ctx context.Context, jc *etl.JobContext, path string, query url.Values, opts ...upstream.RequestOption) ([]json.RawMessage, error) {
	set := jc.API.GetAllPages(ctx, path, query, opts...)
	if set.Err != nil {
		if len(set.Items) == 0 {
			return nil, set.Err
		}
		jc.Logger.Warnw("Pagination stopped early, continuing with partial results",
			logger.FieldPath, path,
			logger.FieldCount, len(set.Items),
			logger.FieldPage, set.Pages,
			logger.FieldError, set.Err.Error(),
		)
	}
	return set.Items, nil
}

// fetchOne fetches a single-entity path
func fetchOne[T any](ctx context.Context, jc *etl.JobContext, path string, params map[string]string) (T, error) {
	var v T
	payload, err := jc.API.Get(ctx, path, nil, upstream.WithPathParams(params))
	if err != nil {
		return v, err
	}
	if err := payload.Decode(&v); err != nil {
		return v, errors.Wrapf(err, "decode %s", path)
	}
	return v, nil
}

// set builds a full-replace operation
func set(path string, data map[string]any) (batch.Operation, error) {
	return batch.SetOp(path, data)
}

// indexDoc is the shared shape of index documents: one entry per indexed
// document and a total that always equals len(items)
func indexDoc(jc *etl.JobContext, items []map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = it
	}
	return map[string]any{
		"legislatura":    jc.Period.Number,
		"total":          len(items),
		"itens":          list,
		"sincronizadoEm": jc.Now().UTC(),
	}
}

// indexOps writes an index to the period and to the current-period path
func indexOps(jc *etl.JobContext, collection string, items []map[string]any) ([]batch.Operation, error) {
	doc := indexDoc(jc, items)

	archived, err := set(periodPath(jc, "indices", collection), doc)
	if err != nil {
		return nil, err
	}
	current, err := set(currentPath(jc, collection), doc)
	if err != nil {
		return nil, err
	}
	return []batch.Operation{archived, current}, nil
}

// mapping reports a per-item transform failure
func mapping(format string, args ...interface{}) error {
	return errors.NewMappingError(format, args...)
}

// parseDate parses an upstream date (AAAA-MM-DD or AAAA-MM-DDTHH:MM), zero on failure
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// optionalDate returns nil for a zero time so stored documents carry null
func optionalDate(s string) any {
	t := parseDate(s)
	if t.IsZero() {
		return nil
	}
	return t
}

// hash returns a short stable document id for values with no upstream id
func hash(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// periodRange is the range a job queries by default: the whole period, cut at today
func periodRange(jc *etl.JobContext) etl.DateRange {
	if r := jc.Options.DateRange; r != nil {
		return *r
	}
	end := jc.Period.End
	if now := jc.Now(); now.Before(end) {
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return etl.DateRange{Start: jc.Period.Start, End: end}
}
