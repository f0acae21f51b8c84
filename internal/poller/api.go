package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// apiListKeys are the envelope keys checked, in order, when an API
// response is an object rather than a bare array.
var apiListKeys = []string{"articles", "items", "entries", "data", "results"}

// fetchAPI pulls a JSON endpoint and maps its items onto entries. Both
// a bare array and a single-key envelope around an array are accepted.
func (p *Poller) fetchAPI(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}

	items, err := decodeAPIItems(body)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Title:       firstString(item, "title", "headline", "name"),
			Description: firstString(item, "description", "summary", "content", "body"),
			Link:        firstString(item, "link", "url"),
			Published:   firstString(item, "published", "published_at", "date"),
		})
	}
	return entries, nil
}

func decodeAPIItems(body []byte) ([]map[string]any, error) {
	var asList []map[string]any
	if err := json.Unmarshal(body, &asList); err == nil {
		return asList, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(body, &asObject); err != nil {
		return nil, fmt.Errorf("response is neither an array nor an object; %w", err)
	}

	for _, key := range apiListKeys {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &asList); err != nil {
			return nil, fmt.Errorf("field %q is not an item array; %w", key, err)
		}
		return asList, nil
	}
	return nil, fmt.Errorf("no item array found in response")
}

func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := item[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
