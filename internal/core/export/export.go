// Package export renders job outcomes as a JSON document or a flattened CSV
// table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"harvester/internal/core/job"
)

// Document is the JSON export shape.
type Document struct {
	JobID        string          `json:"job_id"`
	ExportedAt   time.Time       `json:"exported_at"`
	TotalResults int             `json:"total_results"`
	Data         []job.ResultRow `json:"data"`
}

// Filename is the download name for an export of id.
func Filename(id, ext string) string {
	return fmt.Sprintf("scrape_results_%s.%s", id, ext)
}

func ContentType(ext string) string {
	if ext == "csv" {
		return "text/csv"
	}
	return "application/json"
}

func JSON(w io.Writer, id string, rows []job.ResultRow, now time.Time) error {
	if rows == nil {
		rows = []job.ResultRow{}
	}
	doc := Document{JobID: id, ExportedAt: now.UTC(), TotalResults: len(rows), Data: rows}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// CSV writes one line per result. A result carrying a "posts" list becomes one
// line per post; rows without a result degrade to target, status and error.
// An empty export is a single "No data" line.
func CSV(w io.Writer, rows []job.ResultRow) error {
	records := Flatten(rows)
	if len(records) == 0 {
		records = []map[string]string{{"message": "No data"}}
	}

	header := columns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			line[i] = rec[col]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Flatten turns rows into flat string records keyed by column name.
func Flatten(rows []job.ResultRow) []map[string]string {
	var out []map[string]string
	for _, r := range rows {
		base := map[string]string{"target": r.Target, "status": string(r.Status)}

		if len(r.Result) == 0 {
			base["error"] = r.Error
			out = append(out, base)
			continue
		}

		if posts, ok := asList(r.Result["posts"]); ok {
			for _, p := range posts {
				rec := copyBase(base)
				if m, ok := p.(map[string]any); ok {
					for k, v := range m {
						setCell(rec, k, v)
					}
				} else {
					setCell(rec, "post", p)
				}
				out = append(out, rec)
			}
			if len(posts) > 0 {
				continue
			}
		}

		rec := copyBase(base)
		for k, v := range r.Result {
			if k == "posts" {
				continue
			}
			setCell(rec, k, v)
		}
		out = append(out, rec)
	}
	return out
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func copyBase(base map[string]string) map[string]string {
	rec := make(map[string]string, len(base)+8)
	for k, v := range base {
		rec[k] = v
	}
	return rec
}

// setCell never overwrites target or status.
func setCell(rec map[string]string, key string, v any) {
	if key == "target" || key == "status" {
		return
	}
	rec[key] = cell(v)
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool, int, int64, float64, float32, int32, uint, uint64:
		return fmt.Sprint(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// columns puts target and status first and the rest in name order.
func columns(records []map[string]string) []string {
	seen := map[string]bool{}
	var rest []string
	lead := []string{}
	for _, k := range []string{"target", "status"} {
		for _, rec := range records {
			if _, ok := rec[k]; ok {
				lead = append(lead, k)
				seen[k] = true
				break
			}
		}
	}
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(lead, rest...)
}
