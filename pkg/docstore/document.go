package docstore

import "time"

// TimestampLayout is the fixed-width UTC layout used for server timestamps,
// so that stored timestamps order correctly as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Document is a stored document together with its store-assigned identity.
type Document struct {
	ID         string         `json:"id"`
	Path       Path           `json:"path"`
	Data       map[string]any `json:"data"`
	CreateTime time.Time      `json:"createTime"`
	UpdateTime time.Time      `json:"updateTime"`
}

// Clone returns a copy whose Data shares nothing with d.
func (d Document) Clone() Document {
	d.Data = CloneData(d.Data)
	return d
}

// Snapshot is the full result set of a query at one point in time.
// A newer snapshot supersedes an older one entirely.
type Snapshot struct {
	Query    string     `json:"query"`
	Docs     []Document `json:"docs"`
	ReadTime time.Time  `json:"readTime"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
