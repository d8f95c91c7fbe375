package database

import "time"

// HashEntry is one row of the job fingerprint index.
type HashEntry struct {
	Hash      string
	BasicHash string
	Title     string
	Company   string
	Location  string
	FirstSeen time.Time
	LastSeen  time.Time
}

// PostEntry is one row of the post identifier index.
type PostEntry struct {
	PostID     string
	PersonName string
	PostLink   string
	ScrapedAt  time.Time
}

// Stats summarises an index table. Oldest and Newest are zero when the
// table is empty.
type Stats struct {
	Total  int64     `json:"total"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}
