package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field names shared by both sources.
const (
	FieldTitle               = "title"
	FieldCompany             = "company"
	FieldLocation            = "location"
	FieldDescription         = "description"
	FieldPosted              = "posted"
	FieldScrapedDate         = "scraped_date"
	FieldEstimatedPostedDate = "estimated_posted_date"
	FieldFingerprint         = "fingerprint"

	FieldPersonName  = "person_name"
	FieldPostedTime  = "posted_time"
	FieldPostContent = "post_content"
	FieldPostLink    = "post_link"
	FieldPostID      = "post_id"
	FieldURN         = "urn"
)

// Record is one scraped item: named string fields kept in insertion order
// so the output file mirrors what the extractor produced.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds a record from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewRecord(pairs ...string) Record {
	r := Record{}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the field value or "" when absent.
func (r Record) Get(key string) string {
	return r.values[key]
}

func (r Record) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r Record) Len() int {
	return len(r.keys)
}

// Clone returns a copy that can be mutated without touching r.
func (r Record) Clone() Record {
	c := Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]string, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Merge returns r overlaid with the fields of other. Existing keys keep their
// position, new keys are appended in other's order.
func (r Record) Merge(other Record) Record {
	out := r.Clone()
	for _, k := range other.keys {
		out.Set(k, other.values[k])
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any JSON object. Non-string values are kept as their
// compact JSON text; null becomes "".
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		r.Set(key, rawToString(raw))
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func rawToString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

// writeString encodes s without HTML escaping so non-ASCII text and markup
// stay readable in the output file.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
