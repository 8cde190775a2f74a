package naviseccli

import (
	"strconv"
	"strings"
)

// Record is one object from CLI output, keyed by field label.
type Record map[string]string

// Get returns the trimmed value of key.
func (r Record) Get(key string) string {
	return r[key]
}

// Bool parses the YES/NO flags the CLI prints.
func (r Record) Bool(key string) bool {
	switch strings.ToUpper(r[key]) {
	case "YES", "TRUE":
		return true
	}
	return false
}

// Int parses a numeric field; ok is false when it is absent or not a
// number.
func (r Record) Int(key string) (int, bool) {
	n, err := strconv.Atoi(r[key])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Entry is a top-level record with its nested child records, such as a
// mirror view and its images.
type Entry struct {
	Record
	Children []Record
}

// ParseEntries splits out into entries. A line labelled parentKey starts
// a new entry; a line labelled childKey starts a new child of the current
// entry, and every following field belongs to that child until the next
// parent or child label.
func ParseEntries(out, parentKey, childKey string) []Entry {
	var entries []Entry
	var child Record
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := splitField(line)
		if !ok {
			continue
		}
		switch key {
		case parentKey:
			entries = append(entries, Entry{Record: Record{}})
			child = nil
		case childKey:
			if len(entries) == 0 {
				continue
			}
			child = Record{}
			cur := &entries[len(entries)-1]
			cur.Children = append(cur.Children, child)
		}
		if len(entries) == 0 {
			continue
		}
		if child != nil {
			child[key] = val
		} else {
			entries[len(entries)-1].Record[key] = val
		}
	}
	return entries
}

// splitField splits "Key:  Value" at the first colon. Values may contain
// colons (WWNs); labels never do.
func splitField(line string) (string, string, bool) {
	i := strings.Index(line, ":")
	if i <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:i])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[i+1:]), true
}
