package codec

import "strings"

// field is a logical content item field that decoders fill from loosely
// keyed input.
type field int

const (
	fieldTitle field = iota
	fieldDescription
	fieldPlatform
	fieldStatus
	fieldScheduledDate
)

// synonyms lists, per logical field, the accepted source keys in priority
// order. The first key holding a non-empty value wins.
type synonyms map[field][]string

// csvSynonyms apply to lower-cased CSV header cells.
var csvSynonyms = synonyms{
	fieldTitle:         {"title", "summary", "subject"},
	fieldDescription:   {"description", "notes", "content"},
	fieldPlatform:      {"platform"},
	fieldStatus:        {"status"},
	fieldScheduledDate: {"scheduled date", "date", "start", "start date"},
}

// backupSynonyms apply to items inside a contentItems backup wrapper.
var backupSynonyms = synonyms{
	fieldTitle:         {"title"},
	fieldDescription:   {"description"},
	fieldPlatform:      {"platform"},
	fieldStatus:        {"status"},
	fieldScheduledDate: {"scheduledDate", "date"},
}

// genericSynonyms apply to objects in a bare JSON array.
var genericSynonyms = synonyms{
	fieldTitle:         {"title", "name", "summary"},
	fieldDescription:   {"description", "content", "notes"},
	fieldPlatform:      {"platform", "type"},
	fieldStatus:        {"status"},
	fieldScheduledDate: {"scheduledDate", "date", "start"},
}

// lookup returns the first non-empty value for f found through get.
func (s synonyms) lookup(f field, get func(key string) (string, bool)) string {
	for _, key := range s[f] {
		if v, ok := get(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
