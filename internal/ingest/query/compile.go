// Package query builds the search expression sent to the upstream API from
// a country filter, a language, and a topic filter.
package query

import (
	"fmt"

	"github.com/pulsewatch/social-pulse/internal/ingest"
)

// absentMarker is how upstream configuration sources encode a missing
// filter. Exports from spreadsheet-backed configs render empty cells as the
// literal string "nan", so it is treated the same as an empty string.
const absentMarker = "nan"

// exclusion drops reshared posts so every matched post is an original.
const exclusion = "-is:retweet"

func absent(filter string) bool {
	return filter == "" || filter == absentMarker
}

// Compile combines the country and topic filters into a single query string
// with a language restriction and a reshare exclusion appended. When both
// filters are present each is parenthesised independently; filter syntax is
// not validated here, malformed filters surface as API errors.
func Compile(countryFilter string, lang ingest.Lang, topicFilter string) string {
	switch {
	case absent(topicFilter):
		return fmt.Sprintf("%s lang:%s %s", countryFilter, lang, exclusion)
	case absent(countryFilter):
		return fmt.Sprintf("%s lang:%s %s", topicFilter, lang, exclusion)
	default:
		return fmt.Sprintf("(%s) (%s) lang:%s %s", topicFilter, countryFilter, lang, exclusion)
	}
}
