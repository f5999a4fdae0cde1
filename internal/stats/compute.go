package stats

import (
	"strings"
	"time"
)

// TopicValue pairs a topic with a count.
type TopicValue struct {
	TopicID string `json:"topic_id"`
	Value   int64  `json:"value"`
}

// CountryStats is the per-country trend snapshot: the baseline total, the
// topical total, the most and least discussed topic, and sentiment extremes.
type CountryStats struct {
	CountryCode  string     `json:"country_code"`
	Total        int64      `json:"total"`
	TopicTotal   int64      `json:"topic_total"`
	Max          TopicValue `json:"max"`
	Min          TopicValue `json:"min"`
	MostPositive string     `json:"most_positive"`
	MostNegative string     `json:"most_negative"`
	CalculatedAt time.Time  `json:"calculated_at"`
}

// ComputeCountryStats folds topic totals and sentiment breakdowns into a
// snapshot. The baseline topic tracks overall volume and is excluded from
// max/min; topics with zero counts never win the minimum.
func ComputeCountryStats(countryCode, baselineTopic string, totals []TopicTotal, sentiments []TopicSentiment, now time.Time) CountryStats {
	stats := CountryStats{
		CountryCode:  countryCode,
		CalculatedAt: now,
	}

	minSet := false
	for _, t := range totals {
		if t.TopicID == baselineTopic {
			stats.Total = t.Count
			continue
		}
		stats.TopicTotal += t.Count
		if t.Count > stats.Max.Value {
			stats.Max = TopicValue{TopicID: t.TopicID, Value: t.Count}
		}
		if t.Count > 0 && (!minSet || t.Count < stats.Min.Value) {
			stats.Min = TopicValue{TopicID: t.TopicID, Value: t.Count}
			minSet = true
		}
	}

	var maxPosShare, maxNegShare float64
	for _, s := range sentiments {
		if s.TopicID == baselineTopic {
			continue
		}
		labelled := s.Positive + s.Negative + s.Neutral
		if labelled == 0 {
			continue
		}
		posShare := float64(s.Positive) / float64(labelled)
		negShare := float64(s.Negative) / float64(labelled)
		if posShare > maxPosShare {
			maxPosShare = posShare
			stats.MostPositive = s.TopicID
		}
		if negShare > maxNegShare {
			maxNegShare = negShare
			stats.MostNegative = s.TopicID
		}
	}

	return stats
}

// KeywordStat is the match count and sentiment shares for one keyword.
type KeywordStat struct {
	Keyword       string  `json:"keyword"`
	Matches       int64   `json:"matches"`
	PositiveShare float64 `json:"positive_share"`
	NegativeShare float64 `json:"negative_share"`
}

// KeywordValue pairs a keyword with a count.
type KeywordValue struct {
	Keyword string `json:"keyword"`
	Value   int64  `json:"value"`
}

// KeywordReport is the keyword-level breakdown for a country.
type KeywordReport struct {
	CountryCode  string        `json:"country_code"`
	Total        int64         `json:"total"`
	Keywords     []KeywordStat `json:"keywords"`
	Max          KeywordValue  `json:"max"`
	Min          KeywordValue  `json:"min"`
	MostPositive string        `json:"most_positive"`
	MostNegative string        `json:"most_negative"`
	CalculatedAt time.Time     `json:"calculated_at"`
}

// matchesKeyword reports whether every space-separated part of the keyword
// occurs in the text, case-insensitively. "climate change" matches texts
// containing both "climate" and "change" anywhere.
func matchesKeyword(loweredText, keyword string) bool {
	for _, part := range strings.Fields(strings.ToLower(keyword)) {
		if !strings.Contains(loweredText, part) {
			return false
		}
	}
	return true
}

// ComputeKeywordReport scans the records once per keyword and reports match
// counts, sentiment shares, and the extremes across keywords. Keywords with
// zero matches never win the minimum.
func ComputeKeywordReport(countryCode string, keywords []string, records []TextSentiment, now time.Time) KeywordReport {
	report := KeywordReport{
		CountryCode:  countryCode,
		Total:        int64(len(records)),
		Keywords:     make([]KeywordStat, 0, len(keywords)),
		CalculatedAt: now,
	}

	lowered := make([]TextSentiment, len(records))
	for i, r := range records {
		lowered[i] = TextSentiment{Text: strings.ToLower(r.Text), Sentiment: r.Sentiment}
	}

	minSet := false
	var maxPosShare, maxNegShare float64
	for _, keyword := range keywords {
		var matches, pos, neg int64
		for _, r := range lowered {
			if !matchesKeyword(r.Text, keyword) {
				continue
			}
			matches++
			switch r.Sentiment {
			case "positive":
				pos++
			case "negative":
				neg++
			}
		}

		stat := KeywordStat{Keyword: keyword, Matches: matches}
		if matches > 0 {
			stat.PositiveShare = float64(pos) / float64(matches)
			stat.NegativeShare = float64(neg) / float64(matches)

			if stat.PositiveShare > maxPosShare {
				maxPosShare = stat.PositiveShare
				report.MostPositive = keyword
			}
			if stat.NegativeShare > maxNegShare {
				maxNegShare = stat.NegativeShare
				report.MostNegative = keyword
			}
			if !minSet || matches < report.Min.Value {
				report.Min = KeywordValue{Keyword: keyword, Value: matches}
				minSet = true
			}
		}
		if matches > report.Max.Value {
			report.Max = KeywordValue{Keyword: keyword, Value: matches}
		}
		report.Keywords = append(report.Keywords, stat)
	}

	return report
}
