package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var statsNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestComputeCountryStats(t *testing.T) {
	totals := []TopicTotal{
		{TopicID: "SDG00", Count: 1000},
		{TopicID: "SDG01", Count: 120},
		{TopicID: "SDG04", Count: 30},
		{TopicID: "SDG13", Count: 450},
	}
	sentiments := []TopicSentiment{
		{TopicID: "SDG01", Positive: 10, Negative: 70, Neutral: 20},
		{TopicID: "SDG04", Positive: 25, Negative: 5, Neutral: 0},
		{TopicID: "SDG13", Positive: 40, Negative: 40, Neutral: 20},
	}

	got := ComputeCountryStats("LB", "SDG00", totals, sentiments, statsNow)

	assert.Equal(t, "LB", got.CountryCode)
	assert.Equal(t, int64(1000), got.Total, "baseline topic carries the overall volume")
	assert.Equal(t, int64(600), got.TopicTotal)
	assert.Equal(t, TopicValue{TopicID: "SDG13", Value: 450}, got.Max)
	assert.Equal(t, TopicValue{TopicID: "SDG04", Value: 30}, got.Min)
	assert.Equal(t, "SDG04", got.MostPositive)
	assert.Equal(t, "SDG01", got.MostNegative)
	assert.Equal(t, statsNow, got.CalculatedAt)
}

func TestComputeCountryStatsBaselineExcludedFromExtremes(t *testing.T) {
	totals := []TopicTotal{
		{TopicID: "SDG00", Count: 9999},
		{TopicID: "SDG01", Count: 5},
	}
	got := ComputeCountryStats("EG", "SDG00", totals, nil, statsNow)

	assert.Equal(t, "SDG01", got.Max.TopicID, "baseline never wins the maximum")
	assert.Equal(t, "SDG01", got.Min.TopicID)
}

func TestComputeCountryStatsZeroCountNeverWinsMin(t *testing.T) {
	totals := []TopicTotal{
		{TopicID: "SDG01", Count: 0},
		{TopicID: "SDG04", Count: 7},
		{TopicID: "SDG13", Count: 12},
	}
	got := ComputeCountryStats("JO", "SDG00", totals, nil, statsNow)

	assert.Equal(t, TopicValue{TopicID: "SDG04", Value: 7}, got.Min)
}

func TestComputeCountryStatsNoData(t *testing.T) {
	got := ComputeCountryStats("LB", "SDG00", nil, nil, statsNow)

	assert.Zero(t, got.Total)
	assert.Zero(t, got.TopicTotal)
	assert.Empty(t, got.Max.TopicID)
	assert.Empty(t, got.Min.TopicID)
	assert.Empty(t, got.MostPositive)
	assert.Empty(t, got.MostNegative)
}

func TestComputeCountryStatsUnlabelledTopicSkipped(t *testing.T) {
	sentiments := []TopicSentiment{
		{TopicID: "SDG01"},
		{TopicID: "SDG04", Positive: 1, Negative: 0, Neutral: 1},
	}
	got := ComputeCountryStats("LB", "SDG00", nil, sentiments, statsNow)

	assert.Equal(t, "SDG04", got.MostPositive)
	assert.Empty(t, got.MostNegative, "zero negative share never wins")
}

func TestMatchesKeyword(t *testing.T) {
	tests := []struct {
		text    string
		keyword string
		want    bool
	}{
		{"climate change hits the coast", "climate", true},
		{"Climate CHANGE hits the coast", "climate change", true},
		{"the climate is warming", "climate change", false},
		{"change in climate policy", "climate change", true},
		{"unrelated text", "climate", false},
		{"anything", "", true},
	}
	for _, tt := range tests {
		got := matchesKeyword(strings.ToLower(tt.text), tt.keyword)
		assert.Equal(t, tt.want, got, "matchesKeyword(%q, %q)", tt.text, tt.keyword)
	}
}

func TestComputeKeywordReport(t *testing.T) {
	records := []TextSentiment{
		{Text: "Poverty is rising in rural areas", Sentiment: "negative"},
		{Text: "New school program fights poverty", Sentiment: "positive"},
		{Text: "Education reform announced", Sentiment: "positive"},
		{Text: "Drought worsens this summer", Sentiment: "negative"},
	}

	got := ComputeKeywordReport("LB", []string{"poverty", "education", "flood"}, records, statsNow)

	assert.Equal(t, int64(4), got.Total)
	assert.Len(t, got.Keywords, 3)

	assert.Equal(t, KeywordStat{Keyword: "poverty", Matches: 2, PositiveShare: 0.5, NegativeShare: 0.5}, got.Keywords[0])
	assert.Equal(t, KeywordStat{Keyword: "education", Matches: 1, PositiveShare: 1, NegativeShare: 0}, got.Keywords[1])
	assert.Equal(t, KeywordStat{Keyword: "flood", Matches: 0}, got.Keywords[2])

	assert.Equal(t, KeywordValue{Keyword: "poverty", Value: 2}, got.Max)
	assert.Equal(t, KeywordValue{Keyword: "education", Value: 1}, got.Min, "unmatched keyword never wins the minimum")
	assert.Equal(t, "education", got.MostPositive)
	assert.Equal(t, "poverty", got.MostNegative)
}

func TestComputeKeywordReportMultiWordAnd(t *testing.T) {
	records := []TextSentiment{
		{Text: "climate change is accelerating", Sentiment: "negative"},
		{Text: "the climate is mild here", Sentiment: "neutral"},
		{Text: "change is coming", Sentiment: "neutral"},
	}

	got := ComputeKeywordReport("EG", []string{"climate change"}, records, statsNow)

	assert.Equal(t, int64(1), got.Keywords[0].Matches, "all parts must match the same text")
}

func TestComputeKeywordReportNoRecords(t *testing.T) {
	got := ComputeKeywordReport("JO", []string{"water"}, nil, statsNow)

	assert.Zero(t, got.Total)
	assert.Equal(t, int64(0), got.Keywords[0].Matches)
	assert.Empty(t, got.Min.Keyword)
	assert.Empty(t, got.Max.Keyword)
}
