package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"convertbox/pkg/domain"
)

// ToolStats carries per-tool rollup numbers for the admin dashboard.
type ToolStats struct {
	Name              string `json:"name"`
	UsageCount        int    `json:"usageCount"`
	SuccessRate       int    `json:"successRate"`
	AvgProcessingTime int64  `json:"avgProcessingTime"`
}

// Summary is the aggregate view over the whole usage log. It is derived on
// demand and never persisted.
type Summary struct {
	TotalUsage   int         `json:"totalUsage"`
	MostPopular  string      `json:"mostPopular"`
	PopularUsage int         `json:"popularUsage"`
	SuccessRate  string      `json:"successRate"`
	ToolStats    []ToolStats `json:"toolStats"`
}

type toolAccum struct {
	name        string
	usage       int
	successes   int
	timedEvents int
	timeTotalMs int64
}

// Aggregate reduces the event collection into global and per-tool statistics.
// Tools are ordered by usage count descending; ties keep first-occurrence
// order. Events without a processing time are excluded from the average
// entirely, not counted as zero.
func Aggregate(events []domain.ToolUsageEvent) Summary {
	if len(events) == 0 {
		return Summary{
			MostPopular: "No data",
			SuccessRate: "0%",
			ToolStats:   []ToolStats{},
		}
	}

	globalSuccesses := 0
	byTool := make(map[string]*toolAccum)
	order := make([]string, 0)
	for _, e := range events {
		if e.Success {
			globalSuccesses++
		}
		acc, ok := byTool[e.ToolName]
		if !ok {
			acc = &toolAccum{name: e.ToolName}
			byTool[e.ToolName] = acc
			order = append(order, e.ToolName)
		}
		acc.usage++
		if e.Success {
			acc.successes++
		}
		if e.ProcessingTimeMs != nil {
			acc.timedEvents++
			acc.timeTotalMs += *e.ProcessingTimeMs
		}
	}

	toolStats := make([]ToolStats, 0, len(order))
	for _, name := range order {
		acc := byTool[name]
		ts := ToolStats{Name: acc.name, UsageCount: acc.usage}
		if acc.usage > 0 {
			ts.SuccessRate = int(math.Round(float64(acc.successes) / float64(acc.usage) * 100))
		}
		if acc.timedEvents > 0 {
			ts.AvgProcessingTime = int64(math.Round(float64(acc.timeTotalMs) / float64(acc.timedEvents)))
		}
		toolStats = append(toolStats, ts)
	}
	sort.SliceStable(toolStats, func(i, j int) bool {
		return toolStats[i].UsageCount > toolStats[j].UsageCount
	})

	return Summary{
		TotalUsage:   len(events),
		MostPopular:  toolStats[0].Name,
		PopularUsage: toolStats[0].UsageCount,
		SuccessRate:  fmt.Sprintf("%.1f%%", float64(globalSuccesses)/float64(len(events))*100),
		ToolStats:    toolStats,
	}
}

// DailySummary is one day of usage for the dashboard chart.
type DailySummary struct {
	Date      string `json:"date"`
	Events    int    `json:"events"`
	Successes int    `json:"successes"`
}

// LastNDays builds a continuous per-day series ending today (UTC). Days with
// no events still appear with zero counts.
func LastNDays(events []domain.ToolUsageEvent, days int, now time.Time) []DailySummary {
	if days <= 0 {
		return []DailySummary{}
	}
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days+1)

	eventCounts := make(map[string]int)
	successCounts := make(map[string]int)
	for _, e := range events {
		day := e.CreatedAt.UTC().Format("2006-01-02")
		eventCounts[day]++
		if e.Success {
			successCounts[day]++
		}
	}

	res := make([]DailySummary, 0, days)
	for d := 0; d < days; d++ {
		dayStr := start.AddDate(0, 0, d).Format("2006-01-02")
		res = append(res, DailySummary{
			Date:      dayStr,
			Events:    eventCounts[dayStr],
			Successes: successCounts[dayStr],
		})
	}
	return res
}
