package reports

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/applications"
)

// Summary holds the headline pipeline metrics.
type Summary struct {
	Total          int     `json:"total"`
	Interviews     int     `json:"interviews"`
	Offers         int     `json:"offers"`
	Rejections     int     `json:"rejections"`
	ConversionRate float64 `json:"conversionRate"`
}

// StageCount is one bucket of the stage distribution.
type StageCount struct {
	Stage applications.Stage `json:"stage"`
	Count int                `json:"count"`
}

// WeeklyPoint counts applications created during one ISO week.
type WeeklyPoint struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// Anomaly flags a record whose stage is outside the closed set.
type Anomaly struct {
	ApplicationID string
	Stage         applications.Stage
}

// Report is the derived analytics view over one owner's applications.
type Report struct {
	Summary             Summary                    `json:"summary"`
	ApplicationsByStage []StageCount               `json:"applicationsByStage"`
	WeeklyTrend         []WeeklyPoint              `json:"weeklyTrend"`
	OverdueFollowUps    []applications.Application `json:"overdueFollowUps"`
	Anomalies           []Anomaly                  `json:"-"`
}

// Aggregate derives a Report from one owner's applications.
//
// now determines "today": follow-ups dated before midnight of now's calendar
// day, in now's location, are overdue. Records with an unknown stage count
// toward the total and are reported as anomalies instead of failing.
func Aggregate(records []applications.Application, now time.Time) Report {
	stages := applications.Stages()
	stageCounts := make(map[applications.Stage]int, len(stages))
	weekCounts := make(map[string]int)
	startOfToday := startOfDay(now)

	report := Report{
		WeeklyTrend:      make([]WeeklyPoint, 0),
		OverdueFollowUps: make([]applications.Application, 0),
	}

	for _, record := range records {
		if record.Stage.Valid() {
			stageCounts[record.Stage]++
		} else {
			report.Anomalies = append(report.Anomalies, Anomaly{ApplicationID: record.ID, Stage: record.Stage})
		}

		weekCounts[WeekKey(record.CreatedAt)]++

		if isOverdue(record, startOfToday) {
			report.OverdueFollowUps = append(report.OverdueFollowUps, record)
		}
	}

	report.ApplicationsByStage = make([]StageCount, 0, len(stages))
	for _, stage := range stages {
		report.ApplicationsByStage = append(report.ApplicationsByStage, StageCount{Stage: stage, Count: stageCounts[stage]})
	}

	for week, count := range weekCounts {
		report.WeeklyTrend = append(report.WeeklyTrend, WeeklyPoint{Week: week, Count: count})
	}
	slices.SortFunc(report.WeeklyTrend, func(a, b WeeklyPoint) int {
		return strings.Compare(a.Week, b.Week)
	})

	slices.SortStableFunc(report.OverdueFollowUps, compareFollowUp)

	total := len(records)
	offers := stageCounts[applications.StageOffer]
	report.Summary = Summary{
		Total:          total,
		Interviews:     stageCounts[applications.StageInterview],
		Offers:         offers,
		Rejections:     stageCounts[applications.StageRejected],
		ConversionRate: conversionRate(offers, total),
	}

	return report
}

func isOverdue(record applications.Application, startOfToday time.Time) bool {
	if record.FollowUpDate == nil {
		return false
	}
	if record.Stage.Terminal() {
		return false
	}
	return record.FollowUpDate.Before(startOfToday)
}

func compareFollowUp(a, b applications.Application) int {
	if c := a.FollowUpDate.Compare(*b.FollowUpDate); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func startOfDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}

// conversionRate is offers/total as a percentage rounded to one decimal; zero when total is zero.
func conversionRate(offers, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(offers)/float64(total)*100, 1)
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
