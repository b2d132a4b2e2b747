package reports

import (
	"bytes"
	"encoding/csv"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/applications"
)

const (
	// ExportFilename is the suggested attachment name for CSV exports.
	ExportFilename = "jobtrackr-applications.csv"
	// ExportContentType is the media type of CSV exports.
	ExportContentType = "text/csv"
	// ExportTimeLayout renders export timestamps in UTC with millisecond precision.
	ExportTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// CSVColumns is the export column order. Consumers address columns by position,
// so new columns may only be appended.
var CSVColumns = [...]string{
	"company",
	"roleTitle",
	"location",
	"jobUrl",
	"stage",
	"appliedDate",
	"followUpDate",
	"notes",
	"createdAt",
	"updatedAt",
}

// ExportCSV renders the applications as CSV, most recently created first.
func ExportCSV(records []applications.Application) []byte {
	var buffer bytes.Buffer
	// bytes.Buffer writes never fail.
	_ = WriteCSV(&buffer, records)
	return buffer.Bytes()
}

// WriteCSV writes the header row and one row per application to w.
func WriteCSV(w io.Writer, records []applications.Application) error {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b applications.Application) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	writer := csv.NewWriter(w)
	if err := writer.Write(CSVColumns[:]); err != nil {
		return err
	}
	for _, record := range sorted {
		if err := writer.Write(csvRow(record)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func csvRow(record applications.Application) []string {
	return []string{
		record.Company,
		record.RoleTitle,
		record.Location,
		record.JobURL,
		record.Stage.String(),
		formatOptionalTime(record.AppliedDate),
		formatOptionalTime(record.FollowUpDate),
		record.Notes,
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	}
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(ExportTimeLayout)
}
