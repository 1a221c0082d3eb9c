package reminders

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/talkincode/botfleet/internal/domain"
)

var phonePattern = regexp.MustCompile(`^\+?\d+$`)

// NormalizePhones trims the raw entries, keeps only well-formed phone numbers
// and de-duplicates them against the existing list. Returns the merged list
// plus how many entries were dropped as malformed.
func NormalizePhones(raw []string, existing []string) ([]string, int) {
	merged := make([]string, 0, len(existing)+len(raw))
	seen := make(map[string]bool, len(existing)+len(raw))
	for _, phone := range existing {
		if !seen[phone] {
			seen[phone] = true
			merged = append(merged, phone)
		}
	}
	dropped := 0
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !phonePattern.MatchString(entry) {
			dropped++
			continue
		}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		merged = append(merged, entry)
	}
	return merged, dropped
}

// ReadPhoneLines splits newline-delimited CSV upload content into raw
// entries. Validation happens in NormalizePhones.
func ReadPhoneLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

type jobExportRow struct {
	ID         int64  `csv:"id"`
	TenantID   string `csv:"tenant_id"`
	Message    string `csv:"message"`
	Frequency  string `csv:"frequency"`
	Hour       int    `csv:"hour"`
	Minute     int    `csv:"minute"`
	Active     bool   `csv:"active"`
	Recipients int    `csv:"recipients"`
	LastSent   string `csv:"last_sent"`
}

// ExportJobsCSV writes a job summary table for admin download.
func ExportJobsCSV(w io.Writer, jobs []domain.ReminderJob) error {
	rows := make([]jobExportRow, 0, len(jobs))
	for _, job := range jobs {
		row := jobExportRow{
			ID:         job.ID,
			TenantID:   job.TenantID,
			Message:    job.Message,
			Frequency:  job.Frequency,
			Hour:       job.Hour,
			Minute:     job.Minute,
			Active:     job.Active,
			Recipients: len(job.Phones),
		}
		if job.LastSent != nil {
			row.LastSent = job.LastSent.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(&rows, w)
}
