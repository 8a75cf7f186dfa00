package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"coldreach/internal/models"
)

// ParseLeads parses an uploaded CSV into leads. The CSV must contain a
// header row with an "Email" column (case-insensitive); every other column
// becomes a lead attribute keyed by its header, available to templates as
// {{header}}.
//
// maxRows limits how many data rows are parsed (excluding header).
func ParseLeads(r io.Reader, maxRows int) ([]*models.Lead, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	emailIdx := -1
	normalized := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		normalized[i] = h
		if strings.EqualFold(h, "email") {
			emailIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, errors.New("csv must contain an Email column")
	}

	if maxRows <= 0 {
		maxRows = 1000
	}

	leads := make([]*models.Lead, 0)
	for len(leads) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		email := strings.ToLower(strings.TrimSpace(record[emailIdx]))
		if email == "" {
			continue
		}

		attrs := make(map[string]string, len(headers)-1)
		for i := range record {
			if i == emailIdx {
				continue
			}
			key := normalized[i]
			if key == "" {
				continue
			}
			attrs[key] = strings.TrimSpace(record[i])
		}

		leads = append(leads, &models.Lead{
			Email:      email,
			Attributes: attrs,
			Status:     models.StatusPending,
		})
	}

	if len(leads) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return leads, nil
}
