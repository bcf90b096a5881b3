package sheetsclient

import (
	"fmt"
	"strings"
	"time"
)

// PublishedRoster is the roster table handed to the publisher: one row per
// day, one cell per shift kind, in a fixed column order.
type PublishedRoster struct {
	// Start and End bound the period, format "2006-01-02".
	Start string
	End   string

	// KindColumns is the column order for shift kinds.
	KindColumns []string
	Rows        []PublishedRosterRow
}

// PublishedRosterRow is one day of the published roster.
type PublishedRosterRow struct {
	Date    string // Format: "2006-01-02"
	Weekday string
	// Assigned holds the staff per kind column, joined with "/".
	Assigned map[string]string
	// Off lists the people whose off requests were granted that day.
	Off string
}

// PublishRoster writes a roster to Google Sheets under a period-titled tab,
// creating the tab if needed and overwriting it otherwise.
func (c *Client) PublishRoster(spreadsheetID string, published *PublishedRoster) (string, error) {
	tabTitle, err := rosterTabTitle(published.Start, published.End)
	if err != nil {
		return "", fmt.Errorf("failed to generate tab title: %w", err)
	}

	exists, err := c.SheetExists(spreadsheetID, tabTitle)
	if err != nil {
		return "", err
	}
	if !exists {
		if _, err := c.CreateSheet(spreadsheetID, tabTitle); err != nil {
			return "", fmt.Errorf("failed to create roster tab: %w", err)
		}
	}

	header := []interface{}{"Date", "Weekday"}
	for _, kind := range published.KindColumns {
		header = append(header, titleCase(kind))
	}
	header = append(header, "Off")

	rows := [][]interface{}{header}
	for _, row := range published.Rows {
		sheetRow := []interface{}{row.Date, row.Weekday}
		for _, kind := range published.KindColumns {
			sheetRow = append(sheetRow, row.Assigned[kind])
		}
		sheetRow = append(sheetRow, row.Off)
		rows = append(rows, sheetRow)
	}

	if err := c.UpdateValues(spreadsheetID, fmt.Sprintf("%s!A1", tabTitle), rows); err != nil {
		return "", fmt.Errorf("failed to write roster data: %w", err)
	}

	return tabTitle, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// rosterTabTitle creates a tab title like "Mon Sep 01 2025 - Tue Sep 30 2025".
func rosterTabTitle(start, end string) (string, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return "", fmt.Errorf("invalid start date: %w", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return "", fmt.Errorf("invalid end date: %w", err)
	}

	return fmt.Sprintf("%s - %s",
		s.Format("Mon Jan 02 2006"),
		e.Format("Mon Jan 02 2006"),
	), nil
}
