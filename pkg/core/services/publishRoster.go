package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/okabe-dev/wardshift/pkg/clients/sheetsclient"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/snapshot"
)

// RosterPublisher is the slice of the sheets client the publish service needs.
type RosterPublisher interface {
	PublishRoster(spreadsheetID string, published *sheetsclient.PublishedRoster) (string, error)
}

// PublishRoster writes a saved run snapshot to the roster spreadsheet and
// returns the tab title it landed on.
func PublishRoster(ctx context.Context, publisher RosterPublisher, spreadsheetID string, snap *snapshot.RunSnapshot, logger *zap.Logger) (string, error) {
	if spreadsheetID == "" {
		return "", fmt.Errorf("no roster spreadsheet configured")
	}
	if len(snap.Roster) == 0 {
		return "", fmt.Errorf("run snapshot has no roster rows")
	}

	published := &sheetsclient.PublishedRoster{
		Start: snap.Plan.Period.Start,
		End:   snap.Plan.Period.End,
	}
	for _, kind := range model.AllShiftKinds() {
		published.KindColumns = append(published.KindColumns, string(kind))
	}

	for _, day := range snap.Roster {
		row := sheetsclient.PublishedRosterRow{
			Date:     day.Date,
			Weekday:  day.Weekday,
			Assigned: make(map[string]string),
			Off:      strings.Join(day.Off, "/"),
		}
		for kind, names := range day.Shifts {
			row.Assigned[kind] = strings.Join(names, "/")
		}
		published.Rows = append(published.Rows, row)
	}

	logger.Debug("Publishing roster",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.Int("rows", len(published.Rows)))

	tabTitle, err := publisher.PublishRoster(spreadsheetID, published)
	if err != nil {
		return "", fmt.Errorf("failed to publish roster: %w", err)
	}

	logger.Info("Roster published", zap.String("tab", tabTitle))
	return tabTitle, nil
}
