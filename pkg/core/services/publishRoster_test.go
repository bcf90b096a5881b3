package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/okabe-dev/wardshift/pkg/clients/sheetsclient"
	"github.com/okabe-dev/wardshift/pkg/snapshot"
)

// mockPublisher implements RosterPublisher for testing.
type mockPublisher struct {
	spreadsheetID string
	published     *sheetsclient.PublishedRoster
	tabTitle      string
	err           error
}

func (m *mockPublisher) PublishRoster(spreadsheetID string, published *sheetsclient.PublishedRoster) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.spreadsheetID = spreadsheetID
	m.published = published
	return m.tabTitle, nil
}

func testRunSnapshot() *snapshot.RunSnapshot {
	return &snapshot.RunSnapshot{
		Status: "optimal",
		Plan: snapshot.Plan{
			Period: snapshot.Period{Start: "2025-09-01", End: "2025-09-07"},
		},
		Roster: []snapshot.RosterDay{
			{
				Date:    "2025-09-01",
				Weekday: "Monday",
				Shifts: map[string][]string{
					"early": {"Aoki"},
					"day1":  {"Baba", "Chiba"},
				},
				Off: []string{"Doi"},
			},
		},
	}
}

func TestPublishRoster_BuildsTheSheetTable(t *testing.T) {
	publisher := &mockPublisher{tabTitle: "Mon Sep 01 2025 - Sun Sep 07 2025"}

	tabTitle, err := PublishRoster(context.Background(), publisher, "sheet-123", testRunSnapshot(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "Mon Sep 01 2025 - Sun Sep 07 2025", tabTitle)
	assert.Equal(t, "sheet-123", publisher.spreadsheetID)

	published := publisher.published
	require.NotNil(t, published)
	assert.Equal(t, "2025-09-01", published.Start)
	assert.Equal(t, "2025-09-07", published.End)
	assert.Equal(t, []string{"early", "day1", "day2", "day3", "late", "icu", "vacation"}, published.KindColumns)

	require.Len(t, published.Rows, 1)
	row := published.Rows[0]
	assert.Equal(t, "Monday", row.Weekday)
	assert.Equal(t, "Aoki", row.Assigned["early"])
	assert.Equal(t, "Baba/Chiba", row.Assigned["day1"])
	assert.Equal(t, "Doi", row.Off)
}

func TestPublishRoster_RequiresASpreadsheet(t *testing.T) {
	publisher := &mockPublisher{}

	_, err := PublishRoster(context.Background(), publisher, "", testRunSnapshot(), zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, publisher.published)
}

func TestPublishRoster_RequiresRosterRows(t *testing.T) {
	publisher := &mockPublisher{}
	snap := testRunSnapshot()
	snap.Roster = nil

	_, err := PublishRoster(context.Background(), publisher, "sheet-123", snap, zap.NewNop())
	assert.Error(t, err)
}
