package runbooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/observability"
)

type fakeClient struct {
	results []observability.RawRunbook
	err     error
}

func (f *fakeClient) DistinctServices(ctx context.Context, since time.Time) ([]string, error) {
	return nil, nil
}
func (f *fakeClient) BucketedSeries(ctx context.Context, service, metric string, start, end time.Time) ([]observability.Bucket, error) {
	return nil, nil
}
func (f *fakeClient) AggregateValue(ctx context.Context, service, metric string, start, end time.Time) (float64, error) {
	return 0, nil
}
func (f *fakeClient) EventsInWindow(ctx context.Context, levels []string, start, end time.Time, limit int) ([]observability.RawEvent, error) {
	return nil, nil
}
func (f *fakeClient) SearchRunbooks(ctx context.Context, services, tags []string, maxResults int) ([]observability.RawRunbook, error) {
	return f.results, f.err
}

func TestFindMatching_OrdersByScoreThenDate(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{results: []observability.RawRunbook{
		{Title: "low score", Score: 1.0, IncidentDate: newer},
		{Title: "high score old", Score: 5.0, IncidentDate: older},
		{Title: "high score new", Score: 5.0, IncidentDate: newer},
	}}

	m := New(client, 5)
	matches := m.FindMatching(context.Background(), []models.Anomaly{{Service: "checkout", Metric: models.MetricErrorRate}})

	assert := assert.New(t)
	assert.Len(matches, 3)
	assert.Equal("high score new", matches[0].Title)
	assert.Equal("high score old", matches[1].Title)
	assert.Equal("low score", matches[2].Title)
}

func TestFindMatching_TruncatesToMaxResults(t *testing.T) {
	client := &fakeClient{results: []observability.RawRunbook{
		{Title: "a", Score: 3}, {Title: "b", Score: 2}, {Title: "c", Score: 1},
	}}

	m := New(client, 2)
	matches := m.FindMatching(context.Background(), []models.Anomaly{{Service: "checkout"}})
	assert.Len(t, matches, 2)
}

func TestFindMatching_BackendFailureYieldsEmptyList(t *testing.T) {
	client := &fakeClient{err: errors.New("index missing")}

	m := New(client, 5)
	matches := m.FindMatching(context.Background(), []models.Anomaly{{Service: "checkout"}})
	assert.Empty(t, matches)
}

func TestFindMatching_EmptyAnomaliesReturnsNil(t *testing.T) {
	m := New(&fakeClient{}, 5)
	assert.Nil(t, m.FindMatching(context.Background(), nil))
}
