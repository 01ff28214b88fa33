package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaviki/sentinelops/internal/models"
)

func newTestIncident(id string, createdAt time.Time, dedupKey string) *models.Incident {
	return &models.Incident{
		ID:        id,
		CreatedAt: createdAt,
		Severity:  models.SeverityP2,
		Title:     "test incident",
		DedupKey:  dedupKey,
		Status:    models.StatusActive,
	}
}

func TestStore_PutRejectsDuplicateID(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	require.NoError(t, s.Put(newTestIncident("INC-1", time.Now(), "a")))
	err := s.Put(newTestIncident("INC-1", time.Now(), "b"))
	assert.Error(t, err)
}

func TestStore_ListOrdersNewestFirst(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(newTestIncident("INC-1", base, "a")))
	require.NoError(t, s.Put(newTestIncident("INC-2", base.Add(time.Minute), "b")))
	require.NoError(t, s.Put(newTestIncident("INC-3", base.Add(2*time.Minute), "c")))

	items := s.List(0, 0)
	require.Len(t, items, 3)
	assert.Equal(t, "INC-3", items[0].ID)
	assert.Equal(t, "INC-2", items[1].ID)
	assert.Equal(t, "INC-1", items[2].ID)
}

func TestStore_ListAppliesLimitAndOffset(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(newTestIncident(string(rune('A'+i)), base.Add(time.Duration(i)*time.Second), string(rune('A'+i)))))
	}

	items := s.List(2, 1)
	assert.Len(t, items, 2)
}

func TestStore_EvictsOldestWhenOverCapacity(t *testing.T) {
	s := NewStore(2, 30*time.Minute)
	base := time.Now()
	require.NoError(t, s.Put(newTestIncident("INC-1", base, "a")))
	require.NoError(t, s.Put(newTestIncident("INC-2", base.Add(time.Second), "b")))
	require.NoError(t, s.Put(newTestIncident("INC-3", base.Add(2*time.Second), "c")))

	assert.Equal(t, 2, s.Count())
	_, found := s.Get("INC-1")
	assert.False(t, found)
	_, found = s.Get("INC-3")
	assert.True(t, found)
}

func TestStore_FindActiveByDedupKey_WithinCooldownReturnsIncident(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	require.NoError(t, s.Put(newTestIncident("INC-1", time.Now(), "key-a")))

	inc, found := s.FindActiveByDedupKey("key-a")
	assert.True(t, found)
	assert.Equal(t, "INC-1", inc.ID)
}

func TestStore_FindActiveByDedupKey_AfterCooldownReturnsNotFound(t *testing.T) {
	s := NewStore(10, time.Minute)
	require.NoError(t, s.Put(newTestIncident("INC-1", time.Now().Add(-2*time.Minute), "key-a")))

	_, found := s.FindActiveByDedupKey("key-a")
	assert.False(t, found)
}

func TestStore_GetRecomputesStatusAsCooling(t *testing.T) {
	s := NewStore(10, time.Minute)
	require.NoError(t, s.Put(newTestIncident("INC-1", time.Now().Add(-2*time.Minute), "key-a")))

	inc, found := s.Get("INC-1")
	require.True(t, found)
	assert.Equal(t, models.StatusCooling, inc.Status)
}

func TestStore_GetMissingIDReturnsNotFound(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	_, found := s.Get("no-such-id")
	assert.False(t, found)
}

func TestStore_SetCooldownAppliesToNextRead(t *testing.T) {
	s := NewStore(10, time.Minute)
	require.NoError(t, s.Put(newTestIncident("INC-1", time.Now().Add(-2*time.Minute), "key-a")))

	inc, found := s.Get("INC-1")
	require.True(t, found)
	assert.Equal(t, models.StatusCooling, inc.Status)

	s.SetCooldown(time.Hour)

	inc, found = s.Get("INC-1")
	require.True(t, found)
	assert.Equal(t, models.StatusActive, inc.Status)
}

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	inc := newTestIncident("INC-1", time.Now(), "key-a")
	inc.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP1}}
	inc.Analysis = &models.Analysis{Summary: "original", AffectedServices: []string{"checkout"}}
	require.NoError(t, s.Put(inc))

	result, found := s.Get("INC-1")
	require.True(t, found)

	result.Anomalies[0].Service = "mutated"
	result.Analysis.Summary = "mutated"
	result.Analysis.AffectedServices[0] = "mutated"

	again, found := s.Get("INC-1")
	require.True(t, found)
	assert.Equal(t, "checkout", again.Anomalies[0].Service)
	assert.Equal(t, "original", again.Analysis.Summary)
	assert.Equal(t, "checkout", again.Analysis.AffectedServices[0])
}
