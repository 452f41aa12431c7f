package recipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	docs := []bookmarkDoc{
		{Recipe: Recipe{ID: "old", Title: "Old"}, CreatedAt: base},
		{Recipe: Recipe{ID: "legacy", Title: "Legacy"}},
		{Recipe: Recipe{ID: "new", Title: "New"}, CreatedAt: base.Add(time.Hour)},
	}

	recipes := newestFirst(docs)
	require.Len(t, recipes, 3)
	assert.Equal(t, "new", recipes[0].ID)
	assert.Equal(t, "old", recipes[1].ID)
	assert.Equal(t, "legacy", recipes[2].ID)
}

func TestNewestFirst_Empty(t *testing.T) {
	recipes := newestFirst(nil)
	assert.NotNil(t, recipes)
	assert.Empty(t, recipes)
}
