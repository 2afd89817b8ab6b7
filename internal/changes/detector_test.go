package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/notemap/pkg/models"
)

type DetectorSuite struct {
	suite.Suite
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) TestNoPreviousState() {
	current := map[string]string{
		"b.md": "hash-b",
		"a.md": "hash-a",
	}

	summary := Detect(current, nil, 0.05)
	assert.Equal(s.T(), []string{"a.md", "b.md"}, summary.New)
	assert.Empty(s.T(), summary.Modified)
	assert.Empty(s.T(), summary.Deleted)
	assert.Equal(s.T(), 1.0, summary.ChangePercentage)
	assert.False(s.T(), summary.ShouldUseIncremental)
}

func (s *DetectorSuite) TestClassifiesNewModifiedDeleted() {
	previous := &models.ClusteringState{
		NoteHashes: map[string]string{
			"kept.md":     "h1",
			"modified.md": "h2",
			"deleted.md":  "h3",
		},
	}
	current := map[string]string{
		"kept.md":     "h1",
		"modified.md": "h2-changed",
		"new.md":      "h4",
	}

	summary := Detect(current, previous, 0.5)
	assert.Equal(s.T(), []string{"new.md"}, summary.New)
	assert.Equal(s.T(), []string{"modified.md"}, summary.Modified)
	assert.Equal(s.T(), []string{"deleted.md"}, summary.Deleted)
	assert.Equal(s.T(), []string{"new.md", "modified.md"}, summary.Changed())
}

func (s *DetectorSuite) TestChangePercentageUsesLargerSet() {
	// 4 previous notes, 3 current: one deleted, everything else unchanged.
	previous := &models.ClusteringState{
		NoteHashes: map[string]string{
			"a.md": "h", "b.md": "h", "c.md": "h", "d.md": "h",
		},
	}
	current := map[string]string{
		"a.md": "h", "b.md": "h", "c.md": "h",
	}

	summary := Detect(current, previous, 0.5)
	assert.InDelta(s.T(), 0.25, summary.ChangePercentage, 1e-12)
}

func (s *DetectorSuite) TestIncrementalRecommendation() {
	previous := &models.ClusteringState{NoteHashes: map[string]string{}}
	for i := 0; i < 100; i++ {
		previous.NoteHashes[path(i)] = "h"
	}

	s.Run("small delta recommends incremental", func() {
		current := make(map[string]string, 100)
		for i := 0; i < 100; i++ {
			current[path(i)] = "h"
		}
		current[path(0)] = "changed"
		current[path(1)] = "changed"

		summary := Detect(current, previous, 0.05)
		assert.InDelta(s.T(), 0.02, summary.ChangePercentage, 1e-12)
		assert.True(s.T(), summary.ShouldUseIncremental)
	})

	s.Run("large delta forces full run", func() {
		current := make(map[string]string, 100)
		for i := 0; i < 100; i++ {
			current[path(i)] = "h"
		}
		for i := 0; i < 10; i++ {
			current[path(i)] = "changed"
		}

		summary := Detect(current, previous, 0.05)
		assert.InDelta(s.T(), 0.10, summary.ChangePercentage, 1e-12)
		assert.False(s.T(), summary.ShouldUseIncremental)
	})

	s.Run("threshold boundary is exclusive", func() {
		current := make(map[string]string, 100)
		for i := 0; i < 100; i++ {
			current[path(i)] = "h"
		}
		for i := 0; i < 5; i++ {
			current[path(i)] = "changed"
		}

		summary := Detect(current, previous, 0.05)
		assert.InDelta(s.T(), 0.05, summary.ChangePercentage, 1e-12)
		assert.False(s.T(), summary.ShouldUseIncremental)
	})
}

func (s *DetectorSuite) TestNoChanges() {
	previous := &models.ClusteringState{
		NoteHashes: map[string]string{"a.md": "h1", "b.md": "h2"},
	}
	current := map[string]string{"a.md": "h1", "b.md": "h2"}

	summary := Detect(current, previous, 0.05)
	assert.Empty(s.T(), summary.New)
	assert.Empty(s.T(), summary.Modified)
	assert.Empty(s.T(), summary.Deleted)
	assert.Zero(s.T(), summary.ChangePercentage)
	assert.True(s.T(), summary.ShouldUseIncremental)
}

func (s *DetectorSuite) TestEmptyBothSides() {
	previous := &models.ClusteringState{NoteHashes: map[string]string{}}
	summary := Detect(map[string]string{}, previous, 0.05)
	assert.Zero(s.T(), summary.ChangePercentage)
	assert.True(s.T(), summary.ShouldUseIncremental)
}

func path(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26)) + ".md"
}
