package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewState_InitialState(t *testing.T) {
	vs, err := NewViewState(DefaultTabs(true))
	require.NoError(t, err)

	assert.Equal(t, TabOverview, vs.Active())
	assert.Equal(t, []Tab{TabOverview}, vs.Viewed())
	assert.False(t, vs.AllViewed())
	assert.Equal(t, []Tab{TabDetailed, TabRecommendations, TabTimeline}, vs.Remaining())
}

func TestViewState_SelectMarksViewed(t *testing.T) {
	vs, err := NewViewState(DefaultTabs(true))
	require.NoError(t, err)

	require.NoError(t, vs.Select(TabDetailed))
	assert.Equal(t, TabDetailed, vs.Active())
	assert.True(t, vs.HasViewed(TabDetailed))

	require.NoError(t, vs.Select(TabRecommendations))
	assert.False(t, vs.AllViewed())

	require.NoError(t, vs.Select(TabTimeline))
	assert.True(t, vs.AllViewed())
	assert.Empty(t, vs.Remaining())
}

func TestViewState_ViewedOnlyGrows(t *testing.T) {
	vs, err := NewViewState(DefaultTabs(false))
	require.NoError(t, err)

	sequence := []Tab{TabDetailed, TabOverview, TabRecommendations, TabDetailed, TabOverview}
	previous := len(vs.Viewed())
	for _, tab := range sequence {
		require.NoError(t, vs.Select(tab))
		assert.True(t, vs.HasViewed(vs.Active()), "active tab must be viewed")
		assert.GreaterOrEqual(t, len(vs.Viewed()), previous)
		previous = len(vs.Viewed())
	}
	assert.True(t, vs.AllViewed())
}

func TestViewState_UnknownTabRejected(t *testing.T) {
	vs, err := NewViewState(DefaultTabs(false))
	require.NoError(t, err)

	err = vs.Select(TabTimeline)
	assert.True(t, errors.Is(err, ErrUnknownTab))
	assert.Equal(t, TabOverview, vs.Active())
	assert.False(t, vs.HasViewed(TabTimeline))
}

func TestNewViewState_RejectsBadTabLists(t *testing.T) {
	_, err := NewViewState(nil)
	assert.Error(t, err)

	_, err = NewViewState([]Tab{TabDetailed, TabRecommendations})
	assert.Error(t, err)

	_, err = NewViewState([]Tab{TabOverview, TabOverview})
	assert.Error(t, err)

	_, err = NewViewState([]Tab{TabOverview, "charts"})
	assert.True(t, errors.Is(err, ErrUnknownTab))
}

func TestViewState_JSONRoundTrip(t *testing.T) {
	vs, err := NewViewState(DefaultTabs(true))
	require.NoError(t, err)
	require.NoError(t, vs.Select(TabTimeline))
	require.NoError(t, vs.Select(TabDetailed))

	data, err := json.Marshal(vs)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"tabs": ["overview", "detailed", "recommendations", "timeline"],
		"active_tab": "detailed",
		"viewed_tabs": ["overview", "detailed", "timeline"]
	}`, string(data))

	var restored ViewState
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, TabDetailed, restored.Active())
	assert.Equal(t, vs.Viewed(), restored.Viewed())
}

func TestViewState_Merge(t *testing.T) {
	four := []Tab{TabOverview, TabDetailed, TabRecommendations, TabTimeline}
	vs, err := NewViewState(four)
	require.NoError(t, err)
	require.NoError(t, vs.Select(TabDetailed))

	other, err := NewViewState(four)
	require.NoError(t, err)
	require.NoError(t, other.Select(TabTimeline))

	vs.Merge(other)
	assert.Equal(t, TabDetailed, vs.Active())
	assert.Equal(t, []Tab{TabOverview, TabDetailed, TabTimeline}, vs.Viewed())

	// Tabs the receiver does not have are ignored.
	three, err := NewViewState([]Tab{TabOverview, TabDetailed, TabRecommendations})
	require.NoError(t, err)
	three.Merge(other)
	assert.Equal(t, []Tab{TabOverview}, three.Viewed())

	vs.Merge(nil)
	assert.Len(t, vs.Viewed(), 3)
}
