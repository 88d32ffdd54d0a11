package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArticleStatusPlayable(t *testing.T) {
	assert.False(t, StatusGenerating.Playable())
	assert.True(t, StatusReady.Playable())
	assert.True(t, StatusPlaying.Playable())
	assert.True(t, StatusPlayed.Playable())
}

func TestArticleStatusValid(t *testing.T) {
	for _, status := range []ArticleStatus{StatusGenerating, StatusReady, StatusPlaying, StatusPlayed} {
		assert.True(t, status.Valid(), string(status))
	}
	assert.False(t, ArticleStatus("ARCHIVED").Valid())
	assert.False(t, ArticleStatus("").Valid())
}

func TestPlayerStateBound(t *testing.T) {
	assert.False(t, PlayerState{}.Bound())
	assert.True(t, PlayerState{ArticleID: 7}.Bound())
}
