package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePair(t *testing.T) {
	a, b := NormalizePair(9, 3)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(9), b)

	a, b = NormalizePair(3, 9)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(9), b)
}

func TestThreadParticipants(t *testing.T) {
	thread := MessageThread{User1ID: 3, User2ID: 9}

	assert.True(t, thread.HasParticipant(3))
	assert.True(t, thread.HasParticipant(9))
	assert.False(t, thread.HasParticipant(4))

	assert.Equal(t, uint(9), thread.OtherParticipant(3))
	assert.Equal(t, uint(3), thread.OtherParticipant(9))
	assert.Equal(t, uint(0), thread.OtherParticipant(4))
}

func TestCutoffFor(t *testing.T) {
	at := time.Now()
	thread := MessageThread{User1ID: 3, User2ID: 9, User1Cutoff: &at}

	assert.Equal(t, &at, thread.CutoffFor(3))
	assert.Nil(t, thread.CutoffFor(9))
	assert.Nil(t, thread.CutoffFor(4))
}

func TestActivityAt(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	thread := MessageThread{CreatedAt: created}
	assert.Equal(t, created, thread.ActivityAt())

	last := time.Now()
	thread.LastMessageAt = &last
	assert.Equal(t, last, thread.ActivityAt())
}

func TestIsGlobal(t *testing.T) {
	assert.True(t, (&MessageThread{}).IsGlobal())
	eventID := uint(10)
	assert.False(t, (&MessageThread{EventScopeID: &eventID}).IsGlobal())
}
