package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionIsActive(t *testing.T) {
	assert.True(t, (&Connection{Status: ConnectionPending}).IsActive())
	assert.True(t, (&Connection{Status: ConnectionAccepted}).IsActive())
	assert.False(t, (&Connection{Status: ConnectionRejected}).IsActive())
	assert.False(t, (&Connection{Status: ConnectionRemoved}).IsActive())
}

func TestHasEventPrivilege(t *testing.T) {
	assert.True(t, HasEventPrivilege(RoleOrganizer))
	assert.True(t, HasEventPrivilege(RoleAdmin))
	assert.False(t, HasEventPrivilege(RoleAttendee))
	assert.False(t, HasEventPrivilege(""))
}
