package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"manager", "qa", "developer", ""} {
		role, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, Role(s), role)
	}

	_, err := ParseRole("admin")
	assert.Error(t, err)
}

func TestRoleAssigned(t *testing.T) {
	assert.True(t, RoleManager.Assigned())
	assert.True(t, RoleQA.Assigned())
	assert.True(t, RoleDeveloper.Assigned())
	assert.False(t, RoleUnassigned.Assigned())
}
