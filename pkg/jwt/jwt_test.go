package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewManager("test-secret-key-at-least-32-chars!", 15*time.Minute)

	agentID := uuid.New()
	teamID := uuid.New()

	tokenString, err := manager.GenerateToken(agentID, teamID, "agent")
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := manager.ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, agentID, claims.AgentID)
	assert.Equal(t, teamID, claims.TeamID)
	assert.Equal(t, "agent", claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := NewManager("test-secret-key-at-least-32-chars!", 15*time.Minute)
	other := NewManager("another-secret-key-also-32-chars!!", 15*time.Minute)

	tokenString, err := manager.GenerateToken(uuid.New(), uuid.New(), "agent")
	assert.NoError(t, err)

	_, err = other.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewManager("test-secret-key-at-least-32-chars!", -1*time.Minute)

	tokenString, err := manager.GenerateToken(uuid.New(), uuid.New(), "agent")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateGarbageToken(t *testing.T) {
	manager := NewManager("test-secret-key-at-least-32-chars!", 15*time.Minute)

	_, err := manager.ValidateToken("not-a-token")
	assert.Error(t, err)
}
