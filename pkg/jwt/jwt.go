package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents JWT claims for a dashboard agent session. Tokens are
// minted by the external identity provider; this manager validates them and,
// for tests and internal tooling, can mint its own.
type Claims struct {
	AgentID uuid.UUID `json:"agent_id"`
	TeamID  uuid.UUID `json:"team_id"`
	Role    string    `json:"role"` // agent, supervisor, admin
	jwt.RegisteredClaims
}

// Manager handles JWT token operations
type Manager struct {
	secretKey     string
	tokenDuration time.Duration
}

// NewManager creates a new JWT manager
func NewManager(secretKey string, tokenDuration time.Duration) *Manager {
	return &Manager{
		secretKey:     secretKey,
		tokenDuration: tokenDuration,
	}
}

// GenerateToken creates a signed token for an agent
func (m *Manager) GenerateToken(agentID, teamID uuid.UUID, role string) (string, error) {
	claims := &Claims{
		AgentID: agentID,
		TeamID:  teamID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "voicedesk-identity",
			Audience:  jwt.ClaimStrings{"voicedesk-api"},
			Subject:   agentID.String(),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates and parses a JWT token
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
