package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for the console.
// Access tokens must carry the agent phone: it is how telephony events are
// matched to the agent.
type Claims struct {
	jwt.RegisteredClaims

	AgentID    string    `json:"agent_id"`
	AgentPhone string    `json:"agent_phone,omitempty"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role,omitempty"`
	TokenType  TokenType `json:"token_type"`
}
