package jwt

import (
	"fmt"
	"sync"
	"time"

	"support-desk-backend/internal/env"

	"github.com/golang-jwt/jwt"
)

var (
	secretsMu   sync.RWMutex
	roleSecrets = map[Role]string{}
)

func secretForRole(role Role) (string, error) {
	secretsMu.RLock()
	secret, ok := roleSecrets[role]
	secretsMu.RUnlock()
	if ok && secret != "" {
		return secret, nil
	}

	// Lazily pick up the environment so importing this package in tests
	// does not require configuration; tests inject via SetRoleSecret.
	envSecret := env.Get(env.AgentSecretKey)
	if envSecret == "" {
		return "", fmt.Errorf("no secret configured for role %d", role)
	}
	SetRoleSecret(role, envSecret)
	return envSecret, nil
}

func SetRoleSecret(role Role, secret string) {
	secretsMu.Lock()
	roleSecrets[role] = secret
	secretsMu.Unlock()
}

func roleChar(role Role) string {
	switch role {
	case RoleAgent:
		return "1"
	case RoleAdmin:
		return "2"
	}
	return ""
}

// CreateToken mints an HS256 identity token with a trailing role
// character, the token format the rest of the platform already speaks.
func CreateToken(identity AgentIdentity, role Role, validUntil int64) (string, error) {
	secret, err := secretForRole(role)
	if err != nil {
		return "", err
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(15 * time.Minute).Unix()
	}

	claims := jwt.MapClaims{
		"id":    identity.AgentID,
		"email": identity.Email,
		"name":  identity.Name,
		"exp":   validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString + roleChar(role), nil
}

func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	expected := roleChar(role)
	if expected == "" || tokenString[len(tokenString)-1:] != expected {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	secret, err := secretForRole(role)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// ParseAgentIdentity validates an agent token and extracts the identity
// fields the realtime and REST layers need.
func ParseAgentIdentity(tokenString string) (AgentIdentity, error) {
	claims, err := ParseToken(tokenString, RoleAgent)
	if err != nil {
		return AgentIdentity{}, err
	}

	agentID, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	if agentID == "" {
		return AgentIdentity{}, fmt.Errorf("token missing agent id")
	}

	return AgentIdentity{
		AgentID: agentID,
		Email:   email,
		Name:    name,
	}, nil
}
