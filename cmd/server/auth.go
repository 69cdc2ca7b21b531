package main

// Authentication for the SliceDB TCP server.

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nickyhof/SliceDB/core"
)

// AuthConfig configures server authentication. Tokens are validated as
// HS256-family JWTs against a shared secret; identity is read from the
// configured name and email claims.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string

	// Expected "iss" and "aud" claims. Empty means not checked.
	Issuer   string
	Audience string

	// Claims holding the user's name and email. Default "name" and "email".
	NameClaim  string
	EmailClaim string
}

func (c *AuthConfig) nameClaim() string {
	if c.NameClaim == "" {
		return "name"
	}
	return c.NameClaim
}

func (c *AuthConfig) emailClaim() string {
	if c.EmailClaim == "" {
		return "email"
	}
	return c.EmailClaim
}

// ConnectionState tracks per-connection authentication state.
type ConnectionState struct {
	identity      *core.Identity
	authenticated bool
	tokenExpiry   time.Time
}

func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

func (cs *ConnectionState) Identity() *core.Identity {
	return cs.identity
}

// validateJWT checks the token signature and registered claims, then pulls
// the caller's identity out of the claim set.
func (s *Server) validateJWT(tokenString string) (core.Identity, time.Time, error) {
	cfg := s.authConfig
	if cfg == nil {
		return core.Identity{}, time.Time{}, errors.New("authentication not configured")
	}
	if cfg.JWTSecret == "" {
		return core.Identity{}, time.Time{}, errors.New("no JWT secret configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return core.Identity{}, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return core.Identity{}, time.Time{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return core.Identity{}, time.Time{}, errors.New("invalid token claims")
	}
	if err := cfg.checkRegisteredClaims(claims); err != nil {
		return core.Identity{}, time.Time{}, err
	}

	identity := core.Identity{
		Name:  stringClaim(claims, cfg.nameClaim()),
		Email: stringClaim(claims, cfg.emailClaim()),
	}
	if identity.Name == "" && identity.Email == "" {
		return core.Identity{}, time.Time{}, fmt.Errorf(
			"token missing identity claims (%s or %s)", cfg.nameClaim(), cfg.emailClaim())
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return identity, expiresAt, nil
}

func (c *AuthConfig) checkRegisteredClaims(claims jwt.MapClaims) error {
	if c.Issuer != "" {
		issuer, _ := claims.GetIssuer()
		if issuer != c.Issuer {
			return fmt.Errorf("invalid issuer: expected %s, got %s", c.Issuer, issuer)
		}
	}
	if c.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !contains(audiences, c.Audience) {
			return fmt.Errorf("invalid audience: expected %s", c.Audience)
		}
	}
	return nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// parseAuthCommand extracts the token from an "AUTH JWT <token>" line.
// JWT is the only supported scheme.
func parseAuthCommand(line string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 || !strings.EqualFold(parts[0], "AUTH") {
		return "", errors.New("not an AUTH command")
	}
	if len(parts) != 3 {
		return "", errors.New("invalid AUTH command: expected AUTH JWT <token>")
	}
	if !strings.EqualFold(parts[1], "JWT") {
		return "", fmt.Errorf("unsupported auth type: %s", parts[1])
	}
	return parts[2], nil
}

func authFailure(err error) Response {
	return Response{Success: false, Type: "auth", Error: err.Error()}
}

// handleAuth authenticates the connection from an AUTH line.
func (s *Server) handleAuth(line string, state *ConnectionState) Response {
	token, err := parseAuthCommand(line)
	if err != nil {
		return authFailure(err)
	}

	identity, expiresAt, err := s.validateJWT(token)
	if err != nil {
		return authFailure(err)
	}

	state.identity = &identity
	state.authenticated = true
	state.tokenExpiry = expiresAt

	ar := AuthResponse{
		Authenticated: true,
		Identity:      fmt.Sprintf("%s <%s>", identity.Name, identity.Email),
	}
	if !expiresAt.IsZero() {
		ar.ExpiresIn = int(time.Until(expiresAt).Seconds())
	}

	data, _ := json.Marshal(ar)
	return Response{Success: true, Type: "auth", Result: data}
}
