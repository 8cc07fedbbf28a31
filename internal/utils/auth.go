package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateOperatorToken issues an access token for a warehouse operator.
// The id claim becomes the creator / approver recorded on writes.
func GenerateOperatorToken(operatorID, name, role, secret string, ttl time.Duration) (string, error) {
	if operatorID == "" {
		return "", errors.New("operator id is required")
	}
	if secret == "" {
		return "", errors.New("signing secret is required")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"id":   operatorID,
		"name": name,
		"role": role,
		"type": "operator",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and validates a token
func ValidateToken(tokenString string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// OperatorID extracts the id claim. Numeric ids from older tokens are
// rendered without a fraction.
func OperatorID(claims jwt.MapClaims) string {
	switch v := claims["id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
