package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestOperatorToken(t *testing.T) {
	secret := "test-secret-key-12345"

	token, err := GenerateOperatorToken("42", "Dana", "planner", secret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Fatal("Token should not be empty")
	}

	// Test Validation (Success)
	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if got := OperatorID(claims); got != "42" {
		t.Errorf("Expected operator ID 42, got %q", got)
	}
	if claims["role"] != "planner" {
		t.Errorf("Expected role planner, got %v", claims["role"])
	}

	// Test Validation (Failure - Wrong Key)
	if _, err := ValidateToken(token, "wrong-key"); err == nil {
		t.Error("Validation should fail with wrong key")
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateOperatorToken("7", "", "", "k", -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := ValidateToken(token, "k"); err == nil {
		t.Error("Expired token should not validate")
	}
}

func TestGenerateRequiresIdentity(t *testing.T) {
	if _, err := GenerateOperatorToken("", "x", "", "k", time.Hour); err == nil {
		t.Error("Empty operator id should be rejected")
	}
	if _, err := GenerateOperatorToken("1", "x", "", "", time.Hour); err == nil {
		t.Error("Empty secret should be rejected")
	}
}

func TestOperatorIDFromNumericClaim(t *testing.T) {
	if got := OperatorID(jwt.MapClaims{"id": float64(17)}); got != "17" {
		t.Errorf("Expected 17, got %q", got)
	}
	if got := OperatorID(jwt.MapClaims{}); got != "" {
		t.Errorf("Expected empty id, got %q", got)
	}
}
