package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	tests := []struct {
		name    string
		userID  int64
		wantErr error
	}{
		{"valid user", 123, nil},
		{"zero user", 0, ErrInvalidUserID},
		{"negative user", -4, ErrInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.GenerateAccessToken(tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateAccessToken() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && token == "" {
				t.Error("GenerateAccessToken() returned empty token")
			}
		})
	}
}

func TestUserIDFromToken(t *testing.T) {
	svc := NewJWTService(testSecret)
	token, err := svc.GenerateAccessToken(42)
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	userID, err := svc.UserIDFromToken(token)
	if err != nil {
		t.Fatalf("UserIDFromToken() failed: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() failed: %v", err)
	}
	return token
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := NewJWTService(testSecret)
	now := time.Now()
	valid := func(sub, typ string) Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
			Type: typ,
		}
	}
	good, _ := svc.GenerateAccessToken(9)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"tampered", good[:len(good)-2] + "xx", ErrInvalidToken},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte("other-secret"), valid("9", TokenTypeAccess)), ErrInvalidToken},
		{"refresh token type", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), valid("9", "refresh")), ErrInvalidToken},
		{"none algorithm", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid("9", TokenTypeAccess)), ErrInvalidToken},
		{"HS512 rejected", signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), valid("9", TokenTypeAccess)), ErrInvalidToken},
		{
			"expired",
			signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "9",
					ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
				},
				Type: TokenTypeAccess,
			}),
			ErrExpiredToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserIDFromToken_NonNumericSubject(t *testing.T) {
	svc := NewJWTService(testSecret)
	now := time.Now()
	token := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "did:web:example.com",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Type: TokenTypeAccess,
	})

	_, err := svc.UserIDFromToken(token)
	if !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("UserIDFromToken() error = %v, want %v", err, ErrInvalidUserID)
	}
	if !strings.Contains(err.Error(), "did:web:example.com") {
		t.Errorf("error should name the subject, got %q", err)
	}
}

func TestLeeway(t *testing.T) {
	issuer := NewJWTService(testSecret)
	issuer.now = func() time.Time { return time.Now().Add(-AccessTokenExpiry - 10*time.Second) }
	token, err := issuer.GenerateAccessToken(3)
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	if _, err := NewJWTService(testSecret).ValidateToken(token); err != nil {
		t.Errorf("token 10s past expiry should pass with default leeway: %v", err)
	}
	if _, err := NewJWTService(testSecret).WithLeeway(0).ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("without leeway expected ErrExpiredToken, got %v", err)
	}
}

func TestKeyRotation(t *testing.T) {
	const oldSecret = "old-secret-value-for-rotation-tests-0000"
	oldToken, err := NewJWTService(oldSecret).GenerateAccessToken(11)
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	rotating := NewJWTServiceWithRotation(testSecret, oldSecret)
	if id, err := rotating.UserIDFromToken(oldToken); err != nil || id != 11 {
		t.Errorf("token signed with previous secret: id=%d err=%v, want 11 <nil>", id, err)
	}

	newToken, err := rotating.GenerateAccessToken(12)
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}
	if _, err := NewJWTService(oldSecret).ValidateToken(newToken); err == nil {
		t.Error("new tokens must be signed with the current secret")
	}

	if _, err := NewJWTService(testSecret).ValidateToken(oldToken); err == nil {
		t.Error("previous-secret token should fail once rotation ends")
	}
}
