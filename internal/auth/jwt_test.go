package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func TestHashAndCheckPassword(t *testing.T) {
	pwd := "s3cr3t-password"
	hash, err := HashPassword(pwd)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := CheckPassword(hash, pwd); err != nil {
		t.Fatalf("CheckPassword failed when password should match: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("CheckPassword succeeded when it should have failed")
	}

	if err := CheckPassword("", ""); err == nil {
		t.Fatal("CheckPassword accepted an empty hash")
	}
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	b, _ := NewRefreshToken()

	if len(a) != 43 {
		t.Fatalf("expected 43 url-safe chars for 32 bytes, got %d", len(a))
	}
	if a == b {
		t.Fatal("two refresh tokens were identical")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token is not url-safe: %s", a)
	}
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	id := bson.NewObjectID()
	token, exp, err := m.IssueAccessToken(id, "test@example.com", "tenant")
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}
	if time.Until(exp) > 5*time.Minute || time.Until(exp) < 4*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}

	if claims.Subject != "test@example.com" {
		t.Fatalf("claims.Subject mismatch: got %s", claims.Subject)
	}
	if claims.UserID != id.Hex() || claims.Role != "tenant" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestJWTManager_NormalizeEmailClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	var id bson.ObjectID
	token, _, err := m.IssueAccessToken(id, "User.Case@Example.COM", "landlord")
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}

	claims, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}

	if claims.Email != "user.case@example.com" || claims.Subject != "user.case@example.com" {
		t.Fatalf("expected normalized email in claims, got %s / %s", claims.Email, claims.Subject)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, _, err := m.IssueAccessToken(bson.NewObjectID(), "late@example.com", "tenant")
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}
	if _, err := m.VerifyAccessToken(token); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	a := NewJWTManager("secret-a", time.Minute)
	b := NewJWTManager("secret-b", time.Minute)

	token, _, _ := a.IssueAccessToken(bson.NewObjectID(), "x@example.com", "tenant")
	if _, err := b.VerifyAccessToken(token); err == nil {
		t.Fatal("token signed with another secret verified")
	}
	if _, err := b.VerifyAccessToken("not-a-jwt"); err == nil {
		t.Fatal("malformed token verified")
	}
}

func TestJWTManager_PurposeSeparation(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)

	reset, err := m.IssuePurposeToken("r@example.com", PurposePasswordReset, 30*time.Minute)
	if err != nil {
		t.Fatalf("IssuePurposeToken failed: %v", err)
	}

	if _, err := m.VerifyAccessToken(reset); err == nil {
		t.Fatal("reset token accepted as access token")
	}
	if _, err := m.VerifyPurposeToken(reset, PurposeEmailVerify); err == nil {
		t.Fatal("reset token accepted for email verification")
	}
	claims, err := m.VerifyPurposeToken(reset, PurposePasswordReset)
	if err != nil {
		t.Fatalf("VerifyPurposeToken failed: %v", err)
	}
	if claims.Email != "r@example.com" {
		t.Fatalf("unexpected email %s", claims.Email)
	}
}

func TestJWTManager_Algorithm(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)
	if err := m.UseAlgorithm("HS512"); err != nil {
		t.Fatalf("UseAlgorithm failed: %v", err)
	}
	if err := m.UseAlgorithm("RS256"); err == nil {
		t.Fatal("asymmetric algorithm accepted")
	}

	token, _, _ := m.IssueAccessToken(bson.NewObjectID(), "alg@example.com", "tenant")
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		t.Fatalf("ParseUnverified failed: %v", err)
	}
	if parsed.Method.Alg() != "HS512" {
		t.Fatalf("expected HS512, got %s", parsed.Method.Alg())
	}

	// a verifier pinned to HS256 refuses HS512 tokens
	other := NewJWTManager("test-secret", time.Minute)
	if _, err := other.VerifyAccessToken(token); err == nil {
		t.Fatal("token with unexpected algorithm verified")
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	// create a manager with two keys and active kid "k2"
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	var id bson.ObjectID

	tkn2, _, err := m.IssueAccessToken(id, "rot@example.com", "tenant")
	if err != nil {
		t.Fatalf("IssueAccessToken (k2) failed: %v", err)
	}
	if _, err := m.VerifyAccessToken(tkn2); err != nil {
		t.Fatalf("VerifyAccessToken (k2) failed: %v", err)
	}

	// a token issued while k1 was active must still verify after rotation
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.IssueAccessToken(id, "rot@example.com", "tenant")
	if err != nil {
		t.Fatalf("IssueAccessToken (k1) failed: %v", err)
	}
	if _, err := m.VerifyAccessToken(tkn1); err != nil {
		t.Fatalf("VerifyAccessToken (old k1) failed: %v", err)
	}

	// once k1 is retired its tokens are rejected
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := retired.VerifyAccessToken(tkn1); err == nil {
		t.Fatal("token signed by retired key verified")
	}
}
