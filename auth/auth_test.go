package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

type memStore struct {
	mu         sync.Mutex
	users      map[uint]*models.User
	businesses map[uint]*models.Business
	nextID     uint
}

func newMemStore() *memStore {
	return &memStore{users: map[uint]*models.User{}, businesses: map[uint]*models.Business{}}
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("Record not found")
}

func (s *memStore) FindUser(ctx context.Context, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.NotFound("Record not found")
	}
	cp := *u
	cp.Business = s.businesses[u.BusinessID]
	return &cp, nil
}

func (s *memStore) BusinessNameExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.businesses {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateAccount(ctx context.Context, business *models.Business, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	business.ID = s.nextID
	s.businesses[business.ID] = business
	user.ID = s.nextID
	user.BusinessID = business.ID
	s.users[user.ID] = user
	return nil
}

func (s *memStore) SetResetToken(ctx context.Context, userID uint, hash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].ResetTokenHash = &hash
	s.users[userID].ResetTokenExpiresAt = &expiresAt
	return nil
}

func (s *memStore) SetPassword(ctx context.Context, userID uint, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	u.PasswordHash = hash
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	return nil
}

func (s *memStore) SetAdmin(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].IsAdmin = true
	return nil
}

type captureMailer struct {
	to, link string
}

func (m *captureMailer) SendPasswordReset(ctx context.Context, to, link string, ttl time.Duration) error {
	m.to, m.link = to, link
	return nil
}

func newService() (*Service, *memStore, *captureMailer) {
	store := newMemStore()
	mailer := &captureMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, NewTokens("test-secret", time.Hour), mailer, "https://app.example.com/reset", 30*time.Minute, logger)
	return svc, store, mailer
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"short", false},
		{strings.Repeat("a", 73), false},
		{"Password123", false},
		{"QWERTY123", false},
		{"1234567890", false},
		{"correct horse", true},
		{"s4les-ledger", true},
	}
	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err == nil) != tt.ok {
			t.Errorf("ValidatePassword(%q) = %v, want ok=%v", tt.password, err, tt.ok)
		}
	}
}

func TestSignupAndLogin(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	in := SignupInput{Email: "Owner@Shop.com", Password: "kiosk-open-9", BusinessName: "Corner Shop"}
	if err := svc.Signup(ctx, in); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	dupEmail := in
	dupEmail.BusinessName = "Other Shop"
	if err := svc.Signup(ctx, dupEmail); apperr.Message(err) != "Email already exists" {
		t.Errorf("duplicate email: %v", err)
	}
	dupName := in
	dupName.Email = "second@shop.com"
	if err := svc.Signup(ctx, dupName); apperr.Message(err) != "Business name already exists" {
		t.Errorf("duplicate business: %v", err)
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "owner@shop.com", Password: "wrong-password"}); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "nobody@shop.com", Password: "kiosk-open-9"}); apperr.Message(err) != "Invalid credentials" {
		t.Errorf("unknown email: %v", err)
	}

	token, err := svc.Login(ctx, LoginInput{Email: "owner@shop.com", Password: "kiosk-open-9"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Email != "owner@shop.com" || id.BusinessID == 0 || id.IsAdmin {
		t.Errorf("identity: %+v", id)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	if err := svc.Signup(ctx, SignupInput{Email: "a@b.co", Password: "kiosk-open-9", BusinessName: "A"}); err != nil {
		t.Fatal(err)
	}
	token, err := svc.Login(ctx, LoginInput{Email: "a@b.co", Password: "kiosk-open-9"})
	if err != nil {
		t.Fatal(err)
	}

	other := NewTokens("another-secret", time.Hour)
	forged, _ := other.Issue(&models.User{ID: 1, BusinessID: 1})

	expiredTokens := NewTokens("test-secret", time.Hour)
	expiredTokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredTokens.Issue(&models.User{ID: 1, BusinessID: 1})

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		BusinessID:       1,
		Type:             "refresh",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	wrongType, _ := refresh.SignedString([]byte("test-secret"))

	for name, tok := range map[string]string{"garbage": "not-a-jwt", "forged": forged, "expired": expired, "wrong type": wrongType} {
		if _, err := svc.Authenticate(ctx, tok); !apperr.IsKind(err, apperr.KindUnauthorized) {
			t.Errorf("%s: got %v", name, err)
		}
	}

	store.businesses[1].IsSuspended = true
	if _, err := svc.Authenticate(ctx, token); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("suspended business: got %v", err)
	}

	delete(store.users, 1)
	if _, err := svc.Authenticate(ctx, token); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Errorf("deleted user: got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	svc, store, mailer := newService()
	ctx := context.Background()
	if err := svc.Signup(ctx, SignupInput{Email: "a@b.co", Password: "kiosk-open-9", BusinessName: "A"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.ForgotPassword(ctx, "missing@b.co"); err != nil || mailer.link != "" {
		t.Fatalf("unknown email: err=%v link=%q", err, mailer.link)
	}
	if err := svc.ForgotPassword(ctx, "A@B.co"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if mailer.to != "a@b.co" {
		t.Errorf("mailed %q", mailer.to)
	}
	link, err := url.Parse(mailer.link)
	if err != nil {
		t.Fatal(err)
	}
	token := link.Query().Get("token")
	if store.users[1].ResetTokenHash == nil || *store.users[1].ResetTokenHash == token {
		t.Fatal("reset token must be stored hashed")
	}

	if err := svc.ResetPassword(ctx, "1.wrong", "new-pass-42x"); apperr.Message(err) != "Invalid or expired reset token" {
		t.Errorf("wrong token: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "12345678"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("weak password: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "new-pass-42x"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "new-pass-42x"); err == nil {
		t.Error("token reused")
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "a@b.co", Password: "new-pass-42x"}); err != nil {
		t.Errorf("login with new password: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "a@b.co"); err != nil {
		t.Fatal(err)
	}
	link, _ = url.Parse(mailer.link)
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if err := svc.ResetPassword(ctx, link.Query().Get("token"), "later-pass-77"); err == nil {
		t.Error("expired token accepted")
	}
}

func TestPromoteAdmin(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	if err := svc.Signup(ctx, SignupInput{Email: "a@b.co", Password: "kiosk-open-9", BusinessName: "A"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.PromoteAdmin(ctx, "", "", "a@b.co"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("unconfigured secret: %v", err)
	}
	if err := svc.PromoteAdmin(ctx, "s3cret", "guess", "a@b.co"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("wrong secret: %v", err)
	}
	if err := svc.PromoteAdmin(ctx, "s3cret", "s3cret", "x@b.co"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("unknown user: %v", err)
	}
	if err := svc.PromoteAdmin(ctx, "s3cret", "s3cret", "a@b.co"); err != nil || !store.users[1].IsAdmin {
		t.Errorf("promote: %v admin=%v", err, store.users[1].IsAdmin)
	}
}

func TestResendMailer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer re_key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	m := NewResendMailer("re_key", "Simple Sales <no-reply@example.com>")
	m.url = srv.URL
	if err := m.SendPasswordReset(context.Background(), "a@b.co", "https://x/reset?token=1.abc", 30*time.Minute); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(got["text"].(string), "https://x/reset?token=1.abc") {
		t.Errorf("body: %v", got)
	}

	m.apiKey = "wrong"
	if err := m.SendPasswordReset(context.Background(), "a@b.co", "l", time.Minute); err == nil {
		t.Error("401 must fail")
	}
}
