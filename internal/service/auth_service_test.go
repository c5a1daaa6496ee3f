package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/pkg/auth"
)

func TestRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	svc := NewAuthService(e.store.Users, jwtManager, nil)

	reg, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if reg.User.Email != "alice@example.com" {
		t.Errorf("email stored as %q, want lowercase", reg.User.Email)
	}
	claims, err := jwtManager.ValidateToken(reg.Token)
	if err != nil || claims.UserID != reg.User.ID || claims.Username != "alice" {
		t.Fatalf("token claims = %+v, %v", claims, err)
	}

	_, err = svc.Register(ctx, model.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "secret1"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}
	_, err = svc.Register(ctx, model.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret1"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate username err = %v, want ErrConflict", err)
	}

	if _, err := svc.Login(ctx, model.LoginRequest{Email: "alice@example.com", Password: "wrong!!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "secret1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", err)
	}
	login, err := svc.Login(ctx, model.LoginRequest{Email: "ALICE@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}

	// without redis logout only flips presence
	if err := svc.Logout(ctx, login.User.ID, login.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	profile, err := svc.GetProfile(ctx, login.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if profile.IsOnline || profile.LastSeen == nil {
		t.Errorf("profile after logout = %+v", profile)
	}
}

func TestUpdateProfileRejectsTakenUsername(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := NewAuthService(e.store.Users, auth.NewJWTManager("s", time.Hour), nil)
	a, b := e.user(t, "alice"), e.user(t, "bob")

	if _, err := svc.UpdateProfile(ctx, a.ID, model.UpdateProfileRequest{Username: b.Username}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("taken username err = %v, want ErrConflict", err)
	}

	status := "busy"
	got, err := svc.UpdateProfile(ctx, a.ID, model.UpdateProfileRequest{Username: "alicia", Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alicia" || got.Status != "busy" {
		t.Errorf("profile = %+v", got)
	}
}
