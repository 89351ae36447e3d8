package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{UserID: "u1", HouseholdID: "h1"}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "u1")
	}
	if got.HouseholdID != "h1" {
		t.Errorf("HouseholdID = %q, want %q", got.HouseholdID, "h1")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestHouseholdID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{HouseholdID: "h42"})
	if HouseholdID(ctx) != "h42" {
		t.Errorf("HouseholdID = %q, want %q", HouseholdID(ctx), "h42")
	}
}

func TestMissingIdentity(t *testing.T) {
	if HouseholdID(context.Background()) != "" {
		t.Error("expected empty household for missing context")
	}
	if UserID(context.Background()) != "" {
		t.Error("expected empty user for missing context")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: "u7"})
	if UserID(ctx) != "u7" {
		t.Errorf("UserID = %q, want %q", UserID(ctx), "u7")
	}
}
