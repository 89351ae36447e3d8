package push

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/dukerupert/homecal/internal/model"
)

type fakeLister struct {
	byUser map[string][]model.DeviceToken
	fail   string
}

func (f *fakeLister) ListByUser(_ context.Context, userID string) ([]model.DeviceToken, error) {
	if userID == f.fail {
		return nil, errors.New("boom")
	}
	return f.byUser[userID], nil
}

func tokenValues(toks []model.DeviceToken) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Token
	}
	sort.Strings(out)
	return out
}

func TestResolveDedupes(t *testing.T) {
	lister := &fakeLister{byUser: map[string][]model.DeviceToken{
		"a": {{UserID: "a", Token: "t1"}, {UserID: "a", Token: "t2"}},
		"b": {{UserID: "b", Token: "t2"}, {UserID: "b", Token: "t3"}},
	}}
	r := NewResolver(lister, 2)

	got, err := r.Resolve(context.Background(), []string{"a", "b", "a", "nobody"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	vals := tokenValues(got)
	want := []string{"t1", "t2", "t3"}
	if len(vals) != len(want) {
		t.Fatalf("tokens = %v, want %v", vals, want)
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, vals[i], want[i])
		}
	}
}

func TestResolveEmpty(t *testing.T) {
	r := NewResolver(&fakeLister{}, 0)

	got, err := r.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got = %v, want empty non-nil slice", got)
	}

	got, err = r.Resolve(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d tokens, want 0", len(got))
	}
}

func TestResolveError(t *testing.T) {
	r := NewResolver(&fakeLister{fail: "bad"}, 1)
	if _, err := r.Resolve(context.Background(), []string{"ok", "bad"}); err == nil {
		t.Error("expected error when a lookup fails")
	}
}
