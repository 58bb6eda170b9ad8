package tenant

import (
	"context"
	"testing"
)

func TestInfoIsAdmin(t *testing.T) {
	if !(Info{}).IsAdmin() {
		t.Error("expected empty ID to be admin")
	}
	if (Info{ID: "acme"}).IsAdmin() {
		t.Error("expected non-empty ID to not be admin")
	}
}

func TestContextRoundTrip(t *testing.T) {
	info := Info{ID: "acme", Slug: "acme", Name: "Acme Corp", Active: true}

	ctx := NewContext(context.Background(), info)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected tenant in context")
	}
	if got != info {
		t.Errorf("expected %+v, got %+v", info, got)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no tenant in empty context")
	}
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(
		Info{ID: "a", Slug: "a", Name: "Tenant A", Active: true},
		Info{ID: "b", Slug: "b", Name: "Tenant B", Active: false},
	)

	t.Run("known tenant", func(t *testing.T) {
		info, err := r.Resolve(context.Background(), "a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Name != "Tenant A" || !info.Active {
			t.Errorf("unexpected identity: %+v", info)
		}
	})

	t.Run("inactive tenant still resolves", func(t *testing.T) {
		info, err := r.Resolve(context.Background(), "b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Active {
			t.Error("expected inactive tenant")
		}
	})

	t.Run("unknown tenant", func(t *testing.T) {
		if _, err := r.Resolve(context.Background(), "nope"); err == nil {
			t.Error("expected error for unknown principal")
		}
	})

	t.Run("empty principal is admin", func(t *testing.T) {
		info, err := r.Resolve(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !info.IsAdmin() {
			t.Error("expected admin identity")
		}
	})
}
