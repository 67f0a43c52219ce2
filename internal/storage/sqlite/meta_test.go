package sqlite

import (
	"context"
	"testing"
)

func TestSetAndGetMeta(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.SetMeta(ctx, "schema_version", "1"); err != nil {
		t.Fatalf("set meta: %v", err)
	}

	got, err := store.GetMeta(ctx, "schema_version")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if got != "1" {
		t.Fatalf("expected %q, got %q", "1", got)
	}

	if err := store.SetMeta(ctx, "schema_version", "2"); err != nil {
		t.Fatalf("update meta: %v", err)
	}
	got, err = store.GetMeta(ctx, "schema_version")
	if err != nil {
		t.Fatalf("get meta after update: %v", err)
	}
	if got != "2" {
		t.Fatalf("expected updated value %q, got %q", "2", got)
	}
}

func TestGetMetaUnsetReturnsEmptyString(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.GetMeta(ctx, "never_set")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty string for unset key, got %q", got)
	}
}
