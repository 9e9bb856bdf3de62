package postgres

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/benpsk/itemboard/internal/item"
	"github.com/benpsk/itemboard/internal/user"
)

func insertTestUser(t *testing.T, ctx context.Context, users *UserStore, label string) user.User {
	t.Helper()
	suffix := strconv.FormatInt(time.Now().UnixNano(), 10)
	u, err := users.CreateUser(ctx, label+"+"+suffix+"@example.com", label, "not-a-real-hash")
	if err != nil {
		t.Fatalf("create user %q: %v", label, err)
	}
	return u
}

func TestItemStoreCreateReturnsRowWithOwner(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	users := NewUserStore(integrationPool)
	store := NewItemStore(integrationPool)
	owner := insertTestUser(t, ctx, users, "owner")

	created, err := store.Create(ctx, owner.ID, "water the plants", "the ficus looks sad")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected generated id")
	}
	if created.CreatedBy != owner.ID {
		t.Fatalf("created_by = %d, want %d", created.CreatedBy, owner.ID)
	}
	if created.UserName != owner.Name || created.UserEmail != owner.Email {
		t.Fatalf("unexpected embedded owner: %q %q", created.UserName, created.UserEmail)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set by the database")
	}
}

func TestItemStoreCreateRejectsUnknownOwner(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	store := NewItemStore(integrationPool)
	if _, err := store.Create(ctx, 999999999, "orphan", "no such owner"); err == nil {
		t.Fatalf("expected foreign key violation for unknown owner")
	}
}

func TestItemStoreListNewestFirstWithIDTieBreak(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	users := NewUserStore(integrationPool)
	store := NewItemStore(integrationPool)
	owner := insertTestUser(t, ctx, users, "lister")

	// Same created_at for every row forces the id tie-break.
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		var id int64
		err := DBFromContext(ctx, integrationPool).QueryRow(ctx, `
			insert into items (title, description, created_by, created_at)
			values ($1, $2, $3, $4)
			returning id
		`, title, "body", owner.ID, at).Scan(&id)
		if err != nil {
			t.Fatalf("insert %q: %v", title, err)
		}
		ids = append(ids, id)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(listed) != len(ids) {
		t.Fatalf("expected %d items, got %d", len(ids), len(listed))
	}
	for i := range listed {
		want := ids[len(ids)-1-i]
		if listed[i].ID != want {
			t.Fatalf("position %d id = %d, want %d", i, listed[i].ID, want)
		}
	}
}

func TestItemStoreListEmptyIsNotNil(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	store := NewItemStore(integrationPool)
	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if listed == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty board, got %d items", len(listed))
	}
}

func TestItemStoreDeleteOwned(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	users := NewUserStore(integrationPool)
	store := NewItemStore(integrationPool)
	owner := insertTestUser(t, ctx, users, "deleter")
	stranger := insertTestUser(t, ctx, users, "stranger")

	created, err := store.Create(ctx, owner.ID, "take out the bins", "thursday night")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	t.Run("missing id reports not found", func(t *testing.T) {
		if err := store.DeleteOwned(ctx, 999999999, owner.ID); !errors.Is(err, item.ErrNotFound) {
			t.Fatalf("err = %v, want %v", err, item.ErrNotFound)
		}
	})

	t.Run("non-owner is forbidden and row survives", func(t *testing.T) {
		if err := store.DeleteOwned(ctx, created.ID, stranger.ID); !errors.Is(err, item.ErrForbidden) {
			t.Fatalf("err = %v, want %v", err, item.ErrForbidden)
		}
		listed, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(listed) != 1 {
			t.Fatalf("expected row to survive forbidden delete, got %d rows", len(listed))
		}
	})

	t.Run("owner deletes the row", func(t *testing.T) {
		if err := store.DeleteOwned(ctx, created.ID, owner.ID); err != nil {
			t.Fatalf("delete own item: %v", err)
		}
		listed, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(listed) != 0 {
			t.Fatalf("expected empty board after delete, got %d rows", len(listed))
		}
	})

	t.Run("second delete reports not found", func(t *testing.T) {
		if err := store.DeleteOwned(ctx, created.ID, owner.ID); !errors.Is(err, item.ErrNotFound) {
			t.Fatalf("err = %v, want %v", err, item.ErrNotFound)
		}
	})
}
