package item

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	nextID int64
	items  []ItemWithUser
}

func (f *fakeStore) Create(ctx context.Context, createdBy int64, title, description string) (ItemWithUser, error) {
	f.nextID++
	created := ItemWithUser{
		Item: Item{
			ID:          f.nextID,
			Title:       title,
			Description: description,
			CreatedAt:   time.Now(),
			CreatedBy:   createdBy,
		},
		UserName:  "Tester",
		UserEmail: "tester@example.com",
	}
	f.items = append([]ItemWithUser{created}, f.items...)
	return created, nil
}

func (f *fakeStore) List(ctx context.Context) ([]ItemWithUser, error) {
	out := make([]ItemWithUser, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeStore) DeleteOwned(ctx context.Context, id, ownerID int64) error {
	for i, it := range f.items {
		if it.ID != id {
			continue
		}
		if it.CreatedBy != ownerID {
			return ErrForbidden
		}
		f.items = append(f.items[:i], f.items[i+1:]...)
		return nil
	}
	return ErrNotFound
}

func TestCreateRequiresAuthenticatedActor(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	service := NewService(store)

	if _, err := service.Create(ctx, 0, "Title", "Description"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(store.items) != 0 {
		t.Fatalf("expected no row inserted, got %d", len(store.items))
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	service := NewService(store)

	for _, tt := range []struct {
		name        string
		title       string
		description string
	}{
		{name: "empty title", title: "", description: "desc"},
		{name: "empty description", title: "title", description: ""},
		{name: "whitespace title", title: "   ", description: "desc"},
		{name: "whitespace description", title: "title", description: "\n\t "},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, 1, tt.title, tt.description)
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(store.items) != 0 {
		t.Fatalf("expected no rows inserted, got %d", len(store.items))
	}
}

func TestCreateRejectsOverlongTitle(t *testing.T) {
	service := NewService(&fakeStore{})

	_, err := service.Create(context.Background(), 1, strings.Repeat("x", 129), "desc")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := service.Create(context.Background(), 1, strings.Repeat("x", 128), "desc"); err != nil {
		t.Fatalf("128-char title should be accepted: %v", err)
	}
}

func TestCreateTrimsAndAssignsOwner(t *testing.T) {
	ctx := context.Background()
	service := NewService(&fakeStore{})

	created, err := service.Create(ctx, 7, "  First post  ", " Hello board ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "First post" || created.Description != "Hello board" {
		t.Fatalf("expected trimmed fields, got %q / %q", created.Title, created.Description)
	}
	if created.CreatedBy != 7 {
		t.Fatalf("expected createdBy=7, got %d", created.CreatedBy)
	}

	items, err := service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("expected created item first in list")
	}
}

func TestDeleteAuthorization(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	service := NewService(store)

	created, err := service.Create(ctx, 1, "T", "D")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := service.Delete(ctx, 0, created.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := service.Delete(ctx, 2, created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if items, _ := service.List(ctx); len(items) != 1 {
		t.Fatalf("row should still be present after forbidden delete")
	}

	// Nonexistent ids report not-found, even to callers who own nothing.
	if err := service.Delete(ctx, 2, created.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := service.Delete(ctx, 1, created.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	items, err := service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list after delete, got %d items", len(items))
	}
}

func TestListEmptyBoardReturnsEmptySlice(t *testing.T) {
	service := NewService(&fakeStore{})
	items, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}
