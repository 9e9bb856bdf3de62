package item

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 128

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotFound        = errors.New("item not found")
	ErrForbidden       = errors.New("you can only delete your own items")
)

// ValidationError reports a rejected create input. The message is safe to
// return to the caller.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Item struct {
	ID          int64
	Title       string
	Description string
	CreatedAt   time.Time
	CreatedBy   int64
}

// ItemWithUser is an item joined with its creator, the shape every read
// path returns.
type ItemWithUser struct {
	Item
	UserName  string
	UserEmail string
}

type Store interface {
	Create(ctx context.Context, createdBy int64, title, description string) (ItemWithUser, error)
	List(ctx context.Context) ([]ItemWithUser, error)
	// DeleteOwned removes the item only when it exists and belongs to
	// ownerID, reporting ErrNotFound or ErrForbidden otherwise. The
	// existence check and the delete must not race with a concurrent
	// delete of the same row.
	DeleteOwned(ctx context.Context, id, ownerID int64) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create inserts a new item owned by actorID. actorID <= 0 means the
// request carried no authenticated identity.
func (s *Service) Create(ctx context.Context, actorID int64, title, description string) (ItemWithUser, error) {
	if actorID <= 0 {
		return ItemWithUser{}, ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return ItemWithUser{}, ValidationError{Message: "Title and description are required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ItemWithUser{}, ValidationError{Message: "Title must be 128 characters or fewer"}
	}
	return s.store.Create(ctx, actorID, title, description)
}

// List is public; no identity is required. An empty board yields an empty
// slice, never an error.
func (s *Service) List(ctx context.Context) ([]ItemWithUser, error) {
	return s.store.List(ctx)
}

// Delete removes the item with the given id when actorID owns it.
// Existence is checked before ownership, so deleting a nonexistent id
// reports ErrNotFound even to non-owners.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID <= 0 {
		return ErrUnauthenticated
	}
	return s.store.DeleteOwned(ctx, id, actorID)
}
