package services

import (
	"context"
	"errors"
	"testing"

	"chatserver/internal/utils"
)

func TestUserService_Create(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("Create() did not assign an id")
	}
	if user.Password == "password123" {
		t.Error("password stored in plain text")
	}
	if !utils.CheckPassword("password123", user.Password) {
		t.Error("stored hash does not match the password")
	}
	if !user.IsActive {
		t.Error("new users should be active")
	}
}

func TestUserService_CreateDuplicate(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	createTestUser(t, db, "alice", "alice@example.com")

	_, err := users.Create(ctx, "someone", "alice@example.com", "password123")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email error = %v, expected ErrEmailTaken", err)
	}

	_, err = users.Create(ctx, "alice", "other@example.com", "password123")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username error = %v, expected ErrUsernameTaken", err)
	}
}

func TestUserService_SoftDelete(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	user := createTestUser(t, db, "alice", "alice@example.com")
	admin := createTestUser(t, db, "admin", "admin@example.com")

	if err := users.SoftDelete(ctx, user.ID, admin.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	// Default lookups treat the user as gone.
	if _, err := users.FindByID(ctx, user.ID, false); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("FindByID() error = %v, expected ErrUserNotFound", err)
	}

	// An explicit includeDeleted lookup still reaches the row.
	deleted, err := users.FindByID(ctx, user.ID, true)
	if err != nil {
		t.Fatalf("FindByID(includeDeleted) error = %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Error("DeletedAt should be set")
	}
	if deleted.DeletedBy == nil || *deleted.DeletedBy != admin.ID {
		t.Error("DeletedBy should record who deleted the user")
	}
}

func TestUserService_ListExcludesCaller(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", "alice@example.com")
	createTestUser(t, db, "bob", "bob@example.com")
	createTestUser(t, db, "carol", "carol@example.com")

	list, total, err := users.List(ctx, alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, expected 2", total)
	}
	for _, u := range list {
		if u.ID == alice.ID {
			t.Error("List() should exclude the caller")
		}
	}
}

func TestUserService_ListPagination(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	createTestUser(t, db, "alice", "alice@example.com")
	createTestUser(t, db, "bob", "bob@example.com")
	createTestUser(t, db, "carol", "carol@example.com")

	page, total, err := users.List(ctx, 0, 2, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, expected 3", total)
	}
	if len(page) != 1 {
		t.Errorf("page size = %d, expected 1", len(page))
	}
}

func TestUserService_AllExistAndActive(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")

	ok, err := users.AllExistAndActive(ctx, []uint{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("AllExistAndActive() error = %v", err)
	}
	if !ok {
		t.Error("both users exist and are active")
	}

	ok, _ = users.AllExistAndActive(ctx, []uint{alice.ID, 999})
	if ok {
		t.Error("unknown id should fail the check")
	}

	users.SoftDelete(ctx, bob.ID, alice.ID)
	ok, _ = users.AllExistAndActive(ctx, []uint{alice.ID, bob.ID})
	if ok {
		t.Error("soft-deleted user should fail the check")
	}
}

func TestUserService_Update(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	user := createTestUser(t, db, "alice", "alice@example.com")

	newName := "alice2"
	newPassword := "newpassword1"
	updated, err := users.Update(ctx, user.ID, UserUpdate{Username: &newName, Password: &newPassword})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Username != "alice2" {
		t.Errorf("Username = %q, expected %q", updated.Username, "alice2")
	}
	if !utils.CheckPassword("newpassword1", updated.Password) {
		t.Error("password change should rehash")
	}
	if updated.Email != "alice@example.com" {
		t.Error("untouched fields should keep their values")
	}
}

func TestUserService_UpdateTakenUsername(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")

	taken := "alice"
	_, err := users.Update(ctx, bob.ID, UserUpdate{Username: &taken})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("Update() error = %v, expected ErrUsernameTaken", err)
	}
}
