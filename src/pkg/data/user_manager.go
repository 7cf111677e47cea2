// Package data provides data management functionality for the Portfolio Tree application.
// This file contains operations related to user management.
package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"portfoliotree/app/src/pkg/event"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
)

// UserOperations defines the interface for user-related operations
type UserOperations interface {
	UserAdd(ctx context.Context, newUserInfo model.UserInfo) (int, error)
	UserAuthenticate(ctx context.Context, userInfo model.UserInfo) (*model.User, error)
	UserGet(ctx context.Context, userInfo model.UserInfo, userFilter model.UserFilter) ([]*model.User, error)
	UserUpdate(ctx context.Context, user *model.User, userUpdateInfo model.UserInfo, userFilter model.UserFilter) error
	UserDelete(ctx context.Context, user *model.User) error
}

const maxUsernameLength = 64

// UserManager handles all user-related operations.
type UserManager struct {
	userStore    storage.UserStore
	eventManager *event.EventManager
	logger       *log.Logger
}

// NewUserManager creates a new UserManager instance.
func NewUserManager(userStore storage.UserStore, eventManager *event.EventManager, logger *log.Logger) (*UserManager, error) {
	ctx := context.Background()
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	if userStore == nil {
		logger.Error(ctx, "UserStore not initialized", nil)
		return nil, fmt.Errorf("userStore not initialized")
	}
	if eventManager == nil {
		logger.Error(ctx, "EventManager not initialized", nil)
		return nil, fmt.Errorf("eventManager not initialized")
	}

	return &UserManager{
		userStore:    userStore,
		eventManager: eventManager,
		logger:       logger,
	}, nil
}

func validateUsername(name string) error {
	if name == "" || len(name) > maxUsernameLength {
		return fmt.Errorf("%w: username must be 1 to %d characters", model.ErrInvalidInput, maxUsernameLength)
	}
	if strings.ContainsAny(name, " \t\r\n/\\") {
		return fmt.Errorf("%w: username must not contain whitespace or slashes", model.ErrInvalidInput)
	}
	return nil
}

// UserAdd creates a new user. The plain text password in newUserInfo is hashed with bcrypt.
func (um *UserManager) UserAdd(ctx context.Context, newUserInfo model.UserInfo) (int, error) {
	um.logger.Info(ctx, "Adding new user", log.Fields{"username": newUserInfo.Username})

	if err := validateUsername(newUserInfo.Username); err != nil {
		return 0, err
	}
	if newUserInfo.Password == "" {
		return 0, fmt.Errorf("%w: password must not be empty", model.ErrInvalidInput)
	}

	// Check if the user already exists
	existingUsers, err := um.UserGet(ctx, model.UserInfo{Username: newUserInfo.Username}, model.UserFilter{Username: true})
	if err != nil {
		um.logger.Error(ctx, "Error checking user existence", log.Fields{"error": err, "username": newUserInfo.Username})
		return 0, fmt.Errorf("error checking user existence: %w", err)
	}
	if len(existingUsers) > 0 {
		um.logger.Warn(ctx, "User already exists", log.Fields{"username": newUserInfo.Username})
		return 0, fmt.Errorf("user '%s': %w", newUserInfo.Username, model.ErrExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newUserInfo.Password), bcrypt.DefaultCost)
	if err != nil {
		um.logger.Error(ctx, "Failed to hash password", log.Fields{"error": err})
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}
	newUserInfo.PasswordHash = hash
	newUserInfo.Password = ""

	userID, err := um.userStore.UserAdd(ctx, newUserInfo)
	if err != nil {
		um.logger.Error(ctx, "Failed to create user", log.Fields{"error": err, "username": newUserInfo.Username})
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	um.logger.Info(ctx, "User added successfully", log.Fields{"userID": userID, "username": newUserInfo.Username})
	return userID, nil
}

// UserAuthenticate verifies a user's credentials and returns the user on success.
// Unknown users, inactive users and wrong passwords all yield ErrUnauthenticated.
func (um *UserManager) UserAuthenticate(ctx context.Context, userInfo model.UserInfo) (*model.User, error) {
	um.logger.Info(ctx, "Authenticating user", log.Fields{"username": userInfo.Username})

	users, err := um.UserGet(ctx, model.UserInfo{Username: userInfo.Username}, model.UserFilter{Username: true})
	if err != nil {
		um.logger.Error(ctx, "Error retrieving user", log.Fields{"error": err, "username": userInfo.Username})
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	if len(users) == 0 {
		um.logger.Warn(ctx, "User doesn't exist", log.Fields{"username": userInfo.Username})
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthenticated)
	}

	storedUser := users[0]
	if !storedUser.Active {
		um.logger.Warn(ctx, "Inactive user tried to log in", log.Fields{"username": userInfo.Username})
		return nil, fmt.Errorf("user is inactive: %w", model.ErrUnauthenticated)
	}
	err = bcrypt.CompareHashAndPassword(storedUser.PasswordHash, []byte(userInfo.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		um.logger.Warn(ctx, "Authentication failed", log.Fields{"username": userInfo.Username})
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthenticated)
	}
	if err != nil {
		um.logger.Error(ctx, "Failed to compare password hash", log.Fields{"error": err, "username": userInfo.Username})
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	um.logger.Info(ctx, "User authenticated successfully", log.Fields{"username": userInfo.Username})
	return storedUser, nil
}

// UserGet retrieves users based on the provided info and filter.
func (um *UserManager) UserGet(ctx context.Context, userInfo model.UserInfo, userFilter model.UserFilter) ([]*model.User, error) {
	um.logger.Debug(ctx, "Retrieving users", log.Fields{"filter": userFilter})

	users, err := um.userStore.UserGet(ctx, userInfo, userFilter)
	if err != nil {
		um.logger.Error(ctx, "Failed to get users", log.Fields{"error": err})
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// UserUpdate updates an existing user's information.
// With userFilter.PasswordHash set, userUpdateInfo.Password is hashed and stored.
func (um *UserManager) UserUpdate(ctx context.Context, user *model.User, userUpdateInfo model.UserInfo, userFilter model.UserFilter) error {
	um.logger.Info(ctx, "Updating user", log.Fields{"userID": user.ID, "username": user.Username})

	if userFilter.Username && userUpdateInfo.Username != user.Username {
		if err := validateUsername(userUpdateInfo.Username); err != nil {
			return err
		}
		existing, err := um.UserGet(ctx, model.UserInfo{Username: userUpdateInfo.Username}, model.UserFilter{Username: true})
		if err != nil {
			return fmt.Errorf("error checking user existence: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("user '%s': %w", userUpdateInfo.Username, model.ErrExists)
		}
	}
	if userFilter.PasswordHash {
		if userUpdateInfo.Password == "" {
			return fmt.Errorf("%w: password must not be empty", model.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(userUpdateInfo.Password), bcrypt.DefaultCost)
		if err != nil {
			um.logger.Error(ctx, "Failed to hash password", log.Fields{"error": err})
			return fmt.Errorf("failed to hash password: %w", err)
		}
		userUpdateInfo.PasswordHash = hash
		userUpdateInfo.Password = ""
	}

	err := um.userStore.UserUpdate(ctx, user, userUpdateInfo, userFilter)
	if err != nil {
		um.logger.Error(ctx, "Failed to update user", log.Fields{"error": err, "userID": user.ID})
		return fmt.Errorf("failed to update user: %w", err)
	}

	if userFilter.Username {
		user.Username = userUpdateInfo.Username
	}
	if userFilter.Active {
		user.Active = userUpdateInfo.Active
	}
	if userFilter.PasswordHash {
		user.PasswordHash = userUpdateInfo.PasswordHash
	}

	um.logger.Info(ctx, "User updated successfully", log.Fields{"userID": user.ID, "username": user.Username})
	return nil
}

// UserDelete removes the user row. Owned portfolios must already be gone, see DataManager.UserDelete.
func (um *UserManager) UserDelete(ctx context.Context, user *model.User) error {
	um.logger.Info(ctx, "Deleting user", log.Fields{"userID": user.ID, "username": user.Username})

	err := um.userStore.UserDelete(ctx, user)
	if err != nil {
		um.logger.Error(ctx, "Failed to delete user", log.Fields{"error": err, "userID": user.ID})
		return fmt.Errorf("failed to delete user: %w", err)
	}

	// Publish UserDeleted event
	um.eventManager.Publish(ctx, event.Event{
		Type: event.UserDeleted,
		Data: user,
	})

	um.logger.Info(ctx, "User deleted successfully", log.Fields{"userID": user.ID, "username": user.Username})
	return nil
}
