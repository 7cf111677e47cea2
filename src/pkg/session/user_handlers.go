package session

import (
	"context"
	"fmt"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// handleUserAdd handles the user add command
func handleUserAdd(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling user add command", log.Fields{"username": cmd.Args[0]})

	userID, err := s.DataManager.UserManager.UserAdd(ctx, model.UserInfo{
		Username: cmd.Args[0],
		Password: cmd.Args[1],
		Active:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add user: %w", err)
	}
	return fmt.Sprintf("User '%s' added with id %d", cmd.Args[0], userID), nil
}

// handleUserLogin authenticates and attaches the user to the session
func handleUserLogin(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling user login command", log.Fields{"username": cmd.Args[0]})

	user, err := s.DataManager.UserManager.UserAuthenticate(ctx, model.UserInfo{Username: cmd.Args[0], Password: cmd.Args[1]})
	if err != nil {
		return nil, err
	}
	s.UserSet(user)
	return fmt.Sprintf("Logged in as '%s'", user.Username), nil
}

// handleUserLogout detaches the user from the session
func handleUserLogout(ctx context.Context, s *Session, _ model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling user logout command", log.Fields{"sessionID": s.ID})
	s.UserSet(nil)
	return "Logged out", nil
}

// handleUserUpdate handles the user update command
func handleUserUpdate(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling user update command", log.Fields{"username": cmd.Args[0]})

	currentUser, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	if cmd.Args[0] != currentUser.Username {
		s.logger.Warn(ctx, "Can only update the current user", log.Fields{"requestedUser": cmd.Args[0], "currentUser": currentUser.Username})
		return nil, fmt.Errorf("can only update the current user: %w", model.ErrPermission)
	}

	updateInfo := model.UserInfo{}
	updateFilter := model.UserFilter{}
	if len(cmd.Args) > 1 && cmd.Args[1] != "-" {
		updateInfo.Username = cmd.Args[1]
		updateFilter.Username = true
	}
	if len(cmd.Args) > 2 {
		updateInfo.Password = cmd.Args[2]
		updateFilter.PasswordHash = true
	}
	if !updateFilter.Username && !updateFilter.PasswordHash {
		return nil, fmt.Errorf("%w: nothing to update", model.ErrInvalidInput)
	}

	if err := s.DataManager.UserManager.UserUpdate(ctx, currentUser, updateInfo, updateFilter); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return "User updated", nil
}

// handleUserDelete deletes the current user and everything the user owns
func handleUserDelete(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling user delete command", log.Fields{"username": cmd.Args[0]})

	currentUser, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	if cmd.Args[0] != currentUser.Username {
		s.logger.Warn(ctx, "Can only delete the current user", log.Fields{"requestedUser": cmd.Args[0], "currentUser": currentUser.Username})
		return nil, fmt.Errorf("can only delete the current user: %w", model.ErrPermission)
	}

	if err := s.DataManager.UserDelete(ctx, currentUser); err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	s.UserSet(nil)
	return fmt.Sprintf("User '%s' deleted", currentUser.Username), nil
}
