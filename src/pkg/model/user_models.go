// Package model defines the data structures used throughout the Portfolio Tree application.
package model

import "time"

// User represents a user account.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	Active       bool      `json:"active"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// UserInfo contains basic information about a user.
// Password is plain text and only travels from adapters to the UserManager, which hashes it.
type UserInfo struct {
	ID           int
	Username     string
	Password     string
	PasswordHash []byte
	Active       bool
}

// UserFilter defines the options for filtering users.
type UserFilter struct {
	ID           bool
	Username     bool
	PasswordHash bool
	Active       bool
}
