// Package common: errors.go defines the sentinel errors shared by all modules.
// Handlers use them to tell a user-facing problem from an infrastructure failure.
package common

import "errors"

// Storage errors
var (
	// ErrNotFound: the requested row does not exist
	ErrNotFound = errors.New("not found")
)

// Scraping errors
var (
	// ErrPageNotReady: the ready selector did not appear in time
	ErrPageNotReady = errors.New("page did not become ready")
)

// Delivery errors
var (
	// ErrChatGone: the chat blocked the bot or no longer exists
	ErrChatGone = errors.New("chat is gone")
	// ErrSendTimeout: the chat platform timed out after all retries
	ErrSendTimeout = errors.New("send timed out")
	// ErrPollerConflict: another bot instance is polling with the same token
	ErrPollerConflict = errors.New("another bot instance is running")
)

// Command errors
var (
	// ErrNotAdmin: the command is reserved for the configured admin
	ErrNotAdmin = errors.New("admin only command")
	// ErrInvalidArguments: the command arguments could not be parsed
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrNotRegistered: the chat has not sent /start yet
	ErrNotRegistered = errors.New("chat is not registered")
)
