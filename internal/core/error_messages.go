package core

// # Error Codes Reference
//
// User-facing errors carry a code editors can quote when reporting a problem.
//
//	TBL001 - Table not found: a catalogue table file is missing
//	         Patterns: "table not found"
//	TBL002 - Unknown table: the table name is not part of the catalogue
//	         Patterns: "unknown table"
//
//	EDN001 - Edition not found: no manuscript or print item has this key
//	         Patterns: "edition not found"
//	EDN002 - Key exhausted: no free key could be generated
//	         Patterns: "key generation exhausted"
//
//	VAL001 - Malformed input: a submitted value could not be used
//	         Patterns: "malformed input"
//	VAL002 - Invalid request body: the JSON body could not be decoded
//	         Patterns: "invalid request body"
//
//	JRN001 - Journal failure: the write-ahead journal could not be written
//	         Patterns: "journal"
//	JRN002 - Commit incomplete: the change is journaled but some table
//	         files could not be written yet
//	         Patterns: "commit incomplete"
//
//	FILE001 - Image too large: upload exceeds the configured limit
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Missing upload field: key, type or file was not sent
//	          Patterns: "missing upload field"
//	FILE003 - Upload busy: every upload slot stayed occupied
//	          Patterns: "too many concurrent uploads"
//
//	AUTH001 - Missing credentials: no bearer token on the request
//	          Patterns: "missing authorization"
//	AUTH002 - Not allowed: the GitHub user is not on the editor allow-list
//	          Patterns: "not allowed"
//
//	RATE001 - Rate limited
//	          Patterns: "rate limit"
//
//	REQ001 - Request cancelled   Patterns: "context canceled"
//	REQ002 - Request timed out   Patterns: "context deadline exceeded"
//
//	ERR000 - Fallback when nothing matches. Check the server log for the
//	         technical error logged next to the request ID.
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Tables
	{"table not found", UserMessage{
		Message: "A catalogue table file is missing",
		Action:  "Check the data directory contains all nine table files",
		Code:    "TBL001",
	}},
	{"unknown table", UserMessage{
		Message: "Unknown table",
		Action:  "Use one of the tables listed by /api/tables",
		Code:    "TBL002",
	}},

	// Editions
	{"edition not found", UserMessage{
		Message: "No edition exists with this key",
		Action:  "Check the key or create the edition first",
		Code:    "EDN001",
	}},
	{"key generation exhausted", UserMessage{
		Message: "Could not allocate a new edition key",
		Action:  "Please try again, or supply a key explicitly",
		Code:    "EDN002",
	}},

	// Validation
	{"malformed input", UserMessage{
		Message: "Some submitted values could not be used",
		Action:  "Review the form and correct the highlighted fields",
		Code:    "VAL001",
	}},
	{"invalid request body", UserMessage{
		Message: "The request body could not be read",
		Action:  "Send a valid JSON body",
		Code:    "VAL002",
	}},

	// Storage
	{"commit incomplete", UserMessage{
		Message: "The change was recorded but not every table file could be written",
		Action:  "Check the data directory is writable. The change is applied before the next one",
		Code:    "JRN002",
	}},
	{"journal", UserMessage{
		Message: "The change could not be recorded safely",
		Action:  "Please try again. Nothing was written",
		Code:    "JRN001",
	}},

	// Image uploads
	{"file too large", UserMessage{
		Message: "Image exceeds the maximum upload size",
		Action:  "Reduce the image size and upload again",
		Code:    "FILE001",
	}},
	{"request body too large", UserMessage{
		Message: "Image exceeds the maximum upload size",
		Action:  "Reduce the image size and upload again",
		Code:    "FILE001",
	}},
	{"missing upload field", UserMessage{
		Message: "Key, type and file are all required",
		Action:  "Select an image and try again",
		Code:    "FILE002",
	}},
	{"too many concurrent uploads", UserMessage{
		Message: "The server is busy with other uploads",
		Action:  "Wait a few seconds and upload again",
		Code:    "FILE003",
	}},

	// Authentication
	{"missing authorization", UserMessage{
		Message: "You are not signed in",
		Action:  "Sign in with GitHub and try again",
		Code:    "AUTH001",
	}},
	{"not allowed", UserMessage{
		Message: "Your account may not edit the catalogue",
		Action:  "Ask a maintainer to add you to the editor list",
		Code:    "AUTH002",
	}},

	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},

	// Request lifecycle
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ002",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact a maintainer",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
//	msg := MapError(fmt.Errorf("load shelfmarks: %w", ErrTableNotFound))
//	// msg.Code == "TBL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
