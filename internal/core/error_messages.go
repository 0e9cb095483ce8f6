// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. The CLI prints them and the HTTP API returns them in
// error responses.
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - Sync in progress: another run holds the store
//	          Patterns: "sync already in progress"
//	SYNC002 - No input: nothing was read from the source files
//	          Patterns: "no input sheets"
//	SYNC003 - No key: no identity column shared with the stored table
//	          Patterns: "no usable key columns"
//	SYNC004 - No common columns between stored and new data
//	          Patterns: "no common columns"
//	SYNC005 - Two sheets map to the same table name
//	          Patterns: "already used by sheet"
//
// # Store Errors (STORE001-STORE099)
//
//	STORE001 - Table not found                 Patterns: "table not found"
//	STORE002 - Store locked by another process Patterns: "database is locked", "sqlite_busy"
//	STORE003 - Connection refused              Patterns: "connection refused"
//	STORE004 - Connection reset                Patterns: "connection reset"
//	STORE005 - Deadlock                        Patterns: "deadlock"
//	STORE006 - Timeout                         Patterns: "timeout"
//
// # Backup Errors (BACKUP001-BACKUP099)
//
//	BACKUP001 - Backup failed, table untouched  Patterns: "backup failed"
//	BACKUP002 - Store cannot snapshot itself    Patterns: "snapshot not supported"
//	BACKUP003 - Disk full                       Patterns: "no space left"
//	BACKUP004 - Mirror not configured           Patterns: "mirror not configured"
//
// # Read Errors (READ001-READ099)
//
//	READ001 - Unsupported source file  Patterns: "unsupported source file"
//	READ002 - Source file missing      Patterns: "no such file or directory"
//	READ003 - No header row            Patterns: "no header row"
//	READ004 - Encoding error           Patterns: "encoding error"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled  Patterns: "context canceled"
//	REQ002 - Request timed out  Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the logs for the
// technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgSyncBusy = UserMessage{
		Message: "A sync is already running",
		Action:  "Wait for it to finish and try again",
		Code:    "SYNC001",
	}
	msgStoreLocked = UserMessage{
		Message: "The store is locked by another process",
		Action:  "Close other programs using the database file and try again",
		Code:    "STORE002",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Sync (SYNC001-SYNC005)
	// =========================================================================
	{pattern: "sync already in progress", msg: msgSyncBusy},
	{
		pattern: "no input sheets",
		msg: UserMessage{
			Message: "No sheets were read from the source files",
			Action:  "Check SOURCE_FILES and that the workbooks contain data",
			Code:    "SYNC002",
		},
	},
	{
		pattern: "no usable key columns",
		msg: UserMessage{
			Message: "Sheet shares no identity columns with the stored table",
			Action:  "Keep the date, description and amount headers or adjust SYNC_KEY_COLUMNS",
			Code:    "SYNC003",
		},
	},
	{
		pattern: "no common columns",
		msg: UserMessage{
			Message: "Sheet has no columns in common with the stored table",
			Action:  "Check that the sheet headers were not renamed",
			Code:    "SYNC004",
		},
	},
	{
		pattern: "already used by sheet",
		msg: UserMessage{
			Message: "Two sheets map to the same table name",
			Action:  "Rename one of the sheets",
			Code:    "SYNC005",
		},
	},

	// =========================================================================
	// Backup (BACKUP001-BACKUP004)
	// Checked before store patterns: backup errors often wrap store errors.
	// =========================================================================
	{
		pattern: "backup failed",
		msg: UserMessage{
			Message: "Table backup failed, the table was not modified",
			Action:  "Check that BACKUP_PATH exists and is writable",
			Code:    "BACKUP001",
		},
	},
	{
		pattern: "snapshot not supported",
		msg: UserMessage{
			Message: "This store cannot take whole-store snapshots",
			Action:  "Table backups are still taken; disable BACKUP_STORE_SNAPSHOT to silence this",
			Code:    "BACKUP002",
		},
	},
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "The disk is full",
			Action:  "Free disk space or lower BACKUP_RETENTION",
			Code:    "BACKUP003",
		},
	},
	{
		pattern: "mirror not configured",
		msg: UserMessage{
			Message: "The off-site backup mirror is not configured",
			Action:  "Set BACKUP_S3_ENDPOINT and BACKUP_S3_BUCKET",
			Code:    "BACKUP004",
		},
	},

	// =========================================================================
	// Store (STORE001-STORE006)
	// =========================================================================
	{
		pattern: "table not found",
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Verify the table name is correct",
			Code:    "STORE001",
		},
	},
	{pattern: "database is locked", msg: msgStoreLocked},
	{pattern: "sqlite_busy", msg: msgStoreLocked},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "STORE003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "STORE004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "STORE005",
		},
	},

	// =========================================================================
	// Read (READ001-READ004)
	// =========================================================================
	{
		pattern: "unsupported source file",
		msg: UserMessage{
			Message: "Source file type is not supported",
			Action:  "Use .xlsx or .csv workbooks",
			Code:    "READ001",
		},
	},
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "Source file not found",
			Action:  "Check the paths in SOURCE_FILES",
			Code:    "READ002",
		},
	},
	{
		pattern: "no header row",
		msg: UserMessage{
			Message: "No header row was found in the sheet",
			Action:  "Make sure the header has at least three filled cells",
			Code:    "READ003",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "READ004",
		},
	},

	// =========================================================================
	// Request (REQ001-REQ002), then the generic timeout
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Raise SYNC_TIMEOUT or sync fewer sheets at once",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "STORE006",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when none match.
//
// Example:
//
//	msg := MapError(ErrSyncInProgress)
//	// msg.Code == "SYNC001"
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

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
