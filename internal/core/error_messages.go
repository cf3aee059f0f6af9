package core

// error_messages.go maps technical errors to user-facing messages with
// codes for support reference.
//
// # Error Codes Reference
//
//	DB001   Duplicate key           "duplicate key"
//	DB003   Foreign key             "violates foreign key"
//	DB004   Connection refused      "connection refused"
//	DB005   Connection reset        "connection reset"
//	DB006   Statement timeout       "statement timeout", "timeout"
//	DB007   Deadlock                "deadlock"
//	IMP001  No valid items          ErrNoValidItems
//	IMP002  Missing column          ErrMissingColumns
//	IMP003  Unknown domain          ErrUnknownDomain
//	IMP004  Batch failed            "failed after"
//	IMP005  Missing merchant        ErrMissingScope
//	FILE001 File too large          "request body too large", "file too large"
//	FILE002 Invalid CSV             "invalid csv", "parse error"
//	FILE004 No file                 "no file provided"
//	FILE005 Empty file              ErrEmptyFile
//	JOB001  Job cancelled           ErrJobCancelled
//	JOB002  System busy             ErrTooManyJobs
//	JOB003  Job not found           ErrJobNotFound
//	JOB004  Request cancelled       "context canceled"
//	JOB005  Request timeout         "context deadline exceeded"
//	JOB006  Duplicate upload ID     ErrJobActive
//	ERR000  Unknown error           fallback
//
// Sentinel errors are matched with errors.Is before any text pattern.
// Text patterns are matched case-insensitively in order, so more
// specific patterns come first.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrNoValidItems, UserMessage{
		Message: "No rows in the file passed validation",
		Action:  "Fix the listed row errors and upload again",
		Code:    "IMP001",
	}},
	{ErrMissingColumns, UserMessage{
		Message: "Required column is missing from CSV",
		Action:  "Check the accepted column names for this import",
		Code:    "IMP002",
	}},
	{ErrUnknownDomain, UserMessage{
		Message: "Unknown import type",
		Action:  "Use one of: inventory, orders, invoices",
		Code:    "IMP003",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with a header and data rows",
		Code:    "FILE005",
	}},
	{ErrJobCancelled, UserMessage{
		Message: "Import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "JOB001",
	}},
	{ErrTooManyJobs, UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "JOB002",
	}},
	{ErrJobNotFound, UserMessage{
		Message: "Import not found",
		Action:  "The import may have expired. Check the import history",
		Code:    "JOB003",
	}},
	{ErrMissingScope, UserMessage{
		Message: "No merchant was specified for this import",
		Action:  "Send the X-Merchant-ID header with the request",
		Code:    "IMP005",
	}},
	{ErrJobActive, UserMessage{
		Message: "An import with this ID is already running",
		Action:  "Wait for it to finish or use a new upload ID",
		Code:    "JOB006",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Check for duplicate entries in your CSV",
		Code:    "DB001",
	}},
	{"violates foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Import the referenced records first",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"statement timeout", UserMessage{
		Message: "A database statement took too long",
		Action:  "Try a smaller batch size",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},

	// Import
	{"failed after", UserMessage{
		Message: "A batch could not be saved after several attempts",
		Action:  "Re-upload the rows from the failed batch",
		Code:    "IMP004",
	}},

	// File
	{"request body too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"parse error", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with a header row",
		Code:    "FILE002",
	}},
	{"invalid csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with a header row",
		Code:    "FILE002",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE004",
	}},

	// Request
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "JOB004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "JOB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB006",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
// Support staff should check application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
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

// IsUserFacing reports whether an error matches a known pattern rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
