// Package core provides the business logic for title reconciliation runs.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Error patterns are matched case-insensitively using
// strings.Contains; the first matching pattern wins, so more specific
// patterns are listed before general ones.
//
// File errors (FILE001-FILE099): decoding and upload problems.
// Schema errors (SCH001-SCH099): missing or mismatched columns.
// Match errors (MATCH001-MATCH099): threshold and resolution problems.
// Run errors (RUN001-RUN099): session lifecycle problems.
// Database errors (DB001-DB099): run-history store problems.
// ERR000 is the fallback when nothing matches.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable
// guidance.
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
	// File and decoding errors
	{
		pattern: "could not decode",
		msg: UserMessage{
			Message: "A file could not be read under any supported text encoding",
			Action:  "Re-export the file as UTF-8 CSV and upload again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "An uploaded file contains no data",
			Action:  "Upload a CSV with a header row and at least one data row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "table provided",
		msg: UserMessage{
			Message: "A required file is missing from the upload",
			Action:  "Provide product, inventory and selected-products files",
			Code:    "FILE003",
		},
	},
	{
		pattern: "http: request body too large",
		msg: UserMessage{
			Message: "The upload exceeds the file size limit",
			Action:  "Split the export into smaller files",
			Code:    "FILE004",
		},
	},

	// Schema errors
	{
		pattern: "column schema mismatch",
		msg: UserMessage{
			Message: "Files for the same role have different columns",
			Action:  "Upload files exported from the same report so columns agree",
			Code:    "SCH001",
		},
	},
	{
		pattern: `no "title" column`,
		msg: UserMessage{
			Message: "A table is missing the Title column required for matching",
			Action:  "Check that the export includes a Title column",
			Code:    "SCH002",
		},
	},
	{
		pattern: `no "handle" column`,
		msg: UserMessage{
			Message: "Product filtering was skipped because the Handle column is missing",
			Action:  "Include the Handle column to produce a filtered product file",
			Code:    "SCH003",
		},
	},

	// Matching and resolution errors
	{
		pattern: "threshold",
		msg: UserMessage{
			Message: "The similarity threshold must be between 0 and 100",
			Action:  "Correct the threshold value and retry",
			Code:    "MATCH001",
		},
	},
	{
		pattern: "not one of the offered candidates",
		msg: UserMessage{
			Message: "A conflict decision named a title that was not offered",
			Action:  "Choose one of the listed candidates or skip the conflict",
			Code:    "MATCH002",
		},
	},

	// Run lifecycle errors
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "The run does not exist or has expired",
			Action:  "Start a new run; sessions expire after a while",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run not complete",
		msg: UserMessage{
			Message: "The run is still waiting for conflict resolutions",
			Action:  "Submit resolutions before downloading outputs",
			Code:    "RUN002",
		},
	},
	{
		pattern: "already resolved",
		msg: UserMessage{
			Message: "This run's conflicts were already resolved",
			Action:  "Start a new run to make different choices",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Try smaller files or check your connection",
			Code:    "RUN005",
		},
	},

	// Run-history store errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the run-history database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "history is not configured",
		msg: UserMessage{
			Message: "Run history is not enabled on this server",
			Action:  "Set DATABASE_URL to enable history recording",
			Code:    "DB002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// MapError converts a technical error into a user-friendly message.
// Unrecognized errors get the generic ERR000 message; the technical
// detail still goes to the server log.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{Message: "Success", Code: ""}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, strings.ToLower(ep.pattern)) {
			return ep.msg
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
}

// FormatUserError renders a UserMessage for CLI output.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Action != "" {
		return fmt.Sprintf("%s (%s). %s.", msg.Message, msg.Code, msg.Action)
	}
	return fmt.Sprintf("%s (%s)", msg.Message, msg.Code)
}
