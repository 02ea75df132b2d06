// Error code reference for the sonification service.
//
// User-facing failures carry a short code users can quote to support staff
// for faster diagnosis. Codes are grouped by category:
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Unknown data type: the requested format is not supported
//	IMP002 - Delimiter mismatch: no candidate separator produced two columns
//	IMP003 - I/O error: the data file could not be read
//	IMP004 - Open error: the file was read but is not a delimited table
//	IMP005 - Column error: the selected column is missing or not numeric
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - System busy: too many sonifications in progress
//	JOB002 - Job not found: the job expired or never existed
//	JOB003 - Cancelled: the job was cancelled
//	JOB004 - Timeout: the job exceeded its deadline
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE004 - No file provided
//
// # Media Errors (MED001-MED099)
//
//	MED001 - Media not found: the audio expired or was cleaned up
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default (ERR000)
//
// Fallback when nothing matches. Support staff should check the
// application logs for the original technical error when users report
// ERR000.
//
// Structured errors from the importer are matched by type first; the
// string patterns below only catch errors that cross a process or
// serialization boundary and arrive as text.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sonoweb/internal/media"
	"sonoweb/internal/table"
)

// ErrJobNotFound is returned when the requested job is not being tracked.
var ErrJobNotFound = errors.New("job not found")

// ErrNoFile is returned when a request carries no file data.
var ErrNoFile = errors.New("no file provided")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error strings (case-insensitive) to user
// messages. Patterns are matched with strings.Contains and the first match
// wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "column",
		msg: UserMessage{
			Message: "The selected column is missing or not numeric",
			Action:  "Pick a column that exists and holds numbers",
			Code:    "IMP005",
		},
	},
	{
		pattern: "too many concurrent sonifications",
		msg: UserMessage{
			Message: "System is busy processing other sonifications",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Sonification job not found",
			Action:  "The job may have expired. Please start a new one",
			Code:    "JOB002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The sonification was cancelled",
			Action:  "Start a new sonification when ready",
			Code:    "JOB003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The sonification timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "JOB004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Upload a smaller data file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a data file to sonify",
			Code:    "FILE004",
		},
	},
	{
		pattern: "media not found",
		msg: UserMessage{
			Message: "The audio file is no longer available",
			Action:  "Generated audio expires; run the sonification again",
			Code:    "MED001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Structured importer errors are matched by type, then known string
// patterns are tried (case-insensitive), then the ERR000 fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var delimErr *table.DelimiterError
	var readErr *table.ReadError
	var openErr *table.OpenError

	switch {
	case errors.Is(err, table.ErrUnknownKind):
		return UserMessage{
			Message: "The data format is not supported",
			Action:  "Upload a .txt (tab-separated) or .csv file",
			Code:    "IMP001",
		}
	case errors.As(err, &delimErr):
		return UserMessage{
			Message: "The column separator was not recognized",
			Action:  "Check the delimiter on the data file",
			Code:    "IMP002",
		}
	case errors.As(err, &readErr):
		return UserMessage{
			Message: "Cannot read the data file, this is an I/O error",
			Action:  "Check the error log for more information",
			Code:    "IMP003",
		}
	case errors.As(err, &openErr):
		return UserMessage{
			Message: "Cannot open the data file",
			Action:  "Check that the file is a delimited table with data rows",
			Code:    "IMP004",
		}
	case errors.Is(err, ErrTooManyJobs):
		return UserMessage{
			Message: "System is busy processing other sonifications",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		}
	case errors.Is(err, ErrJobNotFound):
		return UserMessage{
			Message: "Sonification job not found",
			Action:  "The job may have expired. Please start a new one",
			Code:    "JOB002",
		}
	case errors.Is(err, context.Canceled):
		return UserMessage{
			Message: "The sonification was cancelled",
			Action:  "Start a new sonification when ready",
			Code:    "JOB003",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "The sonification timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "JOB004",
		}
	case errors.Is(err, ErrNoFile):
		return UserMessage{
			Message: "No file was selected",
			Action:  "Please select a data file to sonify",
			Code:    "FILE004",
		}
	case errors.Is(err, media.ErrNotFound):
		return UserMessage{
			Message: "The audio file is no longer available",
			Action:  "Generated audio expires; run the sonification again",
			Code:    "MED001",
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

// IsUserFacing checks if an error maps to a specific code rather than the
// generic ERR000 fallback. Use this to decide whether to surface the
// mapped message or log the raw error.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
