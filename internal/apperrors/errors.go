// Package apperrors holds the closed set of error codes used by the auth core and the AuthError type
// that carries them.
//
// Codes are stable integers. The hundreds digit groups a code into a category; callers should branch on
// the code (or the category), never on the message text. Codes received from the server that are not in
// the table are preserved unchanged - only their default message falls back to the Unknown message.
package apperrors

import "fmt"

type Code int

const (
	// generic
	CodeUnknown         Code = 1000
	CodeInvalidResponse Code = 1001

	// network
	CodeNetworkError Code = 1100

	// auth
	CodeLoginFailed     Code = 1200
	CodeLogoutFailed    Code = 1201
	CodeSessionExpired  Code = 1202
	CodeUnauthorized    Code = 1203
	CodePermissionError Code = 1204

	// compatibility
	CodeVersionCheckFailed Code = 1300

	// data
	CodeNotFound     Code = 1400
	CodeInvalidData  Code = 1401
	CodeInvalidInput Code = 1402

	// sync
	CodeSyncFailed Code = 1500

	// control (domain configuration errors)
	CodeTypeControlError      Code = 1600
	CodeConfigControlError    Code = 1601
	CodePlanActionUnavailable Code = 1602
)

type Category string

const (
	CategoryGeneric       Category = "generic"
	CategoryNetwork       Category = "network"
	CategoryAuth          Category = "auth"
	CategoryCompatibility Category = "compatibility"
	CategoryData          Category = "data"
	CategorySync          Category = "sync"
	CategoryControl       Category = "control"
)

type codeInfo struct {
	name     string
	category Category
	message  string
}

var codes = map[Code]codeInfo{
	CodeUnknown:               {"unknown", CategoryGeneric, "An unknown error occurred"},
	CodeInvalidResponse:       {"invalid_response", CategoryGeneric, "The server returned an invalid response"},
	CodeNetworkError:          {"network_error", CategoryNetwork, "Unable to reach the server. Please check your connection and try again"},
	CodeLoginFailed:           {"login_failed", CategoryAuth, "Login failed. Please check your username and password"},
	CodeLogoutFailed:          {"logout_failed", CategoryAuth, "Logout could not be confirmed by the server"},
	CodeSessionExpired:        {"session_expired", CategoryAuth, "Your session has expired. Please log in again"},
	CodeUnauthorized:          {"unauthorized", CategoryAuth, "You are not authorized to perform this action"},
	CodePermissionError:       {"permission_error", CategoryAuth, "You don't have permission to access this resource"},
	CodeVersionCheckFailed:    {"version_check_failed", CategoryCompatibility, "This version of the application is no longer supported"},
	CodeNotFound:              {"not_found", CategoryData, "Resource not found"},
	CodeInvalidData:           {"invalid_data", CategoryData, "The data is invalid"},
	CodeInvalidInput:          {"invalid_input", CategoryData, "Invalid input. Please check your entries and try again"},
	CodeSyncFailed:            {"sync_failed", CategorySync, "Synchronization failed"},
	CodeTypeControlError:      {"type_control_error", CategoryControl, "The control type is not valid for this configuration"},
	CodeConfigControlError:    {"config_control_error", CategoryControl, "The control configuration is invalid"},
	CodePlanActionUnavailable: {"plan_action_unavailable", CategoryControl, "The plan action is not available"},
}

// MessageFor returns the default user facing message for code.
// Codes outside the table get the Unknown message.
func MessageFor(code Code) string {
	if info, ok := codes[code]; ok {
		return info.message
	}
	return codes[CodeUnknown].message
}

// Known reports whether code is part of the table.
func (c Code) Known() bool {
	_, ok := codes[c]
	return ok
}

// Category returns the category of the code, or CategoryGeneric for unknown codes.
func (c Code) Category() Category {
	if info, ok := codes[c]; ok {
		return info.category
	}
	return CategoryGeneric
}

func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return fmt.Sprintf("code(%d)", int(c))
}
