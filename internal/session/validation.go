package session

import (
	"net"
	"strings"

	"golang.org/x/text/secure/precis"
)

type FieldValidation interface {
	State
	AcceptField(FieldVisitor)
}

type FieldVisitor interface {
	VisitValid(Valid)
	VisitInvalid(Invalid)
}

type Valid struct{}

type Invalid struct {
	Message string
}

func (Valid) sealed()   {}
func (Invalid) sealed() {}

func (s Valid) AcceptField(v FieldVisitor)   { v.VisitValid(s) }
func (s Invalid) AcceptField(v FieldVisitor) { v.VisitInvalid(s) }

func (Valid) String() string     { return "valid" }
func (s Invalid) String() string { return "invalid: " + s.Message }

type validity bool

func (b *validity) VisitValid(Valid)     { *b = true }
func (b *validity) VisitInvalid(Invalid) { *b = false }

// IsValid reports whether f is Valid.
func IsValid(f FieldValidation) bool {
	var b validity
	f.AcceptField(&b)
	return bool(b)
}

// ValidateUsername accepts any non-blank username permitted by the PRECIS UsernameCasePreserved profile.
func ValidateUsername(username string) FieldValidation {
	if strings.TrimSpace(username) == "" {
		return Invalid{Message: "Username is required"}
	}
	if _, err := precis.UsernameCasePreserved.String(username); err != nil {
		return Invalid{Message: "Username contains characters that are not allowed"}
	}
	return Valid{}
}

// ValidatePassword accepts any non-empty password permitted by the PRECIS OpaqueString profile.
func ValidatePassword(password string) FieldValidation {
	if password == "" {
		return Invalid{Message: "Password is required"}
	}
	if _, err := precis.OpaqueString.String(password); err != nil {
		return Invalid{Message: "Password contains characters that are not allowed"}
	}
	return Valid{}
}

// ValidateDeviceAddress accepts an empty address or a MAC-48 address.
func ValidateDeviceAddress(addr string) FieldValidation {
	if addr == "" {
		return Valid{}
	}
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return Invalid{Message: "Device address must be a MAC-48 address"}
	}
	return Valid{}
}
