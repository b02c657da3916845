// Package liberrors defines the typed error taxonomy shared by all library
// components.
//
// Every failure surfaced to a caller carries a stable machine-readable Kind
// plus a human-readable message; no operation returns an untyped failure.
// Errors wrap their underlying cause where one exists, so errors.Is and
// errors.As keep working across component boundaries.
package liberrors
