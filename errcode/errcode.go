package errcode

// Code is a stable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK   Code = "ok"
	Busy Code = "busy"

	// Brightness API misuse
	InvalidChannel Code = "invalid_channel"
	InvalidLevel   Code = "invalid_level"

	// Manifest validation
	NotEnoughColors   Code = "not_enough_colors"
	TooManyColors     Code = "too_many_colors"
	NameCountMismatch Code = "name_count_mismatch"
	UnknownColorName  Code = "unknown_color_name"
	MissingLevels     Code = "missing_levels"

	// Resource acquisition
	UnknownPin  Code = "unknown_pin"
	PinInUse    Code = "pin_in_use"
	ClaimFailed Code = "claim_failed"

	// Runtime
	HWProgramFailed Code = "hw_program_failed"
	DeviceClosed    Code = "device_closed"

	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Is lets errors.Is match a wrapped E against its bare Code.
func (e *E) Is(target error) bool {
	if c, ok := target.(Code); ok {
		return e.C == c
	}
	return false
}
