package isa

import "fmt"

// ProgramError is the build-time error class (spec §7): recoverable,
// accumulated into a Program's error list rather than returned directly.
type ProgramError struct {
	Code    string
	Context string
}

func (e *ProgramError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("isa: %s", e.Code)
	}
	return fmt.Sprintf("isa: %s: %s", e.Code, e.Context)
}

func duplicateName(name string) error {
	return &ProgramError{Code: "DuplicateName", Context: name}
}

func duplicateLabel(name string) error {
	return &ProgramError{Code: "DuplicateLabel", Context: name}
}

func missingRet(fn string) error {
	return &ProgramError{Code: "MissingRet", Context: fn}
}

func callOutsideMain(fn string) error {
	return &ProgramError{Code: "CallOutsideMain", Context: fn}
}

func noEntryPoint() error {
	return &ProgramError{Code: "NoEntryPoint"}
}

// MainLabel is the single reserved entry-point function name.
const MainLabel = "MAIN"
