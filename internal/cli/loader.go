package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/navex/internal/compiler"
)

// LoadResult contains the CUE value of a model directory.
type LoadResult struct {
	CUEValue  cue.Value
	FileCount int
}

// LoadError represents an error that occurred while loading a model directory.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by all commands. Model validation codes
// (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeScenario    = "E008" // Scenario file invalid
	ErrCodeDatabase    = "E009" // Database unreachable
	ErrCodeTestFailed  = "E_TEST_FAILED"
	ErrCodeQueryFailed = "E_QUERY_FAILED"
)

// LoadModelValue checks dir and builds its CUE package. Each failure is a
// *LoadError carrying the code the commands report.
func LoadModelValue(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	v, err := compiler.LoadValue(dir)
	if err != nil {
		loadErr := &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			loadErr.Message = ce.Message
			loadErr.Pos = ce.Pos
		}
		return nil, loadErr
	}

	return &LoadResult{CUEValue: v, FileCount: len(files)}, nil
}

// loadErrorCode returns the code and message of a LoadError. Other errors
// get ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
