package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/navex/internal/model"
)

// LoadValue builds the CUE package in dir into a single value.
// Every .cue file in the directory must belong to the same package.
func LoadValue(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, &CompileError{Field: "load", Message: fmt.Sprintf("model directory: %v", err)}
	}
	if !info.IsDir() {
		return cue.Value{}, &CompileError{Field: "load", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, &CompileError{Field: "load", Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(files) == 0 {
		return cue.Value{}, &CompileError{Field: "load", Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &CompileError{Field: "load", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, formatCUEError(inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// LoadDir loads and compiles the model defined by the CUE files in dir.
func LoadDir(dir string) (*model.Model, error) {
	v, err := LoadValue(dir)
	if err != nil {
		return nil, err
	}
	m, err := CompileModel(v)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", dir, err)
	}
	return m, nil
}

// FindCUEFiles returns the .cue files directly inside dir, sorted by name.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}
