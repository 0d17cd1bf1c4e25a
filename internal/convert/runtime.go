package convert

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime locates a tool binary. PATH is searched first, then a bin
// directory next to the executable and in the working directory.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err == nil {
		return binPath, nil
	}
	if !errors.Is(err, exec.ErrNotFound) {
		return "", fmt.Errorf("locating %s: %w", runtime, err)
	}

	var lookup []string
	if exePath, err := os.Executable(); err == nil {
		lookup = append(lookup, filepath.Dir(exePath))
	}
	if wd, err := os.Getwd(); err == nil {
		lookup = append(lookup, wd)
	}

	for _, dir := range lookup {
		binPath = filepath.Join(dir, "bin", runtime)
		if info, err := os.Stat(binPath); err != nil || info.IsDir() {
			continue // continue to next directory
		}
		return binPath, nil
	}

	return "", fmt.Errorf("%w: `%s` not found in PATH", ErrRuntimeNotFound, runtime)
}
