// Package pathutil checks the directories the service writes to.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const writeProbeName = ".skillvault-write-test"

// CheckDirectoryWritable makes sure path is a writable directory on fs,
// creating it when missing.
func CheckDirectoryWritable(fs afero.Fs, path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	info, err := fs.Stat(absPath)
	switch {
	case os.IsNotExist(err):
		if err := fs.MkdirAll(absPath, 0o755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", absPath, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access directory %s: %w", absPath, err)
	case !info.IsDir():
		return fmt.Errorf("path %s exists but is not a directory", absPath)
	}

	probe := filepath.Join(absPath, writeProbeName)
	if err := afero.WriteFile(fs, probe, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, err)
	}
	_ = fs.Remove(probe)

	return nil
}

// CheckFileDirectoryWritable checks the directory that will hold filePath.
// An empty filePath is accepted; optional files such as the log file use it.
func CheckFileDirectoryWritable(fs afero.Fs, filePath, fileType string) error {
	if filePath == "" {
		return nil
	}

	dir := filepath.Dir(filePath)
	if dir == "" {
		dir = "."
	}

	if err := CheckDirectoryWritable(fs, dir); err != nil {
		return fmt.Errorf("%s file directory check failed: %w", fileType, err)
	}
	return nil
}
