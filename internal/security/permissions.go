package security

import (
	"fmt"
	"os"
)

const (
	// PermLogFile is for log files that may contain deployment information.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermLogFile os.FileMode = 0640

	// PermDBFile is for database files containing deployment history.
	PermDBFile os.FileMode = 0640

	// PermDirectory is for directories holding log and database files.
	PermDirectory os.FileMode = 0750
)

// EnsureSecureFile creates path with perm if it does not exist yet.
// Existing files keep their permissions.
func EnsureSecureFile(path string, perm os.FileMode) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create secure file: %w", err)
	}
	return file.Close()
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// IsExecutable checks if any execute bit is set.
func IsExecutable(perm os.FileMode) bool {
	return perm&0111 != 0
}

// CheckScript inspects a deployment script on disk and returns a list of
// problems. If direct is true the script is executed without an interpreter
// and must carry an execute bit.
func CheckScript(path string, direct bool) []string {
	var problems []string

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{fmt.Sprintf("script does not exist: %s", path)}
		}
		return []string{fmt.Sprintf("cannot stat script %s: %v", path, err)}
	}

	if !info.Mode().IsRegular() {
		return []string{fmt.Sprintf("script is not a regular file: %s", path)}
	}

	perm := info.Mode().Perm()
	if IsWorldWritable(perm) {
		problems = append(problems, fmt.Sprintf("script %s is world-writable (%04o), anyone on the host can change what gets deployed", path, perm))
	}
	if direct && !IsExecutable(perm) {
		problems = append(problems, fmt.Sprintf("script %s is not executable (%04o) and no interpreter is configured", path, perm))
	}

	return problems
}
