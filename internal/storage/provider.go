// Package storage defines the rooted file-system abstraction under the data directory.
package storage

// Provider is the interface for data-directory file operations.
// Every path is relative to the provider root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Dirs returns the names of the immediate subdirectories of dir.
	Dirs(dir string) ([]string, error)
	// Files returns every regular file under dir, relative to dir, slash separated.
	Files(dir string) ([]string, error)
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
	// RemoveAll removes dir and everything beneath it.
	RemoveAll(dir string) error
	// Abs resolves path to an absolute file-system path.
	Abs(path string) (string, error)
}
