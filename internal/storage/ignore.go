package storage

import (
	"path/filepath"

	"streamwatch/internal/model"
)

// IgnorePath returns the ignore-list file of source inside dir.
func IgnorePath(dir, source string) string {
	return filepath.Join(dir, "ignored_"+source+".txt")
}

// LoadIgnore reads the ignore list of source from dir. The list is
// edited by hand and only read once at startup.
func LoadIgnore(dir, source string) (model.IDSet, error) {
	return ReadIDFile(IgnorePath(dir, source))
}
