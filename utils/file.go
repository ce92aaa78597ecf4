package utils

import "os"

// WriteFileAtomic writes to a sibling temp file and renames it over the
// target. A crash mid-write leaves the previous artifact intact and a
// reader can never observe a truncated file.
func WriteFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
