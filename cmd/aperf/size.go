package main

import (
	"os"
	"path/filepath"
)

// walkDir invokes fn with the size of every regular file under dir,
// for CLI summary reporting; errors reading a single entry are not
// fatal to the sum.
func walkDir(dir string, fn func(size int64)) error {
	return filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			fn(info.Size())
		}
		return nil
	})
}
