//go:build !linux

package filestorage

import "os"

func adviseSequential(f *os.File) error {
	return nil
}
