package filestorage

import "os"

// File is an artifact opened for writing. Data is flushed to disk when the file is closed.
type File struct {
	*os.File
}

// Close syncs and closes the file.
func (f *File) Close() error {
	err := f.File.Sync()
	if err != nil {
		f.File.Close()
		return err
	}
	return f.File.Close()
}
