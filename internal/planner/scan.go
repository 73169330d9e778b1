package planner

import "os"

type fileStat struct {
	size  int64
	mtime int64
}

// statFile stats path, returning the fields planOneFile needs. Kept as its
// own tiny seam so tests can stub it without touching the real filesystem.
func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{size: info.Size(), mtime: info.ModTime().Unix()}, nil
}
