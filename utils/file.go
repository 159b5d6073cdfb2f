package utils

import (
	"io/fs"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// DirSize returns the total size of regular files under dirPath
func DirSize(dirPath string) (int64, error) {
	var size int64
	err := filepath.Walk(dirPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// AvailableDiskSize returns the free bytes of the disk holding dirPath
func AvailableDiskSize(dirPath string) (uint64, error) {
	info, err := disk.Usage(dirPath)
	if err != nil {
		return 0, err
	}
	return info.Free, nil
}
