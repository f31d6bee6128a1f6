package monitoring

import (
	"fmt"
	"log"

	"github.com/shirou/gopsutil/v3/disk"
)

type DiskStatus struct {
	Path        string
	TotalGB     float64
	FreeGB      float64
	UsedPercent float64
}

// GetDiskStatus reports capacity for the filesystem holding path.
func GetDiskStatus(path string) (DiskStatus, error) {
	var status DiskStatus

	usage, err := disk.Usage(path)
	if err != nil {
		return status, fmt.Errorf("error getting disk usage for %s: %v", path, err)
	}

	status.Path = path
	status.TotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	status.FreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	status.UsedPercent = usage.UsedPercent

	return status, nil
}

// CheckFreeSpace verifies the output filesystem has at least minFreeGB
// available before a run starts writing large intermediates.
func CheckFreeSpace(path string, minFreeGB float64) error {
	if minFreeGB <= 0 {
		return nil
	}

	status, err := GetDiskStatus(path)
	if err != nil {
		return err
	}

	log.Printf("Disk space on %s: %.2f GB free of %.2f GB (%.1f%% used)",
		status.Path, status.FreeGB, status.TotalGB, status.UsedPercent)

	if status.FreeGB < minFreeGB {
		return fmt.Errorf("insufficient disk space on %s: %.2f GB free, %.2f GB required",
			path, status.FreeGB, minFreeGB)
	}
	return nil
}
