//go:build windows

package monitor

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procGetCompressedFileSize = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetCompressedFileSizeW")

// invalidFileSize is returned by GetCompressedFileSizeW on failure
const invalidFileSize = 0xFFFFFFFF

// diskUsage returns the bytes allocated to path, falling back to the
// logical size when the API call fails.
func diskUsage(path string, info os.FileInfo) int64 {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return info.Size()
	}

	var high uint32
	low, _, _ := procGetCompressedFileSize.Call(uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(&high)))
	if low == invalidFileSize {
		return info.Size()
	}
	return int64(high)<<32 | int64(low)
}
