package vision

import (
	"fmt"
	"os"
)

// DevicePrefix is the path prefix of V4L2 capture nodes.
var DevicePrefix = "/dev/video"

// DevicesPresent reports whether any of the first n video nodes exists.
// It only checks enumeration; the device may still fail to open.
func DevicesPresent(n int) bool {
	for i := 0; i < n; i++ {
		if _, err := os.Stat(fmt.Sprintf("%s%d", DevicePrefix, i)); err == nil {
			return true
		}
	}
	return false
}
