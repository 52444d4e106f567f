//go:build !darwin && !linux

package goble

import (
	"fmt"

	"github.com/go-ble/ble"
)

func newPlatformDevice() (ble.Device, error) {
	return nil, fmt.Errorf("no BLE stack available on this platform")
}
