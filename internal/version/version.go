// ABOUTME: Version and product identification constants
// ABOUTME: Reported in the start banner and logs
package version

import "fmt"

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the product name
	Product = "Echo Loopback"

	// Manufacturer identifies the maintainer
	Manufacturer = "Resonate"
)

// String returns the product name and version for banners and logs
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
