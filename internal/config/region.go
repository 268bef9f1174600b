package config

import "slices"

// Supported CloudBase regions.
const (
	RegionShanghai  = "ap-shanghai"
	RegionSingapore = "ap-singapore"
)

var regions = []string{RegionShanghai, RegionSingapore}

// IsInternationalRegion reports whether region is served by the international
// site. The international site has its own console host and no NoSQL database.
func IsInternationalRegion(region string) bool {
	return region == RegionSingapore
}

// IsValidRegion reports whether region is a supported CloudBase region.
func IsValidRegion(region string) bool {
	return slices.Contains(regions, region)
}
