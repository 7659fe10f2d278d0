package model

//
// Resolved address information
//

import (
	"fmt"
	"strings"

	"github.com/ooni/geoquery/internal/optional"
)

// IPInfo is the geographic and ISP metadata associated with an address.
//
// Backends fill what they know and leave the rest empty. The core fields
// use the empty string for "unknown", while the extended fields use an
// explicit presence marker, so zero coordinates or ASN zero are not
// confused with absent data. Once a backend returns an IPInfo, nobody
// mutates it: the engine caches and shares the same pointer.
type IPInfo struct {
	Address  string `json:"address"`
	Country  string `json:"country"`
	Region   string `json:"region"`
	Province string `json:"province"`
	City     string `json:"city"`
	ISP      string `json:"isp"`

	ASN         optional.Value[uint]    `json:"asn"`
	ASNOwner    optional.Value[string]  `json:"asn_owner"`
	Longitude   optional.Value[float64] `json:"longitude"`
	Latitude    optional.Value[float64] `json:"latitude"`
	Timezone    optional.Value[string]  `json:"timezone"`
	UsageType   optional.Value[string]  `json:"usage_type"`
	IsRisky     optional.Value[bool]    `json:"is_risky"`
	IsProxy     optional.Value[bool]    `json:"is_proxy"`
	CrawlerName optional.Value[string]  `json:"crawler_name"`
}

// IsEmpty returns true when the IPInfo carries no information besides the address.
func (ii *IPInfo) IsEmpty() bool {
	return ii.Country == "" && ii.Region == "" && ii.Province == "" &&
		ii.City == "" && ii.ISP == "" && ii.ASN.IsNone() && ii.ASNOwner.IsNone() &&
		ii.Longitude.IsNone() && ii.Latitude.IsNone() && ii.Timezone.IsNone() &&
		ii.UsageType.IsNone() && ii.IsRisky.IsNone() && ii.IsProxy.IsNone() &&
		ii.CrawlerName.IsNone()
}

// String returns a compact human readable summary.
func (ii *IPInfo) String() string {
	return fmt.Sprintf("%s [%s]", ii.Address, strings.Join([]string{
		ii.Country, ii.Region, ii.Province, ii.City, ii.ISP,
	}, "|"))
}

// regionFieldsCount is the number of fields in an ip2region region string.
const regionFieldsCount = 5

// ParseRegionString builds an [IPInfo] from the ip2region region
// string format, i.e., "country|region|province|city|isp".
//
// A field containing the literal "0" means unknown and maps to the empty
// string. Trailing empty fields do not count, so "a|b|c|d|" has four
// fields. A non-empty string not in this format is stored verbatim as the
// ISP. The empty string produces an IPInfo containing just the address.
func ParseRegionString(address, region string) *IPInfo {
	info := &IPInfo{Address: address}
	if region == "" {
		return info
	}
	if parts := splitRegion(region); len(parts) == regionFieldsCount {
		for idx, value := range parts {
			if value == "0" {
				parts[idx] = ""
			}
		}
		info.Country, info.Region, info.Province = parts[0], parts[1], parts[2]
		info.City, info.ISP = parts[3], parts[4]
		return info
	}
	info.ISP = region
	return info
}

// splitRegion splits the region string and drops the trailing empty fields.
func splitRegion(region string) []string {
	parts := strings.Split(region, "|")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
