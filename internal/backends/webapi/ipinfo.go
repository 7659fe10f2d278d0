package webapi

//
// Code to query ipinfo.io
//

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/optional"
)

var ipinfoProfile = &providerProfile{
	baseURL:          "https://ipinfo.io",
	permitsPerSecond: 1,
	newURL: func(baseURL, address, token string) string {
		URL := fmt.Sprintf("%s/%s/json", baseURL, url.PathEscape(address))
		if token != "" {
			URL += "?" + url.Values{"token": {token}}.Encode()
		}
		return URL
	},
	parse: ipinfoParse,
}

// ipinfoResponse is the ipinfo.io response body.
type ipinfoResponse struct {
	IP       string `json:"ip"`
	Bogon    bool   `json:"bogon"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
}

func ipinfoParse(address string, data []byte) (*model.IPInfo, bool, error) {
	var resp ipinfoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, err
	}
	if resp.Bogon {
		return nil, false, nil
	}
	info := &model.IPInfo{
		Address:  address,
		Country:  resp.Country,
		Province: resp.Region,
		City:     resp.City,
	}
	if asn, owner, ok := parseASN(resp.Org); ok {
		info.ASN = optional.Some(asn)
		if owner != "" {
			info.ASNOwner = optional.Some(owner)
			info.ISP = owner
		}
	} else {
		info.ISP = resp.Org
	}
	if lat, lon, ok := ipinfoParseLoc(resp.Loc); ok {
		info.Latitude = optional.Some(lat)
		info.Longitude = optional.Some(lon)
	}
	if resp.Timezone != "" {
		info.Timezone = optional.Some(resp.Timezone)
	}
	return info, !info.IsEmpty(), nil
}

// ipinfoParseLoc parses a "latitude,longitude" string.
func ipinfoParseLoc(value string) (float64, float64, bool) {
	slat, slon, found := strings.Cut(value, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(slat), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(slon), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
