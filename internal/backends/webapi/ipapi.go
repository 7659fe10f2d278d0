package webapi

//
// Code to query ip-api.com
//

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/optional"
)

// ipapiFields contains the fields we ask ip-api.com to return.
const ipapiFields = "status,message,continent,country,regionName,city,lat,lon,timezone,isp,org,as,asname,proxy,hosting,query"

var ipapiProfile = &providerProfile{
	// the free tier only supports plaintext HTTP
	baseURL:          "http://ip-api.com",
	permitsPerSecond: 1,
	newURL: func(baseURL, address, _ string) string {
		return fmt.Sprintf("%s/json/%s?%s", baseURL, url.PathEscape(address),
			url.Values{"fields": {ipapiFields}}.Encode())
	},
	parse: ipapiParse,
}

// ipapiResponse is the ip-api.com response body.
type ipapiResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Continent  string   `json:"continent"`
	Country    string   `json:"country"`
	RegionName string   `json:"regionName"`
	City       string   `json:"city"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Timezone   string   `json:"timezone"`
	ISP        string   `json:"isp"`
	Org        string   `json:"org"`
	AS         string   `json:"as"`
	ASName     string   `json:"asname"`
	Proxy      *bool    `json:"proxy"`
	Hosting    bool     `json:"hosting"`
}

func ipapiParse(address string, data []byte) (*model.IPInfo, bool, error) {
	var resp ipapiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, err
	}
	if resp.Status != "success" {
		return nil, false, nil
	}
	info := &model.IPInfo{
		Address:  address,
		Country:  resp.Country,
		Region:   resp.Continent,
		Province: resp.RegionName,
		City:     resp.City,
		ISP:      resp.ISP,
	}
	if info.ISP == "" {
		info.ISP = resp.Org
	}
	if asn, owner, ok := parseASN(resp.AS); ok {
		info.ASN = optional.Some(asn)
		if resp.ASName != "" {
			owner = resp.ASName
		}
		if owner != "" {
			info.ASNOwner = optional.Some(owner)
		}
	}
	if resp.Lat != nil && resp.Lon != nil {
		info.Latitude = optional.Some(*resp.Lat)
		info.Longitude = optional.Some(*resp.Lon)
	}
	if resp.Timezone != "" {
		info.Timezone = optional.Some(resp.Timezone)
	}
	if resp.Proxy != nil {
		info.IsProxy = optional.Some(*resp.Proxy)
	}
	if resp.Hosting {
		info.UsageType = optional.Some("hosting")
	}
	return info, !info.IsEmpty(), nil
}
