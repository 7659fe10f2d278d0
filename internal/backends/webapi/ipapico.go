package webapi

//
// Code to query ipapi.co
//

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/optional"
)

var ipapicoProfile = &providerProfile{
	baseURL:          "https://ipapi.co",
	permitsPerSecond: 2,
	newURL: func(baseURL, address, _ string) string {
		return fmt.Sprintf("%s/%s/json/", baseURL, url.PathEscape(address))
	},
	parse: ipapicoParse,
}

// ipapicoResponse is the ipapi.co response body.
type ipapicoResponse struct {
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
	Reserved    bool     `json:"reserved"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryName string   `json:"country_name"`
	Continent   string   `json:"continent_code"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    string   `json:"timezone"`
	ASN         string   `json:"asn"`
	Org         string   `json:"org"`
}

func ipapicoParse(address string, data []byte) (*model.IPInfo, bool, error) {
	var resp ipapicoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, err
	}
	if resp.Error {
		if resp.Reason == "RateLimited" {
			return nil, false, ErrRateLimited
		}
		return nil, false, nil
	}
	info := &model.IPInfo{
		Address:  address,
		Country:  resp.CountryName,
		Region:   resp.Continent,
		Province: resp.Region,
		City:     resp.City,
		ISP:      resp.Org,
	}
	if asn, _, ok := parseASN(resp.ASN); ok {
		info.ASN = optional.Some(asn)
	}
	if resp.Org != "" {
		info.ASNOwner = optional.Some(resp.Org)
	}
	if resp.Latitude != nil && resp.Longitude != nil {
		info.Latitude = optional.Some(*resp.Latitude)
		info.Longitude = optional.Some(*resp.Longitude)
	}
	if resp.Timezone != "" {
		info.Timezone = optional.Some(resp.Timezone)
	}
	return info, !info.IsEmpty(), nil
}
