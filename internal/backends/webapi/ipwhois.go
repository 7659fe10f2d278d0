package webapi

//
// Code to query ipwho.is
//

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/optional"
)

var ipwhoisProfile = &providerProfile{
	baseURL:          "https://ipwho.is",
	permitsPerSecond: 1,
	newURL: func(baseURL, address, _ string) string {
		return fmt.Sprintf("%s/%s", baseURL, url.PathEscape(address))
	},
	parse: ipwhoisParse,
}

// ipwhoisResponse is the ipwho.is response body.
type ipwhoisResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Continent  string   `json:"continent"`
	Country    string   `json:"country"`
	Region     string   `json:"region"`
	City       string   `json:"city"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Connection struct {
		ASN uint   `json:"asn"`
		Org string `json:"org"`
		ISP string `json:"isp"`
	} `json:"connection"`
	Timezone struct {
		ID string `json:"id"`
	} `json:"timezone"`
}

func ipwhoisParse(address string, data []byte) (*model.IPInfo, bool, error) {
	var resp ipwhoisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, err
	}
	if !resp.Success {
		return nil, false, nil
	}
	info := &model.IPInfo{
		Address:  address,
		Country:  resp.Country,
		Region:   resp.Continent,
		Province: resp.Region,
		City:     resp.City,
		ISP:      resp.Connection.ISP,
	}
	if resp.Connection.ASN != 0 {
		info.ASN = optional.Some(resp.Connection.ASN)
	}
	if resp.Connection.Org != "" {
		info.ASNOwner = optional.Some(resp.Connection.Org)
	}
	if resp.Latitude != nil && resp.Longitude != nil {
		info.Latitude = optional.Some(*resp.Latitude)
		info.Longitude = optional.Some(*resp.Longitude)
	}
	if resp.Timezone.ID != "" {
		info.Timezone = optional.Some(resp.Timezone.ID)
	}
	return info, !info.IsEmpty(), nil
}
