package webapi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/optional"
)

type parseTestCase struct {
	name   string
	body   string
	expect *model.IPInfo
	found  bool
	err    error
}

func runParseTests(t *testing.T, parse func(string, []byte) (*model.IPInfo, bool, error), cases []parseTestCase) {
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, found, err := parse("8.8.8.8", []byte(tc.body))
			switch {
			case tc.err == nil && err != nil:
				t.Fatal(err)
			case tc.err != nil && err == nil:
				t.Fatal("expected an error")
			case tc.err != nil && tc.err != errAnyJSON && !errors.Is(err, tc.err):
				t.Fatal("unexpected error", err)
			}
			if found != tc.found {
				t.Fatal("expected found", tc.found, "got", found)
			}
			if diff := cmp.Diff(tc.expect, info); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

// errAnyJSON means that we expect a JSON parsing error.
var errAnyJSON = errors.New("any JSON error")

func TestParseProviders(t *testing.T) {
	t.Run("ipinfo", func(t *testing.T) {
		runParseTests(t, ipinfoParse, []parseTestCase{{
			name: "full response",
			body: `{"ip":"8.8.8.8","city":"Mountain View","region":"California",
				"country":"US","loc":"37.4056,-122.0775","org":"AS15169 Google LLC",
				"timezone":"America/Los_Angeles"}`,
			expect: &model.IPInfo{
				Address:   "8.8.8.8",
				Country:   "US",
				Province:  "California",
				City:      "Mountain View",
				ISP:       "Google LLC",
				ASN:       optional.Some(uint(15169)),
				ASNOwner:  optional.Some("Google LLC"),
				Latitude:  optional.Some(37.4056),
				Longitude: optional.Some(-122.0775),
				Timezone:  optional.Some("America/Los_Angeles"),
			},
			found: true,
		}, {
			name: "org without AS number",
			body: `{"ip":"8.8.8.8","org":"Some Carrier","loc":"broken"}`,
			expect: &model.IPInfo{
				Address: "8.8.8.8",
				ISP:     "Some Carrier",
			},
			found: true,
		}, {
			name:  "bogon address",
			body:  `{"ip":"10.0.0.1","bogon":true}`,
			found: false,
		}, {
			name:   "empty object",
			body:   `{}`,
			expect: &model.IPInfo{Address: "8.8.8.8"},
			found:  false,
		}, {
			name: "invalid JSON",
			body: `{`,
			err:  errAnyJSON,
		}})
	})

	t.Run("ipapi", func(t *testing.T) {
		runParseTests(t, ipapiParse, []parseTestCase{{
			name: "full response",
			body: `{"status":"success","continent":"North America","country":"United States",
				"regionName":"Virginia","city":"Ashburn","lat":39.03,"lon":-77.5,
				"timezone":"America/New_York","isp":"Google LLC","org":"Google Public DNS",
				"as":"AS15169 Google LLC","asname":"GOOGLE","proxy":false,"hosting":true,
				"query":"8.8.8.8"}`,
			expect: &model.IPInfo{
				Address:   "8.8.8.8",
				Country:   "United States",
				Region:    "North America",
				Province:  "Virginia",
				City:      "Ashburn",
				ISP:       "Google LLC",
				ASN:       optional.Some(uint(15169)),
				ASNOwner:  optional.Some("GOOGLE"),
				Latitude:  optional.Some(39.03),
				Longitude: optional.Some(-77.5),
				Timezone:  optional.Some("America/New_York"),
				IsProxy:   optional.Some(false),
				UsageType: optional.Some("hosting"),
			},
			found: true,
		}, {
			name: "falls back to org and AS owner",
			body: `{"status":"success","org":"Carrier","as":"AS3269 Telecom Italia"}`,
			expect: &model.IPInfo{
				Address:  "8.8.8.8",
				ISP:      "Carrier",
				ASN:      optional.Some(uint(3269)),
				ASNOwner: optional.Some("Telecom Italia"),
			},
			found: true,
		}, {
			name:  "failure status",
			body:  `{"status":"fail","message":"private range"}`,
			found: false,
		}, {
			name: "invalid JSON",
			body: `[]`,
			err:  errAnyJSON,
		}})
	})

	t.Run("ipapico", func(t *testing.T) {
		runParseTests(t, ipapicoParse, []parseTestCase{{
			name: "full response",
			body: `{"ip":"8.8.8.8","city":"Mountain View","region":"California",
				"country_name":"United States","continent_code":"NA","latitude":37.42,
				"longitude":-122.08,"timezone":"America/Los_Angeles","asn":"AS15169",
				"org":"GOOGLE"}`,
			expect: &model.IPInfo{
				Address:   "8.8.8.8",
				Country:   "United States",
				Region:    "NA",
				Province:  "California",
				City:      "Mountain View",
				ISP:       "GOOGLE",
				ASN:       optional.Some(uint(15169)),
				ASNOwner:  optional.Some("GOOGLE"),
				Latitude:  optional.Some(37.42),
				Longitude: optional.Some(-122.08),
				Timezone:  optional.Some("America/Los_Angeles"),
			},
			found: true,
		}, {
			name:  "reserved address",
			body:  `{"ip":"10.0.0.1","error":true,"reason":"Reserved IP Address","reserved":true}`,
			found: false,
		}, {
			name: "rate limited",
			body: `{"error":true,"reason":"RateLimited"}`,
			err:  ErrRateLimited,
		}, {
			name: "invalid JSON",
			body: `nope`,
			err:  errAnyJSON,
		}})
	})

	t.Run("ipwhois", func(t *testing.T) {
		runParseTests(t, ipwhoisParse, []parseTestCase{{
			name: "full response",
			body: `{"ip":"8.8.8.8","success":true,"continent":"North America",
				"country":"United States","region":"California","city":"Mountain View",
				"latitude":37.38,"longitude":-122.08,
				"connection":{"asn":15169,"org":"Google LLC","isp":"Google LLC"},
				"timezone":{"id":"America/Los_Angeles"}}`,
			expect: &model.IPInfo{
				Address:   "8.8.8.8",
				Country:   "United States",
				Region:    "North America",
				Province:  "California",
				City:      "Mountain View",
				ISP:       "Google LLC",
				ASN:       optional.Some(uint(15169)),
				ASNOwner:  optional.Some("Google LLC"),
				Latitude:  optional.Some(37.38),
				Longitude: optional.Some(-122.08),
				Timezone:  optional.Some("America/Los_Angeles"),
			},
			found: true,
		}, {
			name:  "unsuccessful lookup",
			body:  `{"ip":"10.0.0.1","success":false,"message":"Reserved range"}`,
			found: false,
		}, {
			name: "invalid JSON",
			body: `{"success":"maybe"}`,
			err:  errAnyJSON,
		}})
	})
}
