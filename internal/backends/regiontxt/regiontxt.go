// Package regiontxt implements a local backend reading the ip2region
// source text format, where each line looks like:
//
//	startIP|endIP|country|region|province|city|isp
//
// Fields containing "0" are unknown. Lines starting with "#" and empty
// lines are ignored. A database may contain both IPv4 and IPv6 ranges.
package regiontxt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/source"
)

// ErrInvalidAddress indicates that the address is not a valid IP address.
var ErrInvalidAddress = errors.New("regiontxt: invalid address")

// ErrInvalidLine indicates that a line of the database is malformed.
var ErrInvalidLine = errors.New("regiontxt: invalid line")

// rangeFieldsCount is the number of fields before the region string.
const rangeFieldsCount = 2

// ipRange is a range of addresses sharing the same region string.
type ipRange struct {
	start  netip.Addr
	end    netip.Addr
	region string
}

// Database is an in-memory ip2region database.
//
// The zero value is an empty database ready to use. Once loaded,
// it's safe to use this struct from multiple goroutine contexts.
type Database struct {
	v4 []ipRange
	v6 []ipRange
}

var _ source.LocalResolver = &Database{}

// Load loads a database from the given readers. Each reader may contain
// IPv4 ranges, IPv6 ranges, or both.
func Load(readers ...io.Reader) (*Database, error) {
	db := &Database{}
	for _, r := range readers {
		if err := db.load(r); err != nil {
			return nil, err
		}
	}
	db.sort()
	return db, nil
}

// LoadFiles is like [Load] but reads the given files.
func LoadFiles(paths ...string) (*Database, error) {
	var readers []io.Reader
	for _, path := range paths {
		fp, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fp.Close()
		readers = append(readers, fp)
	}
	return Load(readers...)
}

func (db *Database) load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("%w: line %d: %s", ErrInvalidLine, lineno, err.Error())
		}
		if entry.start.Is4() {
			db.v4 = append(db.v4, entry)
		} else {
			db.v6 = append(db.v6, entry)
		}
	}
	return scanner.Err()
}

func parseLine(line string) (ipRange, error) {
	fields := strings.SplitN(line, "|", rangeFieldsCount+1)
	if len(fields) != rangeFieldsCount+1 {
		return ipRange{}, errors.New("expected startIP|endIP|region")
	}
	start, err := netip.ParseAddr(fields[0])
	if err != nil {
		return ipRange{}, err
	}
	end, err := netip.ParseAddr(fields[1])
	if err != nil {
		return ipRange{}, err
	}
	start, end = start.Unmap(), end.Unmap()
	if start.Is4() != end.Is4() {
		return ipRange{}, errors.New("mixed address families")
	}
	if end.Less(start) {
		return ipRange{}, errors.New("end address before start address")
	}
	return ipRange{start: start, end: end, region: fields[2]}, nil
}

func (db *Database) sort() {
	compare := func(a, b ipRange) int {
		return a.start.Compare(b.start)
	}
	slices.SortStableFunc(db.v4, compare)
	slices.SortStableFunc(db.v6, compare)
}

// Len returns the number of ranges in the database.
func (db *Database) Len() int {
	return len(db.v4) + len(db.v6)
}

// Search returns the region string for the given address, or the empty
// string when the address is not inside any range.
func (db *Database) Search(addr netip.Addr) string {
	addr = addr.Unmap()
	ranges := db.v6
	if addr.Is4() {
		ranges = db.v4
	}
	// find the first range starting after addr and check the previous one
	idx, _ := slices.BinarySearchFunc(ranges, addr, func(r ipRange, target netip.Addr) int {
		if r.start.Compare(target) <= 0 {
			return -1
		}
		return 1
	})
	if idx <= 0 {
		return ""
	}
	if candidate := ranges[idx-1]; addr.Compare(candidate.end) <= 0 {
		return candidate.region
	}
	return ""
}

// Resolve implements source.LocalResolver. An address not inside any
// range resolves to an IPInfo containing just the address.
func (db *Database) Resolve(ctx context.Context, address string) (*model.IPInfo, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	return model.ParseRegionString(address, db.Search(addr)), nil
}

// Config contains the settings to open an ip2region text backend.
type Config struct {
	// Name is the MANDATORY backend name.
	Name string

	// Weight is the OPTIONAL backend weight.
	Weight int

	// Paths contains the MANDATORY database files, e.g., the IPv4
	// file followed by the IPv6 file.
	Paths []string

	// Policy is the OPTIONAL health policy.
	Policy source.HealthPolicy
}

// Open loads the database files and returns the corresponding
// always available local backend.
func Open(config *Config) (*source.Local, error) {
	if len(config.Paths) <= 0 {
		return nil, errors.New("regiontxt: no database files")
	}
	db, err := LoadFiles(config.Paths...)
	if err != nil {
		return nil, err
	}
	return New(config, db), nil
}

// New is like [Open] but uses an already loaded database.
func New(config *Config, db *Database) *source.Local {
	return source.NewLocal(source.LocalConfig{
		Name:            config.Name,
		Weight:          config.Weight,
		AlwaysAvailable: true,
		Policy:          config.Policy,
	}, db)
}
