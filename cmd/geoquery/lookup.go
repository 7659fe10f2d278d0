package main

//
// Lookup subcommand
//

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/ooni/geoquery/internal/engine"
	"github.com/ooni/geoquery/internal/model"
	"github.com/spf13/cobra"
)

func newLookupCommand(globalOptions *Options) *cobra.Command {
	var emitJSON bool
	cmd := &cobra.Command{
		Use:   "lookup IP [IP...]",
		Short: "Resolves one or more IP addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(globalOptions)
			if err != nil {
				return err
			}
			defer eng.Close()
			return lookupMain(cmd.Context(), eng, args, emitJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&emitJSON, "json", false, "emit results as JSON lines on the standard output")
	return cmd
}

// lookupMain resolves each address and prints the results.
func lookupMain(ctx context.Context, eng *engine.Engine, addresses []string, emitJSON bool, w io.Writer) error {
	var failures int
	for _, address := range addresses {
		info, err := eng.Query(ctx, address)
		if err != nil {
			log.WithError(err).Warnf("cannot resolve %s", address)
			failures++
			continue
		}
		if emitJSON {
			if err := json.NewEncoder(w).Encode(info); err != nil {
				return err
			}
			continue
		}
		log.WithFields(ipinfoFields(info)).Info(info.Address)
	}
	log.Debug(eng.Metrics().String())
	if failures > 0 {
		return fmt.Errorf("cannot resolve %d out of %d addresses", failures, len(addresses))
	}
	return nil
}

// ipinfoFields converts an [*model.IPInfo] to fields printed as a table.
func ipinfoFields(info *model.IPInfo) log.Fields {
	fields := log.Fields{
		"type":     "table",
		"country":  info.Country,
		"region":   info.Region,
		"province": info.Province,
		"city":     info.City,
		"isp":      info.ISP,
	}
	if !info.ASN.IsNone() {
		fields["asn"] = fmt.Sprintf("AS%d", info.ASN.Unwrap())
	}
	if !info.ASNOwner.IsNone() {
		fields["asn_owner"] = info.ASNOwner.Unwrap()
	}
	if !info.Latitude.IsNone() && !info.Longitude.IsNone() {
		fields["location"] = fmt.Sprintf("%.4f,%.4f", info.Latitude.Unwrap(), info.Longitude.Unwrap())
	}
	if !info.Timezone.IsNone() {
		fields["timezone"] = info.Timezone.Unwrap()
	}
	if !info.UsageType.IsNone() {
		fields["usage_type"] = info.UsageType.Unwrap()
	}
	if !info.IsProxy.IsNone() {
		fields["is_proxy"] = info.IsProxy.Unwrap()
	}
	return fields
}
