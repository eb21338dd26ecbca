package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/observatory/quicklook/internal/archive"
	"github.com/observatory/quicklook/internal/edb"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the databases with a small demonstration dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := archive.Open(cfg.ArchiveDB)
		if err != nil {
			return err
		}
		defer store.Close()

		telemetry, err := edb.Open(cfg.EDBDB)
		if err != nil {
			return err
		}
		defer telemetry.Close()

		ctx := cmd.Context()
		if err := seedObservations(ctx, store); err != nil {
			return err
		}
		if err := seedTelemetry(ctx, telemetry); err != nil {
			return err
		}
		fmt.Printf("seeded %s and %s\n", cfg.ArchiveDB, cfg.EDBDB)
		return nil
	},
}

func seedObservations(ctx context.Context, store *archive.Store) error {
	observations := []archive.Observation{
		{
			Rootname:      "jw01022001001_02101_00001_mirimage",
			Instrument:    "miri",
			Proposal:      "1022",
			ObsStart:      time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC),
			ObsEnd:        time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC),
			Detector:      "MIRIMAGE",
			Aperture:      "MIRIM_FULL",
			Filter:        "F770W",
			ExpType:       "MIR_IMAGE",
			ReadPattern:   "FASTR1",
			Subarray:      "FULL",
			Anomalies:     []string{"snowball"},
			PreviewPath:   "/previews/jw01022001001_02101_00001_mirimage.jpg",
			ThumbnailPath: "/thumbs/jw01022001001_02101_00001_mirimage.thumb",
		},
		{
			Rootname:      "jw01022002001_02101_00001_mirimage",
			Instrument:    "miri",
			Proposal:      "1022",
			ObsStart:      time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC),
			ObsEnd:        time.Date(2025, 3, 11, 9, 45, 0, 0, time.UTC),
			Detector:      "MIRIMAGE",
			Aperture:      "MIRIM_BRIGHTSKY",
			Filter:        "F1130W",
			ExpType:       "MIR_IMAGE",
			ReadPattern:   "SLOWR1",
			Subarray:      "BRIGHTSKY",
			PreviewPath:   "/previews/jw01022002001_02101_00001_mirimage.jpg",
			ThumbnailPath: "/thumbs/jw01022002001_02101_00001_mirimage.thumb",
		},
		{
			Rootname:      "jw02733001001_02101_00002_nrcb1",
			Instrument:    "nircam",
			Proposal:      "2733",
			ObsStart:      time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC),
			ObsEnd:        time.Date(2025, 4, 2, 11, 20, 0, 0, time.UTC),
			Detector:      "NRCB1",
			Aperture:      "NRCB1_FULL",
			Filter:        "F200W",
			ExpType:       "NRC_IMAGE",
			ReadPattern:   "SHALLOW4",
			Subarray:      "FULL",
			Anomalies:     []string{"claws", "persistence"},
			PreviewPath:   "/previews/jw02733001001_02101_00002_nrcb1.jpg",
			ThumbnailPath: "/thumbs/jw02733001001_02101_00002_nrcb1.thumb",
		},
		{
			Rootname:    "jw01345004001_04101_00001_nrs1",
			Instrument:  "nirspec",
			Proposal:    "1345",
			ObsStart:    time.Date(2025, 5, 20, 22, 10, 0, 0, time.UTC),
			ObsEnd:      time.Date(2025, 5, 20, 23, 5, 0, 0, time.UTC),
			Detector:    "NRS1",
			Aperture:    "NRS_FULL_MSA",
			Filter:      "F170LP",
			ExpType:     "NRS_MSASPEC",
			ReadPattern: "NRSRAPID",
			Subarray:    "FULL",
		},
	}
	for _, obs := range observations {
		if err := store.Insert(ctx, obs); err != nil {
			return err
		}
	}
	return nil
}

func seedTelemetry(ctx context.Context, store *edb.Store) error {
	mnemonics := []edb.Mnemonic{
		{
			Identifier:  "SA_ZFGOUTFOV",
			Subsystem:   "SA",
			Description: "Number of guide stars out of FGS field of view",
			Unit:        "count",
			DataType:    "float",
		},
		{
			Identifier:  "SA_ZADUCMDX",
			Subsystem:   "SA",
			Description: "ADU commanded position, X axis",
			Unit:        "steps",
			DataType:    "float",
		},
		{
			Identifier:  "IMIR_HK_ICE_SEC_VOLT4",
			Subsystem:   "IMIR",
			Description: "MIRI ICE secondary voltage 4",
			Unit:        "V",
			DataType:    "float",
		},
	}
	for _, m := range mnemonics {
		if err := store.AddMnemonic(ctx, m); err != nil {
			return err
		}
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, m := range mnemonics {
		samples := make([]edb.Sample, 0, 120)
		for i := 0; i < 120; i++ {
			samples = append(samples, edb.Sample{
				Time:  base.Add(time.Duration(i) * time.Minute),
				Value: 5 + 2*math.Sin(float64(i)/10),
			})
		}
		if err := store.AddSamples(ctx, m.Identifier, samples); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
