package main

import (
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/observatory/quicklook/internal/edb"
)

var mnemonicCmd = &cobra.Command{
	Use:   "mnemonic [term]",
	Short: "Search telemetry mnemonics and print sample statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := edb.Open(cfg.EDBDB)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()

		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		if term == "" {
			prompt := &survey.Input{Message: "Search term:"}
			if err := survey.AskOne(prompt, &term, survey.WithValidator(survey.MinLength(2))); err != nil {
				return err
			}
		}

		mnemonics, err := store.Search(ctx, term)
		if err != nil {
			return err
		}
		if len(mnemonics) == 0 {
			fmt.Printf("no mnemonics match %q\n", term)
			return nil
		}

		options := make([]string, len(mnemonics))
		byIdentifier := make(map[string]edb.Mnemonic, len(mnemonics))
		for i, m := range mnemonics {
			options[i] = m.Identifier
			byIdentifier[m.Identifier] = m
		}

		identifier := options[0]
		if len(options) > 1 {
			prompt := &survey.Select{Message: "Mnemonic:", Options: options}
			if err := survey.AskOne(prompt, &identifier); err != nil {
				return err
			}
		}

		series, err := store.QueryRange(ctx, identifier, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}

		m := byIdentifier[identifier]
		fmt.Printf("%s (%s)\n", m.Identifier, m.Subsystem)
		if m.Description != "" {
			fmt.Println(m.Description)
		}
		fmt.Printf("samples: %d\n", series.Stats.Count)
		if series.Stats.Count > 0 {
			unit := m.Unit
			fmt.Printf("min:     %g %s\n", series.Stats.Min, unit)
			fmt.Printf("max:     %g %s\n", series.Stats.Max, unit)
			fmt.Printf("mean:    %g %s\n", series.Stats.Mean, unit)
			fmt.Printf("stddev:  %g %s\n", series.Stats.StdDev, unit)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mnemonicCmd)
}
