package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"place-api/internal/config"
	"place-api/internal/logger"
	"place-api/internal/place"
)

var (
	searchType  string
	searchStats bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one search through the provider chain and print JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := place.ParseType(searchType)
		if !ok {
			return fmt.Errorf("unknown type %q", searchType)
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger.Setup()
		eng := buildEngine(cfg)
		resp := eng.orch.Search(cmd.Context(), strings.Join(args, " "), typ)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if searchStats {
			return enc.Encode(eng.orch.Stats())
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "", "location type hint: flight, lodging")
	searchCmd.Flags().BoolVar(&searchStats, "stats", false, "also print search statistics")
}
