package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"arbix/internal/aggregation"
	"arbix/internal/metrics"
	"arbix/internal/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	colorBold    = color.New(color.Bold)
	colorYellow  = color.New(color.FgYellow)
	colorGreen   = color.New(color.FgGreen)
	colorRed     = color.New(color.FgRed)
	colorMagenta = color.New(color.FgMagenta)
)

func newScanCommand() *cobra.Command {
	var symbol string

	cmd := &cobra.Command{
		Use:   "scan <chainIndex> <address>",
		Short: "Fetch every source once and print the arbitrage recommendation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logCloser, err := loadConfig()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			token := types.Token{ChainIndex: args[0], Address: args[1], Symbol: symbol}
			if err := token.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			agg, quotes, err := buildAggregator(ctx, cfg, metrics.NewRegistry())
			if err != nil {
				return err
			}
			if c, ok := quotes.(io.Closer); ok {
				defer c.Close()
			}

			snap, err := agg.Collect(ctx, token)
			if err != nil {
				return err
			}
			printSnapshot(os.Stdout, snap)
			return nil
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "token symbol for the CEX lookups (resolved via Uniswap when empty)")
	return cmd
}

func printSnapshot(w io.Writer, snap *aggregation.Snapshot) {
	name := snap.Symbol
	if name == "" {
		name = snap.Token.Address
	}

	fmt.Fprintln(w)
	colorBold.Fprintf(w, "%s", name)
	fmt.Fprintf(w, "  %s\n", snap.Token.Key())

	for _, q := range snap.Quotes {
		fmt.Fprintf(w, "  %-9s %s\n", q.Source.DisplayName(), colorYellow.Sprintf("%14s", q.Price.StringFixed(6)))
	}
	for _, u := range snap.Unavailable {
		fmt.Fprintf(w, "  %-9s %s %s\n", u.Source.DisplayName(), colorRed.Sprintf("%14s", "N/A"), u.Reason)
	}

	rec := snap.Recommendation
	if rec == nil {
		fmt.Fprintln(w, "  no arbitrage opportunity")
		return
	}
	fmt.Fprintf(w, "  BUY %s @ %s │ SELL %s @ %s │ Profit: %s (%s%%)\n",
		rec.BuyFrom.DisplayName(), colorGreen.Sprint(rec.BuyPrice.StringFixed(6)),
		rec.SellTo.DisplayName(), colorRed.Sprint(rec.SellPrice.StringFixed(6)),
		colorMagenta.Sprint(rec.Profit.StringFixed(6)), rec.ProfitPct.StringFixed(2))
}
