package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"matchbook/internal/ingest"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	flags := flag.NewFlagSet("gendata", flag.ContinueOnError)
	n := flags.Int("n", 200, "Number of records to generate")
	symbols := flags.String("symbols", "AAPL:150,GOOG:2800,TSLA:250", "Comma-separated SYMBOL:base_price pairs")
	seed := flags.Int64("seed", 42, "Random seed")
	out := flags.String("out", "", "Output CSV file (stdout when empty)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	basePrices, err := parseSymbols(*symbols)
	if err != nil {
		log.Error().Err(err).Msg("invalid -symbols")
		return 2
	}

	records := ingest.Generate(rand.New(rand.NewSource(*seed)), *n, basePrices)
	if *out == "" {
		err = ingest.WriteCSV(stdout, records)
	} else {
		err = writeFile(*out, records)
	}
	if err != nil {
		log.Error().Err(err).Msg("writing records")
		return 1
	}
	log.Info().Int("records", len(records)).Str("out", *out).Msg("sample data written")
	return 0
}

// writeFile writes records to path. A failed close is reported like a failed write.
func writeFile(path string, records []ingest.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ingest.WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseSymbols(list string) (map[string]decimal.Decimal, error) {
	basePrices := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(list, ",") {
		symbol, price, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || symbol == "" {
			return nil, fmt.Errorf("expected SYMBOL:price, got %q", pair)
		}
		base, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		if !base.IsPositive() {
			return nil, fmt.Errorf("%s: base price must be positive", symbol)
		}
		basePrices[symbol] = base
	}
	return basePrices, nil
}
