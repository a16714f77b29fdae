package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

var sampleQuantities = []int64{10, 25, 50, 100, 200, 500}

// Generate draws n records spread over the given symbols. Bids sit between 0.25 and
// 3.00 below the symbol's base price and asks the same distance above it. The sides
// never overlap, so a replay builds a two sided book without trading.
func Generate(rng *rand.Rand, n int, basePrices map[string]decimal.Decimal) []Record {
	symbols := make([]string, 0, len(basePrices))
	for symbol := range basePrices {
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil
	}
	// Map order is random, keep the draw reproducible for a given seed.
	sort.Strings(symbols)

	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		symbol := symbols[rng.Intn(len(symbols))]
		offset := decimal.NewFromInt(int64(25 + rng.Intn(276))).Shift(-2)

		side, price := "bid", basePrices[symbol].Sub(offset)
		if rng.Intn(2) == 1 {
			side, price = "ask", basePrices[symbol].Add(offset)
		}
		records = append(records, Record{
			Side:     side,
			Symbol:   symbol,
			Price:    price.StringFixed(2),
			Quantity: strconv.FormatInt(sampleQuantities[rng.Intn(len(sampleQuantities))], 10),
		})
	}
	return records
}

// WriteCSV writes records with the header CSVSource expects.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(RequiredColumns); err != nil {
		return err
	}
	for i, r := range records {
		if err := writer.Write([]string{r.Side, r.Symbol, r.Price, r.Quantity}); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
