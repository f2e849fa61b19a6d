package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"papertrader/types"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrBadOrderRow = errors.New("bad order row")

// WriteCSVFile creates path and hands it to write.
func WriteCSVFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	return write(f)
}

// WriteTransactionsCSV writes fills to any io.Writer as CSV, in the order given.
func WriteTransactionsCSV(w io.Writer, txs []types.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"id",
		"timestamp", // RFC3339
		"symbol",
		"side",
		"type",
		"quantity",
		"price",
		"total",
		"realized_pnl",
		"status",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, tx := range txs {
		record := []string{
			tx.ID,
			tx.Timestamp.Format(time.RFC3339Nano),
			tx.Symbol,
			string(tx.Side),
			string(tx.Type),
			strconv.FormatInt(tx.Quantity, 10),
			tx.Price.String(),
			tx.Total.String(),
			tx.RealizedPnL.String(),
			string(tx.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteEquityCSV writes the equity curve as timestamp,value rows.
func WriteEquityCSV(w io.Writer, curve []types.EquitySnapshot) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"timestamp", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, snap := range curve {
		if err := cw.Write([]string{snap.Timestamp.Format(time.RFC3339Nano), snap.Value.String()}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadOrdersCSV parses time,symbol,side,quantity,price rows. A header row is
// skipped when its first column is "time".
func ReadOrdersCSV(r io.Reader) ([]types.OrderRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	var reqs []types.OrderRequest
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "time") {
			continue
		}
		req, err := parseOrderRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func parseOrderRow(row []string) (types.OrderRequest, error) {
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return types.OrderRequest{}, fmt.Errorf("%w: time %q", ErrBadOrderRow, row[0])
	}
	side, ok := types.ParseSide(row[2])
	if !ok {
		return types.OrderRequest{}, fmt.Errorf("%w: side %q", ErrBadOrderRow, row[2])
	}
	qty, err := strconv.ParseInt(row[3], 10, 64)
	if err != nil {
		return types.OrderRequest{}, fmt.Errorf("%w: quantity %q", ErrBadOrderRow, row[3])
	}
	price, err := decimal.NewFromString(row[4])
	if err != nil {
		return types.OrderRequest{}, fmt.Errorf("%w: price %q", ErrBadOrderRow, row[4])
	}
	return types.NewOrderRequest(ts, row[1], side, qty, price), nil
}
