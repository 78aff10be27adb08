package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/elysia-dev/elysia-korea-pf/native/bond"
)

// Source exposes the reads needed to build a holder snapshot.
type Source interface {
	Product(id uint64) (*bond.Product, error)
	Holdings(id uint64) ([]bond.Holding, error)
	Claimable(holder common.Address, id uint64) (*bond.Claim, error)
}

// Row is one holder of a product at snapshot time.
type Row struct {
	ProductID uint64
	Kind      string
	Token     string
	Holder    string
	Shares    *big.Int
	Interest  *big.Int
	Principal *big.Int
	Claimable *big.Int
	Repaid    bool
	AsOf      int64
}

// Format names a supported output encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat normalises a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("report: unsupported format %q", raw)
	}
}

// Snapshot lists every holder that still has shares or a positive claimable
// payout, together with what a claim would pay right now. Coupon holders who
// moved all their shares away keep their earned interest, so they stay in the
// report until they claim it. Rows are ordered by holder address.
func Snapshot(src Source, id uint64) ([]Row, error) {
	product, err := src.Product(id)
	if err != nil {
		return nil, err
	}
	holdings, err := src.Holdings(id)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(holdings))
	for _, h := range holdings {
		claim, err := src.Claimable(h.Holder, id)
		if err != nil {
			return nil, fmt.Errorf("report: preview %s: %w", h.Holder.Hex(), err)
		}
		if isZero(h.Balance) && isZero(claim.Payout) {
			continue
		}
		rows = append(rows, Row{
			ProductID: id,
			Kind:      product.Kind.String(),
			Token:     product.Token.Hex(),
			Holder:    h.Holder.Hex(),
			Shares:    h.Balance,
			Interest:  claim.Interest,
			Principal: claim.Principal,
			Claimable: claim.Payout,
			Repaid:    product.Repaid(),
			AsOf:      claim.SettledAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Holder < rows[j].Holder })
	return rows, nil
}

// Write encodes rows in the requested format.
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatParquet:
		return WriteParquet(w, rows)
	default:
		return fmt.Errorf("report: unsupported format %q", format)
	}
}

var csvHeader = []string{
	"product_id", "kind", "token", "holder", "shares", "interest", "principal", "claimable", "repaid", "as_of",
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatUint(row.ProductID, 10),
			row.Kind,
			row.Token,
			row.Holder,
			amount(row.Shares),
			amount(row.Interest),
			amount(row.Principal),
			amount(row.Claimable),
			strconv.FormatBool(row.Repaid),
			strconv.FormatInt(row.AsOf, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush csv: %w", err)
	}
	return nil
}

// Amounts are decimal strings since they may exceed 64 bits.
type parquetRow struct {
	ProductID int64  `parquet:"name=product_id, type=INT64"`
	Kind      string `parquet:"name=kind, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Token     string `parquet:"name=token, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Holder    string `parquet:"name=holder, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Shares    string `parquet:"name=shares, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Interest  string `parquet:"name=interest, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Principal string `parquet:"name=principal, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Claimable string `parquet:"name=claimable, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Repaid    bool   `parquet:"name=repaid, type=BOOLEAN"`
	AsOf      int64  `parquet:"name=as_of, type=INT64"`
}

// WriteParquet writes rows as a snappy compressed parquet file.
func WriteParquet(w io.Writer, rows []Row) error {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return fmt.Errorf("report: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		pr := &parquetRow{
			ProductID: int64(row.ProductID),
			Kind:      row.Kind,
			Token:     row.Token,
			Holder:    row.Holder,
			Shares:    amount(row.Shares),
			Interest:  amount(row.Interest),
			Principal: amount(row.Principal),
			Claimable: amount(row.Claimable),
			Repaid:    row.Repaid,
			AsOf:      row.AsOf,
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("report: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("report: parquet flush: %w", err)
	}
	return nil
}

func isZero(v *big.Int) bool { return v == nil || v.Sign() == 0 }

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
