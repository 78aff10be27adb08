package report

import (
	"bytes"
	"encoding/csv"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/elysia-dev/elysia-korea-pf/native/bond"
)

type fakeSource struct {
	product  *bond.Product
	holdings []bond.Holding
	pending  map[common.Address]*big.Int
}

func (f *fakeSource) Product(uint64) (*bond.Product, error) { return f.product, nil }

func (f *fakeSource) Holdings(uint64) ([]bond.Holding, error) { return f.holdings, nil }

func (f *fakeSource) Claimable(holder common.Address, id uint64) (*bond.Claim, error) {
	for _, h := range f.holdings {
		if h.Holder == holder {
			principal := new(big.Int).Mul(h.Balance, f.product.FinalValue)
			interest := big.NewInt(0)
			if p, ok := f.pending[holder]; ok {
				interest.Set(p)
			}
			payout := new(big.Int).Add(principal, interest)
			return &bond.Claim{ProductID: id, Holder: holder, Shares: h.Balance, Interest: interest, Principal: principal, Payout: payout, SettledAt: 42}, nil
		}
	}
	return &bond.Claim{}, nil
}

func newSource() *fakeSource {
	return &fakeSource{
		product: &bond.Product{ID: 1, Kind: bond.KindBullet, Token: common.HexToAddress("0x7"), FinalValue: big.NewInt(115)},
		holdings: []bond.Holding{
			{Holder: common.HexToAddress("0xb2"), Balance: big.NewInt(967)},
			{Holder: common.HexToAddress("0xb1"), Balance: big.NewInt(33)},
			{Holder: common.HexToAddress("0xb3"), Balance: big.NewInt(0)},
		},
	}
}

func TestSnapshotSkipsEmptyHolders(t *testing.T) {
	rows, err := Snapshot(newSource(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, common.HexToAddress("0xb1").Hex(), rows[0].Holder)
	require.Equal(t, "3795", rows[0].Claimable.String())
	require.True(t, rows[0].Repaid)
}

func TestSnapshotKeepsHoldersWithPendingInterest(t *testing.T) {
	src := newSource()
	seller := common.HexToAddress("0xb4")
	src.holdings = append(src.holdings, bond.Holding{Holder: seller, Balance: big.NewInt(0)})
	src.pending = map[common.Address]*big.Int{seller: big.NewInt(1_000)}

	rows, err := Snapshot(src, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	last := rows[2]
	require.Equal(t, seller.Hex(), last.Holder)
	require.Equal(t, "0", last.Shares.String())
	require.Equal(t, "1000", last.Interest.String())
	require.Equal(t, "1000", last.Claimable.String())
}

func TestWriteCSV(t *testing.T) {
	rows, err := Snapshot(newSource(), 1)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "111205", records[2][7])
}

func TestWriteParquet(t *testing.T) {
	rows, err := Snapshot(newSource(), 1)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatParquet, rows))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PAR1")))
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("PAR1")))

	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(buf.Bytes()), new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(len(rows)), pr.GetNumRows())

	decoded := make([]parquetRow, len(rows))
	require.NoError(t, pr.Read(&decoded))
	require.Equal(t, rows[0].Holder, decoded[0].Holder)
	require.Equal(t, "3795", decoded[0].Claimable)
	require.Equal(t, "111205", decoded[1].Claimable)
	require.True(t, decoded[1].Repaid)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Parquet ")
	require.NoError(t, err)
	require.Equal(t, FormatParquet, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)
	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}
