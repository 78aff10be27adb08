package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
)

// Manifest lists share allocations for mint-batch and airdrop.
//
//	product: 0
//	entries:
//	  - holder: "0x6B0F..."
//	    amount: "3"
type Manifest struct {
	Product *uint64         `yaml:"product"`
	Entries []ManifestEntry `yaml:"entries"`
}

type ManifestEntry struct {
	Holder string `yaml:"holder"`
	Amount string `yaml:"amount"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw)
}

// ParseManifest decodes a YAML manifest. Every holder must be a hex address
// and every amount a positive integer.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("manifest has no entries")
	}
	for i, e := range m.Entries {
		addr, err := api.ParseAddress(e.Holder)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		amount, err := api.ParseAmount(e.Amount)
		if err != nil || amount.Sign() == 0 {
			return nil, fmt.Errorf("entry %d: amount must be a positive integer, got %q", i, e.Amount)
		}
		m.Entries[i] = ManifestEntry{Holder: addr.Hex(), Amount: amount.String()}
	}
	return &m, nil
}

// Total sums the entry amounts.
func (m *Manifest) Total() *big.Int {
	total := new(big.Int)
	for _, e := range m.Entries {
		if v, ok := new(big.Int).SetString(e.Amount, 10); ok {
			total.Add(total, v)
		}
	}
	return total
}

// ProductID resolves the target product, preferring the flag override.
func (m *Manifest) ProductID(override int64) (uint64, error) {
	if override >= 0 {
		return uint64(override), nil
	}
	if m.Product == nil {
		return 0, fmt.Errorf("product id missing: set it in the manifest or pass -product")
	}
	return *m.Product, nil
}

// MintRequest converts the manifest into a batch mint payload.
func (m *Manifest) MintRequest() api.MintBatchRequest {
	req := api.MintBatchRequest{
		Holders: make([]string, len(m.Entries)),
		Amounts: make([]string, len(m.Entries)),
	}
	for i, e := range m.Entries {
		req.Holders[i] = e.Holder
		req.Amounts[i] = e.Amount
	}
	return req
}
