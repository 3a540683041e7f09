package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Totals is the revenue summary computed by the backend after a revenue upload.
type Totals struct {
	PendapatanArtha int64            `json:"pendapatan_artha"`
	PendapatanPusat int64            `json:"pendapatan_pusat"`
	TotalAll        int64            `json:"total_all"`
	ByCashbox       map[string]int64 `json:"totals_by_cashbox"`
}

// CashboxTotal is one entry of Totals.ByCashbox.
type CashboxTotal struct {
	Cashbox string
	Total   int64
}

// Cashboxes returns the per-cashbox totals sorted by cashbox name.
func (t Totals) Cashboxes() []CashboxTotal {
	out := make([]CashboxTotal, 0, len(t.ByCashbox))
	for name, total := range t.ByCashbox {
		out = append(out, CashboxTotal{Cashbox: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cashbox < out[j].Cashbox })
	return out
}

// Amount is a rupiah amount that the backend sends either as a JSON number or
// as a formatted string such as "Rp 1.234.000".
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s)
		if digits == "" {
			*a = 0
			return nil
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", s, err)
		}
		*a = Amount(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// MaterialSummary is the raw-material (bahan baku) result of a transaction upload.
type MaterialSummary struct {
	RowsProcessed   int64  `json:"total_rows_processed"`
	CustomersAG     int64  `json:"total_pelanggan_AG"`
	Quantity        int64  `json:"total_qty"`
	MaterialCost    Amount `json:"total_bahan_baku_rp"`
	MaterialCostAlt Amount `json:"total_bahan_baku"`
}

// Cost returns total_bahan_baku_rp, falling back to total_bahan_baku.
func (m MaterialSummary) Cost() int64 {
	if m.MaterialCost != 0 {
		return int64(m.MaterialCost)
	}
	return int64(m.MaterialCostAlt)
}

// BonusRecord is one service line of a staff member's bonus.
type BonusRecord struct {
	ServiceName string `json:"nama_layanan"`
	WashCount   int64  `json:"cuci"`
	BonusAmount int64  `json:"bonus"`
}

// StaffBonus groups the bonus records of one staff member.
type StaffBonus struct {
	Staff   string
	Records []BonusRecord
}

// Total sums the bonus amounts of all records.
func (s StaffBonus) Total() int64 {
	var total int64
	for _, r := range s.Records {
		total += r.BonusAmount
	}
	return total
}

// BonusList is the backend's staff -> records object, kept in the order the
// backend sent the keys.
type BonusList []StaffBonus

func (l *BonusList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("bonus list: %w", err)
	}
	if tok == nil {
		*l = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("bonus list: expected object, got %v", tok)
	}

	out := BonusList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("bonus list key: %w", err)
		}
		staff, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("bonus list: unexpected key %v", keyTok)
		}
		var records []BonusRecord
		if err := dec.Decode(&records); err != nil {
			return fmt.Errorf("bonus list %q: %w", staff, err)
		}
		out = append(out, StaffBonus{Staff: staff, Records: records})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("bonus list: %w", err)
	}
	*l = out
	return nil
}

// ServiceType is a laundry service with its per-wash bonus rate.
type ServiceType struct {
	ID          string `json:"id,omitempty"`
	ServiceName string `json:"nama_layanan"`
	BonusPrice  int64  `json:"harga_bonus"`
}
