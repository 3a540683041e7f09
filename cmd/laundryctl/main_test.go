package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dukerupert/laundrydash/internal/model"
)

func TestPrintTotals(t *testing.T) {
	var buf bytes.Buffer
	printTotals(&buf, &model.Totals{
		PendapatanArtha: 100000,
		PendapatanPusat: 50000,
		TotalAll:        150000,
		ByCashbox:       map[string]int64{"Kasir 2": 50000, "Kasir 1": 100000},
	})
	out := buf.String()
	if !strings.Contains(out, "Rp 150.000") {
		t.Errorf("output missing total:\n%s", out)
	}
	if strings.Index(out, "Kasir 1") > strings.Index(out, "Kasir 2") {
		t.Errorf("cashboxes not sorted:\n%s", out)
	}
}

func TestPrintBonusEmpty(t *testing.T) {
	var buf bytes.Buffer
	printBonus(&buf, nil)
	if got := strings.TrimSpace(buf.String()); got != "Belum ada data bonus." {
		t.Errorf("output = %q", got)
	}
}

func TestParseServiceType(t *testing.T) {
	tests := []struct {
		name    string
		svc     string
		bonus   string
		wantErr bool
	}{
		{"valid", "Cuci Kering", "1000", false},
		{"empty name", "", "1000", true},
		{"bad bonus", "Setrika", "seribu", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := parseServiceType("st-1", tt.svc, tt.bonus)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (st.ID != "st-1" || st.BonusPrice != 1000) {
				t.Errorf("service type = %+v", st)
			}
		})
	}
}
