package view

import "testing"

func TestRupiah(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{1000, "Rp 1.000"},
		{150000, "Rp 150.000"},
		{1234000, "Rp 1.234.000"},
	}
	for _, tt := range tests {
		if got := Rupiah(tt.n); got != tt.want {
			t.Errorf("Rupiah(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNumber(t *testing.T) {
	if got := Number(12345); got != "12.345" {
		t.Errorf("Number(12345) = %q, want %q", got, "12.345")
	}
}

func TestFileSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{-1, "0 B"},
		{512, "512 B"},
		{2048, "2.0 kB"},
	}
	for _, tt := range tests {
		if got := FileSize(tt.n); got != tt.want {
			t.Errorf("FileSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestIsSpreadsheet(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.xlsx", true},
		{"REPORT.XLS", true},
		{"report.csv", false},
		{"report", false},
	}
	for _, tt := range tests {
		if got := IsSpreadsheet(tt.name); got != tt.want {
			t.Errorf("IsSpreadsheet(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
