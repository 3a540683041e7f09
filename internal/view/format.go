// Package view holds the presentation helpers shared by the dashboard pages.
package view

import (
	"html/template"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Messages shown to staff. The dashboard is Indonesian-language.
const (
	MsgRevenueUploaded    = "✅ File berhasil diunggah dan disimpan."
	MsgMaterialsUploaded  = "✅ File berhasil diunggah dan diproses."
	MsgUploadFailed       = "❌ Upload gagal. Periksa server atau file."
	MsgChooseFile         = "Pilih file terlebih dahulu"
	MsgChooseBonusFile    = "Pilih file Excel terlebih dahulu (.xlsx)"
	MsgBonusFailed        = "Gagal memproses file bonus."
	MsgBonusLoadFailed    = "Gagal memuat data bonus."
	MsgFillAllFields      = "Isi semua field terlebih dahulu."
	MsgSaveFailed         = "Gagal menyimpan data."
	MsgDeleteFailed       = "Gagal menghapus data."
	MsgLoadFailed         = "Gagal memuat data."
	MsgLoginFailed        = "Login gagal. Coba lagi."
	MsgUnsupportedFile    = "Format file harus .xlsx atau .xls"
	spreadsheetExtensions = ".xlsx,.xls"
)

// Rupiah formats n as "Rp 1.234.000".
func Rupiah(n int64) string {
	return "Rp " + humanize.FormatInteger("#.###,", int(n))
}

// Number formats n with "." thousands separators.
func Number(n int64) string {
	return humanize.FormatInteger("#.###,", int(n))
}

// FileSize formats a byte count for the upload card.
func FileSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Accept is the file input accept attribute for spreadsheet uploads.
func Accept() string {
	return spreadsheetExtensions
}

// IsSpreadsheet reports whether filename has an accepted extension.
func IsSpreadsheet(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, ok := range strings.Split(spreadsheetExtensions, ",") {
		if ext == ok {
			return true
		}
	}
	return false
}

// Funcs are the template helpers available to every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"rupiah":   Rupiah,
		"number":   Number,
		"filesize": FileSize,
		"accept":   Accept,
	}
}
