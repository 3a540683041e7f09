package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/dukerupert/laundrydash/internal/auth"
	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/request"
	"github.com/dukerupert/laundrydash/internal/view"
)

const (
	viewRevenue      = "hitung-pendapatan"
	viewMaterials    = "hitung-bahanbaku-artha"
	viewBonus        = "hitung-bonus"
	viewServiceTypes = "tipe-layanan"

	maxUploadSize = 32 << 20
)

// errLoadBonus marks a bonus upload that went through but whose list could
// not be fetched afterwards.
var errLoadBonus = errors.New("load bonus list")

type DashboardHandler struct {
	backend  *laundry.Client
	trackers *request.Registry
	render   *Renderer
	logger   *slog.Logger
}

func NewDashboardHandler(backend *laundry.Client, trackers *request.Registry, rd *Renderer, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		backend:  backend,
		trackers: trackers,
		render:   rd,
		logger:   logger,
	}
}

func tracker[T any](reg *request.Registry, r *http.Request, view string) *request.Tracker[T] {
	return request.For[T](reg, auth.SessionToken(r.Context()), view)
}

// detached keeps the request's values but not its cancellation; a started
// backend call runs to completion even if the browser goes away.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.render.Render(w, http.StatusOK, "home", page{
		Title: "Laundry Dashboard",
		User:  auth.User(r.Context()),
	})
}

// uploadPage describes one of the upload views.
type uploadPage struct {
	name    string
	title   string
	heading string
	action  string
}

var (
	revenuePage = uploadPage{
		name: "revenue", action: "/hitung-pendapatan",
		title: "Hitung Pendapatan", heading: "Hitung Pendapatan Laundry",
	}
	materialsPage = uploadPage{
		name: "materials", action: "/hitung-bahanbaku-artha",
		title: "Hitung Bahan Baku Artha", heading: "Hitung Bahan Baku Artha",
	}
	bonusPage = uploadPage{
		name: "bonus", action: "/hitung-bonus",
		title: "Hitung Bonus", heading: "Hitung Bonus Karyawan",
	}
)

func (h *DashboardHandler) renderUpload(w http.ResponseWriter, r *http.Request, status int, up uploadPage, p page) {
	p.Title = up.title + " - Laundry Dashboard"
	p.User = auth.User(r.Context())
	p.Heading = up.heading
	p.Action = up.action
	h.render.Render(w, status, up.name, p)
}

// readUpload returns the "file" form field, or the message to show instead.
func (h *DashboardHandler) readUpload(w http.ResponseWriter, r *http.Request, missing string) (multipart.File, *uploadInfo, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, view.MsgUploadFailed
		}
		return nil, nil, missing
	}
	if header.Size == 0 {
		file.Close()
		return nil, nil, missing
	}
	if !view.IsSpreadsheet(header.Filename) {
		file.Close()
		return nil, nil, view.MsgUnsupportedFile
	}
	return file, &uploadInfo{Name: header.Filename, Size: header.Size}, ""
}

func outcomeStatus(started, failed bool) int {
	switch {
	case !started:
		return http.StatusConflict
	case failed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (h *DashboardHandler) RevenuePage(w http.ResponseWriter, r *http.Request) {
	st := tracker[*model.Totals](h.trackers, r, viewRevenue).State()
	h.renderUpload(w, r, http.StatusOK, revenuePage, revenueView(st, nil))
}

func revenueView(st request.State[*model.Totals], up *uploadInfo) page {
	p := page{Pending: st.IsPending(), Upload: up}
	switch st.Status {
	case request.Succeeded:
		p.Message = view.MsgRevenueUploaded
		p.Data = st.Data
	case request.Failed:
		p.Message, p.Error = view.MsgUploadFailed, true
	}
	return p
}

// UploadRevenue sends the spreadsheet to the backend and then fetches the
// recomputed totals.
func (h *DashboardHandler) UploadRevenue(w http.ResponseWriter, r *http.Request) {
	tr := tracker[*model.Totals](h.trackers, r, viewRevenue)
	file, up, msg := h.readUpload(w, r, view.MsgChooseFile)
	if msg != "" {
		h.renderUpload(w, r, http.StatusBadRequest, revenuePage, page{Pending: tr.State().IsPending(), Message: msg, Error: true})
		return
	}
	defer file.Close()

	st, started := tr.Run(detached(r), func(ctx context.Context) (*model.Totals, error) {
		if _, err := h.backend.UploadRevenue(ctx, up.Name, file); err != nil {
			return nil, err
		}
		return h.backend.Totals(ctx)
	})
	if !started {
		h.logger.Info("upload already in progress", "view", viewRevenue)
	}
	if st.Status == request.Failed {
		h.logger.Error("revenue upload", "file", up.Name, "error", st.Err)
	}
	h.renderUpload(w, r, outcomeStatus(started, st.Status == request.Failed), revenuePage, revenueView(st, up))
}

func (h *DashboardHandler) MaterialsPage(w http.ResponseWriter, r *http.Request) {
	st := tracker[*model.MaterialSummary](h.trackers, r, viewMaterials).State()
	h.renderUpload(w, r, http.StatusOK, materialsPage, materialsView(st, nil))
}

func materialsView(st request.State[*model.MaterialSummary], up *uploadInfo) page {
	p := page{Pending: st.IsPending(), Upload: up}
	switch st.Status {
	case request.Succeeded:
		p.Message = view.MsgMaterialsUploaded
		p.Data = st.Data
	case request.Failed:
		p.Message, p.Error = view.MsgUploadFailed, true
	}
	return p
}

// UploadMaterials sends a transaction spreadsheet and shows the raw-material summary.
func (h *DashboardHandler) UploadMaterials(w http.ResponseWriter, r *http.Request) {
	tr := tracker[*model.MaterialSummary](h.trackers, r, viewMaterials)
	file, up, msg := h.readUpload(w, r, view.MsgChooseFile)
	if msg != "" {
		h.renderUpload(w, r, http.StatusBadRequest, materialsPage, page{Pending: tr.State().IsPending(), Message: msg, Error: true})
		return
	}
	defer file.Close()

	st, started := tr.Run(detached(r), func(ctx context.Context) (*model.MaterialSummary, error) {
		return h.backend.UploadTransactions(ctx, up.Name, file)
	})
	if !started {
		h.logger.Info("upload already in progress", "view", viewMaterials)
	}
	if st.Status == request.Failed {
		h.logger.Error("transaction upload", "file", up.Name, "error", st.Err)
	}
	h.renderUpload(w, r, outcomeStatus(started, st.Status == request.Failed), materialsPage, materialsView(st, up))
}

func (h *DashboardHandler) BonusPage(w http.ResponseWriter, r *http.Request) {
	st := tracker[model.BonusList](h.trackers, r, viewBonus).State()
	h.renderUpload(w, r, http.StatusOK, bonusPage, bonusView(st, nil))
}

func bonusView(st request.State[model.BonusList], up *uploadInfo) page {
	p := page{Pending: st.IsPending(), Upload: up}
	switch st.Status {
	case request.Succeeded:
		p.Data = st.Data
	case request.Failed:
		p.Error = true
		p.Message = view.MsgBonusFailed
		if errors.Is(st.Err, errLoadBonus) {
			p.Message = view.MsgBonusLoadFailed
		}
	}
	return p
}

// UploadBonus sends the bonus spreadsheet and then refetches the bonus list.
func (h *DashboardHandler) UploadBonus(w http.ResponseWriter, r *http.Request) {
	tr := tracker[model.BonusList](h.trackers, r, viewBonus)
	file, up, msg := h.readUpload(w, r, view.MsgChooseBonusFile)
	if msg != "" {
		h.renderUpload(w, r, http.StatusBadRequest, bonusPage, page{Pending: tr.State().IsPending(), Message: msg, Error: true})
		return
	}
	defer file.Close()

	st, started := tr.Run(detached(r), func(ctx context.Context) (model.BonusList, error) {
		if _, err := h.backend.UploadBonus(ctx, up.Name, file); err != nil {
			return nil, err
		}
		list, err := h.backend.BonusList(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errLoadBonus, err)
		}
		return list, nil
	})
	if !started {
		h.logger.Info("upload already in progress", "view", viewBonus)
	}
	if st.Status == request.Failed {
		h.logger.Error("bonus upload", "file", up.Name, "error", st.Err)
	}
	h.renderUpload(w, r, outcomeStatus(started, st.Status == request.Failed), bonusPage, bonusView(st, up))
}
