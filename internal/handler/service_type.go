package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/laundrydash/internal/auth"
	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/request"
	"github.com/dukerupert/laundrydash/internal/view"
	"github.com/dukerupert/laundrydash/internal/websocket"
)

const serviceTypeEntity = "service_type"

type serviceTypesData struct {
	Types   []model.ServiceType
	Editing *model.ServiceType
}

type ServiceTypeHandler struct {
	backend  *laundry.Client
	trackers *request.Registry
	hub      *websocket.Hub
	render   *Renderer
	logger   *slog.Logger
}

func NewServiceTypeHandler(backend *laundry.Client, trackers *request.Registry, hub *websocket.Hub, rd *Renderer, logger *slog.Logger) *ServiceTypeHandler {
	return &ServiceTypeHandler{
		backend:  backend,
		trackers: trackers,
		hub:      hub,
		render:   rd,
		logger:   logger,
	}
}

func (h *ServiceTypeHandler) mutations(r *http.Request) *request.Tracker[struct{}] {
	return tracker[struct{}](h.trackers, r, viewServiceTypes)
}

// List shows every service type. ?edit=<id> loads one into the form.
func (h *ServiceTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	p := page{Pending: h.mutations(r).State().IsPending()}
	data := serviceTypesData{}

	types, err := h.backend.ListServiceTypes(r.Context())
	if err != nil {
		h.logger.Error("list service types", "error", err)
		p.Message, p.Error = view.MsgLoadFailed, true
		h.renderList(w, r, http.StatusBadGateway, p, data)
		return
	}
	data.Types = types

	if id := r.URL.Query().Get("edit"); id != "" {
		for i := range types {
			if types[i].ID == id {
				editing := types[i]
				data.Editing = &editing
				break
			}
		}
	}
	h.renderList(w, r, http.StatusOK, p, data)
}

// Save creates a service type, or updates it when the form carries an id.
func (h *ServiceTypeHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, view.MsgFillAllFields, nil)
		return
	}

	st := model.ServiceType{
		ID:          strings.TrimSpace(r.PostFormValue("id")),
		ServiceName: strings.TrimSpace(r.PostFormValue("nama_layanan")),
	}
	price, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("harga_bonus")), 10, 64)
	if st.ServiceName == "" || err != nil {
		h.fail(w, r, http.StatusBadRequest, view.MsgFillAllFields, &st)
		return
	}
	st.BonusPrice = price

	action := "created"
	if st.ID != "" {
		action = "updated"
	}

	res, started := h.mutations(r).Run(detached(r), func(ctx context.Context) (struct{}, error) {
		if st.ID != "" {
			return struct{}{}, h.backend.UpdateServiceType(ctx, st)
		}
		return struct{}{}, h.backend.CreateServiceType(ctx, st)
	})
	if !started {
		h.logger.Info("service type change already in progress")
		http.Redirect(w, r, "/tipe-layanan", http.StatusSeeOther)
		return
	}
	if res.Status == request.Failed {
		h.logger.Error("save service type", "id", st.ID, "error", res.Err)
		h.fail(w, r, http.StatusBadGateway, view.MsgSaveFailed, &st)
		return
	}

	h.hub.Broadcast(websocket.NewMessage(serviceTypeEntity, action, st.ID))
	http.Redirect(w, r, "/tipe-layanan", http.StatusSeeOther)
}

func (h *ServiceTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, started := h.mutations(r).Run(detached(r), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.backend.DeleteServiceType(ctx, id)
	})
	if !started {
		h.logger.Info("service type change already in progress")
		http.Redirect(w, r, "/tipe-layanan", http.StatusSeeOther)
		return
	}
	if res.Status == request.Failed {
		h.logger.Error("delete service type", "id", id, "error", res.Err)
		h.fail(w, r, http.StatusBadGateway, view.MsgDeleteFailed, nil)
		return
	}

	h.hub.Broadcast(websocket.NewMessage(serviceTypeEntity, "deleted", id))
	http.Redirect(w, r, "/tipe-layanan", http.StatusSeeOther)
}

// fail re-renders the list with msg, keeping the submitted form values.
func (h *ServiceTypeHandler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, form *model.ServiceType) {
	data := serviceTypesData{Editing: form}
	types, err := h.backend.ListServiceTypes(r.Context())
	if err != nil {
		h.logger.Error("list service types", "error", err)
	}
	data.Types = types
	h.renderList(w, r, status, page{Message: msg, Error: true}, data)
}

func (h *ServiceTypeHandler) renderList(w http.ResponseWriter, r *http.Request, status int, p page, data serviceTypesData) {
	p.Title = "Tipe Layanan - Laundry Dashboard"
	p.User = auth.User(r.Context())
	p.Data = data
	h.render.Render(w, status, "service_types", p)
}
