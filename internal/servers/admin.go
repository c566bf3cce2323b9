package servers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type adminUpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=1500"`
	Address     *string  `json:"address"`
	Votes       *int     `json:"votes"`
	Discord     *string  `json:"discord" validate:"omitempty,max=10"`
	Tags        []string `json:"tags"`
	Approved    *bool    `json:"approved"`
	Verified    *bool    `json:"verified"`
	Disabled    *bool    `json:"disabled"`
	Owner       *string  `json:"owner"`
}

func (r *adminUpdateRequest) empty() bool {
	return r.Name == nil && r.Description == nil && r.Address == nil &&
		r.Votes == nil && r.Discord == nil && r.Tags == nil &&
		r.Approved == nil && r.Verified == nil && r.Disabled == nil &&
		r.Owner == nil
}

// AdminUpdateHandler is the unrestricted server editor: every field
// including flags, the vote counter, and ownership reassignment.
func (h *Handler) AdminUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, msgMissingBody))
		return
	}
	if req.empty() {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"No fields were specified to update."))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"One or more fields are out of range."))
		return
	}
	if req.Address != nil && !validAddress.MatchString(*req.Address) {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, "Invalid address specified."))
		return
	}
	if req.Tags != nil && !tagsValid(req.Tags) {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, "Invalid tags specified."))
		return
	}

	server, err := h.findServer(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	if req.Address != nil && *req.Address != server.Address {
		var existing Server
		err := h.DB.First(&existing, "address = ?", *req.Address).Error
		if err == nil {
			httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
				"A server with this address already exists."))
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.Fail(w, err)
			return
		}
		server.Address = *req.Address
	}

	if req.Owner != nil {
		var owner auth.User
		err := h.DB.First(&owner, "uuid = ?", *req.Owner).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
				"An invalid owner UUID was specified."))
			return
		}
		if err != nil {
			httputil.Fail(w, err)
			return
		}
		server.Owner = *req.Owner
	}

	if req.Name != nil {
		server.Name = *req.Name
	}
	if req.Description != nil {
		server.Description = *req.Description
	}
	if req.Discord != nil {
		server.Discord = *req.Discord
	}
	if req.Tags != nil {
		server.Tags = pq.StringArray(req.Tags)
	}
	if req.Votes != nil {
		server.Votes = *req.Votes
	}
	if req.Approved != nil {
		server.Approved = *req.Approved
	}
	if req.Verified != nil {
		server.Verified = *req.Verified
	}
	if req.Disabled != nil {
		server.Disabled = *req.Disabled
	}
	server.UpdatedAt = time.Now()

	if err := h.DB.Save(server).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully updated server.", nil)
}

// AdminClearHandler wipes every comment on a server.
func (h *Handler) AdminClearHandler(w http.ResponseWriter, r *http.Request) {
	server, err := h.findServer(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	if err := h.DB.Delete(&Comment{}, "server_id = ?", server.UUID).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully deleted all comments.", nil)
}
