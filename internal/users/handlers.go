package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/httputil"
	"github.com/BlockBoard/BB-Backend/internal/servers"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const msgUserNotFound = "A user with that UUID could not be found."

type Handler struct {
	DB *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{DB: db}
}

// MeHandler echoes the authenticated user.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	httputil.JSON(w, "", user)
}

type profileServer struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Votes     int       `json:"votes"`
	Disabled  bool      `json:"disabled"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

type profileComment struct {
	Content  string    `json:"content"`
	PostedAt time.Time `json:"posted_at"`
	Server   struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"server"`
}

// ProfileHandler returns a user's public page: identity, their visible
// servers, and their ten most recent comments on non-disabled servers.
func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	var owned []servers.Server
	if err := h.DB.Find(&owned, "owner = ? AND disabled = ?", user.UUID, false).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	visible := make([]profileServer, 0, len(owned))
	for _, s := range owned {
		visible = append(visible, profileServer{
			UUID:      s.UUID,
			Name:      s.Name,
			Address:   s.Address,
			Votes:     s.Votes,
			Disabled:  s.Disabled,
			Verified:  s.Verified,
			CreatedAt: s.CreatedAt,
		})
	}

	comments, err := h.recentComments(user.UUID, 10)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, "Successfully grabbed data for that user.", map[string]any{
		"uuid":     user.UUID,
		"username": user.Username,
		"avatar":   user.Avatar,
		"servers":  visible,
		"comments": comments,
	})
}

// FullHandler is the admin view: the complete user record and every
// server they own, disabled ones included.
func (h *Handler) FullHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	var owned []servers.Server
	if err := h.DB.Find(&owned, "owner = ?", user.UUID).Error; err != nil {
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, "Successfully fetched data for that user.", map[string]any{
		"user":    user,
		"servers": owned,
	})
}

// DeleteHandler removes a user account. Admin accounts are immune.
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if user.Admin {
		httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
			"Admin accounts cannot be deleted via this endpoint."))
		return
	}

	if err := h.DB.Delete(&auth.User{}, "uuid = ?", user.UUID).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully deleted that user.", nil)
}

type banRequest struct {
	Reason string `json:"reason"`
}

// BanHandler bans a user and cascades: their sessions die, their servers
// go dark, and their comments are removed. All one transaction.
func (h *Handler) BanHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if user.Admin {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"You cannot ban this user, as this user is an admin."))
		return
	}
	if user.Banned {
		httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
			"You cannot ban a user who is already banned."))
		return
	}

	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		req.Reason = "No reason specified."
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&auth.User{}).Where("uuid = ?", user.UUID).
			Updates(map[string]any{
				"banned":     true,
				"ban_reason": req.Reason,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&auth.Session{}, "user_id = ?", user.UUID).Error; err != nil {
			return err
		}
		if err := tx.Model(&servers.Server{}).Where("owner = ?", user.UUID).
			Updates(map[string]any{
				"disabled":   true,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Delete(&servers.Comment{}, "poster_id = ?", user.UUID).Error
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "This user has successfully been banned.", nil)
}

// UnbanHandler lifts a ban and re-enables the user's servers.
func (h *Handler) UnbanHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if !user.Banned {
		httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
			"This user is not banned."))
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&auth.User{}).Where("uuid = ?", user.UUID).
			Updates(map[string]any{
				"banned":     false,
				"ban_reason": "",
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&servers.Server{}).Where("owner = ?", user.UUID).
			Update("disabled", false).Error
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "This user has successfully been unbanned.", nil)
}

func (h *Handler) findUser(id string) (*auth.User, error) {
	var user auth.User
	err := h.DB.First(&user, "uuid = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, httputil.Errorf(httputil.KindNotFound, msgUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// recentComments pulls the user's latest comments, skipping any on
// disabled servers.
func (h *Handler) recentComments(userID string, limit int) ([]profileComment, error) {
	var comments []servers.Comment
	err := h.DB.
		Where("poster_id = ?", userID).
		Order("posted_at DESC").
		Limit(limit * 2). // headroom for disabled-server filtering
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	views := make([]profileComment, 0, limit)
	for _, c := range comments {
		if len(views) == limit {
			break
		}
		var server servers.Server
		if err := h.DB.First(&server, "uuid = ?", c.ServerID).Error; err != nil {
			continue
		}
		if server.Disabled {
			continue
		}
		view := profileComment{Content: c.Content, PostedAt: c.PostedAt}
		view.Server.UUID = server.UUID
		view.Server.Name = server.Name
		views = append(views, view)
	}
	return views, nil
}
