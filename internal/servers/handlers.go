package servers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/captcha"
	"github.com/BlockBoard/BB-Backend/internal/config"
	"github.com/BlockBoard/BB-Backend/internal/httputil"
	"github.com/BlockBoard/BB-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// Advertised addresses must be websocket endpoints; the handshake dials
// them directly.
var validAddress = regexp.MustCompile(`^wss?://([0-9]{1,3}(?:\.[0-9]{1,3}){3}|[^/]+)`)

const (
	msgServerNotFound = "A server with that UUID could not be found."
	msgMissingBody    = "Request did not contain a body."
)

// Handler owns the server listing routes. Core components (guard,
// verifier, captcha) are injected; plain reads and writes go through the
// gorm handle directly.
type Handler struct {
	DB       *gorm.DB
	Guard    *VoteGuard
	Verifier *Verifier
	Captcha  *captcha.Verifier
	Cfg      *config.Config

	validate *validator.Validate
}

func NewHandler(db *gorm.DB, guard *VoteGuard, verifier *Verifier, cap *captcha.Verifier, cfg *config.Config) *Handler {
	return &Handler{
		DB:       db,
		Guard:    guard,
		Verifier: verifier,
		Captcha:  cap,
		Cfg:      cfg,
		validate: validator.New(),
	}
}

type ownerInfo struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type commentView struct {
	Content  string    `json:"content"`
	PostedAt time.Time `json:"posted_at"`
	Poster   ownerInfo `json:"poster"`
}

type listEntry struct {
	UUID     string    `json:"uuid"`
	Name     string    `json:"name"`
	Verified bool      `json:"verified"`
	Approved bool      `json:"approved"`
	Address  string    `json:"address"`
	Votes    int       `json:"votes"`
	Tags     []string  `json:"tags"`
	User     ownerInfo `json:"user"`
}

// ListHandler returns the public listing: verified, non-disabled servers
// ordered by votes.
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit := h.Cfg.ListingLimit
	page := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			page = n
		}
	}

	var list []Server
	err := h.DB.
		Where("verified = ? AND disabled = ?", true, false).
		Order("votes DESC").
		Limit(limit).
		Offset(page * limit).
		Find(&list).Error
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	owners, err := h.ownerInfos(list)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	entries := make([]listEntry, 0, len(list))
	for _, s := range list {
		entries = append(entries, listEntry{
			UUID:     s.UUID,
			Name:     s.Name,
			Verified: s.Verified,
			Approved: s.Approved,
			Address:  s.Address,
			Votes:    s.Votes,
			Tags:     s.Tags,
			User:     owners[s.Owner],
		})
	}

	httputil.JSON(w, "Successfully retrieved "+strconv.Itoa(len(entries))+" servers.", entries)
}

// MineHandler returns the caller's non-disabled servers, codes included.
func (h *Handler) MineHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var list []Server
	err := h.DB.Find(&list, "owner = ? AND disabled = ?", user.UUID, false).Error
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully retrieved "+strconv.Itoa(len(list))+" servers.", list)
}

type createRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"required,max=1500"`
	Address     string   `json:"address" validate:"required"`
	Discord     string   `json:"discord" validate:"omitempty,max=10"`
	Tags        []string `json:"tags" validate:"required,min=1"`
}

// CreateHandler registers a new, unverified server for the caller.
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, msgMissingBody))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"The request is missing one or more required fields, or a field is out of range."))
		return
	}
	if !validAddress.MatchString(req.Address) {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"The address specified is invalid."))
		return
	}
	if !tagsValid(req.Tags) {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"Invalid tags specified. Allowed values: "+strings.Join(ValidTags, ", ")))
		return
	}

	var owned []Server
	if err := h.DB.Find(&owned, "owner = ?", user.UUID).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	if len(owned) >= h.Cfg.MaxServersPerUser {
		httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
			"You cannot own more than "+strconv.Itoa(h.Cfg.MaxServersPerUser)+" servers."))
		return
	}
	folded := cases.Fold().String(req.Name)
	for _, s := range owned {
		if cases.Fold().String(s.Name) == folded {
			httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
				"You cannot create two servers with the same name."))
			return
		}
	}

	var existing Server
	err := h.DB.First(&existing, "address = ?", req.Address).Error
	if err == nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
			"A server already exists with this address."))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		httputil.Fail(w, err)
		return
	}

	server := Server{
		UUID:        uuid.NewString(),
		Owner:       user.UUID,
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Discord:     req.Discord,
		Tags:        pq.StringArray(req.Tags),
		Code:        utils.RandomString(10, "0123456789abcdef"),
	}
	if err := h.DB.Create(&server).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
				"A server already exists with this address."))
			return
		}
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, "The server was successfully created.", server)
}

// GetHandler returns a single server for public viewing. Disabled servers,
// and unverified servers seen by anyone but their owner, are reported as
// missing. The secret code survives only for the owner and admins.
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	isOwner := viewer != nil && viewer.UUID == server.Owner
	isAdmin := viewer != nil && viewer.Admin

	if server.Disabled || (!server.Verified && !isOwner) {
		httputil.Fail(w, httputil.Errorf(httputil.KindNotFound, msgServerNotFound))
		return
	}
	if !isOwner && !isAdmin {
		server.Code = ""
	}

	owners, err := h.ownerInfos([]Server{*server})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	comments, err := h.commentViews(server.UUID, 0)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, "Successfully fetched data for this server.", map[string]any{
		"server":   server,
		"user":     owners[server.Owner],
		"comments": comments,
	})
}

// FullHandler returns the complete record: admins see any server, owners
// see their own.
func (h *Handler) FullHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	comments, cerr := h.commentViews(server.UUID, 0)
	if cerr != nil {
		httputil.Fail(w, cerr)
		return
	}
	payload := map[string]any{"server": server, "comments": comments}

	if user.Admin {
		httputil.JSON(w, "Successfully fetched data for this server.", payload)
		return
	}
	if server.Disabled {
		httputil.Fail(w, httputil.Errorf(httputil.KindNotFound, msgServerNotFound))
		return
	}
	if server.Owner != user.UUID {
		httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
			"You do not have permission to view this information."))
		return
	}
	httputil.JSON(w, "Successfully fetched data for this server.", payload)
}

type updateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=1500"`
	Discord     *string  `json:"discord" validate:"omitempty,max=10"`
	Tags        []string `json:"tags"`
}

// UpdateHandler lets the owner (or an admin) change the presentational
// fields. Address, flags, and votes are admin-router territory.
func (h *Handler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, msgMissingBody))
		return
	}
	if req.Name == nil && req.Description == nil && req.Discord == nil && req.Tags == nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"No fields specified that can be updated."))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"One or more fields are out of range."))
		return
	}
	if req.Tags != nil && !tagsValid(req.Tags) {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, "Invalid tags specified."))
		return
	}

	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if server.Disabled {
		httputil.Fail(w, httputil.Errorf(httputil.KindNotFound, msgServerNotFound))
		return
	}
	if server.Owner != user.UUID && !user.Admin {
		httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
			"You do not have permission to update other users' servers."))
		return
	}

	if req.Name != nil && *req.Name != "" {
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
	server.UpdatedAt = time.Now()

	if err := h.DB.Save(server).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully updated server.", server)
}

// DeleteHandler removes a server. Owner or admin only.
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if server.Owner != user.UUID && !user.Admin {
		httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
			"You do not have permission to delete other users' servers."))
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Comment{}, "server_id = ?", server.UUID).Error; err != nil {
			return err
		}
		return tx.Delete(&Server{}, "uuid = ?", server.UUID).Error
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully deleted server.", nil)
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=200"`
	Captcha string `json:"captcha" validate:"required"`
}

// CommentHandler posts a comment on a verified server.
func (h *Handler) CommentHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, msgMissingBody))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"The request was missing one or more required fields, or the comment exceeds 200 characters."))
		return
	}

	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if !server.Verified {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"You may not comment on an unverified server."))
		return
	}

	if err := h.Captcha.Verify(r.Context(), req.Captcha); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, "Invalid CAPTCHA response."))
		return
	}

	comment := Comment{
		ID:       uuid.NewString(),
		Content:  req.Content,
		PosterID: user.UUID,
		ServerID: server.UUID,
		PostedAt: time.Now(),
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, "Comment successfully posted.", commentView{
		Content:  comment.Content,
		PostedAt: comment.PostedAt,
		Poster:   ownerInfo{UUID: user.UUID, Username: user.Username, Avatar: user.Avatar},
	})
}

type voteRequest struct {
	Captcha string `json:"captcha" validate:"required"`
	Value   bool   `json:"value"`
}

// VoteHandler casts a vote through the cooldown guard.
func (h *Handler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, msgMissingBody))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"One or more required fields in the request body were missing."))
		return
	}

	if err := h.Captcha.Verify(r.Context(), req.Captcha); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, "Invalid CAPTCHA response."))
		return
	}

	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if !server.Verified {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"You may not vote for a server that is unverified."))
		return
	}
	if server.Disabled {
		httputil.Fail(w, httputil.Errorf(httputil.KindNotFound, msgServerNotFound))
		return
	}

	votes, err := h.Guard.Cast(user.UUID, server.UUID, req.Value)
	if err != nil {
		if errors.Is(err, ErrCooldownActive) {
			httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
				"You are currently on a vote cooldown."))
			return
		}
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w,
		"Successfully voted for this server. You can vote again in 24 hours.",
		map[string]int{"votes": votes})
}

type verifyRequest struct {
	Captcha string `json:"captcha" validate:"required"`
}

// VerifyHandler runs the ownership handshake and, on success, marks the
// server verified. Every network-layer failure collapses into the same
// try-again answer.
func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"Missing CAPTCHA from request body."))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"Missing CAPTCHA from request body."))
		return
	}
	if err := h.Captcha.Verify(r.Context(), req.Captcha); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid, "Invalid CAPTCHA response."))
		return
	}

	// Precondition failures need no network attempt and are the only
	// distinguishable outcomes.
	server, err := h.findServer(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if server.Verified {
		httputil.Fail(w, httputil.Errorf(httputil.KindConflict,
			"This server has already been verified."))
		return
	}
	if server.Owner != user.UUID && !user.Admin {
		httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
			"You do not have permission to verify this server."))
		return
	}

	if err := h.Verifier.Prove(r.Context(), server.Address, server.Code); err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindTransient,
			"Could not verify server, please try again."))
		return
	}

	if err := h.DB.Model(&Server{}).
		Where("uuid = ?", server.UUID).
		Update("verified", true).Error; err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, "Successfully verified server.", nil)
}

// AnalyticsHandler returns the last 24 hours of player-count and uptime
// samples for the owner dashboard.
func (h *Handler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "uuid")
	since := utils.DaysFromNow(-1)

	var samples []Analytic
	err := h.DB.
		Where("server_id = ? AND created_at >= ?", serverID, since).
		Order("created_at ASC").
		Find(&samples).Error
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if len(samples) == 0 {
		httputil.Fail(w, httputil.Errorf(httputil.KindNotFound,
			"Sorry, this server has no analytics/does not exist. If you just recently created your server, it will show up here in a bit"))
		return
	}

	type playerPoint struct {
		PlayerCount int       `json:"player_count"`
		CreatedAt   time.Time `json:"created_at"`
	}
	type uptimePoint struct {
		Up        int       `json:"up"`
		CreatedAt time.Time `json:"created_at"`
	}

	var players []playerPoint
	var uptime []uptimePoint
	for _, s := range samples {
		switch s.Type {
		case AnalyticPlayerCount:
			n, _ := strconv.Atoi(s.Data)
			players = append(players, playerPoint{PlayerCount: n, CreatedAt: s.CreatedAt})
		case AnalyticUptime:
			up := 0
			if s.Data == "true" {
				up = 1
			}
			uptime = append(uptime, uptimePoint{Up: up, CreatedAt: s.CreatedAt})
		}
	}

	httputil.JSON(w, "Successfully retrieved analytics for the last 24 hours.", map[string]any{
		"player_count": players,
		"uptime":       uptime,
	})
}

// findServer loads a server or reports the uniform not-found failure.
func (h *Handler) findServer(id string) (*Server, error) {
	var server Server
	err := h.DB.First(&server, "uuid = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, httputil.Errorf(httputil.KindNotFound, msgServerNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// ownerInfos loads the public identity of each distinct owner.
func (h *Handler) ownerInfos(list []Server) (map[string]ownerInfo, error) {
	ids := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if _, ok := seen[s.Owner]; !ok {
			seen[s.Owner] = struct{}{}
			ids = append(ids, s.Owner)
		}
	}
	result := make(map[string]ownerInfo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []auth.User
	if err := h.DB.Find(&users, "uuid IN ?", ids).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.UUID] = ownerInfo{UUID: u.UUID, Username: u.Username, Avatar: u.Avatar}
	}
	return result, nil
}

// commentViews loads a server's comments, newest first. limit <= 0 means
// all of them.
func (h *Handler) commentViews(serverID string, limit int) ([]commentView, error) {
	q := h.DB.Where("server_id = ?", serverID).Order("posted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var comments []Comment
	if err := q.Find(&comments).Error; err != nil {
		return nil, err
	}

	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		var poster auth.User
		if err := h.DB.First(&poster, "uuid = ?", c.PosterID).Error; err != nil {
			continue
		}
		views = append(views, commentView{
			Content:  c.Content,
			PostedAt: c.PostedAt,
			Poster:   ownerInfo{UUID: poster.UUID, Username: poster.Username, Avatar: poster.Avatar},
		})
	}
	return views, nil
}

func tagsValid(tags []string) bool {
	for _, tag := range tags {
		found := false
		for _, valid := range ValidTags {
			if tag == valid {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
