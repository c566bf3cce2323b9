package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/config"
	"github.com/BlockBoard/BB-Backend/internal/discord"
	"github.com/BlockBoard/BB-Backend/internal/httputil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Handler owns the login/logout flow. The credential store and the Discord
// client are injected so tests can swap them out.
type Handler struct {
	Store   *GormStore
	Discord *discord.Client
	Cfg     *config.Config
}

func NewHandler(store *GormStore, dc *discord.Client, cfg *config.Config) *Handler {
	return &Handler{Store: store, Discord: dc, Cfg: cfg}
}

// LoginHandler completes the OAuth flow: exchange the authorization code,
// fetch the Discord identity, upsert the user, then extend or create their
// session and hand back the cookie. Re-authentication extends the existing
// session token rather than issuing a second one.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	// Already holding a live session? Nothing to do.
	if token := sessionToken(r); token != "" {
		if session, err := h.Store.FindSessionByToken(token); err == nil && session != nil {
			http.Redirect(w, r, h.Cfg.FrontendURI, http.StatusFound)
			return
		}
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Fail(w, httputil.Errorf(httputil.KindInvalid,
			"Missing query parameter 'code' in request."))
		return
	}

	if h.Cfg.Development() && h.bypassMatches(code) {
		h.bypassLogin(w, r)
		return
	}

	token, err := h.Discord.ExchangeCode(r.Context(), code)
	if err != nil {
		httputil.Fail(w, httputil.Errorf(httputil.KindUnauthenticated,
			"Invalid OAuth code provided."))
		return
	}

	identity, err := h.Discord.FetchIdentity(r.Context(), token)
	if err != nil {
		if errors.Is(err, discord.ErrBadCode) {
			httputil.Fail(w, httputil.Errorf(httputil.KindUnauthenticated,
				"Invalid OAuth code provided."))
			return
		}
		httputil.Fail(w, err)
		return
	}

	user, err := h.upsertUser(identity)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	if user.Banned {
		httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
			"Your account is banned from the server list. Reason: "+user.BanReason))
		return
	}

	if err := h.issueSession(w, user.UUID); err != nil {
		httputil.Fail(w, err)
		return
	}
	http.Redirect(w, r, h.Cfg.FrontendURI, http.StatusFound)
}

// LogoutHandler destroys the caller's session. Runs behind RequireUser, so
// the session is always present in context.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		httputil.Fail(w, httputil.Errorf(httputil.KindUnauthenticated,
			"An invalid session was provided."))
		return
	}

	if err := h.Store.DeleteSession(session.SessionToken); err != nil {
		httputil.Fail(w, err)
		return
	}

	cleared := h.sessionCookie("", time.Unix(0, 0))
	cleared.MaxAge = -1
	http.SetCookie(w, cleared)

	httputil.JSON(w, "Successfully logged out.", nil)
}

// upsertUser finds the user by Discord ID, creating them on first login and
// re-syncing username/avatar when Discord reports a change.
func (h *Handler) upsertUser(identity *discord.Identity) (*User, error) {
	var user User
	err := h.Store.DB.First(&user, "discord_id = ?", identity.ID).Error
	if err != nil {
		user = User{
			UUID:      uuid.NewString(),
			DiscordID: identity.ID,
			Username:  identity.Username,
			Avatar:    identity.AvatarURL(),
		}
		if err := h.Store.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}

	if user.Username != identity.Username || user.Avatar != identity.AvatarURL() {
		user.Username = identity.Username
		user.Avatar = identity.AvatarURL()
		if err := h.Store.DB.Save(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// issueSession extends the user's existing session or creates a fresh one,
// then sets the cookie.
func (h *Handler) issueSession(w http.ResponseWriter, userID string) error {
	expiresAt := time.Now().Add(SessionTTL)

	session, err := h.Store.FindSessionByUser(userID)
	if err != nil {
		return err
	}
	if session != nil {
		if err := h.Store.UpdateSessionExpiry(session.SessionToken, expiresAt); err != nil {
			return err
		}
		http.SetCookie(w, h.sessionCookie(session.SessionToken, expiresAt))
		return nil
	}

	session, err = h.Store.CreateSession(userID, expiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, h.sessionCookie(session.SessionToken, expiresAt))
	return nil
}

func (h *Handler) bypassMatches(code string) bool {
	if h.Cfg.DevBypassHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.Cfg.DevBypassHash), []byte(code)) == nil
}

// bypassLogin signs in a seeded local account without touching Discord.
// Development only.
func (h *Handler) bypassLogin(w http.ResponseWriter, r *http.Request) {
	var user User
	err := h.Store.DB.First(&user, "discord_id = ?", "0").Error
	if err != nil {
		user = User{
			UUID:      uuid.NewString(),
			DiscordID: "0",
			Username:  "LocalDev",
			Avatar:    "https://duckduckgo.com/i/f49ef561.png",
		}
		if err := h.Store.DB.Create(&user).Error; err != nil {
			httputil.Fail(w, err)
			return
		}
	}

	if err := h.issueSession(w, user.UUID); err != nil {
		httputil.Fail(w, err)
		return
	}
	log.Warn().Str("user", user.UUID).Msg("dev bypass login used")
	httputil.JSON(w, "Applied debug session", nil)
}

func (h *Handler) sessionCookie(token string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     "session",
		Value:    token,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode,
		Domain:   h.Cfg.CookieDomain,
	}
	if !h.Cfg.CookieSecure {
		// SameSite=None requires Secure; fall back for plain-HTTP dev.
		cookie.SameSite = http.SameSiteLaxMode
	}
	return cookie
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie("session")
	if err != nil {
		return ""
	}
	return cookie.Value
}
