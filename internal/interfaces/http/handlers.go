package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	adaptermiddleware "consent-console/internal/adapters/http/middleware"
	"consent-console/internal/application"
	"consent-console/internal/domain"
	"consent-console/internal/ports"
)

const (
	maxWait             = 30 * time.Second
	defaultHistoryLimit = 20

	headerAcceptLanguage = "Accept-Language"
)

func handleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(stdhttp.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrLoading),
		errors.Is(err, domain.ErrNoPendingRemoval),
		errors.Is(err, domain.ErrInactive):
		return c.JSON(stdhttp.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Account describes where the account API of the realm lives.
type Account struct {
	ServerBaseURL string
	Realm         string
}

type ApplicationsHandler struct {
	sessions *application.Sessions
	localize func(locale string) ports.Localizer
	account  Account
	history  ports.AlertHistory
	logger   ports.Logger
}

// NewApplicationsHandler serves the per-user Applications view. history may
// be nil when no alert history is configured.
func NewApplicationsHandler(sessions *application.Sessions, localize func(string) ports.Localizer, account Account, history ports.AlertHistory, logger ports.Logger) *ApplicationsHandler {
	return &ApplicationsHandler{sessions: sessions, localize: localize, account: account, history: history, logger: logger}
}

func (h *ApplicationsHandler) localizer(c echo.Context) ports.Localizer {
	return h.localize(c.Request().Header.Get(headerAcceptLanguage))
}

// sessionKey identifies the caller's view. Identities the console did not
// verify itself are bound to their token, so a session is only ever served
// to the credential the account server accepted for it.
func sessionKey(c echo.Context) (application.SessionKey, error) {
	user := adaptermiddleware.UserID(c)
	if user == "" {
		return application.SessionKey{}, domain.ErrUnauthorized
	}
	key := application.SessionKey{UserID: user}
	if !adaptermiddleware.Verified(c) {
		sum := sha256.Sum256([]byte(adaptermiddleware.AccessToken(c)))
		key.Credential = hex.EncodeToString(sum[:])
	}
	return key, nil
}

// clientID returns the decoded client_id path parameter. Client ids are
// frequently URLs and arrive percent-encoded.
func clientID(c echo.Context) (string, error) {
	id, err := url.PathUnescape(c.Param("client_id"))
	if err != nil {
		return "", fmt.Errorf("client id %q: %w", c.Param("client_id"), domain.ErrInvalidInput)
	}
	return id, nil
}

// session mounts the caller's view if needed and refreshes its credentials.
func (h *ApplicationsHandler) session(c echo.Context) (*application.Session, ports.Localizer, error) {
	key, err := sessionKey(c)
	if err != nil {
		return nil, nil, err
	}
	l := h.localizer(c)
	env := domain.Environment{
		ServerBaseURL: h.account.ServerBaseURL,
		Realm:         h.account.Realm,
		Locale:        l.Locale(),
		Token: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: adaptermiddleware.AccessToken(c),
			TokenType:   "Bearer",
		}),
	}
	return h.sessions.Open(key, env), l, nil
}

func (h *ApplicationsHandler) page(c echo.Context, status int, sess *application.Session, l ports.Localizer) error {
	return c.JSON(status, application.Render(sess.View.State(), l))
}

func (h *ApplicationsHandler) Health(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Len()})
}

func (h *ApplicationsHandler) List(c echo.Context) error {
	sess, l, err := h.session(c)
	if err != nil {
		return handleError(c, err)
	}
	if raw := c.QueryParam("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid wait duration"})
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), min(wait, maxWait))
		defer cancel()
		if _, err := sess.View.WaitSettled(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return handleError(c, err)
		}
	}
	return h.page(c, stdhttp.StatusOK, sess, l)
}

func (h *ApplicationsHandler) Refresh(c echo.Context) error {
	sess, l, err := h.session(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := sess.View.Retry(); err != nil {
		return handleError(c, err)
	}
	return h.page(c, stdhttp.StatusAccepted, sess, l)
}

func (h *ApplicationsHandler) Toggle(c echo.Context) error {
	sess, l, err := h.session(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := clientID(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := sess.View.Toggle(id); err != nil {
		return handleError(c, err)
	}
	return h.page(c, stdhttp.StatusOK, sess, l)
}

func (h *ApplicationsHandler) RequestRemoval(c echo.Context) error {
	sess, l, err := h.session(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := clientID(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := sess.View.RequestRemoval(id); err != nil {
		return handleError(c, err)
	}
	return h.page(c, stdhttp.StatusOK, sess, l)
}

func (h *ApplicationsHandler) CancelRemoval(c echo.Context) error {
	sess, l, err := h.session(c)
	if err != nil {
		return handleError(c, err)
	}
	sess.View.CancelRemoval()
	return h.page(c, stdhttp.StatusOK, sess, l)
}

func (h *ApplicationsHandler) ConfirmRemoval(c echo.Context) error {
	sess, l, err := h.session(c)
	if err != nil {
		return handleError(c, err)
	}
	err = sess.View.ConfirmRemoval(c.Request().Context())
	switch {
	case err == nil:
		return h.page(c, stdhttp.StatusOK, sess, l)
	case errors.Is(err, domain.ErrNoPendingRemoval):
		return handleError(c, err)
	default:
		// The view has already turned the failure into an alert.
		return c.JSON(stdhttp.StatusBadGateway, map[string]any{
			"error": err.Error(),
			"page":  application.Render(sess.View.State(), l),
		})
	}
}

func (h *ApplicationsHandler) Unmount(c echo.Context) error {
	key, err := sessionKey(c)
	if err != nil {
		return handleError(c, err)
	}
	if h.sessions.Close(key) {
		h.logger.Debug(c.Request().Context(), "applications view unmounted", "user_id", key.UserID)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *ApplicationsHandler) Alerts(c echo.Context) error {
	key, err := sessionKey(c)
	if err != nil {
		return handleError(c, err)
	}
	alerts := []domain.Alert{}
	if sess, ok := h.sessions.Get(key); ok {
		alerts = sess.Alerts.Drain()
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"alerts": alerts})
}

func (h *ApplicationsHandler) AlertHistory(c echo.Context) error {
	key, err := sessionKey(c)
	if err != nil {
		return handleError(c, err)
	}
	user := key.UserID
	if h.history == nil {
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": "alert history is not configured"})
	}
	if key.Credential != "" {
		if err := h.accepted(c); err != nil {
			return handleError(c, err)
		}
	}
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}
	alerts, err := h.history.ListRecent(c.Request().Context(), user, limit)
	if err != nil {
		h.logger.Error(c.Request().Context(), "failed to list alert history", "user_id", user, "error", err)
		return handleError(c, err)
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"alerts": alerts})
}

// accepted succeeds once the account server has served the caller's view
// with the caller's token.
func (h *ApplicationsHandler) accepted(c echo.Context) error {
	sess, _, err := h.session(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), maxWait)
	defer cancel()
	state, err := sess.View.WaitSettled(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !state.Loaded {
		return domain.ErrUnauthorized
	}
	return nil
}
