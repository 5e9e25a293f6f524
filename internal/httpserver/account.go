package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront/internal/service/account"
	"storefront/internal/session"
)

const loginPath = "/account/login"

func (h *handlers) loginPage(c *gin.Context) {
	if _, ok := stateOf(c).Get(session.CustomerTokenKey); ok {
		c.Redirect(http.StatusSeeOther, "/account")
		return
	}
	render(c, http.StatusOK, "login", "Sign in", nil)
}

func (h *handlers) login(c *gin.Context) {
	email := c.PostForm("email")
	tok, err := h.deps.Accounts.Login(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		_ = c.Error(err)
		msg := "Incorrect email or password."
		status := http.StatusUnauthorized
		if !errors.Is(err, account.ErrInvalidCredentials) {
			msg = "Sign-in is unavailable right now. Please try again."
			status = statusFor(err)
		}
		c.HTML(status, "login", page{Title: "Sign in", Error: msg, Data: email})
		return
	}
	stateOf(c).SetWithMaxAge(session.CustomerTokenKey, tok.Token, h.deps.Accounts.SessionMaxAge(tok))
	c.Redirect(http.StatusSeeOther, "/account")
}

func (h *handlers) registerPage(c *gin.Context) {
	render(c, http.StatusOK, "register", "Create an account", nil)
}

func (h *handlers) register(c *gin.Context) {
	var in account.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		_ = c.Error(err)
		c.HTML(http.StatusBadRequest, "register", page{Title: "Create an account", Error: "Please check the form and try again."})
		return
	}
	tok, err := h.deps.Accounts.Register(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		in.Password = ""
		c.HTML(statusFor(err), "register", page{Title: "Create an account", Error: publicMessage(err), Data: in})
		return
	}
	stateOf(c).SetWithMaxAge(session.CustomerTokenKey, tok.Token, h.deps.Accounts.SessionMaxAge(tok))
	c.Redirect(http.StatusSeeOther, "/account")
}

// account shows the dashboard. A missing or rejected token clears the cookie
// and sends the shopper to sign in.
func (h *handlers) account(c *gin.Context) {
	store := stateOf(c)
	token, _ := store.Get(session.CustomerTokenKey)
	customer, err := h.deps.Accounts.Dashboard(c.Request.Context(), token)
	if errors.Is(err, account.ErrInvalidToken) {
		store.Delete(session.CustomerTokenKey)
		c.Redirect(http.StatusSeeOther, loginPath)
		return
	}
	if err != nil {
		failPage(c, err)
		return
	}
	render(c, http.StatusOK, "account", "Your account", customer)
}

func (h *handlers) logout(c *gin.Context) {
	store := stateOf(c)
	if token, ok := store.Get(session.CustomerTokenKey); ok {
		h.deps.Accounts.Logout(c.Request.Context(), token)
	}
	store.Delete(session.CustomerTokenKey)
	c.Redirect(http.StatusSeeOther, "/")
}
