package www

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	return h.getUsername(r) != ""
}

func (h *Handlers) getUsername(r *http.Request) string {
	sess, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	name, _ := sess.Values["username"].(string)
	return name
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin accepts a JSON body or a form post.
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "invalid request", http.StatusBadRequest)
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	web := h.engine.AppConfig().Web
	if web.AdminPasswordHash == "" || req.Username != web.AdminUser ||
		bcrypt.CompareHashAndPassword([]byte(web.AdminPasswordHash), []byte(req.Password)) != nil {
		h.jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	sess, _ := h.sessions.Get(r, sessionName)
	sess.Values["username"] = req.Username
	if err := sess.Save(r, w); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"username": req.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.sessions.Get(r, sessionName)
	delete(sess.Values, "username")
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "logged out"})
}
