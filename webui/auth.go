package webui

import (
	"errors"
	"net/http"

	"medreminder/dblayer"
	"medreminder/dbtypes"
	"medreminder/webui/uitemplates"

	"github.com/golang/glog"
)

func sessionCookie(session *dbtypes.Session) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Cookie,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		HttpOnly: true,
		Expires:  session.Expires,
	}
}

func isLogInUserError(err error) bool {
	return errors.Is(err, dblayer.ErrEmailMustNotBeEmpty) ||
		errors.Is(err, dblayer.ErrPasswordMustNotBeEmpty) ||
		errors.Is(err, dblayer.ErrUnknownUserOrWrongPassword)
}

// logInHandler renders the login page.
func (u *WebUI) logInHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/log-in" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, _, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user != nil {
		// User is already logged in.  Send them back home.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	params := &uitemplates.LogInParams{
		GoogleClientID: u.googleClientID,
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	params.UserError = r.Form.Get("user-error")

	if r.Method == http.MethodPost {
		// The user is submitting a login form.
		session, err := u.db.SessionFromPassword(ctx, r.PostForm.Get("email"), r.PostForm.Get("password"))
		if isLogInUserError(err) {
			params.UserError = err.Error()
			content, err := uitemplates.LogInPage(params)
			writePage(w, content, err)
			return
		}
		if err != nil {
			glog.Errorf("Error while processing log in form: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		// User successfully logged in
		http.SetCookie(w, sessionCookie(session))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	// Otherwise, render login form.
	content, err := uitemplates.LogInPage(params)
	writePage(w, content, err)
}

// logInGoogleHandler receives the ID token posted back by "Sign in with
// Google".
func (u *WebUI) logInGoogleHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/log-in/google" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := u.db.SessionFromGoogleFederation(r.Context(), r.PostForm.Get("credential"))
	if err != nil {
		glog.Errorf("Error while signing in with Google: %v", err)
		userErr := "Google sign-in failed"
		if errors.Is(err, dblayer.ErrUnknownUserOrWrongPassword) {
			userErr = "No account is registered for that Google account"
		}
		http.Redirect(w, r, pageLink("/log-in", "", userErr, nil), http.StatusFound)
		return
	}

	http.SetCookie(w, sessionCookie(session))
	http.Redirect(w, r, "/", http.StatusFound)
}

// logOutHandler asks for confirmation, then ends the session.
func (u *WebUI) logOutHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/log-out" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodPost {
		content, err := uitemplates.LogOutPage(&uitemplates.LogOutParams{})
		writePage(w, content, err)
		return
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if err := u.db.DeleteSession(r.Context(), cookie.Value); err != nil {
		glog.Errorf("Error while deleting session: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	u.dropLocalOverrides(cookie.Value)

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/log-in", http.StatusFound)
}
