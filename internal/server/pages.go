package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
)

var pages = template.Must(template.New("signin").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
{{if .Error}}<p role="alert">Sign in failed ({{.Error}}).</p>{{end}}
<form id="signin">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
{{if .SSO}}<p><a href="/auth/sso/login?callbackUrl={{.CallbackURL}}">Sign in with SSO</a></p>{{end}}
<script>
document.getElementById("signin").addEventListener("submit", async (e) => {
  e.preventDefault();
  const form = new FormData(e.target);
  const res = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({email: form.get("email"), password: form.get("password")}),
  });
  if (res.ok) { window.location.assign({{.CallbackURL}}); return; }
  const body = await res.json();
  alert(body.error);
});
</script>
</body>
</html>`))

func init() {
	template.Must(pages.New("users").Parse(`<!DOCTYPE html>
<html>
<head><title>Users</title></head>
<body>
<p>Signed in as {{.Viewer.User.Email}} ({{.Viewer.User.Role.Name}})</p>
<table>
  <thead><tr><th>Email</th><th>Name</th><th>Role</th><th>Status</th></tr></thead>
  <tbody>
  {{range .Users}}<tr>
    <td>{{.Email}}</td>
    <td>{{.Name}}</td>
    <td>{{if .Role}}{{.Role.Name}}{{else}}-{{end}}</td>
    <td>{{if .Disabled}}disabled{{else}}active{{end}}</td>
  </tr>{{end}}
  </tbody>
</table>
</body>
</html>`))
}

type pageHandlers struct {
	iam iamHandlerService
	sso bool
}

// HandleSignIn renders the sign-in page. callbackUrl is restricted to local paths.
func (h *pageHandlers) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	data := struct {
		CallbackURL string
		Error       string
		SSO         bool
	}{
		CallbackURL: auth.SafeCallbackURL(r.URL.Query().Get("callbackUrl")),
		Error:       r.URL.Query().Get("error"),
		SSO:         h.sso,
	}
	render(w, r, "signin", data)
}

// adminUsers is the guarded user listing page. The JSON API behind it is enforced separately.
func (h *pageHandlers) adminUsers(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	users, err := h.iam.ListUsers(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list users for admin page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	render(w, r, "users", struct {
		Viewer *auth.Session
		Users  []iam.UserView
	}{Viewer: sess, Users: users})
}

func render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("failed to render page")
	}
}
