package pages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/benpsk/itemboard/internal/web/components"
)

type AuthPageModel struct {
	AppName   string
	AppURL    string
	CSRFToken string
	Error     string
	Email     string
	Name      string
}

func LoginPage(model AuthPageModel) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprint(w, "<section class=\"card auth-card\">\n<h2>Sign In</h2>\n")
		writeFormError(w, model.Error)
		fmt.Fprintf(w, `<form method="post" action="/auth/login">
<input type="hidden" name="csrf_token" value="%s">
<label for="email">Email</label>
<input type="email" id="email" name="email" value="%s" required>
<label for="password">Password</label>
<input type="password" id="password" name="password" required>
<button type="submit" class="btn btn-primary">Sign In</button>
</form>
<p class="muted">No account? <a href="/auth/register">Sign up</a></p>
</section>
`, templ.EscapeString(model.CSRFToken), templ.EscapeString(model.Email))
		return nil
	})

	meta := components.PageMeta{Title: "Sign In", Path: "/auth/login"}
	return components.Layout(model.AppName, model.AppURL, meta, components.HeaderAuthData{}, body)
}

func RegisterPage(model AuthPageModel) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprint(w, "<section class=\"card auth-card\">\n<h2>Sign Up</h2>\n")
		writeFormError(w, model.Error)
		fmt.Fprintf(w, `<form method="post" action="/auth/register">
<input type="hidden" name="csrf_token" value="%s">
<label for="name">Name</label>
<input type="text" id="name" name="name" value="%s" required>
<label for="email">Email</label>
<input type="email" id="email" name="email" value="%s" required>
<label for="password">Password</label>
<input type="password" id="password" name="password" minlength="8" required>
<button type="submit" class="btn btn-primary">Sign Up</button>
</form>
<p class="muted">Already registered? <a href="/auth/login">Sign in</a></p>
</section>
`, templ.EscapeString(model.CSRFToken), templ.EscapeString(model.Name), templ.EscapeString(model.Email))
		return nil
	})

	meta := components.PageMeta{Title: "Sign Up", Path: "/auth/register"}
	return components.Layout(model.AppName, model.AppURL, meta, components.HeaderAuthData{}, body)
}

func writeFormError(w io.Writer, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	fmt.Fprintf(w, "<p class=\"form-error\">%s</p>\n", templ.EscapeString(message))
}
