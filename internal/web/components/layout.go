package components

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

type HeaderAuthData struct {
	IsAuthenticated bool
	DisplayName     string
	CSRFToken       string
}

// Layout renders the shared document chrome around a page body. The pages
// are small enough that components are plain templ.ComponentFunc values.
func Layout(appName, appURL string, meta PageMeta, auth HeaderAuthData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
`, templ.EscapeString(meta.fullTitle(appName))); err != nil {
			return err
		}
		if desc := strings.TrimSpace(meta.Description); desc != "" {
			fmt.Fprintf(w, "<meta name=\"description\" content=\"%s\">\n", templ.EscapeString(desc))
		}
		fmt.Fprintf(w, "<link rel=\"canonical\" href=\"%s\">\n", templ.EscapeString(meta.canonicalURL(appURL)))
		fmt.Fprint(w, "<link rel=\"stylesheet\" href=\"/static/board.css\">\n</head>\n<body>\n")

		if err := header(appName, auth).Render(ctx, w); err != nil {
			return err
		}
		fmt.Fprint(w, "<main class=\"container\">\n")
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		fmt.Fprint(w, "</main>\n</body>\n</html>\n")
		return nil
	})
}

func header(appName string, auth HeaderAuthData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprint(w, "<header class=\"site-header\"><div class=\"container header-row\">\n")
		fmt.Fprintf(w, "<a class=\"brand\" href=\"/\">%s</a>\n", templ.EscapeString(appName))
		fmt.Fprint(w, "<nav class=\"header-nav\">\n")
		if auth.IsAuthenticated {
			fmt.Fprintf(w, "<span class=\"welcome\">Welcome, %s</span>\n", templ.EscapeString(auth.DisplayName))
			fmt.Fprintf(w, `<form method="post" action="/auth/logout"><input type="hidden" name="csrf_token" value="%s"><button type="submit" class="btn btn-danger">Sign Out</button></form>
`, templ.EscapeString(auth.CSRFToken))
		} else {
			fmt.Fprint(w, "<a class=\"btn\" href=\"/auth/login\">Sign In</a>\n<a class=\"btn btn-primary\" href=\"/auth/register\">Sign Up</a>\n")
		}
		fmt.Fprint(w, "</nav>\n</div></header>\n")
		return nil
	})
}
