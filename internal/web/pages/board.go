package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/benpsk/itemboard/internal/user"
	"github.com/benpsk/itemboard/internal/web/components"
)

type BoardPageModel struct {
	AppName     string
	AppURL      string
	CSRFToken   string
	CurrentUser *user.User
}

// BoardPage renders the board shell: the create form for signed-in users
// and the list containers. The item collection itself is fetched and
// managed client-side by board.js.
func BoardPage(model BoardPageModel) templ.Component {
	auth := components.HeaderAuthData{CSRFToken: model.CSRFToken}
	if model.CurrentUser != nil {
		auth.IsAuthenticated = true
		auth.DisplayName = model.CurrentUser.Name
	}
	meta := components.PageMeta{
		Description: "A shared board of user-posted items.",
		Path:        "/",
	}

	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if model.CurrentUser != nil {
			fmt.Fprint(w, `<section class="card" id="item-form-card">
<h2>Create New Item</h2>
<form id="item-form">
<label for="item-title">Title</label>
<input type="text" id="item-title" name="title" maxlength="128" placeholder="Enter item title" required>
<label for="item-description">Description</label>
<textarea id="item-description" name="description" rows="4" placeholder="Enter item description" required></textarea>
<button type="submit" class="btn btn-primary" id="item-submit">Create Item</button>
</form>
</section>
`)
		}
		fmt.Fprint(w, `<section class="card" id="item-list-card">
<h2>All Items</h2>
<div id="items-loading">Loading...</div>
<div id="items" hidden></div>
<div id="items-empty" hidden>
<p>No items found</p>
`)
		if model.CurrentUser != nil {
			fmt.Fprint(w, "<p class=\"muted\">Create your first item above!</p>\n")
		} else {
			fmt.Fprint(w, "<p class=\"muted\">Sign in to create items.</p>\n")
		}
		fmt.Fprint(w, "</div>\n</section>\n")

		currentUserID := "null"
		if model.CurrentUser != nil {
			currentUserID = fmt.Sprintf("%d", model.CurrentUser.ID)
		}
		fmt.Fprintf(w, "<script>window.boardConfig = {currentUserId: %s};</script>\n<script src=\"/static/board.js\" defer></script>\n", currentUserID)
		return nil
	})

	return components.Layout(model.AppName, model.AppURL, meta, auth, body)
}
