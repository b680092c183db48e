package webapp

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// HomePage displays the most recent conversions
type HomePage struct {
	app.Compo
	conversions   []Conversion
	loading       bool
	error         string
	refreshTicker *time.Ticker
}

// OnMount is called when the component is mounted
func (h *HomePage) OnMount(ctx app.Context) {
	h.loading = true
	h.fetchConversions(ctx)

	// Refresh every 5 seconds so running conversions update in place
	ctx.Async(func() {
		h.refreshTicker = time.NewTicker(5 * time.Second)
		for range h.refreshTicker.C {
			h.fetchConversions(ctx)
		}
	})
}

// OnDismount is called when the component is unmounted
func (h *HomePage) OnDismount() {
	if h.refreshTicker != nil {
		h.refreshTicker.Stop()
	}
}

// fetchConversions fetches the recent conversions from the API
func (h *HomePage) fetchConversions(ctx app.Context) {
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/conversions/recent"))

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			response := args[0]

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				if len(args) == 0 {
					return nil
				}

				jsonData := args[0]
				jsonStr := app.Window().Get("JSON").Call("stringify", jsonData).String()

				var conversions []Conversion
				ctx.Dispatch(func(ctx app.Context) {
					if err := json.Unmarshal([]byte(jsonStr), &conversions); err != nil {
						h.error = fmt.Sprintf("Failed to parse response: %v", err)
					} else {
						h.conversions = conversions
						h.error = ""
					}
					h.loading = false
				})

				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(func(ctx app.Context) {
				h.error = "Network error"
				h.loading = false
			})
			return nil
		}))
	})
}

// Render renders the home page
func (h *HomePage) Render() app.UI {
	var content app.UI

	if h.loading {
		content = app.Div().Class("loading").Body(app.Text("Loading..."))
	} else if h.error != "" {
		content = app.Div().Class("error").Body(app.Text("Error: " + h.error))
	} else if len(h.conversions) == 0 {
		content = app.Div().Class("no-results").Body(
			app.P().Text("No conversions yet."),
			app.A().Href("/convert").Class("btn-primary").Body(
				app.Text("Convert a PDF"),
			),
		)
	} else {
		content = app.Div().Class("conversion-grid").Body(
			app.Range(h.conversions).Slice(func(i int) app.UI {
				conv := h.conversions[i]
				return &ConversionCard{Conversion: conv}
			}),
		)
	}

	return app.Div().
		Class("home-page").
		Body(
			app.H2().Text("Recent Conversions"),
			content,
		)
}

// ConversionCard displays a single conversion card
type ConversionCard struct {
	app.Compo
	Conversion Conversion
}

// Render renders the conversion card
func (d *ConversionCard) Render() app.UI {
	conv := d.Conversion

	return app.Div().
		Class("conversion-card conversion-"+conv.Status).
		Body(
			app.Div().Class("conversion-icon").Body(
				app.Text("🖼️"),
			),
			app.Div().Class("conversion-info").Body(
				app.H3().Text(conv.Name),
				app.P().
					Class("conversion-detail").
					Text(fmt.Sprintf("%d DPI, %s", conv.DPI, conv.Format)),
				app.P().
					Class("conversion-detail").
					Text(d.pagesLine()),
				app.Span().
					Class("job-status-badge job-status-"+conv.Status).
					Body(app.Text(conv.Status)),
				app.If(conv.Status == "completed" && conv.PagesDone > 0, func() app.UI {
					return app.P().Class("conversion-detail").Body(
						app.A().
							Href(d.firstPageURL()).
							Target("_blank").
							Body(app.Text("Open first page")),
					)
				}),
			),
		)
}

// firstPageURL points at the first page image under the output route
func (d *ConversionCard) firstPageURL() string {
	folder := path.Base(strings.ReplaceAll(d.Conversion.OutputDir, "\\", "/"))
	return BuildAPIURL("/outputs/" + folder + "/page_1." + d.Conversion.Format)
}

// pagesLine summarises how many pages were written
func (d *ConversionCard) pagesLine() string {
	conv := d.Conversion
	if conv.PageCount == 0 {
		return "Pages: pending"
	}

	line := fmt.Sprintf("Pages: %d of %d", conv.PagesDone, conv.PageCount)
	if conv.PageErrors > 0 {
		line += fmt.Sprintf(" (%d failed to save)", conv.PageErrors)
	}
	return line
}
