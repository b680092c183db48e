package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// AboutInfo represents the about information from the API
type AboutInfo struct {
	Version       string `json:"version"`
	Renderer      string `json:"renderer"`
	DatabaseType  string `json:"databaseType"`
	DatabaseHost  string `json:"databaseHost"`
	DatabasePort  string `json:"databasePort"`
	DatabaseName  string `json:"databaseName"`
	UploadPath    string `json:"uploadPath"`
	OutputPath    string `json:"outputPath"`
	DefaultDPI    int    `json:"defaultDpi"`
	DefaultFormat string `json:"defaultFormat"`
	MinDPI        int    `json:"minDpi"`
	MaxDPI        int    `json:"maxDpi"`
}

// AboutPage displays information about the application
type AboutPage struct {
	app.Compo
	aboutInfo AboutInfo
	loading   bool
	error     string
}

// OnMount is called when the component is mounted
func (a *AboutPage) OnMount(ctx app.Context) {
	a.loading = true
	a.fetchAboutInfo(ctx)
}

// fetchAboutInfo fetches the about information from the API
func (a *AboutPage) fetchAboutInfo(ctx app.Context) {
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/about"))

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

				ctx.Dispatch(func(ctx app.Context) {
					if err := json.Unmarshal([]byte(jsonStr), &a.aboutInfo); err != nil {
						a.error = fmt.Sprintf("Failed to parse response: %v", err)
					}
					a.loading = false
				})

				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(func(ctx app.Context) {
				a.error = "Network error"
				a.loading = false
			})
			return nil
		}))
	})
}

// Render renders the about page
func (a *AboutPage) Render() app.UI {
	if a.loading {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdfRaster"),
			app.Div().Class("loading").Body(app.Text("Loading...")),
		)
	}

	if a.error != "" {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdfRaster"),
			app.Div().Class("error").Body(app.Text("Error: "+a.error)),
		)
	}

	return app.Div().Class("about-page").Body(
		app.H2().Text("About pdfRaster"),
		app.Div().Class("about-content").Body(
			app.Div().Class("about-section").Body(
				app.H3().Text("Application Information"),
				app.Div().Class("info-grid").Body(
					a.renderInfoItem("Version", a.aboutInfo.Version),
					a.renderInfoItem("PDF Renderer", a.getRendererDisplay()),
					a.renderInfoItem("Database", a.getDatabaseDisplay()),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Conversion Defaults"),
				app.Div().Class("config-details").Body(
					app.P().Body(
						app.Strong().Text("Default Resolution: "),
						app.Text(fmt.Sprintf("%d DPI", a.aboutInfo.DefaultDPI)),
					),
					app.P().Body(
						app.Strong().Text("Supported Range: "),
						app.Text(fmt.Sprintf("%d to %d DPI", a.aboutInfo.MinDPI, a.aboutInfo.MaxDPI)),
					),
					app.P().Body(
						app.Strong().Text("Default Format: "),
						app.Text(a.aboutInfo.DefaultFormat),
					),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Storage"),
				app.Div().Class("config-details").Body(
					app.P().Body(
						app.Strong().Text("Upload Folder: "),
						app.Text(a.aboutInfo.UploadPath),
					),
					app.P().Body(
						app.Strong().Text("Page Images Root: "),
						app.Text(a.aboutInfo.OutputPath),
					),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Database Configuration"),
				app.Div().Class("config-details").Body(
					app.P().Body(
						app.Strong().Text("Database Type: "),
						app.Text(a.getDatabaseDisplay()),
					),
					app.P().Body(
						app.Strong().Text("Host: "),
						app.Text(a.aboutInfo.DatabaseHost),
					),
					app.P().Body(
						app.Strong().Text("Port: "),
						app.Text(a.aboutInfo.DatabasePort),
					),
					app.P().Body(
						app.Strong().Text("Database Name: "),
						app.Text(a.aboutInfo.DatabaseName),
					),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("About pdfRaster"),
				app.P().Text("pdfRaster is a PDF to image converter built with Go and WebAssembly."),
				app.P().Text("It renders each page of an uploaded PDF to PNG, JPEG, BMP or TIFF at a resolution you choose."),
			),
		),
	)
}

// renderInfoItem creates an info item display
func (a *AboutPage) renderInfoItem(label, value string) app.UI {
	return app.Div().Class("info-item").Body(
		app.Div().Class("info-label").Body(app.Text(label)),
		app.Div().Class("info-value").Body(app.Text(value)),
	)
}

// getDatabaseDisplay returns a user-friendly database display name
func (a *AboutPage) getDatabaseDisplay() string {
	switch a.aboutInfo.DatabaseType {
	case "postgres":
		return "PostgreSQL"
	case "cockroachdb":
		return "CockroachDB"
	case "sqlite":
		return "SQLite"
	case "ephemeral":
		return "Ephemeral PostgreSQL"
	default:
		return a.aboutInfo.DatabaseType
	}
}

// getRendererDisplay returns the rendering backend as a user-friendly string
func (a *AboutPage) getRendererDisplay() string {
	switch a.aboutInfo.Renderer {
	case "", "fitz":
		return "MuPDF (go-fitz)"
	case "pdfium":
		return "PDFium (WebAssembly)"
	default:
		return a.aboutInfo.Renderer
	}
}
