package webapp

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// outputFormats lists the encodings the backend can write, jpg and jpeg
// are offered separately because they produce different file extensions
var outputFormats = []string{"png", "jpg", "jpeg", "bmp", "tiff"}

// ConvertPage uploads a PDF and follows the conversion job until it finishes
type ConvertPage struct {
	app.Compo
	selectedFile  string
	dpi           int
	format        string
	outputName    string
	uploading     bool
	conversionID  string
	jobID         string
	job           *Job
	files         []ConversionFile
	error         string
	refreshTicker *time.Ticker
}

// OnMount is called when the component is mounted
func (c *ConvertPage) OnMount(ctx app.Context) {
	c.dpi = 300
	c.format = "png"

	// Poll the running job every 2 seconds
	ctx.Async(func() {
		c.refreshTicker = time.NewTicker(2 * time.Second)
		for range c.refreshTicker.C {
			if c.jobID != "" && !c.jobFinished() {
				c.pollJob(ctx)
			}
		}
	})
}

// OnDismount is called when the component is unmounted
func (c *ConvertPage) OnDismount() {
	if c.refreshTicker != nil {
		c.refreshTicker.Stop()
	}
}

// jobFinished reports whether the tracked job reached a terminal state
func (c *ConvertPage) jobFinished() bool {
	if c.job == nil {
		return false
	}
	switch c.job.Status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

// Render renders the convert page
func (c *ConvertPage) Render() app.UI {
	return app.Div().
		Class("convert-page").
		Body(
			app.H2().Text("Convert PDF to Images"),
			app.P().Text("Pick a PDF, choose the resolution and image format, and every page will be saved as a separate image file."),

			c.renderForm(),
			c.renderProgress(),
			c.renderResult(),
		)
}

// renderForm renders the upload form
func (c *ConvertPage) renderForm() app.UI {
	return app.Div().Class("convert-form").Body(
		app.Div().Class("form-row").Body(
			app.Label().For("pdf-file").Text("PDF file"),
			app.Input().
				Type("file").
				ID("pdf-file").
				Accept(".pdf").
				Disabled(c.uploading).
				OnChange(c.onFileSelected),
		),

		app.Div().Class("form-row").Body(
			app.Label().For("dpi-input").Text("Resolution (DPI)"),
			app.Input().
				Type("number").
				ID("dpi-input").
				Min("72").
				Max("600").
				Step(10).
				Value(strconv.Itoa(c.dpi)).
				Disabled(c.uploading).
				OnChange(c.onDPIChange),
			app.Span().Class("form-hint").Text("72 to 600, 300 is a good default for printing"),
		),

		app.Div().Class("form-row").Body(
			app.Label().For("format-select").Text("Image format"),
			app.Select().
				ID("format-select").
				Disabled(c.uploading).
				OnChange(c.onFormatChange).
				Body(
					app.Range(outputFormats).Slice(func(i int) app.UI {
						format := outputFormats[i]
						return app.Option().
							Value(format).
							Selected(format == c.format).
							Text(strings.ToUpper(format))
					}),
				),
		),

		app.Div().Class("form-row").Body(
			app.Label().For("output-input").Text("Output folder"),
			app.Input().
				Type("text").
				ID("output-input").
				Value(c.outputName).
				Placeholder("document_images").
				Disabled(c.uploading).
				OnChange(c.onOutputChange),
		),

		app.Div().Class("form-actions").Body(
			app.Button().
				Class("btn-primary").
				Disabled(c.uploading || c.selectedFile == "").
				OnClick(c.onConvertClick).
				Body(app.Text(c.convertButtonText())),
		),

		app.If(c.error != "", func() app.UI {
			return app.Div().Class("error").Body(
				app.Text("Error: " + c.error),
			)
		}),
	)
}

// convertButtonText returns the label for the convert button
func (c *ConvertPage) convertButtonText() string {
	if c.uploading {
		return "Uploading..."
	}
	return "Convert"
}

// renderProgress renders the progress bar for the running job
func (c *ConvertPage) renderProgress() app.UI {
	if c.job == nil || c.jobFinished() {
		return app.Div()
	}

	return app.Div().Class("convert-progress").Body(
		app.H3().Text("Converting "+c.selectedFile),
		app.Div().Class("progress-bar").Body(
			app.Div().
				Class("progress-fill").
				Style("width", fmt.Sprintf("%d%%", c.job.Progress)),
		),
		app.Div().Class("progress-text").Body(
			app.Text(fmt.Sprintf("%d%% - %s", c.job.Progress, c.job.CurrentStep)),
		),
		app.Div().Class("convert-controls").Body(
			app.Button().
				Class("btn-danger").
				OnClick(c.onCancelClick).
				Body(app.Text("Cancel")),
		),
		app.P().Class("form-hint").Text("Cancelling keeps the pages that were already written."),
	)
}

// renderResult renders the outcome of a finished job and the page images
func (c *ConvertPage) renderResult() app.UI {
	if c.job == nil || !c.jobFinished() {
		return app.Div()
	}

	var status app.UI
	switch c.job.Status {
	case "completed":
		status = app.Div().Class("success").Body(
			app.Text(formatConversionSummary(c.job.Result)),
		)
	case "cancelled":
		status = app.Div().Class("info").Body(
			app.Text("Conversion cancelled. Pages finished before the cancel are listed below."),
		)
	default:
		status = app.Div().Class("error").Body(
			app.Text("Conversion failed: " + c.job.Error),
		)
	}

	return app.Div().Class("convert-result").Body(
		app.H3().Text("Result"),
		status,
		app.If(len(c.files) > 0, func() app.UI {
			return app.Div().Class("file-list").Body(
				app.Range(c.files).Slice(func(i int) app.UI {
					file := c.files[i]
					return app.Div().Class("file-item").Body(
						app.A().
							Href(BuildAPIURL(file.URL)).
							Target("_blank").
							Body(app.Text(file.Name)),
						app.Span().Class("file-size").Text(formatFileSize(file.Size)),
					)
				}),
			)
		}),
	)
}

// onFileSelected reads the chosen file name and pre-fills the output folder
func (c *ConvertPage) onFileSelected(ctx app.Context, e app.Event) {
	files := ctx.JSSrc().Get("files")
	if !files.Truthy() || files.Get("length").Int() == 0 {
		c.selectedFile = ""
		return
	}

	c.selectedFile = files.Index(0).Get("name").String()
	c.outputName = suggestOutputName(c.selectedFile)
	c.error = ""
}

// onDPIChange handles DPI spinner changes
func (c *ConvertPage) onDPIChange(ctx app.Context, e app.Event) {
	if dpi, err := strconv.Atoi(ctx.JSSrc().Get("value").String()); err == nil {
		c.dpi = clampDPI(dpi)
	}
}

// onFormatChange handles format select changes
func (c *ConvertPage) onFormatChange(ctx app.Context, e app.Event) {
	c.format = ctx.JSSrc().Get("value").String()
}

// onOutputChange handles output folder name changes
func (c *ConvertPage) onOutputChange(ctx app.Context, e app.Event) {
	c.outputName = ctx.JSSrc().Get("value").String()
}

// onConvertClick uploads the PDF and starts the conversion job
func (c *ConvertPage) onConvertClick(ctx app.Context, e app.Event) {
	if c.selectedFile == "" {
		c.error = "Pick a PDF file first"
		return
	}
	if !strings.EqualFold(path.Ext(c.selectedFile), ".pdf") {
		c.error = "Only PDF files can be converted"
		return
	}

	c.uploading = true
	c.error = ""
	c.job = nil
	c.files = nil
	c.jobID = ""
	c.conversionID = ""

	c.startConversion(ctx)
}

// startConversion posts the form to the API
func (c *ConvertPage) startConversion(ctx app.Context) {
	ctx.Async(func() {
		fileInput := app.Window().Get("document").Call("getElementById", "pdf-file")
		files := fileInput.Get("files")
		if !files.Truthy() || files.Get("length").Int() == 0 {
			ctx.Dispatch(func(ctx app.Context) {
				c.uploading = false
				c.error = "Pick a PDF file first"
			})
			return
		}

		formData := app.Window().Get("FormData").New()
		formData.Call("append", "file", files.Index(0))
		formData.Call("append", "dpi", strconv.Itoa(c.dpi))
		formData.Call("append", "format", c.format)
		formData.Call("append", "output", c.outputName)

		options := app.Window().Get("Object").New()
		options.Set("method", "POST")
		options.Set("body", formData)

		res := app.Window().Call("fetch", BuildAPIURL("/api/convert"), options)

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			if len(args) == 0 {
				return nil
			}
			response := args[0]

			status := response.Get("status").Int()

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
				if len(args) == 0 {
					return nil
				}

				jsonData := args[0]
				jsonStr := app.Window().Get("JSON").Call("stringify", jsonData).String()

				ctx.Dispatch(func(ctx app.Context) {
					c.uploading = false

					var reply struct {
						ConversionID string `json:"conversionId"`
						JobID        string `json:"jobId"`
						Error        string `json:"error"`
					}
					if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
						c.error = fmt.Sprintf("Failed to parse response: %v", err)
						return
					}

					if status < 200 || status >= 300 {
						if reply.Error != "" {
							c.error = reply.Error
						} else {
							c.error = fmt.Sprintf("Conversion request failed (status: %d)", status)
						}
						return
					}

					c.conversionID = reply.ConversionID
					c.jobID = reply.JobID
					c.job = &Job{Status: "pending"}
				})

				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			ctx.Dispatch(func(ctx app.Context) {
				c.uploading = false
				c.error = "Network error: Could not connect to server"
			})
			return nil
		}))
	})
}

// pollJob fetches the current state of the running job
func (c *ConvertPage) pollJob(ctx app.Context) {
	jobID := c.jobID
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/jobs/"+jobID))

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			if len(args) == 0 {
				return nil
			}
			response := args[0]

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
				if len(args) == 0 {
					return nil
				}

				jsonData := args[0]
				jsonStr := app.Window().Get("JSON").Call("stringify", jsonData).String()

				ctx.Dispatch(func(ctx app.Context) {
					var job Job
					if err := json.Unmarshal([]byte(jsonStr), &job); err != nil {
						return
					}
					c.job = &job
					if c.jobFinished() {
						c.loadFiles(ctx)
					}
				})

				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			// Keep the last known state on network errors, the ticker retries
			return nil
		}))
	})
}

// loadFiles fetches the page images written by the conversion
func (c *ConvertPage) loadFiles(ctx app.Context) {
	conversionID := c.conversionID
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/conversions/"+conversionID+"/files"))

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			if len(args) == 0 {
				return nil
			}
			response := args[0]

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
				if len(args) == 0 {
					return nil
				}

				jsonData := args[0]
				jsonStr := app.Window().Get("JSON").Call("stringify", jsonData).String()

				ctx.Dispatch(func(ctx app.Context) {
					var files []ConversionFile
					if err := json.Unmarshal([]byte(jsonStr), &files); err == nil {
						c.files = files
					}
				})

				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			return nil
		}))
	})
}

// onCancelClick asks the backend to stop the running job
func (c *ConvertPage) onCancelClick(ctx app.Context, e app.Event) {
	jobID := c.jobID
	ctx.Async(func() {
		options := app.Window().Get("Object").New()
		options.Set("method", "POST")

		res := app.Window().Call("fetch", BuildAPIURL("/api/jobs/"+jobID+"/cancel"), options)

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			// The next poll picks up the cancelled state
			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			ctx.Dispatch(func(ctx app.Context) {
				c.error = "Network error: Could not cancel job"
			})
			return nil
		}))
	})
}

// suggestOutputName proposes an output folder name for a PDF file name
func suggestOutputName(fileName string) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	if base == "" {
		base = "pdf"
	}
	return base + "_images"
}

// clampDPI keeps the spinner value inside the supported range
func clampDPI(dpi int) int {
	if dpi < 72 {
		return 72
	}
	if dpi > 600 {
		return 600
	}
	return dpi
}

// formatConversionSummary turns the job result JSON into a readable line
func formatConversionSummary(result string) string {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(result), &data); err != nil {
		return "Conversion completed"
	}

	converted, _ := data["pagesConverted"].(float64)
	total, _ := data["pagesTotal"].(float64)
	line := fmt.Sprintf("Converted %.0f of %.0f pages", converted, total)

	if errors, ok := data["pageErrors"].(float64); ok && errors > 0 {
		line += fmt.Sprintf(", %.0f page", errors)
		if errors > 1 {
			line += "s"
		}
		line += " could not be saved"
	}

	return line
}

// formatFileSize renders a byte count for the file list
func formatFileSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
