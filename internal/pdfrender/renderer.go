package pdfrender

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

var optionLetters = []string{"A", "B", "C", "D", "E"}

var testPage = template.Must(template.New("test").Funcs(template.FuncMap{
	"letter": func(i int) string {
		if i < len(optionLetters) {
			return optionLetters[i]
		}
		return "?"
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="tr">
<head>
<meta charset="utf-8">
<title>{{.Test.Title}}</title>
<style>
@page { size: A4; margin: 18mm 16mm; }
body { font-family: "DejaVu Sans", Arial, sans-serif; font-size: 11pt; color: #111; }
h1 { font-size: 16pt; border-bottom: 2px solid #333; padding-bottom: 4pt; }
.question { page-break-inside: avoid; margin: 0 0 12pt; }
.options { list-style: none; padding-left: 12pt; margin: 4pt 0; }
.answers { page-break-before: always; }
.answers td { padding: 2pt 8pt; border-bottom: 1px solid #ccc; vertical-align: top; }
</style>
</head>
<body>
<h1>{{.Test.Title}}</h1>
{{range $i, $q := .Test.Questions}}<div class="question">
<p><strong>{{inc $i}}.</strong> {{$q.Question}}</p>
<ul class="options">{{range $j, $o := $q.Options}}
<li>{{letter $j}}) {{$o}}</li>{{end}}
</ul>
</div>
{{end}}{{if .WithAnswers}}<div class="answers">
<h1>Cevap Anahtarı</h1>
<table>{{range $i, $q := .Test.Questions}}
<tr><td>{{inc $i}}</td><td>{{$q.CorrectAnswer}}</td><td>{{$q.Explanation}}</td></tr>{{end}}
</table>
</div>{{end}}
</body>
</html>
`))

// HTML renders a practice test as a printable page
func HTML(test *models.TestResponse, withAnswers bool) ([]byte, error) {
	var buf bytes.Buffer
	err := testPage.Execute(&buf, struct {
		Test        *models.TestResponse
		WithAnswers bool
	}{test, withAnswers})
	if err != nil {
		return nil, fmt.Errorf("failed to render test page: %w", err)
	}
	return buf.Bytes(), nil
}

// Renderer prints HTML to PDF in a headless browser launched on first use
type Renderer struct {
	cfg    config.RendererConfig
	logger *logging.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// New creates a renderer
func New(cfg config.RendererConfig, logger *logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Renderer{cfg: cfg, logger: logger}
}

func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()
	if r.cfg.ChromePath != "" {
		l = l.Bin(r.cfg.ChromePath)
	}
	l = l.
		Headless(r.cfg.Headless).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.logger.Info("Headless browser started")
	r.browser = browser
	return browser, nil
}

// RenderTest prints a practice test to PDF
func (r *Renderer) RenderTest(ctx context.Context, test *models.TestResponse, withAnswers bool) ([]byte, error) {
	html, err := HTML(test, withAnswers)
	if err != nil {
		return nil, err
	}

	pdf, err := r.Print(ctx, string(html))
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PDFRendersTotal.WithLabelValues(status).Inc()
	return pdf, err
}

// Print loads html into a fresh page and prints it
func (r *Renderer) Print(ctx context.Context, html string) ([]byte, error) {
	browser, err := r.connect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to print pdf: %w", err)
	}

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	return pdf, nil
}

// Close shuts the browser down if it was started
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}
