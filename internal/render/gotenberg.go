// Package render turns documents into printable artifacts. HTML is built
// locally; PDF conversion is delegated to a Gotenberg instance.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Gotenberg converts HTML to PDF via Gotenberg's Chromium route.
type Gotenberg struct {
	baseURL string
	client  *http.Client
}

// NewGotenberg constructs a converter. baseURL may be empty when PDF
// output is not configured.
func NewGotenberg(baseURL string) *Gotenberg {
	return &Gotenberg{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether a Gotenberg endpoint is configured.
func (g *Gotenberg) Enabled() bool {
	return g != nil && g.baseURL != ""
}

// ConvertHTML renders the HTML document into a PDF.
func (g *Gotenberg) ConvertHTML(ctx context.Context, html []byte) ([]byte, error) {
	if !g.Enabled() {
		return nil, fmt.Errorf("render: gotenberg not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, fmt.Errorf("render: build form: %w", err)
	}
	if _, err := part.Write(html); err != nil {
		return nil, fmt.Errorf("render: build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("render: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/forms/chromium/convert/html", &body)
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: gotenberg request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render: gotenberg returned %d: %s", resp.StatusCode, payload)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("render: read pdf: %w", err)
	}
	return pdf, nil
}
