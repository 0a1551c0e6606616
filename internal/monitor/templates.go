package monitor

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateProvider abstracts page template loading so handlers can be
// tested without the embedded assets.
type TemplateProvider interface {
	ExecuteTemplate(w io.Writer, name string, data interface{}) error
}

// EmbeddedTemplateProvider parses templates from an embedded filesystem
// once and caches them.
type EmbeddedTemplateProvider struct {
	fs      embed.FS
	baseDir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewEmbeddedTemplateProvider serves the templates compiled into the binary.
func NewEmbeddedTemplateProvider() *EmbeddedTemplateProvider {
	return &EmbeddedTemplateProvider{
		fs:      embeddedTemplates,
		baseDir: "templates",
		cache:   make(map[string]*template.Template),
	}
}

// GetTemplate returns the parsed template called name.
func (p *EmbeddedTemplateProvider) GetTemplate(name string) (*template.Template, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.cache[name]; ok {
		return t, nil
	}
	content, err := p.fs.ReadFile(p.baseDir + "/" + name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	t, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	p.cache[name] = t
	return t, nil
}

// ExecuteTemplate renders the named template into w.
func (p *EmbeddedTemplateProvider) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	t, err := p.GetTemplate(name)
	if err != nil {
		return err
	}
	return t.Execute(w, data)
}

// MockTemplateProvider records executions and renders fixed bodies.
type MockTemplateProvider struct {
	Templates    map[string]string
	ExecuteError error

	mu    sync.Mutex
	calls []string
}

// ExecuteTemplate writes the registered body for name.
func (m *MockTemplateProvider) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()

	if m.ExecuteError != nil {
		return m.ExecuteError
	}
	body, ok := m.Templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	_, err := io.WriteString(w, body)
	return err
}

// Calls returns the template names executed so far.
func (m *MockTemplateProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
