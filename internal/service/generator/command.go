package generator

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/jd-boyd/bts-rpi-base/internal/logger"
)

//go:embed templates
var templateFS embed.FS

const (
	// templateRoot is the embedded directory holding the project skeleton.
	templateRoot = "templates"

	// templateSuffix marks files rendered through text/template.
	templateSuffix = ".tmpl"

	// namePlaceholder in a template filename is replaced with the app name.
	namePlaceholder = "appname"

	// entryFilename is made executable after rendering.
	entryFilename = "app.py"
)

var (
	// namePattern restricts application names to systemd- and
	// filesystem-friendly identifiers.
	namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	errInvalidName       = errors.New("application name must be lowercase alphanumeric with dashes, starting with a letter")
	errOutputDirNotEmpty = errors.New("output directory exists and is not empty")
)

// Options are inputs accepted by the generator entry point.
type Options struct {
	// Name is the target application name stamped into the project.
	Name string
	// OutputDir is where the project is created (defaults to ./<name>).
	OutputDir string
	// Force allows writing into an existing non-empty directory.
	Force bool
}

// templateData is what every template is rendered with.
type templateData struct {
	// Name is the application name.
	Name string
}

// generator holds the validated inputs for a single run.
// It is unexported; callers use Run.
type generator struct {
	name      string
	outputDir string
}

// Run executes the scaffolding workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-generate")

	g, err := newGenerator(opts)
	if err != nil {
		return err
	}

	if err = g.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Generator run failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Project generated", "name", g.name, "path", g.outputDir)
	g.printNextSteps(ctx)

	return nil
}

// newGenerator validates options and prepares the output directory.
func newGenerator(opts *Options) (*generator, error) {
	name := strings.TrimSpace(opts.Name)
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%q: %w", opts.Name, errInvalidName)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = name
	}

	entries, err := os.ReadDir(outputDir)
	if err == nil && len(entries) > 0 && !opts.Force {
		return nil, fmt.Errorf("%s: %w", outputDir, errOutputDirNotEmpty)
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("inspect output directory: %w", err)
	}

	return &generator{name: name, outputDir: outputDir}, nil
}

// Run renders every embedded template into the output directory.
func (g *generator) Run(ctx context.Context) error {
	data := templateData{Name: g.name}

	return fs.WalkDir(templateFS, templateRoot, func(templatePath string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		relPath, err := filepath.Rel(templateRoot, templatePath)
		if err != nil {
			return err
		}

		target := filepath.Join(g.outputDir, g.targetName(relPath))
		if err = g.renderFile(templatePath, target, data); err != nil {
			return fmt.Errorf("render %s: %w", relPath, err)
		}

		logger.DebugKV(ctx, "Rendered template", "target", target)

		return nil
	})
}

// targetName rewrites a template's relative path into its output name.
func (g *generator) targetName(relPath string) string {
	name := strings.TrimSuffix(relPath, templateSuffix)

	return strings.ReplaceAll(name, namePlaceholder, g.name)
}

// renderFile renders one template and writes the result.
// The application entry point is written executable.
func (g *generator) renderFile(templatePath, target string, data templateData) error {
	rendered, err := renderTemplate(templateFS, templatePath, data)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if filepath.Base(target) == entryFilename {
		perm = 0o755
	}

	return os.WriteFile(target, rendered.Bytes(), perm)
}

// renderTemplate parses and executes a single template from the filesystem.
func renderTemplate(fsys fs.FS, templatePath string, data any) (bytes.Buffer, error) {
	var buffer bytes.Buffer

	name := path.Base(templatePath)

	parsedTemplate, err := template.New(name).ParseFS(fsys, templatePath)
	if err != nil {
		return buffer, err
	}

	if err := parsedTemplate.Execute(&buffer, data); err != nil {
		return buffer, err
	}

	return buffer, nil
}

// printNextSteps logs human-readable guidance for the freshly stamped project.
func (g *generator) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("Next steps for ")
	builder.WriteString(g.name)
	builder.WriteString(":\n")
	builder.WriteString("1. Review ")
	builder.WriteString(filepath.Join(g.outputDir, "updater.yaml"))
	builder.WriteString(" and adjust paths if needed.\n")
	builder.WriteString("2. Put your application code next to ")
	builder.WriteString(filepath.Join(g.outputDir, entryFilename))
	builder.WriteString(".\n")
	builder.WriteString("3. Build the image: rpi-build ")
	builder.WriteString(g.outputDir)
	builder.WriteString("\n")
	builder.WriteString("4. On the device, deploy updates with: rpi-update install <source-dir>")

	logger.Info(ctx, builder.String())
}
