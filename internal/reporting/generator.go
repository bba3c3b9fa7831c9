package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
)

// Artifacts lists the files one generated report consists of.
type Artifacts struct {
	AccountCSV string
	ActionJSON string
	Summary    string
}

// Generator writes run artifacts into an output directory.
type Generator struct {
	outDir string
	logger *zap.Logger
}

// NewGenerator creates a Generator writing into outDir.
func NewGenerator(outDir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{outDir: outDir, logger: logger}
}

// Generate writes {name}.account.csv, {name}.action.json and {name}.md.
func (g *Generator) Generate(r RunReport) (Artifacts, error) {
	if r.Name == "" {
		return Artifacts{}, fmt.Errorf("%w: report requires a run name", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create report dir: %w", err)
	}
	art := Artifacts{
		AccountCSV: filepath.Join(g.outDir, r.Name+".account.csv"),
		ActionJSON: filepath.Join(g.outDir, r.Name+".action.json"),
		Summary:    filepath.Join(g.outDir, r.Name+".md"),
	}

	f, err := os.Create(art.AccountCSV)
	if err != nil {
		return Artifacts{}, fmt.Errorf("create %s: %w", art.AccountCSV, err)
	}
	if err := WriteAccountCSV(f, r.Statuses); err != nil {
		f.Close()
		return Artifacts{}, err
	}
	if err := f.Close(); err != nil {
		return Artifacts{}, err
	}

	raw, err := json.MarshalIndent(r.Actions, "", "  ")
	if err != nil {
		return Artifacts{}, fmt.Errorf("marshal actions: %w", err)
	}
	if err := os.WriteFile(art.ActionJSON, raw, 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", art.ActionJSON, err)
	}

	if err := os.WriteFile(art.Summary, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", art.Summary, err)
	}

	g.logger.Info("report generated",
		zap.String("run", r.Name),
		zap.String("dir", g.outDir),
		zap.Int("statuses", len(r.Statuses)),
		zap.Int("actions", len(r.Actions)))
	return art, nil
}
