package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vnscript-editor/langservice"
	"vnscript-editor/parser"
	"vnscript-editor/simulator"
	"vnscript-editor/validator"
)

// TestRunner controlla in blocco tutti i progetti di una cartella
type TestRunner struct {
	baseDir    string
	extension  string
	out        io.Writer
	projectDir string
}

// CheckOutput rappresenta l'esito di analisi e validazione di un file di ingresso
type CheckOutput struct {
	Filename    string                            `json:"filename"`
	CheckedAt   string                            `json:"checked_at"`
	Success     bool                              `json:"success"`
	Error       string                            `json:"error,omitempty"`
	Files       []string                          `json:"files,omitempty"`
	Passages    int                               `json:"passages"`
	Characters  int                               `json:"characters"`
	Diagnostics []langservice.FormattedDiagnostic `json:"diagnostics"`
}

// RunOutput rappresenta l'esito dell'esecuzione senza interazione
type RunOutput struct {
	Filename string                      `json:"filename"`
	RanAt    string                      `json:"ran_at"`
	Success  bool                        `json:"success"`
	Error    string                      `json:"error,omitempty"`
	Result   *simulator.SimulationResult `json:"result,omitempty"`
}

// TestSummary riassunto dei test
type TestSummary struct {
	Project      string `json:"project"`
	TotalFiles   int    `json:"total_files"`
	CheckSuccess int    `json:"check_success"`
	CheckFailed  int    `json:"check_failed"`
	RunSuccess   int    `json:"run_success"`
	RunFailed    int    `json:"run_failed"`
	Duration     string `json:"duration"`
}

// NewTestRunner crea un nuovo test runner. out nil scrive su stdout.
func NewTestRunner(baseDir string, out io.Writer) *TestRunner {
	if out == nil {
		out = os.Stdout
	}
	return &TestRunner{
		baseDir:   baseDir,
		extension: ".vns",
		out:       out,
	}
}

// GetAvailableProjects restituisce le sottocartelle di progetto disponibili
func (tr *TestRunner) GetAvailableProjects() ([]string, error) {
	entries, err := os.ReadDir(tr.baseDir)
	if err != nil {
		return nil, fmt.Errorf("impossibile leggere cartella test: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			projects = append(projects, entry.Name())
		}
	}

	return projects, nil
}

// RunTests controlla i file di ingresso di un progetto. Con project vuoto
// controlla la cartella base.
func (tr *TestRunner) RunTests(ctx context.Context, project string) (*TestSummary, error) {
	startTime := time.Now()

	tr.projectDir = filepath.Join(tr.baseDir, project)

	// Verifica che la cartella esista
	if _, err := os.Stat(tr.projectDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("cartella %s non trovata", tr.projectDir)
	}

	// Trova tutti i sorgenti
	sources, err := tr.findSources()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("nessun file %s trovato in %s", tr.extension, tr.projectDir)
	}

	// Un file incluso da un altro non è un file di ingresso
	entries := tr.entryFiles(ctx, sources)

	name := project
	if name == "" {
		name = filepath.Base(tr.projectDir)
	}
	summary := &TestSummary{
		Project:    name,
		TotalFiles: len(entries),
	}

	fmt.Fprintf(tr.out, "\n📁 Trovati %d file di ingresso in %s\n", len(entries), tr.projectDir)
	fmt.Fprintln(tr.out, strings.Repeat("─", 50))

	// Processa ogni file
	for _, entry := range entries {
		fmt.Fprintf(tr.out, "\n📄 %s\n", entry)

		// 1. Analisi e validazione
		checkResult, proj := tr.checkFile(ctx, entry)
		if checkResult.Success {
			summary.CheckSuccess++
			fmt.Fprintf(tr.out, "   ✅ Validazione OK - %d passaggi, %d personaggi\n", checkResult.Passages, checkResult.Characters)
		} else {
			summary.CheckFailed++
			if checkResult.Error != "" {
				fmt.Fprintf(tr.out, "   ❌ Caricamento FAILED: %s\n", checkResult.Error)
			} else {
				fmt.Fprintf(tr.out, "   ❌ %d errori\n", len(checkResult.Diagnostics))
				for _, d := range checkResult.Diagnostics {
					fmt.Fprintf(tr.out, "      %s\n", d.Error())
				}
			}
		}

		// Salva JSON validazione
		checkJSONPath := tr.getOutputPath(entry, "_diagnostics.json")
		if err := tr.saveJSON(checkJSONPath, checkResult); err != nil {
			fmt.Fprintf(tr.out, "   ⚠️  Errore salvataggio JSON: %v\n", err)
		} else {
			fmt.Fprintf(tr.out, "   💾 %s\n", filepath.Base(checkJSONPath))
		}

		// 2. Esecuzione senza scelte, solo per i progetti validi
		if !checkResult.Success {
			summary.RunFailed++
			continue
		}
		runResult := tr.runFile(ctx, entry, proj)
		if runResult.Success {
			summary.RunSuccess++
			fmt.Fprintf(tr.out, "   ✅ Esecuzione OK → %s (%d passaggi)\n", runResult.Result.Outcome, len(runResult.Result.Path))
			if runResult.Result.TotalWarnings > 0 {
				fmt.Fprintf(tr.out, "   ⚠️  %d warning(s)\n", runResult.Result.TotalWarnings)
			}
		} else {
			summary.RunFailed++
			fmt.Fprintf(tr.out, "   ❌ Esecuzione FAILED: %s\n", runResult.Error)
		}

		// Salva JSON esecuzione
		runJSONPath := tr.getOutputPath(entry, "_run.json")
		if err := tr.saveJSON(runJSONPath, runResult); err != nil {
			fmt.Fprintf(tr.out, "   ⚠️  Errore salvataggio log: %v\n", err)
		} else {
			fmt.Fprintf(tr.out, "   💾 %s\n", filepath.Base(runJSONPath))
		}
	}

	summary.Duration = time.Since(startTime).String()

	// Stampa riassunto
	fmt.Fprintln(tr.out)
	fmt.Fprintln(tr.out, strings.Repeat("═", 50))
	fmt.Fprintf(tr.out, "📊 RIASSUNTO TEST - %s\n", strings.ToUpper(summary.Project))
	fmt.Fprintln(tr.out, strings.Repeat("═", 50))
	fmt.Fprintf(tr.out, "   File testati:     %d\n", summary.TotalFiles)
	fmt.Fprintf(tr.out, "   Validazione OK:   %d/%d\n", summary.CheckSuccess, summary.TotalFiles)
	fmt.Fprintf(tr.out, "   Esecuzione OK:    %d/%d\n", summary.RunSuccess, summary.TotalFiles)
	fmt.Fprintf(tr.out, "   Durata:           %s\n", summary.Duration)
	fmt.Fprintln(tr.out, strings.Repeat("═", 50))

	return summary, nil
}

// findSources trova tutti i sorgenti nella cartella del progetto, con
// percorsi relativi separati da "/"
func (tr *TestRunner) findSources() ([]string, error) {
	var files []string

	err := filepath.Walk(tr.projectDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), tr.extension) {
			rel, relErr := filepath.Rel(tr.projectDir, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// entryFiles scarta i sorgenti inclusi da un altro sorgente
func (tr *TestRunner) entryFiles(ctx context.Context, sources []string) []string {
	loader := parser.NewDirLoader(tr.projectDir)
	included := make(map[string]bool)
	for _, src := range sources {
		proj, err := parser.New(loader, nil).Load(ctx, src)
		if err != nil {
			continue
		}
		for _, name := range proj.Order[1:] {
			if name != src {
				included[name] = true
			}
		}
	}

	var entries []string
	for _, src := range sources {
		if !included[src] {
			entries = append(entries, src)
		}
	}
	// Include reciproci: nessun file resta, si controllano tutti
	if len(entries) == 0 {
		return sources
	}
	return entries
}

// checkFile analizza e valida un singolo file di ingresso
func (tr *TestRunner) checkFile(ctx context.Context, entry string) (*CheckOutput, *parser.Project) {
	result := &CheckOutput{
		Filename:    entry,
		CheckedAt:   time.Now().Format(time.RFC3339),
		Diagnostics: []langservice.FormattedDiagnostic{},
	}

	proj, diags, err := validator.Check(ctx, parser.NewDirLoader(tr.projectDir), entry)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result, nil
	}

	result.Success = len(diags) == 0
	result.Files = proj.Order
	result.Passages = len(proj.Story.PassageOrder)
	result.Characters = len(proj.Story.Characters)
	result.Diagnostics = langservice.New(proj, nil).Diagnostics(diags)
	return result, proj
}

// runFile esegue la storia senza scelte predefinite: si ferma alla prima scelta
func (tr *TestRunner) runFile(ctx context.Context, entry string, proj *parser.Project) *RunOutput {
	result := &RunOutput{
		Filename: entry,
		RanAt:    time.Now().Format(time.RFC3339),
	}
	if len(proj.Story.PassageOrder) == 0 {
		result.Success = true
		result.Result = &simulator.SimulationResult{Success: true, Outcome: simulator.OutcomeFinished}
		return result
	}

	sim := simulator.NewPathSimulator(proj.Story)
	res := sim.SimulatePath(ctx, "", nil)
	result.Result = res
	result.Success = res.Outcome != simulator.OutcomeError
	if !result.Success && len(res.Errors) > 0 {
		result.Error = res.Errors[0]
	}
	return result
}

// getOutputPath genera il path per un file di output accanto al sorgente
func (tr *TestRunner) getOutputPath(entry, suffix string) string {
	baseName := strings.TrimSuffix(filepath.FromSlash(entry), tr.extension)
	return filepath.Join(tr.projectDir, baseName+suffix)
}

// saveJSON salva un oggetto come JSON
func (tr *TestRunner) saveJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, jsonData, 0644)
}
