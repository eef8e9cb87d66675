package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"vnscript-editor/api"
	"vnscript-editor/config"
	"vnscript-editor/interpreter"
	"vnscript-editor/langservice"
	"vnscript-editor/logging"
	"vnscript-editor/parser"
	"vnscript-editor/presenter"
	_ "vnscript-editor/presenter/console"  // Registra il presenter da terminale
	_ "vnscript-editor/presenter/scripted" // Registra il presenter non interattivo
	"vnscript-editor/simulator"
	"vnscript-editor/test"
	"vnscript-editor/validator"
	"vnscript-editor/version"
)

const usage = `VNScript Editor %s

uso: vnscript <comando> [argomenti]

comandi:
  serve [root] [entry]         avvia l'API per l'editor
  check [cartella]             analizza e valida tutti i progetti della cartella
  play [entry]                 esegue la storia nel terminale
  simulate <entry> [scelte...] esegue la storia con le scelte indicate e stampa il risultato in JSON
  lex <file>                   stampa i token di un file
  init                         scrive la configurazione predefinita
  version                      stampa la versione
`

func main() {
	if len(os.Args) < 2 {
		fmt.Printf(usage, version.String())
		os.Exit(1)
	}

	cfgPath := os.Getenv("VNS_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultFile
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fail(err)
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		err = doServe(cfg, args)
	case "check":
		err = doCheck(ctx, args)
	case "play":
		err = doPlay(ctx, cfg, args)
	case "simulate":
		err = doSimulate(ctx, args)
	case "lex":
		err = doLex(ctx, args)
	case "init":
		err = doInit(cfgPath)
	case "version":
		fmt.Println(version.String())
	case "help", "-h", "--help":
		fmt.Printf(usage, version.String())
	default:
		fmt.Println("comando sconosciuto:", cmd)
		os.Exit(1)
	}

	if err != nil {
		stop()
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "❌", err)
	os.Exit(1)
}

// splitEntry divide il percorso del file di ingresso in cartella e nome
func splitEntry(cfg config.Config, args []string) (string, string) {
	if len(args) > 0 {
		return filepath.Dir(args[0]), filepath.Base(args[0])
	}
	return cfg.Project.Root, cfg.Project.Entry
}

// load analizza e valida il progetto; le diagnostiche vengono stampate
func load(ctx context.Context, root, entry string) (*parser.Project, error) {
	proj, diags, err := validator.Check(ctx, parser.NewDirLoader(root), entry)
	if err != nil {
		return nil, err
	}
	if len(diags) > 0 {
		for _, d := range langservice.New(proj, nil).Diagnostics(diags) {
			fmt.Fprintln(os.Stderr, d.Formatted)
		}
		return nil, fmt.Errorf("%d errori in %s", len(diags), entry)
	}
	return proj, nil
}

func doServe(cfg config.Config, args []string) error {
	root, entry := cfg.Project.Root, cfg.Project.Entry
	if len(args) > 0 {
		root = args[0]
	}
	if len(args) > 1 {
		entry = args[1]
	}

	server := api.NewServer(api.ServerConfig{
		Port:          cfg.Server.Port,
		EnableCORS:    cfg.Server.CORS,
		Debug:         cfg.Server.Debug,
		Root:          root,
		Entry:         entry,
		RevealPerChar: time.Duration(cfg.Player.RevealMsPerChar) * time.Millisecond,
		Debounce:      time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
		Extension:     cfg.Watcher.Extension,
	})
	return server.Start()
}

func doCheck(ctx context.Context, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	summary, err := test.NewTestRunner(dir, os.Stdout).RunTests(ctx, "")
	if err != nil {
		return err
	}
	if summary.CheckFailed > 0 || summary.RunFailed > 0 {
		return fmt.Errorf("%d file con errori", summary.CheckFailed+summary.RunFailed)
	}
	return nil
}

func doPlay(ctx context.Context, cfg config.Config, args []string) error {
	root, entry := splitEntry(cfg, args)
	proj, err := load(ctx, root, entry)
	if err != nil {
		return err
	}

	p := presenter.GetRegisteredPresenter(cfg.Player.Presenter, presenter.Options{
		RevealPerChar: time.Duration(cfg.Player.RevealMsPerChar) * time.Millisecond,
	})
	if p == nil {
		return fmt.Errorf("presenter '%s' non registrato (disponibili: %v)", cfg.Player.Presenter, presenter.GetAvailablePresenters())
	}

	_, err = interpreter.New(proj.Story, p).Run(ctx)
	var rt *interpreter.RuntimeError
	switch {
	case err == nil, interpreter.IsEnded(err):
		fmt.Println("🏁 Fine")
		return nil
	case errors.As(err, &rt):
		fmt.Fprintln(os.Stderr, proj.FormatDiagnostic(rt.Diagnostic))
		return fmt.Errorf("esecuzione interrotta")
	}
	return err
}

func doSimulate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("uso: vnscript simulate <entry> [scelte...]")
	}
	proj, err := load(ctx, filepath.Dir(args[0]), filepath.Base(args[0]))
	if err != nil {
		return err
	}

	choices := make([]int, 0, len(args)-1)
	for _, a := range args[1:] {
		n, convErr := strconv.Atoi(a)
		if convErr != nil {
			return fmt.Errorf("scelta non valida '%s': %w", a, convErr)
		}
		choices = append(choices, n)
	}

	result := simulator.NewPathSimulator(proj.Story).SimulatePath(ctx, "", choices)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func doLex(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("uso: vnscript lex <file.vns>")
	}

	name := filepath.Base(args[0])
	proj, err := parser.New(parser.NewDirLoader(filepath.Dir(args[0])), nil).Load(ctx, name)
	if err != nil {
		return err
	}
	f, _ := proj.File(name)
	for _, tok := range f.Tokens {
		fmt.Printf("%-12s %-24q (%s:%d:%d) %s\n",
			tok.Kind, tok.Text, name, tok.Row+1, tok.Start+1, tok.Describe())
	}
	for _, d := range f.Diagnostics {
		fmt.Println(proj.FormatDiagnostic(d))
	}
	return nil
}

func doInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s esiste già", path)
	}
	if err := config.Save(path, config.Defaults()); err != nil {
		return err
	}
	fmt.Printf("✅ Configurazione scritta in %s\n", path)
	return nil
}
