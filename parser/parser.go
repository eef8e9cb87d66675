package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"vnscript-editor/grammar"
	"vnscript-editor/logging"
	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

// Parser costruisce un Project a partire dal file di ingresso.
// Non conserva stato tra un caricamento e l'altro.
type Parser struct {
	loader  Loader
	grammar *grammar.Grammar
	log     *slog.Logger
}

// New crea un parser che legge i file tramite loader
func New(loader Loader, g *grammar.Grammar) *Parser {
	if g == nil {
		g = grammar.New()
	}
	return &Parser{loader: loader, grammar: g, log: logging.WithComponent("parser")}
}

// Grammar restituisce la grammatica usata dal parser
func (p *Parser) Grammar() *grammar.Grammar {
	return p.grammar
}

// load è lo stato di un singolo caricamento
type load struct {
	*Parser
	proj *Project
}

// Load analizza il file di ingresso e, in profondità, tutti i file inclusi.
// Un file illeggibile interrompe l'intero caricamento con un errore;
// gli errori di sintassi finiscono invece nelle diagnostiche dei file.
func (p *Parser) Load(ctx context.Context, entry string) (*Project, error) {
	entry = path.Clean(entry)
	l := &load{
		Parser: p,
		proj: &Project{
			Entry: entry,
			Story: story.NewDefinition(),
			Files: make(map[string]*FileContext),
		},
	}

	if err := l.parseFile(ctx, entry); err != nil {
		p.log.Error("❌ caricamento progetto fallito", slog.String("entry", entry), slog.Any("error", err))
		return nil, err
	}

	syntax := len(l.proj.Diagnostics())
	p.log.Info("📖 progetto analizzato",
		slog.String("entry", entry),
		slog.Int("files", len(l.proj.Order)),
		slog.Int("passages", len(l.proj.Story.Passages)),
		slog.Int("syntax_errors", syntax))
	return l.proj, nil
}

func (l *load) parseFile(ctx context.Context, name string) error {
	if _, done := l.proj.Files[name]; done {
		return nil
	}

	text, err := l.loader.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("impossibile caricare %s: %w", name, err)
	}

	file := &FileContext{Path: name, Lines: SplitLines(text)}
	file.LineStates = make([]LineState, len(file.Lines))
	l.proj.Files[name] = file
	l.proj.Order = append(l.proj.Order, name)
	l.log.Debug("📄 analisi file", slog.String("file", name), slog.Int("lines", len(file.Lines)))

	var frames []Frame
	for row := range file.Lines {
		sc := scanner.New(file.Lines)
		sc.SetCursor(row, 0)
		indent := sc.Indentation()
		if sc.AtEOL() {
			file.LineStates[row] = LineState{Blank: true}
			continue
		}

		frames = popFrames(frames, indent)
		lp := newLineParser(name, file.Lines, row, sc.Col())
		pushed, err := l.parseLine(ctx, file, lp, frames, indent)
		if err != nil {
			return err
		}
		if pushed != nil {
			frames = append(frames, pushed)
		}
		file.LineStates[row] = LineState{Indent: indent, Frames: append([]Frame(nil), frames...)}
	}
	return nil
}

// parseLine analizza una riga nel contesto del frame più interno.
// Restituisce l'eventuale frame aperto dalla riga; l'errore è solo quello di
// caricamento di un include.
func (l *load) parseLine(ctx context.Context, file *FileContext, lp *lineParser, frames []Frame, indent int) (Frame, error) {
	var top Frame
	if len(frames) > 0 {
		top = frames[len(frames)-1]
	}

	var (
		pushed  Frame
		loadErr error
		diag    *story.Diagnostic
	)

	switch f := top.(type) {
	case nil:
		if diag = lp.walk(l.grammar.TopLevel, ""); diag == nil {
			pushed, diag, loadErr = l.topLevel(ctx, file, lp, indent)
		}
	case *CharacterFrame:
		if diag = lp.walk(l.grammar.CharacterBody, ""); diag == nil {
			pushed, diag = l.characterBody(lp, f.Character, indent)
		}
	case *OutfitFrame:
		if diag = lp.walk(l.grammar.OutfitBody, ""); diag == nil {
			diag = l.outfitBody(lp, f.Character, f.Outfit)
		}
	case *PassageFrame:
		pushed, diag = l.passageBody(lp, f.Passage, &f.Passage.Actions, indent)
	case *ContainerFrame:
		pushed, diag = l.passageBody(lp, f.Passage, f.Actions, indent)
	}

	file.Tokens = append(file.Tokens, lp.tokens...)
	if diag != nil {
		file.Diagnostics = append(file.Diagnostics, *diag)
	}
	return pushed, loadErr
}

// ============================================
// Definizioni di primo livello
// ============================================

func (l *load) topLevel(ctx context.Context, file *FileContext, lp *lineParser, indent int) (Frame, *story.Diagnostic, error) {
	def := l.proj.Story
	id := lp.token(grammar.FieldID)
	idRange := lp.rangeOf(grammar.FieldID)
	stmtRange := lp.statementRange()

	switch lp.statement {
	case grammar.StmtDefineCharacter:
		lp.annotate("", story.ScopeGlobal)
		c := story.NewCharacter(id.Text, scanner.DecodeString(lp.token(grammar.FieldName).Text))
		c.IDRange = idRange
		c.Range = stmtRange
		frame := &CharacterFrame{level: level{indent}, Character: c}
		if l.grammar.IsReserved(c.ID) {
			d := story.NewDiagnostic(story.DiagnosticSyntax, idRange, "'%s' è una parola riservata e non può identificare un personaggio", c.ID)
			return frame, &d, nil
		}
		if _, exists := def.Characters[c.ID]; exists {
			return frame, redefined(story.EntityCharacter, id, idRange), nil
		}
		def.Characters[c.ID] = c
		return frame, nil, nil

	case grammar.StmtDefineBackdrop:
		b := &story.Backdrop{
			ID:         id.Text,
			Image:      l.assetPath(file, lp.token(grammar.FieldAsset)),
			IDRange:    idRange,
			ImageRange: lp.rangeOf(grammar.FieldAsset),
			Range:      stmtRange,
		}
		if _, exists := def.Backdrops[b.ID]; exists {
			return nil, redefined(story.EntityBackdrop, id, idRange), nil
		}
		def.Backdrops[b.ID] = b

	case grammar.StmtDefineSound:
		s := &story.Sound{
			ID:         id.Text,
			Audio:      l.assetPath(file, lp.token(grammar.FieldAsset)),
			IDRange:    idRange,
			AudioRange: lp.rangeOf(grammar.FieldAsset),
			Range:      stmtRange,
		}
		if _, exists := def.Sounds[s.ID]; exists {
			return nil, redefined(story.EntitySound, id, idRange), nil
		}
		def.Sounds[s.ID] = s

	case grammar.StmtDefineGlobal, grammar.StmtDefineCast:
		scope, target := story.ScopeGlobal, def.Globals
		if lp.statement == grammar.StmtDefineCast {
			scope, target = story.ScopeCast, def.Cast
		}
		lp.annotate("", scope)
		v := l.variable(lp, scope, "")
		if _, exists := target[v.ID]; exists {
			return nil, redefined(story.EntityVariable, id, idRange), nil
		}
		target[v.ID] = v

	case grammar.StmtDefinePassage:
		p := &story.Passage{ID: id.Text, IDRange: idRange, Range: stmtRange}
		frame := &PassageFrame{level: level{indent}, Passage: p}
		if _, exists := def.Passages[p.ID]; exists {
			return frame, redefined(story.EntityPassage, id, idRange), nil
		}
		def.Passages[p.ID] = p
		def.PassageOrder = append(def.PassageOrder, p.ID)
		return frame, nil, nil

	case grammar.StmtInclude:
		target := path.Join(path.Dir(file.Path), scanner.DecodeString(lp.token(grammar.FieldPath).Text))
		l.log.Debug("🔗 include", slog.String("from", file.Path), slog.String("file", target))
		// I token della riga vanno registrati prima del file incluso
		file.Tokens = append(file.Tokens, lp.tokens...)
		lp.tokens = nil
		if err := l.parseFile(ctx, target); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

// assetPath risolve il percorso di un asset rispetto al file che lo dichiara
func (l *load) assetPath(file *FileContext, tok scanner.Token) string {
	return path.Join(path.Dir(file.Path), scanner.DecodeString(tok.Text))
}

func (l *load) variable(lp *lineParser, scope story.VariableScope, character string) *story.Variable {
	value := DecodeValue(lp.token(grammar.FieldValue))
	return &story.Variable{
		ID:         lp.token(grammar.FieldID).Name(),
		Scope:      scope,
		Character:  character,
		Type:       value.Kind(),
		Initial:    value,
		IDRange:    lp.rangeOf(grammar.FieldID),
		ValueRange: lp.rangeOf(grammar.FieldValue),
		Range:      lp.statementRange(),
	}
}

func redefined(e story.Entity, id scanner.Token, r story.Range) *story.Diagnostic {
	d := story.NewDiagnostic(story.DiagnosticSyntax, r, "%s '%s' definito più volte", e, id.Name())
	return &d
}

// ============================================
// Corpo del personaggio e dell'outfit
// ============================================

func (l *load) characterBody(lp *lineParser, c *story.Character, indent int) (Frame, *story.Diagnostic) {
	id := lp.token(grammar.FieldID)
	idRange := lp.rangeOf(grammar.FieldID)
	lp.annotate(c.ID, story.ScopeCharacter)

	switch lp.statement {
	case grammar.StmtOutfit:
		o := &story.Outfit{ID: id.Text, Expressions: make(map[string]*story.Expression), IDRange: idRange, Range: lp.statementRange()}
		frame := &OutfitFrame{level: level{indent}, Character: c, Outfit: o}
		if _, exists := c.Outfits[o.ID]; exists {
			return frame, redefined(story.EntityOutfit, id, idRange)
		}
		c.Outfits[o.ID] = o
		c.OutfitOrder = append(c.OutfitOrder, o.ID)
		return frame, nil

	case grammar.StmtCharacterVariable:
		v := l.variable(lp, story.ScopeCharacter, c.ID)
		if _, exists := c.Variables[v.ID]; exists {
			return nil, redefined(story.EntityVariable, id, idRange)
		}
		c.Variables[v.ID] = v
	}
	return nil, nil
}

func (l *load) outfitBody(lp *lineParser, c *story.Character, o *story.Outfit) *story.Diagnostic {
	id := lp.token(grammar.FieldID)
	idRange := lp.rangeOf(grammar.FieldID)
	lp.annotate(c.ID, story.ScopeCharacter)

	e := &story.Expression{
		ID:         id.Text,
		Image:      path.Join(path.Dir(lp.path), scanner.DecodeString(lp.token(grammar.FieldAsset).Text)),
		IDRange:    idRange,
		ImageRange: lp.rangeOf(grammar.FieldAsset),
		Range:      lp.statementRange(),
	}
	if _, exists := o.Expressions[e.ID]; exists {
		return redefined(story.EntityExpression, id, idRange)
	}
	o.Expressions[e.ID] = e
	o.ExpressionOrder = append(o.ExpressionOrder, e.ID)
	return nil
}

// ============================================
// Azioni dei passaggi
// ============================================

// passageBody sceglie tra azione del narratore e azione del personaggio in base
// al primo token: un identificatore che nomina un personaggio definito apre
// un'azione del personaggio.
func (l *load) passageBody(lp *lineParser, passage *story.Passage, actions *[]story.Action, indent int) (Frame, *story.Diagnostic) {
	root := l.grammar.NarratorActions
	first := lp.peek(root).tok
	if first.Kind == scanner.KindIdentifier {
		if _, ok := l.proj.Story.Characters[first.Text]; ok {
			root = l.grammar.CharacterActions
		}
	}
	if diag := lp.walk(root, ""); diag != nil {
		return nil, diag
	}

	action := l.buildAction(lp)
	*actions = append(*actions, action)

	if lp.statement.IsContainer() {
		frame := &ContainerFrame{level: level{indent}, Passage: passage, Owner: action}
		switch a := action.(type) {
		case *story.OptionAction:
			frame.Actions = &a.Actions
		case *story.CheckAction:
			frame.Actions = &a.Actions
		}
		return frame, nil
	}
	return nil, nil
}

func (l *load) buildAction(lp *lineParser) story.Action {
	stmt := story.Stmt{Source: lp.statementRange()}

	actor := story.Actor{}
	if lp.statement.IsCharacterAction() {
		actor = story.Actor{Character: lp.token(grammar.FieldCharacter).Text, CharacterRange: lp.rangeOf(grammar.FieldCharacter)}
		lp.annotate(actor.Character, story.ScopeCharacter)
	} else {
		lp.annotate("", story.ScopeGlobal)
	}

	target := lp.token(grammar.FieldTarget).Text
	targetRange := lp.rangeOf(grammar.FieldTarget)
	text := scanner.DecodeString(lp.token(grammar.FieldText).Text)
	textRange := lp.rangeOf(grammar.FieldText)
	variable := lp.token(grammar.FieldVariable).Name()
	variableRange := lp.rangeOf(grammar.FieldVariable)
	location := story.Location(lp.token(grammar.FieldLocation).Text)
	locationRange := lp.rangeOf(grammar.FieldLocation)

	switch lp.statement {
	case grammar.StmtContinue:
		return &story.ContinueAction{Stmt: stmt}
	case grammar.StmtGoto:
		return &story.GotoAction{Stmt: stmt, Passage: target, PassageRange: targetRange}
	case grammar.StmtEnd:
		return &story.EndAction{Stmt: stmt}
	case grammar.StmtDisplay:
		return &story.BackdropAction{Stmt: stmt, Backdrop: target, BackdropRange: targetRange}
	case grammar.StmtPlay:
		return &story.SoundAction{Stmt: stmt, Sound: target, SoundRange: targetRange}
	case grammar.StmtNarrate:
		return &story.NarrateAction{Stmt: stmt, Text: text, TextRange: textRange}
	case grammar.StmtOption:
		return &story.OptionAction{Stmt: stmt, Text: text, TextRange: textRange}

	case grammar.StmtEnter:
		return &story.EnterAction{Stmt: stmt, Actor: actor, Location: location, LocationRange: locationRange}
	case grammar.StmtExit:
		return &story.ExitAction{Stmt: stmt, Actor: actor, Location: location, LocationRange: locationRange}
	case grammar.StmtMove:
		return &story.MoveAction{Stmt: stmt, Actor: actor, Location: location, LocationRange: locationRange}
	case grammar.StmtSay:
		return &story.SpeakAction{Stmt: stmt, Actor: actor, Text: text, TextRange: textRange}
	case grammar.StmtLook:
		return &story.ExpressionAction{Stmt: stmt, Actor: actor, Expression: target, ExpressionRange: targetRange}
	case grammar.StmtWear:
		a := &story.OutfitAction{Stmt: stmt, Actor: actor, Outfit: target, OutfitRange: targetRange}
		if lp.has(grammar.FieldExpression) {
			a.Expression = lp.token(grammar.FieldExpression).Text
			a.ExpressionRange = lp.rangeOf(grammar.FieldExpression)
		}
		return a

	case grammar.StmtCheck, grammar.StmtCharacterCheck:
		cmp := lp.token(grammar.FieldComparison)
		op, _ := story.ComparisonFromPhrase(cmp.Text)
		return &story.CheckAction{
			Stmt: stmt, Actor: actor,
			Variable: variable, VariableRange: variableRange,
			Comparison: op, ComparisonRange: cmp.Range(lp.path),
			Operand: l.operand(lp, grammar.FieldValue),
		}
	case grammar.StmtSet, grammar.StmtCharacterSet:
		return &story.SetAction{Stmt: stmt, Actor: actor, Variable: variable, VariableRange: variableRange, Value: l.operand(lp, grammar.FieldValue)}
	case grammar.StmtAdd, grammar.StmtCharacterAdd:
		a := &story.AddAction{Stmt: stmt, Actor: actor, Variable: variable, VariableRange: variableRange, Value: l.operand(lp, grammar.FieldValue)}
		if lp.has(grammar.FieldKey) {
			key := l.operand(lp, grammar.FieldKey)
			a.Key = &key
		}
		return a
	case grammar.StmtSubtract, grammar.StmtCharacterSubtract:
		return &story.SubtractAction{Stmt: stmt, Actor: actor, Variable: variable, VariableRange: variableRange, Value: l.operand(lp, grammar.FieldValue)}
	}
	panic(fmt.Sprintf("parser: istruzione %d senza azione", lp.statement))
}

func (l *load) operand(lp *lineParser, field string) story.Operand {
	return story.Operand{Value: DecodeValue(lp.token(field)), Range: lp.rangeOf(field)}
}
