package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/crackle/internal/presentation/graph"
	"github.com/aretw0/crackle/internal/presentation/tui"
	"github.com/aretw0/crackle/internal/runtime"
	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/model"
)

// CrackOptions selects the model bytes are cracked into.
type CrackOptions struct {
	RunOptions
	// Model is "<state>.<action>.<model>"; empty picks the only input model.
	Model string
	Hex   string
	File  string
}

// Validate checks the configured target's state model and models.
func Validate(opts RunOptions) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	tgt, err := opts.registry().Get(cfg.Target)
	if err != nil {
		return err
	}
	sm, err := tgt.StateModel()
	if err != nil {
		return err
	}
	if err := runtime.Validate(sm); err != nil {
		return err
	}
	models, err := runtime.CompileModels(sm)
	if err != nil {
		return err
	}
	printSystemMessage(opts.out(), "Target '%s' is valid: %d states, %d models.", tgt.Name, len(sm.States), len(models))
	return nil
}

// Graph prints the configured target's state model as a Mermaid diagram.
func Graph(opts RunOptions) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	tgt, err := opts.registry().Get(cfg.Target)
	if err != nil {
		return err
	}
	sm, err := tgt.StateModel()
	if err != nil {
		return err
	}
	fmt.Fprint(opts.out(), graph.GenerateMermaid(sm, nil))
	return nil
}

// Crack parses bytes against one model of the configured target and prints
// the resulting element values.
func Crack(ctx context.Context, opts CrackOptions) error {
	cfg, err := LoadConfig(opts.RunOptions)
	if err != nil {
		return err
	}
	tgt, err := opts.registry().Get(cfg.Target)
	if err != nil {
		return err
	}
	sm, err := tgt.StateModel()
	if err != nil {
		return err
	}
	models, err := runtime.CompileModels(sm)
	if err != nil {
		return err
	}
	tree, err := pickModel(models, opts.Model)
	if err != nil {
		return err
	}
	data, err := opts.input()
	if err != nil {
		return err
	}

	var crackOpts []cracker.Option
	if cfg.BestEffort {
		crackOpts = append(crackOpts, cracker.WithBestEffort())
	}
	res, crackErr := cracker.Bytes(ctx, tree, data, crackOpts...)

	out := opts.out()
	if opts.JSON {
		return writeCrackJSON(out, tree, res, crackErr)
	}
	rendered, err := tui.NewRenderer()(tui.ModelTable(tree))
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	if crackErr != nil {
		return fmt.Errorf("crack failed after %d bytes: %w", len(res.Consumed), crackErr)
	}
	printSystemMessage(out, "Cracked %d of %d bytes.", len(res.Consumed), len(data))
	return nil
}

func (o CrackOptions) input() ([]byte, error) {
	switch {
	case o.Hex != "" && o.File != "":
		return nil, fmt.Errorf("--hex and --file cannot be used together")
	case o.Hex != "":
		clean := strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(o.Hex)
		data, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return data, nil
	case o.File != "":
		return os.ReadFile(o.File)
	}
	return nil, fmt.Errorf("either --hex or --file is required")
}

// pickModel returns the model under key, or the only one when key is empty.
func pickModel(models runtime.Models, key string) (*model.Tree, error) {
	if key != "" {
		t, ok := models[key]
		if !ok {
			keys := models.Keys()
			sort.Strings(keys)
			return nil, fmt.Errorf("model not found: %s (have %s)", key, strings.Join(keys, ", "))
		}
		return t, nil
	}
	keys := models.Keys()
	sort.Strings(keys)
	if len(keys) != 1 {
		return nil, fmt.Errorf("target has %d models, choose one with --model: %s", len(keys), strings.Join(keys, ", "))
	}
	return models[keys[0]], nil
}

type crackedElement struct {
	Path  string      `json:"path"`
	Kind  string      `json:"kind"`
	Value model.Value `json:"value"`
}

type crackOutput struct {
	Model    string           `json:"model"`
	Consumed int              `json:"consumed"`
	Error    string           `json:"error,omitempty"`
	Elements []crackedElement `json:"elements"`
}

func writeCrackJSON(w io.Writer, tree *model.Tree, res *cracker.Result, crackErr error) error {
	out := crackOutput{Model: tree.Name(), Consumed: len(res.Consumed)}
	if crackErr != nil {
		out.Error = crackErr.Error()
	}
	tree.Walk(func(id model.ID) bool {
		if !tree.Kind(id).IsContainer() {
			out.Elements = append(out.Elements, crackedElement{Path: tree.Path(id), Kind: tree.Kind(id).String(), Value: tree.Value(id)})
		}
		return true
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return crackErr
}
