package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/docfang/internal/generate"
	"github.com/Sumatoshi-tech/docfang/internal/progress"
	"github.com/Sumatoshi-tech/docfang/internal/render"
)

// auditPresenter prompts for a 1-4 rating per documentation item.
type auditPresenter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newAuditPresenter(in io.Reader, out io.Writer) *auditPresenter {
	return &auditPresenter{in: bufio.NewScanner(in), out: out}
}

// Present implements progress.Presenter for audit sessions.
func (p *auditPresenter) Present(_ context.Context, item progress.Item, _ int) (progress.Decision, error) {
	printItemHeader(p.out, item)

	if item.Content == "" {
		color.New(color.FgRed).Fprintln(p.out, "  (no documentation)")
	} else {
		fmt.Fprintf(p.out, "  %s\n", item.Content)
	}

	for {
		fmt.Fprint(p.out, "Rate [1-4], [s]kip, [q]uit: ")

		line, ok := readLine(p.in)
		if !ok {
			// Input exhausted; treat as quit so progress is saved.
			return progress.Decision{Action: progress.ActionQuit}, nil
		}

		switch line {
		case "s":
			return progress.Decision{Action: progress.ActionSkip}, nil
		case "q":
			return progress.Decision{Action: progress.ActionQuit}, nil
		}

		rating, err := strconv.Atoi(line)
		if err == nil && rating >= progress.RatingMin && rating <= progress.RatingMax {
			return progress.Decision{Action: progress.ActionAccept, Rating: rating}, nil
		}

		fmt.Fprintln(p.out, "Please enter a rating from 1 (poor) to 4 (excellent).")
	}
}

// improvePresenter shows a suggested documentation rewrite per item and
// collects accept/skip/edit/regenerate decisions.
type improvePresenter struct {
	in        *bufio.Scanner
	out       io.Writer
	generator generate.Generator

	// originals maps item keys to the documentation text the suggestion is
	// diffed against.
	originals map[string]string
	kinds     map[string]string
}

func newImprovePresenter(in io.Reader, out io.Writer, generator generate.Generator) *improvePresenter {
	return &improvePresenter{
		in:        bufio.NewScanner(in),
		out:       out,
		generator: generator,
		originals: make(map[string]string),
		kinds:     make(map[string]string),
	}
}

// track registers an item's original documentation before the run starts.
func (p *improvePresenter) track(filepath, name, kind, doc string) {
	p.originals[itemKey(filepath, name)] = doc
	p.kinds[itemKey(filepath, name)] = kind
}

// Present implements progress.Presenter for improve sessions. On the first
// attempt the suggestion is generated; later attempts reuse the content the
// edit/regenerate loop put on the item.
func (p *improvePresenter) Present(ctx context.Context, item progress.Item, attempt int) (progress.Decision, error) {
	key := itemKey(item.Filepath, item.Name)

	suggestion := item.Content
	if attempt == 0 {
		generated, err := p.generate(ctx, item)
		if err != nil {
			fmt.Fprintf(p.out, "Suggestion failed: %v\n", err)

			return progress.Decision{Action: progress.ActionError, Err: err}, nil
		}

		suggestion = generated
	}

	printItemHeader(p.out, item)
	fmt.Fprintln(p.out, render.DiffPreview(p.originals[key], suggestion))

	for {
		fmt.Fprint(p.out, "[a]ccept, [s]kip, [e]dit, [r]egenerate, [q]uit: ")

		line, ok := readLine(p.in)
		if !ok {
			return progress.Decision{Action: progress.ActionQuit}, nil
		}

		switch line {
		case "a":
			return progress.Decision{Action: progress.ActionAccept, Suggestion: suggestion}, nil
		case "s":
			return progress.Decision{Action: progress.ActionSkip}, nil
		case "q":
			return progress.Decision{Action: progress.ActionQuit}, nil
		case "e":
			fmt.Fprint(p.out, "Replacement text: ")

			edited, editOK := readLine(p.in)
			if !editOK {
				return progress.Decision{Action: progress.ActionQuit}, nil
			}

			return progress.Decision{Action: progress.ActionEdit, Content: edited}, nil
		case "r":
			regenerated, err := p.generate(ctx, item)
			if err != nil {
				fmt.Fprintf(p.out, "Regeneration failed: %v\n", err)

				return progress.Decision{Action: progress.ActionError, Err: err}, nil
			}

			return progress.Decision{Action: progress.ActionRegenerate, Content: regenerated}, nil
		}

		fmt.Fprintln(p.out, "Unrecognized choice.")
	}
}

func (p *improvePresenter) generate(ctx context.Context, item progress.Item) (string, error) {
	key := itemKey(item.Filepath, item.Name)
	prompt := generate.SuggestionPrompt(item.Filepath, item.Name, p.kinds[key], p.originals[key])

	suggestion, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(suggestion), nil
}

func printItemHeader(out io.Writer, item progress.Item) {
	color.New(color.FgCyan, color.Bold).Fprintf(out, "\n%s :: %s\n", item.Filepath, item.Name)
}

func readLine(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}

	return strings.TrimSpace(scanner.Text()), true
}

func itemKey(filepath, name string) string {
	return filepath + "::" + name
}
