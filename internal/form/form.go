// Package form runs a tracker as a line-oriented terminal form and hands
// the finished record to the dataset appender.
package form

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zakazai/tracklog/internal/config"
	"github.com/zakazai/tracklog/internal/dataset"
	"github.com/zakazai/tracklog/internal/storage"
	"github.com/zakazai/tracklog/internal/types"
)

// ErrInputClosed is returned when the input ends before the form is complete
var ErrInputClosed = errors.New("input closed before the form was complete")

// Runner asks the questions of a tracker on in/out and saves the answers
type Runner struct {
	in     *bufio.Reader
	out    io.Writer
	store  storage.Store
	logger *types.Logger

	// Now supplies the defaults of date and time fields
	Now func() time.Time
}

// NewRunner creates a form runner appending to store
func NewRunner(in io.Reader, out io.Writer, store storage.Store, logger *types.Logger) *Runner {
	if logger == nil {
		logger = types.GlobalLogger
	}
	return &Runner{
		in:     bufio.NewReader(in),
		out:    out,
		store:  store,
		logger: logger,
		Now:    time.Now,
	}
}

// Run collects one entry for the tracker and appends it
func (r *Runner) Run(t *config.Tracker) error {
	rec, err := r.Collect(t)
	if err != nil {
		return err
	}
	return r.Submit(t, rec)
}

// Collect asks every field of the tracker and returns the record. Fields
// whose condition does not hold are recorded empty.
func (r *Runner) Collect(t *config.Tracker) (types.Record, error) {
	fmt.Fprintf(r.out, "== %s ==\n", t.Title)

	answers := make(map[string]types.Value, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.When != nil && types.FormatValue(answers[f.When.Field]) != f.When.Equals {
			answers[f.Name] = nil
			continue
		}
		v, err := r.ask(f)
		if err != nil {
			return types.Record{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		answers[f.Name] = v
	}
	return BuildRecord(t, answers), nil
}

// BuildRecord orders answers by the tracker's columns, then by the
// remaining fields in form order
func BuildRecord(t *config.Tracker, answers map[string]types.Value) types.Record {
	fields := make([]types.Field, 0, len(t.Fields))
	used := make(map[string]bool, len(t.Fields))
	for _, col := range t.Columns {
		if v, ok := answers[col]; ok && !used[col] {
			fields = append(fields, types.Field{Name: col, Value: v})
			used[col] = true
		}
	}
	for _, f := range t.Fields {
		if v, ok := answers[f.Name]; ok && !used[f.Name] {
			fields = append(fields, types.Field{Name: f.Name, Value: v})
			used[f.Name] = true
		}
	}
	return types.NewRecord(fields...)
}

// Submit appends rec to the tracker's dataset. On failure the user may
// retry with the same record; when they decline, the record is printed so
// the answers are not lost, and the append error is returned.
func (r *Runner) Submit(t *config.Tracker, rec types.Record) error {
	for {
		err := dataset.Append(r.store, rec, t.Dataset)
		if err == nil {
			r.logger.Info("data saved to %s", r.store.Location(t.Dataset))
			if t.Success != "" {
				fmt.Fprintln(r.out, t.Success)
			}
			return nil
		}

		r.logger.Error("failed to save entry for %s: %v", t.Dataset, err)
		fmt.Fprintf(r.out, "Could not save entry: %v\n", err)
		retry, askErr := r.confirm("Retry?")
		if askErr != nil || !retry {
			r.printRecord(rec)
			return err
		}
	}
}

func (r *Runner) printRecord(rec types.Record) {
	fmt.Fprintln(r.out, "Unsaved entry:")
	for _, f := range rec.Fields() {
		fmt.Fprintf(r.out, "  %s: %s\n", f.Name, types.FormatValue(f.Value))
	}
}

func (r *Runner) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) confirm(question string) (bool, error) {
	fmt.Fprintf(r.out, "%s [y/N] ", question)
	answer, err := r.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (r *Runner) ask(f *config.Field) (types.Value, error) {
	switch f.Kind {
	case config.KindSelect:
		return r.askSelect(f)
	case config.KindMultiSelect:
		return r.askMultiSelect(f)
	case config.KindSlider:
		return r.askSlider(f)
	case config.KindDate:
		return r.askDate(f)
	case config.KindTime:
		return r.askTime(f)
	case config.KindTextarea:
		return r.askTextarea(f.Prompt)
	default:
		return r.askText(f.Prompt)
	}
}

func (r *Runner) askText(prompt string) (types.Value, error) {
	fmt.Fprintf(r.out, "%s ", prompt)
	return r.readLine()
}

func (r *Runner) askTextarea(prompt string) (types.Value, error) {
	fmt.Fprintf(r.out, "%s (end with an empty line)\n", prompt)
	var lines []string
	for {
		line, err := r.readLine()
		if errors.Is(err, ErrInputClosed) && len(lines) > 0 {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Runner) printOptions(f *config.Field) {
	fmt.Fprintln(r.out, f.Prompt)
	for i, opt := range f.Options {
		fmt.Fprintf(r.out, "  %d) %s\n", i+1, opt)
	}
}

// pickOption matches the option text, then a 1-based index
func pickOption(options []string, answer string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(opt, answer) {
			return opt, true
		}
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return "", false
}

func (r *Runner) askSelect(f *config.Field) (types.Value, error) {
	def := f.Default
	if def == "" {
		def = f.Options[0]
	}
	r.printOptions(f)
	for {
		fmt.Fprintf(r.out, "Choice [%s]: ", def)
		answer, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if answer == "" {
			answer = def
		}
		choice, ok := pickOption(f.Options, answer)
		if !ok {
			fmt.Fprintf(r.out, "Invalid choice %q\n", answer)
			continue
		}
		if f.OtherOption != "" && choice == f.OtherOption {
			prompt := f.OtherPrompt
			if prompt == "" {
				prompt = "Please specify:"
			}
			return r.askText(prompt)
		}
		return choice, nil
	}
}

// Choose asks for one of options, defaulting to the first
func (r *Runner) Choose(prompt string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("nothing to choose from")
	}
	v, err := r.askSelect(&config.Field{Prompt: prompt, Kind: config.KindSelect, Options: options})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Runner) askMultiSelect(f *config.Field) (types.Value, error) {
	r.printOptions(f)
	for {
		fmt.Fprint(r.out, "Choices (comma separated, empty for none): ")
		answer, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if answer == "" {
			return "", nil
		}

		var picked []string
		valid := true
		for _, part := range strings.Split(answer, ",") {
			choice, ok := pickOption(f.Options, strings.TrimSpace(part))
			if !ok {
				fmt.Fprintf(r.out, "Invalid choice %q\n", strings.TrimSpace(part))
				valid = false
				break
			}
			picked = append(picked, choice)
		}
		if valid {
			return strings.Join(picked, f.Join), nil
		}
	}
}

func isWhole(f float64) bool {
	return f == math.Trunc(f)
}

// SliderValue checks v against the field's range and step. Sliders whose
// bounds and step are whole numbers yield int64, others float64.
func SliderValue(f *config.Field, v float64) (types.Value, error) {
	if math.IsNaN(v) || v < f.Min || v > f.Max {
		return nil, fmt.Errorf("%v is outside %v..%v", v, f.Min, f.Max)
	}
	steps := (v - f.Min) / f.Step
	if math.Abs(steps-math.Round(steps)) > 1e-9 {
		return nil, fmt.Errorf("%v is not a multiple of %v", v, f.Step)
	}
	if isWhole(f.Min) && isWhole(f.Max) && isWhole(f.Step) {
		return int64(v), nil
	}
	return v, nil
}

func (r *Runner) askSlider(f *config.Field) (types.Value, error) {
	def := f.Min
	if f.Default != "" {
		if d, err := strconv.ParseFloat(f.Default, 64); err == nil {
			def = d
		}
	}
	for {
		fmt.Fprintf(r.out, "%s [%s]: ", f.Prompt, strconv.FormatFloat(def, 'f', -1, 64))
		answer, err := r.readLine()
		if err != nil {
			return nil, err
		}
		v := def
		if answer != "" {
			v, err = strconv.ParseFloat(answer, 64)
			if err != nil {
				fmt.Fprintf(r.out, "Not a number: %q\n", answer)
				continue
			}
		}
		value, err := SliderValue(f, v)
		if err != nil {
			fmt.Fprintln(r.out, err)
			continue
		}
		return value, nil
	}
}

func (r *Runner) askDate(f *config.Field) (types.Value, error) {
	now := r.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	def := today
	if f.Default != "" && f.Default != "today" {
		if d, err := time.Parse(types.DateLayout, f.Default); err == nil {
			def = d
		}
	}
	for {
		fmt.Fprintf(r.out, "%s [%s]: ", f.Prompt, def.Format(types.DateLayout))
		answer, err := r.readLine()
		if err != nil {
			return nil, err
		}
		switch answer {
		case "":
			return def, nil
		case "today":
			return today, nil
		}
		d, err := time.Parse(types.DateLayout, answer)
		if err != nil {
			fmt.Fprintf(r.out, "Expected a date like %s\n", types.DateLayout)
			continue
		}
		return d, nil
	}
}

// ParseClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS
func ParseClock(s string) (string, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("expected a time like 14:30, got %q", s)
}

func (r *Runner) askTime(f *config.Field) (types.Value, error) {
	def := r.Now().Format("15:04:05")
	if f.Default != "" && f.Default != "now" {
		if d, err := ParseClock(f.Default); err == nil {
			def = d
		}
	}
	for {
		fmt.Fprintf(r.out, "%s [%s]: ", f.Prompt, def)
		answer, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if answer == "" {
			return def, nil
		}
		if answer == "now" {
			return r.Now().Format("15:04:05"), nil
		}
		clock, err := ParseClock(answer)
		if err != nil {
			fmt.Fprintln(r.out, err)
			continue
		}
		return clock, nil
	}
}
