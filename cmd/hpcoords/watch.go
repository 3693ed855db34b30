package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/determined-ai/hpcoords/internal/client"
	"github.com/determined-ai/hpcoords/internal/filter"
	"github.com/determined-ai/hpcoords/internal/snapshot"
	"github.com/determined-ai/hpcoords/internal/stream"
	"github.com/determined-ai/hpcoords/internal/view"
	"github.com/determined-ai/hpcoords/pkg/model"
)

type watchOptions struct {
	server        string
	token         string
	experiment    int
	batches       int
	batchesMargin int
	metric        string
	hparams       []string
	ranges        []string
	values        []string
	period        time.Duration
	maxRetryTime  time.Duration
}

func newWatchCmd() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "print the filtered trials of an experiment as its snapshot grows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:8090", "address of the hpcoords server")
	flags.StringVar(&opts.token, "token", "", "bearer token sent with every request")
	flags.IntVar(&opts.experiment, "experiment", 0, "experiment id")
	flags.IntVar(&opts.batches, "batches", 0, "batches processed at which to take the snapshot")
	flags.IntVar(&opts.batchesMargin, "batches-margin", 0, "accept trials within this many batches")
	flags.StringVar(&opts.metric, "metric", "validation.loss", "metric as <group>.<name>")
	flags.StringSliceVar(&opts.hparams, "hparams", nil, "hyperparameters to show (default all)")
	flags.StringArrayVar(&opts.ranges, "range", nil, "keep trials with name in [min, max], as name=min:max")
	flags.StringArrayVar(&opts.values, "values", nil, "keep trials with name in a set, as name=a,b,c")
	flags.DurationVar(&opts.period, "period", 0, "poll period requested from the server")
	flags.DurationVar(&opts.maxRetryTime, "max-retry-time", 5*time.Minute,
		"give up reconnecting after this long (0 retries forever)")
	_ = cmd.MarkFlagRequired("experiment")
	return cmd
}

func runWatch(ctx context.Context, opts watchOptions, out io.Writer) error {
	id, err := model.DeserializeMetricIdentifier(opts.metric)
	if err != nil {
		return err
	}
	constraints, err := parseConstraints(opts.ranges, opts.values)
	if err != nil {
		return err
	}

	clientOpts := []client.Option{client.WithBatchesMargin(opts.batchesMargin)}
	if opts.token != "" {
		clientOpts = append(clientOpts, client.WithToken(opts.token))
	}
	if opts.period > 0 {
		clientOpts = append(clientOpts, client.WithPeriod(opts.period))
	}
	cl, err := client.New(opts.server, clientOpts...)
	if err != nil {
		return err
	}

	exp, err := cl.Experiment(ctx, opts.experiment)
	if err != nil {
		return errors.Wrapf(err, "fetching experiment %d", opts.experiment)
	}

	src := stream.Retrying(cl, func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = opts.maxRetryTime
		return b
	})
	sub := stream.NewSubscriber(src, "http", cl.IsTerminal)
	defer sub.Close()

	key := model.SnapshotKey{
		ExperimentID:     opts.experiment,
		BatchesProcessed: opts.batches,
		Metric:           id.MetricName(),
	}
	if _, err := sub.Select(ctx, key); err != nil {
		return err
	}

	viewOpts := view.Options{Experiment: exp, HParams: opts.hparams, Constraints: constraints}
	for {
		u, err := sub.Next(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		}

		if _, err := fmt.Fprintln(out, renderFrame(view.Build(u, viewOpts))); err != nil {
			return err
		}
		if u.Done {
			if u.Status == snapshot.StatusError {
				return u.Err
			}
			return nil
		}
	}
}

// parseConstraints reads --range name=min:max and --values name=a,b flags. A later flag for the
// same dimension replaces an earlier one.
func parseConstraints(ranges, values []string) (filter.Constraints, error) {
	cs := filter.Constraints{}
	for _, r := range ranges {
		name, bounds, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("invalid range %q, expected name=min:max", r)
		}
		lo, hi, ok := strings.Cut(bounds, ":")
		if !ok {
			return nil, errors.Errorf("invalid range %q, expected name=min:max", r)
		}
		lower, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid lower bound in range %q", r)
		}
		upper, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid upper bound in range %q", r)
		}
		if lower > upper {
			return nil, errors.Errorf("invalid range %q, lower bound exceeds upper bound", r)
		}
		cs[name] = filter.RangeConstraint{Min: lower, Max: upper}
	}

	for _, s := range values {
		name, list, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("invalid values %q, expected name=a,b", s)
		}
		var vals []model.Scalar
		for _, raw := range strings.Split(list, ",") {
			vals = append(vals, parseScalar(raw))
		}
		cs[name] = filter.Values(vals...)
	}
	return cs, nil
}

func parseScalar(raw string) model.Scalar {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.Number(f)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return model.Bool(b)
	}
	return model.String(raw)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hiddenStyle = lipgloss.NewStyle().Faint(true)
)

func renderFrame(f view.Frame) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("experiment %d  %s at %d batches  [%s]",
		f.Key.ExperimentID, f.Key.Metric, f.Key.BatchesProcessed, f.Status)))
	b.WriteString("\n")
	switch {
	case f.Error != "":
		b.WriteString(errorStyle.Render("error: " + f.Error))
		b.WriteString("\n")
	case f.Message != "":
		b.WriteString(f.Message)
		b.WriteString("\n")
	}

	s := f.Snapshot
	if s == nil {
		return strings.TrimSuffix(b.String(), "\n")
	}

	var names []string
	for _, d := range f.Dimensions {
		if d.Label != s.MetricKey {
			names = append(names, d.Label)
		}
	}

	header := append([]string{"trial", s.MetricKey}, names...)
	rows := make([][]string, 0, len(s.TrialIDs))
	for i, id := range s.TrialIDs {
		row := []string{strconv.Itoa(id), strconv.FormatFloat(s.MetricValues[i], 'g', 6, 64)}
		for _, name := range names {
			v := model.Scalar{}
			if col, ok := s.Column(name); ok && i < len(col) {
				v = col[i]
			}
			row = append(row, v.String())
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for j, cell := range row {
			widths[j] = max(widths[j], lipgloss.Width(cell))
		}
	}
	pad := func(cell string, w int) string {
		return cell + strings.Repeat(" ", w-lipgloss.Width(cell))
	}

	cells := make([]string, len(header))
	for j, h := range header {
		cells[j] = headerStyle.Render(pad(h, widths[j]))
	}
	b.WriteString(strings.Join(cells, "  "))
	b.WriteString("\n")

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = pad(cell, widths[j])
		}
		if i < len(f.Colors) {
			cells[1] = lipgloss.NewStyle().Foreground(f.Colors[i].Terminal()).Render(cells[1])
		}
		line := strings.Join(cells, "  ")
		if !f.Filter.Passes(s.TrialIDs[i]) {
			line = hiddenStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d of %d trials visible", f.Visible, s.Len())
	return b.String()
}
