package d2cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/spf13/pflag"

	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2incremental/d2layouts/d2incremental"
	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/layoutplot"
	"oss.terrastruct.com/d2incremental/lib/log"
	"oss.terrastruct.com/d2incremental/lib/version"
)

func Run(ctx context.Context, ms *xmain.State) (err error) {
	ctx = log.Named(log.Human(ctx, ms.Stderr), "d2incremental")

	debugFlag, err := ms.Opts.Bool("DEBUG", "debug", "d", false, "print debug logs.")
	if err != nil {
		return err
	}
	verifyFlag, err := ms.Opts.Bool("D2_INCREMENTAL_VERIFY", "verify", "", false, "fail when the result has overlapping nodes or escaping cluster children")
	if err != nil {
		return err
	}
	optsFlag := ms.Opts.String("D2_INCREMENTAL_OPTS", "opts", "", "", "path to a JSON file of layout options. --fil-* flags given explicitly take precedence")
	stdoutFormatFlag := ms.Opts.String("", "stdout-format", "", "", "output format when writing to stdout (json, svg, png, pdf)")
	timeoutFlag, err := ms.Opts.Int64("D2_TIMEOUT", "timeout", "", 120, "the maximum number of seconds the layout runs for before timing out and exiting")
	if err != nil {
		return err
	}
	versionFlag, err := ms.Opts.Bool("", "version", "v", false, "get the version")
	if err != nil {
		return err
	}

	flagOpts := d2incremental.DefaultOpts
	flagOpts.AddFlags(ms.Opts.Flags)

	err = ms.Opts.Flags.Parse(ms.Opts.Args)
	if !errors.Is(err, pflag.ErrHelp) && err != nil {
		return xmain.UsageErrorf("failed to parse flags: %v", err)
	}
	if errors.Is(err, pflag.ErrHelp) {
		help(ms)
		return nil
	}

	if len(ms.Opts.Flags.Args()) > 0 && ms.Opts.Flags.Arg(0) == "version" {
		if len(ms.Opts.Flags.Args()) > 1 {
			return xmain.UsageErrorf("version subcommand accepts no arguments")
		}
		fmt.Fprintln(ms.Stdout, version.Version)
		return nil
	}

	if *debugFlag {
		ctx = log.Leveled(ctx, slog.LevelDebug)
		ms.Env.Setenv("DEBUG", "1")
	}

	var inputPath string
	var outputPath string

	if len(ms.Opts.Flags.Args()) == 0 {
		if *versionFlag {
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		}
		help(ms)
		return nil
	} else if len(ms.Opts.Flags.Args()) >= 3 {
		return xmain.UsageErrorf("too many arguments passed")
	}

	inputPath = ms.Opts.Flags.Arg(0)
	if len(ms.Opts.Flags.Args()) >= 2 {
		outputPath = ms.Opts.Flags.Arg(1)
	} else if inputPath == "-" {
		outputPath = "-"
	} else {
		outputPath = renameExt(inputPath, ".svg")
	}
	if inputPath != "-" {
		inputPath = ms.AbsPath(inputPath)
	}
	if outputPath != "-" {
		outputPath = ms.AbsPath(outputPath)
	}
	if inputPath == outputPath && inputPath != "-" {
		return xmain.UsageErrorf("refusing to overwrite the input %s", ms.HumanPath(inputPath))
	}

	outputFormat, err := getOutputFormat(stdoutFormatFlag, outputPath)
	if err != nil {
		return xmain.UsageErrorf("%v", err)
	}

	opts, err := layoutOpts(ms, *optsFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(*timeoutFlag)*time.Second)
	defer cancel()

	start := time.Now()
	g, err := layout(ctx, ms, opts, inputPath)
	if err != nil {
		return err
	}
	dur := time.Since(start)

	if *verifyFlag {
		err = d2incremental.VerifyLayout(g, opts.NodeSeparation, opts.ClusterMargin)
		if err != nil {
			return fmt.Errorf("layout failed verification: %w", err)
		}
	}

	out, err := export(g, outputFormat)
	if err != nil {
		return err
	}
	err = ms.WritePath(outputPath, out)
	if err != nil {
		return err
	}
	ms.Log.Success.Printf("successfully laid out %s to %s in %s", ms.HumanPath(inputPath), ms.HumanPath(outputPath), dur.Round(time.Millisecond))
	return nil
}

// layoutOpts starts from the options file, if any, and applies the --fil-*
// flags that were set explicitly.
func layoutOpts(ms *xmain.State, optsPath string) (d2incremental.ConfigurableOpts, error) {
	var b []byte
	if optsPath != "" {
		var err error
		b, err = ms.ReadPath(ms.AbsPath(optsPath))
		if err != nil {
			return d2incremental.ConfigurableOpts{}, fmt.Errorf("failed to read layout options: %w", err)
		}
	}
	opts, err := d2incremental.ParseOpts(b)
	if err != nil {
		return opts, xmain.UsageErrorf("%v", err)
	}

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	opts.AddFlags(fs)
	ms.Opts.Flags.Visit(func(f *pflag.Flag) {
		if err != nil || fs.Lookup(f.Name) == nil {
			return
		}
		err = fs.Set(f.Name, f.Value.String())
	})
	if err != nil {
		return opts, xmain.UsageErrorf("%v", err)
	}
	return opts, nil
}

func layout(ctx context.Context, ms *xmain.State, opts d2incremental.ConfigurableOpts, inputPath string) (*geograph.Graph, error) {
	input, err := ms.ReadPath(inputPath)
	if err != nil {
		return nil, err
	}
	g := &geograph.Graph{}
	err = json.Unmarshal(input, g)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal input to graph: %w", err)
	}
	log.Debug(ctx, "read graph", slog.F("nodes", len(g.Nodes)), slog.F("clusters", len(g.Clusters)-1), slog.F("edges", len(g.Edges)))

	err = d2incremental.Layout(ctx, g, &opts)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func export(g *geograph.Graph, ext exportExtension) ([]byte, error) {
	if ext.isPlot() {
		buf := &bytes.Buffer{}
		err := layoutplot.WriteTo(g, buf, ext.plotFormat())
		if err != nil {
			return nil, fmt.Errorf("failed to plot graph: %w", err)
		}
		return buf.Bytes(), nil
	}
	b, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// newExt must include leading .
func renameExt(fp string, newExt string) string {
	ext := filepath.Ext(fp)
	if ext == "" {
		return fp + newExt
	}
	return strings.TrimSuffix(fp, ext) + newExt
}
