// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/KestrelEdge/KestrelRT/pkg/logging"
	"github.com/KestrelEdge/KestrelRT/services/runtime/plan"
	"github.com/KestrelEdge/KestrelRT/services/runtime/planfile"
)

var (
	rootCmd = &cobra.Command{
		Use:           "kestrel",
		Short:         "Tooling for the Kestrel accelerator runtime",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Inspect execution-plan descriptions",
	}
	planInspectCmd = &cobra.Command{
		Use:   "inspect [plan file]",
		Short: "Print the contexts, streams and vstreams of each core-op",
		Long: `Loads an execution-plan description and prints, per core-op: context count,
declared networks, per-context and total transfer sizes, and the physical
stream / virtual stream tables the runtime would construct from it.`,
		Args: cobra.ExactArgs(1),
		RunE: runPlanInspect,
	}
	planResolveCmd = &cobra.Command{
		Use:   "resolve [plan file]",
		Short: "Resolve between physical stream and virtual stream names",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanResolve,
	}

	layoutBitmap uint32
	networkName  string
	streamName   string
	vstreamName  string
	verbose      bool
)

func init() {
	planInspectCmd.Flags().Uint32Var(&layoutBitmap, "layout", plan.LayoutIgnore,
		"cluster-layout bitmap to select a metadata variant (default: any)")
	planInspectCmd.Flags().StringVar(&networkName, "network", "",
		"restrict output to one declared network")
	planResolveCmd.Flags().Uint32Var(&layoutBitmap, "layout", plan.LayoutIgnore,
		"cluster-layout bitmap to select a metadata variant (default: any)")
	planResolveCmd.Flags().StringVar(&streamName, "stream", "",
		"physical stream name to resolve to vstream names")
	planResolveCmd.Flags().StringVar(&vstreamName, "vstream", "",
		"virtual stream name to resolve to stream names")
	planResolveCmd.MarkFlagsMutuallyExclusive("stream", "vstream")
	planResolveCmd.MarkFlagsOneRequired("stream", "vstream")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log ingestion details to stderr")

	planCmd.AddCommand(planInspectCmd)
	planCmd.AddCommand(planResolveCmd)
	rootCmd.AddCommand(planCmd)
}

func planLogger() *logging.Logger {
	level := logging.LevelWarn
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{Level: level, Service: "kestrel"})
}

// loadSelected loads the plan file and resolves the requested layout variant
// of every core-op, sorted by core-op name for stable output.
func loadSelected(path string) ([]*plan.CoreOpMetadata, error) {
	coreOps, err := planfile.Load(path, planLogger())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(coreOps))
	for name := range coreOps {
		names = append(names, name)
	}
	sort.Strings(names)

	selected := make([]*plan.CoreOpMetadata, 0, len(names))
	for _, name := range names {
		metadata, err := coreOps[name].Metadata(layoutBitmap)
		if err != nil {
			return nil, fmt.Errorf("core-op %q: %w", name, err)
		}
		selected = append(selected, metadata)
	}
	return selected, nil
}

func runPlanInspect(cmd *cobra.Command, args []string) error {
	selected, err := loadSelected(args[0])
	if err != nil {
		return err
	}
	for _, metadata := range selected {
		if err := printCoreOp(cmd, metadata); err != nil {
			return err
		}
	}
	return nil
}

func printCoreOp(cmd *cobra.Command, metadata *plan.CoreOpMetadata) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", sectionHeader(metadata.Name()))
	fmt.Fprintf(out, "contexts: %d (%d dynamic)\n",
		metadata.ContextsCount(), len(metadata.DynamicContexts()))

	networkInfos, err := metadata.NetworkInfos()
	if err != nil {
		return err
	}
	networks := make([]string, 0, len(networkInfos))
	for _, info := range networkInfos {
		networks = append(networks, info.NameString())
	}
	fmt.Fprintf(out, "networks: %s\n", strings.Join(networks, ", "))

	for i, ctx := range metadata.DynamicContexts() {
		size, err := ctx.TransferSize()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "context %d transfer size: %d bytes\n", i, size)
	}
	total, err := metadata.TotalTransferSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "total transfer size: %d bytes\n", total)

	streams, err := metadata.AllStreamInfos(networkName)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nstreams:")
	writer := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "  NAME\tDIR\tFRAME SIZE\tFORMAT")
	for _, stream := range streams {
		fmt.Fprintf(writer, "  %s\t%s\t%d\t%s/%s\n",
			stream.Name, stream.Direction, stream.FrameSize,
			stream.Format.Type, stream.Format.Order)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	vstreams, err := metadata.AllVStreamInfos(networkName)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nvstreams:")
	writer = tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "  NAME\tDIR\tNETWORK")
	for _, vstream := range vstreams {
		fmt.Fprintf(writer, "  %s\t%s\t%s\n",
			vstream.Name, vstream.Direction, vstream.NetworkName)
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func runPlanResolve(cmd *cobra.Command, args []string) error {
	selected, err := loadSelected(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, metadata := range selected {
		var names []string
		var err error
		if streamName != "" {
			names, err = metadata.VStreamNamesFromStreamName(streamName)
		} else {
			names, err = metadata.StreamNamesFromVStreamName(vstreamName)
		}
		if err != nil {
			// Another core-op in the same plan may own the name.
			continue
		}
		if streamName != "" {
			fmt.Fprintf(out, "%s: stream %s -> vstreams %s\n",
				metadata.Name(), streamName, strings.Join(names, ", "))
		} else {
			fmt.Fprintf(out, "%s: vstream %s -> streams %s\n",
				metadata.Name(), vstreamName, strings.Join(names, ", "))
		}
		return nil
	}
	if streamName != "" {
		return fmt.Errorf("stream %q: %w", streamName, plan.ErrStreamNotFound)
	}
	return fmt.Errorf("vstream %q: %w", vstreamName, plan.ErrVStreamNotFound)
}

// sectionHeader underlines the core-op name when stdout is a terminal.
func sectionHeader(name string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return "core-op: " + name
	}
	return "core-op: " + name + "\n" + strings.Repeat("=", len(name)+9)
}
