// Command decompile is the CLI front end for the analysis/recompilation
// pipeline: disassemble either supported architecture, or run the full
// CHIP-8 control-flow-recovery-through-recompilation pipeline.
//
// Command tree, flag wiring, and --build's os/exec shellout are grounded on
// cmd/z80opt/main.go's rootCmd/subcommand/Flags() pattern.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
	"github.com/DealPete/decompiler/pkg/arch/chip8"
	"github.com/DealPete/decompiler/pkg/arch/x86"
	"github.com/DealPete/decompiler/pkg/callgraph"
	"github.com/DealPete/decompiler/pkg/driver"
	"github.com/DealPete/decompiler/pkg/flow"
	"github.com/DealPete/decompiler/pkg/recompile"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "decompile",
		Short: "Recover control flow from a machine-code image and recompile it to source",
	}
	root.AddCommand(listingCmd(), analyzeCmd(), recompileCmd())
	return root
}

func listingCmd() *cobra.Command {
	var archName string
	cmd := &cobra.Command{
		Use:   "listing <file>",
		Short: "Print a linear disassembly without recovering control flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, offset, err := resolveArch(archName, buf)
			if err != nil {
				return err
			}
			text, err := arch.Listing(a, buf, offset)
			fmt.Print(text)
			return err
		},
	}
	cmd.Flags().StringVar(&archName, "arch", "chip8", "target architecture: chip8 or x86")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var archName string
	var verbose bool
	var cachePath string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Recover the control-flow graph via abstract interpretation and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var g *flow.Graph
			switch archName {
			case "chip8":
				result, err := driver.Run(driver.Config[chip8.State]{
					Arch:     chip8.Arch{},
					Analyzer: chip8.Analyzer{},
					Buffer:   paddedImage(buf),
					Entry:    analyzer.Location{IP: chip8.EntryPoint},
					Initial:  chip8.New(buf),
					Verbose:  verbose,
				})
				if err != nil {
					return err
				}
				g = result.Graph
			case "x86":
				result, err := driver.Run(driver.Config[x86.State]{
					Arch:     x86.Arch{},
					Analyzer: x86.Analyzer{},
					Buffer:   buf,
					Entry:    analyzer.Location{IP: 0},
					Initial:  x86.New(buf, 0),
					Verbose:  verbose,
				})
				if err != nil {
					return err
				}
				g = result.Graph
			default:
				return fmt.Errorf("unknown architecture %q", archName)
			}

			if cachePath != "" {
				if err := driver.SaveCache(cachePath, g); err != nil {
					return err
				}
			}
			printGraph(g)
			return nil
		},
	}
	cmd.Flags().StringVar(&archName, "arch", "chip8", "target architecture: chip8 or x86")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "passed to the analysis driver, which prints nothing extra while it runs")
	cmd.Flags().StringVar(&cachePath, "cache", "", "save the recovered flow graph to this path")
	return cmd
}

func recompileCmd() *cobra.Command {
	var outDir string
	var build bool
	var cachePath string
	cmd := &cobra.Command{
		Use:   "recompile <file>",
		Short: "Run the full CHIP-8 pipeline: recover control flow, partition procedures, emit C source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rom, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var g *flow.Graph
			if cachePath != "" {
				if cached, err := driver.LoadCache(cachePath); err == nil {
					g = cached
				}
			}
			if g == nil {
				result, err := driver.Run(driver.Config[chip8.State]{
					Arch:     chip8.Arch{},
					Analyzer: chip8.Analyzer{},
					Buffer:   paddedImage(rom),
					Entry:    analyzer.Location{IP: chip8.EntryPoint},
					Initial:  chip8.New(rom),
				})
				if err != nil {
					return err
				}
				g = result.Graph
				if cachePath != "" {
					if err := driver.SaveCache(cachePath, g); err != nil {
						return err
					}
				}
			}

			entries := []flow.NodeID{}
			if id, ok := g.NodeAt(chip8.EntryPoint); ok {
				entries = append(entries, id)
			}
			for _, id := range g.Nodes() {
				for _, e := range g.Node(id).Edges {
					if e.Kind == analyzer.Call {
						entries = append(entries, e.To)
					}
				}
			}
			cg := callgraph.Build(g, dedupeNodes(entries))

			src, err := recompile.Recompile(g, cg, rom)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(outDir, "code.c"), []byte(src.Code), 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(outDir, "makefile"), []byte(src.Makefile), 0o644); err != nil {
				return err
			}

			if build {
				make := exec.Command("make", "-C", outDir)
				make.Stdout, make.Stderr = os.Stdout, os.Stderr
				if err := make.Run(); err != nil {
					return fmt.Errorf("build: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "output", ".", "directory to write code.c and makefile into")
	cmd.Flags().BoolVar(&build, "build", false, "shell out to make after writing the recompiled source")
	cmd.Flags().StringVar(&cachePath, "cache", "", "load/save the recovered flow graph at this path")
	return cmd
}

func resolveArch(name string, buf []byte) (arch.Architecture, int, error) {
	switch name {
	case "chip8":
		return chip8.Arch{}, chip8.EntryPoint, nil
	case "x86":
		return x86.Arch{}, 0, nil
	}
	return nil, 0, fmt.Errorf("unknown architecture %q", name)
}

// paddedImage places rom within a full 4096-byte CHIP-8 address space at
// EntryPoint, matching chip8.New's own image layout so driver.Run's
// Arch.Decode offsets agree with the abstract state's memory addressing.
func paddedImage(rom []byte) []byte {
	image := make([]byte, 4096)
	copy(image[chip8.EntryPoint:], rom)
	return image
}

func dedupeNodes(ids []flow.NodeID) []flow.NodeID {
	seen := make(map[flow.NodeID]bool, len(ids))
	var out []flow.NodeID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func printGraph(g *flow.Graph) {
	for _, id := range g.Nodes() {
		n := g.Node(id)
		fmt.Printf("node %d (entry %s):\n", id, n.Entry)
		for _, inst := range n.Instructions {
			fmt.Printf("  %04x: %s\n", inst.Offset, inst)
		}
		for _, e := range n.Edges {
			fmt.Printf("  -> %s node %d\n", e.Kind, e.To)
		}
	}
}
