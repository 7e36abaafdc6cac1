package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/graypress/graypress"
	"github.com/graypress/graypress/pipeline"
	"github.com/graypress/graypress/quant"
)

const separatorWidth = 50

func main() {
	app := cli.App{
		Name:      "graypress",
		Usage:     "Shrink e-book archives by reducing their images to low bit-depth grayscale",
		ArgsUsage: "EPUB_FILE [EPUB_FILE ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "output",
				Usage:   "directory for the repacked archives",
			},
			&cli.IntFlag{
				Name:  "bits",
				Value: 2,
				Usage: "output bit depth: 2 (dithered, 4 levels) or 4 (median cut, 16 levels)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "show detailed image metadata",
			},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func run(context *cli.Context) error {
	if context.NArg() == 0 {
		return cli.Exit("no input archives given", 1)
	}

	var quantizer quant.Quantizer
	switch context.Int("bits") {
	case 2:
		quantizer = quant.NewDiffuser(4)
	case 4:
		quantizer = quant.NewMedianCut(16)
	default:
		return cli.Exit("--bits must be 2 or 4", 1)
	}

	press := pipeline.Pipeline{
		Quantizer: quantizer,
		Verbose:   context.Bool("verbose"),
		OnEvent: func(event graypress.Event) {
			fmt.Printf("  [%s] %s\n", event.Stage, event.Message)
		},
	}

	successful := 0
	failed := 0
	for _, input := range context.Args().Slice() {
		fmt.Println(strings.Repeat("=", separatorWidth))
		fmt.Printf("Processing: %s\n", filepath.Base(input))

		result, err := press.ProcessArchive(input, context.String("output"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %s\n", filepath.Base(input), err)
			failed++
			continue
		}
		printSizeReport(result)
		successful++
	}

	if context.NArg() > 1 {
		fmt.Println(strings.Repeat("=", separatorWidth))
		fmt.Println("SUMMARY:")
		fmt.Printf("Successfully processed: %d\n", successful)
		fmt.Printf("Failed: %d\n", failed)
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func printSizeReport(result graypress.ProcessResult) {
	fmt.Printf("Original size: %.1f MiB\n", mib(result.OriginalSize))
	fmt.Printf("New size: %.1f MiB\n", mib(result.NewSize))

	delta := result.OriginalSize - result.NewSize
	percent := result.DeltaPercent()
	if delta >= 0 {
		fmt.Printf("Size reduction: %.1f MiB (%d%%)\n", mib(delta), percent)
	} else {
		fmt.Printf("Size increase: %.1f MiB (%d%%)\n", mib(-delta), -percent)
	}
}

func mib(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
