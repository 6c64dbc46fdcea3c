// Command docindex scans a package of PDF files into a searchable index
// and queries it, per the package manifest's source roots and embedding
// model id.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	docindex "github.com/paperindex/docindex"
	"github.com/paperindex/docindex/internal/embedclient"
	"github.com/paperindex/docindex/internal/manifest"
	"github.com/paperindex/docindex/internal/signalctl"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

var (
	packagePath  string
	resultsLimit int
)

func main() {
	root := &cobra.Command{
		Use:           "docindex",
		Short:         "scan your files & save into an index database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&packagePath, "package", "p", ".", "package manifest file, or the directory holding it; the workspace is created beside the manifest (default: current directory)")
	root.PersistentFlags().IntVar(&resultsLimit, "limit", 0, "query result cap")

	root.AddCommand(
		&cobra.Command{
			Use:   "scan",
			Short: "scan all configured source directories",
			RunE:  func(cmd *cobra.Command, args []string) error { return runScanCommand() },
		},
		&cobra.Command{
			Use:   "query [terms...]",
			Short: "query the index",
			RunE:  func(cmd *cobra.Command, args []string) error { return runQueryCommand(strings.Join(args, " ")) },
		},
		&cobra.Command{
			Use:   "purge",
			Short: "delete the workspace (scan journal + index)",
			RunE:  func(cmd *cobra.Command, args []string) error { return runPurgeCommand() },
		},
		&cobra.Command{
			Use:   "clear",
			Short: "clear the terminal screen",
			RunE:  func(cmd *cobra.Command, args []string) error { clearScreen(); return nil },
		},
		&cobra.Command{
			Use:   "start",
			Short: "start an interactive session accepting scan/query/clear commands",
			RunE:  func(cmd *cobra.Command, args []string) error { return runStartCommand() },
		},
	)

	if err := root.Execute(); err != nil {
		if err == errInterrupted {
			os.Exit(exitInterrupted)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
	os.Exit(exitOK)
}

var errInterrupted = fmt.Errorf("interrupted")

func openService(path string) (*docindex.Service, string, error) {
	m, dir, err := manifest.Load(path)
	if err != nil {
		return nil, "", err
	}
	workspaceDir := filepath.Join(dir, "workspace")
	embedder := embedclient.New(m.Embedding)
	svc, err := docindex.Open(workspaceDir, m.Sources, m.Excludes, embedder)
	if err != nil {
		return nil, "", err
	}
	return svc, workspaceDir, nil
}

func runScanCommand() error {
	svc, _, err := openService(packagePath)
	if err != nil {
		return err
	}
	defer svc.Close()

	return scanWithService(svc)
}

func scanWithService(svc *docindex.Service) error {
	handler := signalctl.New(svc)
	defer handler.Close()

	listener := &cliListener{}
	job := svc.ScanJob(context.Background(), 0, listener)

	if err := handler.Watch(job); err != nil {
		return err
	}
	completed, err := job.Start()
	handler.StopWatch()
	if err != nil {
		return err
	}
	if !completed {
		fmt.Println("\nComplete Interrupted.")
		return errInterrupted
	}
	return nil
}

func runQueryCommand(text string) error {
	svc, _, err := openService(packagePath)
	if err != nil {
		return err
	}
	defer svc.Close()

	return queryWithService(svc, text)
}

func queryWithService(svc *docindex.Service, text string) error {
	if strings.TrimSpace(text) == "" {
		fmt.Println("Text not provided")
		return nil
	}
	result, err := svc.Query(context.Background(), text, resultsLimit)
	if err != nil {
		return err
	}
	displayResult(result)
	return nil
}

func runPurgeCommand() error {
	svc, workspaceDir, err := openService(packagePath)
	if err != nil {
		return err
	}
	if err := svc.Close(); err != nil {
		return err
	}
	return docindex.Purge(workspaceDir)
}

func runStartCommand() error {
	svc, _, err := openService(packagePath)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Println("Please press your commands.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Println()

		fields := strings.Fields(line)
		command := strings.ToLower(fields[0])
		rest := strings.Join(fields[1:], " ")

		switch command {
		case "scan":
			if err := scanWithService(svc); err != nil {
				if err == errInterrupted {
					return err
				}
				fmt.Fprintln(os.Stderr, err)
			}
		case "query":
			if err := queryWithService(svc, rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "clear":
			clearScreen()
		case "purge", "start":
			fmt.Printf("warn: cannot run %q while service is running\n", line)
		default:
			// no recognized subcommand: treat the whole line as query text,
			// same fallback the standalone command uses.
			if err := queryWithService(svc, line); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}
