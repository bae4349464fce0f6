package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/mcpserver"
)

// exitDrift is returned by verify when any note no longer matches its hash.
const exitDrift = 2

// withComponents loads the configuration and wires the notebook for a
// one-shot command. Logs go to stderr so stdout stays clean for output.
func withComponents(ctx context.Context, cmd *cli.Command, fn func(c *internal.Components) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	c, err := internal.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close components", slog.String("error", err.Error()))
		}
	}()
	return fn(c)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", cli.Exit(fmt.Sprintf("missing argument: <%s>", name), 1)
	}
	return v, nil
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the notebook to MCP clients over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				if err := c.Index.Sync(ctx); err != nil {
					c.Logger.Warn("initial sync failed", slog.String("error", err.Error()))
				}
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() { _ = c.Index.Run(runCtx) }()

				return mcpserver.New(c.Notebook, c.Images, c.Index, c.Logger).ServeStdio()
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a project archive",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file (defaults to the project name with .zip)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectID, err := requireArg(cmd, "project-id")
			if err != nil {
				return err
			}
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				exp, err := c.Archive.Export(ctx, projectID)
				if err != nil {
					return fmt.Errorf("export %s: %w", projectID, err)
				}
				defer exp.Close()

				out := cmd.String("out")
				if out == "" {
					out = exp.Filename
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if _, err := io.Copy(f, exp); err != nil {
					f.Close()
					return fmt.Errorf("write %s: %w", out, err)
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s (%d bytes)\n", out, exp.Size)
				return nil
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a project archive as a new project",
		ArgsUsage: "<zip-file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := requireArg(cmd, "zip-file")
			if err != nil {
				return err
			}
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				p, err := c.Archive.ImportFile(ctx, path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(os.Stdout, "imported %q as %s (%d notes)\n", p.Name, p.ID, len(p.Notes))
				return nil
			})
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Compare every note body in a project with its stored hash",
		ArgsUsage: "<project-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectID, err := requireArg(cmd, "project-id")
			if err != nil {
				return err
			}
			return withComponents(ctx, cmd, func(c *internal.Components) error {
				reports, err := c.Notebook.VerifyProject(ctx, projectID)
				if err != nil {
					return fmt.Errorf("verify %s: %w", projectID, err)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
				for _, r := range reports {
					if !r.Valid {
						return cli.Exit("one or more notes changed outside the notebook", exitDrift)
					}
				}
				return nil
			})
		},
	}
}
