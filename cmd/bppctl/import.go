package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/importer"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/bpparchive/archive/internal/service"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type importOptions struct {
	mappingFile     string
	allNew          bool
	folder          string
	continueOnError bool
	dryRun          bool
}

func newImportCmd() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <dir|file.html>...",
		Short: "Import exported Broken Picturephone HTML files",
		Long: `Import exported game HTML files.

Author names are resolved with a TOML mapping file:

    [authors]
    Alice = 3        # attach to user 3
    Bob = "new"      # create a user named Bob

With --all-new, authors missing from the mapping reuse a user with the same
true name, or create one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.mappingFile, "mapping", "m", "", "TOML file mapping author names to \"new\" or a user id (env: BPP_MAPPING)")
	fs.BoolVar(&opts.allNew, "all-new", false, "resolve unmapped authors by true name, creating users as needed (env: BPP_ALL_NEW)")
	fs.StringVar(&opts.folder, "folder", "", "object store folder for uploaded panels (env: BPP_FOLDER)")
	fs.BoolVar(&opts.continueOnError, "continue-on-error", false, "keep importing after a file fails (env: BPP_CONTINUE_ON_ERROR)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "parse files and print the author plan without importing (env: BPP_DRY_RUN)")
	bindEnv(fs)
	return cmd
}

// exportFile is one HTML export loaded from disk.
type exportFile struct {
	path    string
	html    []byte
	authors []string
}

func runImport(ctx context.Context, out io.Writer, opts *importOptions, args []string) error {
	paths, err := collectHTML(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no .html files found")
	}

	base := importer.Mapping{}
	if opts.mappingFile != "" {
		if base, err = loadMapping(opts.mappingFile); err != nil {
			return err
		}
	}

	files, err := loadExports(ctx, paths)
	if err != nil {
		return err
	}

	if opts.dryRun {
		for _, f := range files {
			fmt.Fprintf(out, "%s: %s\n", f.path, strings.Join(f.authors, ", "))
		}
		return nil
	}

	b, err := openBackend(ctx, slog.Default(), true)
	if err != nil {
		return err
	}
	defer b.Close()

	return importAll(ctx, out, b.svcs.Import, b.pool, b.repos.Users, files, base, opts)
}

// importAll imports files one at a time so authors created by an earlier file
// are visible to the --all-new lookup of later ones.
func importAll(
	ctx context.Context,
	out io.Writer,
	imports *service.ImportService,
	db repository.DBTX,
	users repository.UserRepository,
	files []exportFile,
	base importer.Mapping,
	opts *importOptions,
) error {
	var failed int
	for _, f := range files {
		mapping, err := mappingFor(ctx, db, users, f.authors, base, opts.allNew)
		if err == nil {
			var res *service.ImportResult
			res, err = imports.Import(ctx, service.ImportInput{HTML: f.html, Mapping: mapping, Folder: opts.folder})
			if err == nil {
				fmt.Fprintf(out, "%s: game %d (%d books, %d pages, %d images)\n", f.path, res.GameID, res.Books, res.Pages, res.Images)
				for _, w := range res.Warnings {
					fmt.Fprintf(out, "  warning: %s\n", w)
				}
				continue
			}
		}

		failed++
		fmt.Fprintf(out, "%s: FAILED [%s]: %v\n", f.path, domain.CodeOf(err), err)
		if !opts.continueOnError {
			return fmt.Errorf("import %s: %w", f.path, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(files))
	}
	return nil
}

// collectHTML expands directories to their .html files, sorted by name.
func collectHTML(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".html") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// loadExports reads and parses every file concurrently. Parse failures abort
// the batch before anything is uploaded.
func loadExports(ctx context.Context, paths []string) ([]exportFile, error) {
	files := make([]exportFile, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			parsed, err := importer.Parse(bytes.NewReader(raw))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			files[i] = exportFile{path: path, html: raw, authors: parsed.Authors()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

type mappingFile struct {
	Authors map[string]interface{} `toml:"authors"`
}

// loadMapping reads a TOML [authors] table whose values are "new" or user ids.
func loadMapping(path string) (importer.Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf mappingFile
	if err := toml.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	m := make(importer.Mapping, len(mf.Authors))
	for name, v := range mf.Authors {
		switch v := v.(type) {
		case string:
			m[name] = v
		case int64:
			m[name] = strconv.FormatInt(v, 10)
		default:
			return nil, &importer.MappingError{Author: name, Choice: fmt.Sprint(v), Reason: "choice must be \"new\" or an integer user id"}
		}
	}
	return m, nil
}

// mappingFor narrows base to one file's authors. With allNew, unmapped
// authors attach to the user with the same true name, or become new users.
func mappingFor(
	ctx context.Context,
	db repository.DBTX,
	users repository.UserRepository,
	authors []string,
	base importer.Mapping,
	allNew bool,
) (importer.Mapping, error) {
	m := make(importer.Mapping, len(authors))
	for _, name := range authors {
		if choice, ok := base[name]; ok {
			m[name] = choice
			continue
		}
		if !allNew {
			return nil, &importer.MappingError{Author: name, Reason: "not in mapping file (use --all-new)"}
		}
		existing, err := users.FindByTrueName(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("find user %q: %w", name, err)
		}
		if existing != nil {
			m[name] = strconv.FormatInt(existing.ID, 10)
		} else {
			m[name] = importer.ChoiceNew
		}
	}
	return m, nil
}
