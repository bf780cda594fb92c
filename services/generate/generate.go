// Package generate turns a directory of markdown documentation pages into a
// search index payload, one section record per heading and one page record per
// block of body text.
package generate

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/searchindex"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"
)

const maxGoRoutinesForPageParsing = 8

type Options struct {
	// PrettyURLs maps a.md to "a/" instead of "a.html".
	PrettyURLs bool
	// Pages lists relative page paths that come first, in this order. An entry
	// may carry a page title as "Title=path", e.g. "Home=index.md".
	Pages []string
}

type Generator struct {
	logger     logger.Logger
	options    Options
	pageSpecs  []pageSpec
	pageTitles map[string]string
	markdown   goldmark.Markdown
}

type pageSpec struct {
	relPath string
	title   string
}

type page struct {
	source SourceFile
	url    string
	title  string
	blocks []block
}

func New(logger logger.Logger, options Options) *Generator {
	pageSpecs := parsePageSpecs(options.Pages)
	pageTitles := make(map[string]string, len(pageSpecs))
	for _, spec := range pageSpecs {
		if spec.title != "" {
			pageTitles[spec.relPath] = spec.title
		}
	}

	return &Generator{
		logger:     logger,
		options:    options,
		pageSpecs:  pageSpecs,
		pageTitles: pageTitles,
		markdown:   goldmark.New(),
	}
}

func parsePageSpecs(pages []string) []pageSpec {
	specs := make([]pageSpec, 0, len(pages))
	for _, entry := range pages {
		title, relPath, found := strings.Cut(entry, "=")
		if !found {
			title, relPath = "", entry
		}
		relPath = strings.TrimSpace(relPath)
		if relPath == "" {
			continue
		}
		specs = append(specs, pageSpec{relPath: path.Clean(relPath), title: strings.TrimSpace(title)})
	}
	return specs
}

// Generate builds the payload for every markdown page under rootPath. The
// output only depends on the page contents and the configured order.
func (g *Generator) Generate(ctx context.Context, rootPath string) (*searchindex.Index, []SourceFile, error) {
	sourceFiles, err := g.discoverSourceFiles(rootPath)
	if err != nil {
		g.logger.Error("failed to discover documentation pages", "root", rootPath, "err", err.Error())
		return nil, nil, fmt.Errorf("failed to discover documentation pages: %w", err)
	}
	g.logger.Info("discovered documentation pages", "root", rootPath, "num_of_pages", len(sourceFiles))

	sourceFiles = g.orderPages(sourceFiles)

	pages, err := g.parsePages(ctx, sourceFiles)
	if err != nil {
		return nil, nil, err
	}

	idx := &searchindex.Index{Docs: buildRecords(pages)}
	g.logger.Info("generated search index", "root", rootPath, "num_of_records", len(idx.Docs))

	return idx, sourceFiles, nil
}

func (g *Generator) orderPages(sourceFiles []SourceFile) []SourceFile {
	slices.SortFunc(sourceFiles, func(a, b SourceFile) int {
		return strings.Compare(a.RelPath, b.RelPath)
	})

	ordered := make([]SourceFile, 0, len(sourceFiles))
	used := make(map[string]struct{}, len(sourceFiles))
	for _, spec := range g.pageSpecs {
		for _, file := range sourceFiles {
			if _, done := used[file.RelPath]; done || file.RelPath != spec.relPath {
				continue
			}
			ordered = append(ordered, file)
			used[file.RelPath] = struct{}{}
		}
	}

	for _, file := range sourceFiles {
		if _, done := used[file.RelPath]; !done {
			ordered = append(ordered, file)
		}
	}

	return ordered
}

// parsePages parses pages concurrently. The first failure cancels the
// remaining parses.
func (g *Generator) parsePages(ctx context.Context, sourceFiles []SourceFile) ([]page, error) {
	pages := make([]page, len(sourceFiles))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxGoRoutinesForPageParsing)

	for i := range sourceFiles {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			parsed, err := g.parsePage(sourceFiles[i])
			if err != nil {
				return err
			}
			pages[i] = parsed
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		g.logger.Error("failed to parse documentation pages", "err", err.Error())
		return nil, err
	}

	return pages, nil
}

func (g *Generator) parsePage(sourceFile SourceFile) (page, error) {
	content, err := os.ReadFile(sourceFile.Path)
	if err != nil {
		return page{}, fmt.Errorf("failed to read page %s: %w", sourceFile.RelPath, err)
	}

	blocks := parseMarkdown(g.markdown, content)

	title, ok := g.pageTitles[sourceFile.RelPath]
	if !ok {
		title = strings.TrimSuffix(path.Base(sourceFile.RelPath), path.Ext(sourceFile.RelPath))
		for _, b := range blocks {
			if b.heading && b.text != "" {
				title = b.text
				break
			}
		}
	}

	return page{
		source: sourceFile,
		url:    pageURL(sourceFile.RelPath, g.options.PrettyURLs),
		title:  title,
		blocks: blocks,
	}, nil
}

// buildRecords runs sequentially because anchor numbering is site-wide.
func buildRecords(pages []page) []searchindex.Record {
	anchorCounts := make(map[string]int)
	records := []searchindex.Record{}

	for _, p := range pages {
		for _, b := range p.blocks {
			if b.heading {
				if b.text == "" {
					continue
				}
				slug := searchindex.Slugify(b.text)
				anchorCounts[slug]++
				records = append(records, searchindex.Record{
					Location: fmt.Sprintf("%s#%s-%d", p.url, slug, anchorCounts[slug]),
					Page:     p.title,
					Title:    b.text,
					Text:     "",
					Category: searchindex.CategorySection,
				})
				continue
			}

			records = append(records, searchindex.Record{
				Location: p.url + "#",
				Page:     p.title,
				Title:    p.title,
				Text:     b.text,
				Category: searchindex.CategoryPage,
			})
		}
	}

	return records
}

// pageURL maps a source path to its site URL, e.g. "theory.md" -> "theory/".
func pageURL(relPath string, prettyURLs bool) string {
	segments := strings.Split(strings.TrimSuffix(relPath, path.Ext(relPath)), "/")
	for i, segment := range segments {
		// PathEscape keeps ':', which would read as a scheme in the first segment
		segments[i] = strings.ReplaceAll(url.PathEscape(segment), ":", "%3A")
	}
	stem := strings.Join(segments, "/")
	if !prettyURLs {
		return stem + ".html"
	}

	if stem == "index" {
		return ""
	}
	if strings.HasSuffix(stem, "/index") {
		return strings.TrimSuffix(stem, "index")
	}
	return stem + "/"
}
