package generate

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// SourceFile is one markdown page found under a documentation source directory.
type SourceFile struct {
	Path    string // Absolute path on disk
	RelPath string // Slash separated path relative to the source root
	Size    int64
	ModTime time.Time
}

func (g *Generator) discoverSourceFiles(rootPath string) ([]SourceFile, error) {
	var sourceFiles []SourceFile

	err := filepath.WalkDir(rootPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			g.logger.Error("could not walk through file or directory", "path", path, "err", err.Error())
			if errors.Is(err, os.ErrPermission) {
				return nil
			}
			return err
		}

		// Skip directories that start with '.' but not the root directory
		if entry.IsDir() && strings.HasPrefix(entry.Name(), ".") && path != rootPath {
			return filepath.SkipDir
		}

		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !isMarkdownFile(path) {
			return nil
		}

		isText, err := isTextFile(path)
		if err != nil {
			g.logger.Warn("could not detect content type, skipping", "path", path, "err", err.Error())
			return nil
		}
		if !isText {
			g.logger.Warn("markdown file is not text, skipping", "path", path)
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			g.logger.Warn("could not stat file, skipping", "path", path, "err", err.Error())
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}

		sourceFiles = append(sourceFiles, SourceFile{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})

		return nil
	})

	return sourceFiles, err
}

func isMarkdownFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// isTextFile sniffs the content rather than trusting the extension.
func isTextFile(path string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}

	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true, nil
		}
	}

	return false, nil
}

// LatestModTime returns the newest modification time among the files.
func LatestModTime(files []SourceFile) time.Time {
	var latest time.Time
	for _, file := range files {
		if file.ModTime.After(latest) {
			latest = file.ModTime
		}
	}
	return latest
}
