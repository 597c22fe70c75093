package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// ImportProgress tracks files saved during an import.
type ImportProgress struct {
	bar      *progressbar.ProgressBar
	writer   io.Writer
	files    int
	total    int
	inserted int
}

// NewImportProgress creates a progress bar over the given number of files.
func NewImportProgress(w io.Writer, files int) *ImportProgress {
	bar := progressbar.NewOptions(files,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Importing sales exports...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &ImportProgress{bar: bar, writer: w}
}

// FileDone records one imported file.
func (p *ImportProgress) FileDone(path string, total, inserted int) {
	p.files++
	p.total += total
	p.inserted += inserted
	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", filepath.Base(path)))
	_ = p.bar.Add(1)
}

// Finish completes the bar and prints a summary line.
func (p *ImportProgress) Finish() {
	_ = p.bar.Finish()
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf(
		"Imported %d files: %d rows read, %d new, %d already stored",
		p.files, p.total, p.inserted, p.total-p.inserted)))
}

// Inserted returns the number of new records saved so far.
func (p *ImportProgress) Inserted() int {
	return p.inserted
}
