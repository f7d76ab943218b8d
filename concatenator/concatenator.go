// Package concatenator joins preprocessed clips into one output file with
// ffmpeg's concat demuxer.
package concatenator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"splicer/command"
	"splicer/ffmpeg"
	"splicer/models"
)

// ListFileName is the concat demuxer list written into the work directory.
const ListFileName = "concat_list.txt"

// Concatenator handles merging preprocessed clips into a final output file
type Concatenator struct {
	exec    ffmpeg.Executor
	workDir string
}

// NewConcatenator creates a concatenator that writes its list into workDir.
func NewConcatenator(exec ffmpeg.Executor, workDir string) *Concatenator {
	return &Concatenator{
		exec:    exec,
		workDir: workDir,
	}
}

// BuildSpec returns the stream-copy concat invocation for a list file.
func BuildSpec(listPath, outputPath string) (command.Spec, error) {
	return command.NewBuilder().
		Concat().
		StreamCopy().
		WithProgress().
		Build([]string{listPath}, outputPath)
}

// Concatenate merges clips into finalOutputPath, reporting progress inside
// window. Clips are joined in Index order and must form a gapless sequence.
func (c *Concatenator) Concatenate(ctx context.Context, clips []*models.ClipResult, finalOutputPath string, window models.ProgressWindow, sink models.ProgressFunc) error {
	ordered, err := c.validateResults(clips)
	if err != nil {
		return err
	}
	if err := c.checkForGaps(ordered); err != nil {
		return models.NewError(models.KindInvalidInput, "concatenate", err)
	}

	listPath, err := c.createConcatFile(ordered)
	if err != nil {
		return models.NewError(models.KindExecutionFailed, "concatenate", err)
	}

	spec, err := BuildSpec(listPath, finalOutputPath)
	if err != nil {
		return err
	}

	var total float64
	for _, clip := range ordered {
		total += clip.Duration
	}

	_, err = c.exec.RunWithProgress(ctx, spec, total, window, sink)
	return err
}

// validateResults checks every clip and returns them sorted by Index.
func (c *Concatenator) validateResults(clips []*models.ClipResult) ([]*models.ClipResult, error) {
	if len(clips) == 0 {
		return nil, models.Invalidf("concatenate", "no clips provided")
	}

	ordered := make([]*models.ClipResult, 0, len(clips))
	for _, clip := range clips {
		if clip == nil {
			return nil, models.Invalidf("concatenate", "nil clip result")
		}
		if err := clip.Validate(); err != nil {
			return nil, models.Invalidf("concatenate", "clip %d: %v", clip.Index, err)
		}
		if _, err := os.Stat(clip.OutputPath); err != nil {
			return nil, models.NewError(models.KindOutputValidation, "concatenate",
				fmt.Errorf("clip %d output missing: %w", clip.Index, err))
		}
		ordered = append(ordered, clip)
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})
	return ordered, nil
}

// checkForGaps detects missing or duplicated clips in the sequence
func (c *Concatenator) checkForGaps(ordered []*models.ClipResult) error {
	gaps := []int{}
	for i := 0; i < len(ordered)-1; i++ {
		currentIndex := ordered[i].Index
		nextIndex := ordered[i+1].Index

		if nextIndex == currentIndex {
			return fmt.Errorf("duplicate clip index %d", currentIndex)
		}
		for idx := currentIndex + 1; idx < nextIndex; idx++ {
			gaps = append(gaps, idx)
		}
	}

	if len(gaps) > 0 {
		return fmt.Errorf("missing clips: %v", gaps)
	}
	return nil
}

// createConcatFile writes the list file for ffmpeg's concat demuxer
// Format: file '/path/to/clip_000.mp4'
//
//	file '/path/to/clip_001.mp4'
func (c *Concatenator) createConcatFile(ordered []*models.ClipResult) (string, error) {
	var sb strings.Builder
	for _, clip := range ordered {
		absPath, err := filepath.Abs(clip.OutputPath)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for %s: %w", clip.OutputPath, err)
		}
		sb.WriteString(fmt.Sprintf("file '%s'\n", EscapePath(absPath)))
	}

	listPath := filepath.Join(c.workDir, ListFileName)
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write concat file: %w", err)
	}
	return listPath, nil
}

// EscapePath quotes single quotes for a concat list entry ( ' becomes '\'' ).
func EscapePath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
