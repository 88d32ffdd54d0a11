package tts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SynthesizeFunc produces audio bytes for one chunk.
type SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

// ProgressFunc is called with (completedChunks, totalChunks) before each
// chunk is synthesized and once more after the last chunk completes.
type ProgressFunc func(current, total int)

// ProgressPercent converts chunk progress to a whole percentage,
// rounding down. Zero total reports zero.
func ProgressPercent(current, total int) int {
	if total == 0 {
		return 0
	}
	return current * 100 / total
}

// Assemble synthesizes every chunk in order, writes each piece into
// workDir as chunk_<i>.mp3 and concatenates them into outputPath.
// MP3 frames are self-contained, so byte-level concatenation in index
// order yields a valid stream. The work directory is removed on every
// exit path, and a partial output file never survives a failure.
func Assemble(ctx context.Context, chunks []string, synth SynthesizeFunc, onProgress ProgressFunc, workDir, outputPath string) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to assemble")
	}

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory %s: %w", workDir, err)
	}
	defer os.RemoveAll(workDir)

	total := len(chunks)
	chunkFiles := make([]string, 0, total)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(i, total)
		}

		audio, err := synth(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, total, err)
		}

		chunkFile := filepath.Join(workDir, fmt.Sprintf("chunk_%d.mp3", i))
		if err := os.WriteFile(chunkFile, audio, 0644); err != nil {
			return fmt.Errorf("failed to write chunk file %s: %w", chunkFile, err)
		}
		chunkFiles = append(chunkFiles, chunkFile)
	}

	if err := concatFiles(chunkFiles, outputPath); err != nil {
		os.Remove(outputPath)
		return err
	}

	if onProgress != nil {
		onProgress(total, total)
	}
	return nil
}

// concatFiles streams the chunk files into outputPath in order.
func concatFiles(chunkFiles []string, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}

	for _, chunkFile := range chunkFiles {
		if err := appendFile(out, chunkFile); err != nil {
			out.Close()
			return err
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", outputPath, err)
	}
	return nil
}

func appendFile(out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open chunk file %s: %w", path, err)
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to append chunk file %s: %w", path, err)
	}
	return nil
}
