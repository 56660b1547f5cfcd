package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/animal-api/internal/model"
)

type fileResult struct {
	File        string             `json:"file"`
	Predictions []model.Prediction `json:"predictions,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify IMAGE...",
		Short: "Classify image files and print the animal buckets as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, classifier, err := setup(cmd)
			if err != nil {
				return err
			}
			defer classifier.Close()

			out := make([]fileResult, 0, len(args))
			failed := 0
			for _, path := range args {
				result := fileResult{File: path}
				predictions, err := classifyFile(classifier, path)
				if err != nil {
					result.Error = err.Error()
					failed++
				} else {
					result.Predictions = predictions
				}
				out = append(out, result)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func classifyFile(classifier *model.Classifier, path string) ([]model.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return classifier.Predict(img, nil)
}
