package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// PlaceholderLabels names classes class_0 .. class_<n-1>. None of them match a bucket.
func PlaceholderLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("class_%d", i)
	}
	return labels
}

func readMetadata(path string) (Metadata, error) {
	var metadata Metadata

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}

// ResolveLabels returns the class names for a model with numClasses outputs.
// fellBack reports whether placeholders were substituted; err says why.
func ResolveLabels(metadataPath string, numClasses int) (labels []string, fellBack bool, err error) {
	metadata, err := readMetadata(metadataPath)
	if err == nil && len(metadata.Classes) != numClasses {
		err = fmt.Errorf("metadata lists %d classes, model outputs %d", len(metadata.Classes), numClasses)
	}
	if err != nil {
		return PlaceholderLabels(numClasses), true, err
	}
	return metadata.Classes, false, nil
}
