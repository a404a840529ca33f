package config

import (
	"fmt"
	"strings"
)

// PreviewFormat is image format of rendered page previews.
type PreviewFormat int

const (
	PreviewFormatPng PreviewFormat = iota
	PreviewFormatJpeg
)

var previewFormatNames = []string{"png", "jpeg"}

func (f PreviewFormat) String() string {
	if f >= 0 && int(f) < len(previewFormatNames) {
		return previewFormatNames[f]
	}
	return fmt.Sprintf("PreviewFormat(%d)", int(f))
}

// ParsePreviewFormat converts name into PreviewFormat, "jpg" is accepted as
// alias.
func ParsePreviewFormat(name string) (PreviewFormat, error) {
	switch strings.ToLower(name) {
	case "png":
		return PreviewFormatPng, nil
	case "jpeg", "jpg":
		return PreviewFormatJpeg, nil
	}
	return PreviewFormat(0), fmt.Errorf("%s is not a valid PreviewFormat, try [%s]", name, strings.Join(previewFormatNames, ", "))
}

func (f PreviewFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PreviewFormat) UnmarshalText(text []byte) error {
	v, err := ParsePreviewFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f PreviewFormat) Ext() string {
	switch f {
	case PreviewFormatJpeg:
		return ".jpg"
	case PreviewFormatPng:
		return ".png"
	default:
		panic("unsupported preview format requested")
	}
}

// ExportFormat is serialization used to export page model.
type ExportFormat int

const (
	ExportFormatIon ExportFormat = iota
	ExportFormatIonbin
	ExportFormatYaml
)

var exportFormatNames = []string{"ion", "ionbin", "yaml"}

func (f ExportFormat) String() string {
	if f >= 0 && int(f) < len(exportFormatNames) {
		return exportFormatNames[f]
	}
	return fmt.Sprintf("ExportFormat(%d)", int(f))
}

func ParseExportFormat(name string) (ExportFormat, error) {
	for i, n := range exportFormatNames {
		if strings.EqualFold(n, name) {
			return ExportFormat(i), nil
		}
	}
	return ExportFormat(0), fmt.Errorf("%s is not a valid ExportFormat, try [%s]", name, strings.Join(exportFormatNames, ", "))
}

func (f ExportFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *ExportFormat) UnmarshalText(text []byte) error {
	v, err := ParseExportFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f ExportFormat) Ext() string {
	switch f {
	case ExportFormatIon:
		return ".ion"
	case ExportFormatIonbin:
		return ".10n"
	case ExportFormatYaml:
		return ".yaml"
	default:
		panic("unsupported export format requested")
	}
}
