package d2cli

import (
	"fmt"
	"path/filepath"
	"strings"
)

type exportExtension string

const JSON exportExtension = ".json"
const PDF exportExtension = ".pdf"
const PNG exportExtension = ".png"
const SVG exportExtension = ".svg"

var SUPPORTED_EXTENSIONS = []exportExtension{JSON, SVG, PNG, PDF}

var STDOUT_FORMAT_MAP = map[string]exportExtension{
	"json": JSON,
	"svg":  SVG,
	"png":  PNG,
	"pdf":  PDF,
}

var SUPPORTED_STDOUT_FORMATS = []string{"json", "svg", "png", "pdf"}

func getOutputFormat(stdoutFormatFlag *string, outputPath string) (exportExtension, error) {
	if stdoutFormatFlag != nil && *stdoutFormatFlag != "" {
		format := strings.ToLower(*stdoutFormatFlag)
		if ext, ok := STDOUT_FORMAT_MAP[format]; ok {
			return ext, nil
		}
		return "", fmt.Errorf("%s is not a supported format. Supported formats are: %s", *stdoutFormatFlag, SUPPORTED_STDOUT_FORMATS)
	}
	return getExportExtension(outputPath)
}

func getExportExtension(outputPath string) (exportExtension, error) {
	// stdout defaults to the laid out graph
	if outputPath == "-" {
		return JSON, nil
	}
	ext := filepath.Ext(outputPath)
	if ext == "" {
		return SVG, nil
	}
	for _, kext := range SUPPORTED_EXTENSIONS {
		if kext == exportExtension(strings.ToLower(ext)) {
			return kext, nil
		}
	}
	return "", fmt.Errorf("%s is not a supported output extension. Supported extensions are: %s", ext, SUPPORTED_EXTENSIONS)
}

// plotFormat is the gonum/plot format name of a plot extension.
func (ex exportExtension) plotFormat() string {
	return strings.TrimPrefix(string(ex), ".")
}

func (ex exportExtension) isPlot() bool {
	return ex != JSON
}
