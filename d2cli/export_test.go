package d2cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/d2incremental/lib/go2"
)

func TestOutputFormat(t *testing.T) {
	type testCase struct {
		outputPath   string
		stdoutFormat *string
		extension    exportExtension
		isPlot       bool
		err          string
	}
	testCases := []testCase{
		{
			outputPath: "/out.svg",
			extension:  SVG,
			isPlot:     true,
		},
		{
			// assumes SVG by default
			outputPath: "/out",
			extension:  SVG,
			isPlot:     true,
		},
		{
			outputPath: "-",
			extension:  JSON,
			isPlot:     false,
		},
		{
			outputPath:   "-",
			stdoutFormat: go2.Pointer("PNG"),
			extension:    PNG,
			isPlot:       true,
		},
		{
			outputPath: "/out.JSON",
			extension:  JSON,
			isPlot:     false,
		},
		{
			outputPath: "/out.pdf",
			extension:  PDF,
			isPlot:     true,
		},
		{
			outputPath: "/out.bmp",
			err:        ".bmp is not a supported output extension",
		},
		{
			outputPath:   "-",
			stdoutFormat: go2.Pointer("gif"),
			err:          "gif is not a supported format",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.outputPath, func(t *testing.T) {
			extension, err := getOutputFormat(tc.stdoutFormat, tc.outputPath)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.extension, extension)
			assert.Equal(t, tc.isPlot, extension.isPlot())
		})
	}
	assert.Equal(t, "png", PNG.plotFormat())
}
