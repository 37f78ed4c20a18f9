package config

import (
	"strings"
	"testing"

	"bitwise74/proffer/pkg/proffer"

	v "github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[proffer.photos.photo]
dir = "photo_dir"
thumbnail_method = "box"

[[proffer.photos.photo.thumbnail_sizes]]
label = "square"
w = 200
h = 200
crop = true

[[proffer.photos.photo.thumbnail_sizes]]
label = "portrait"
w = 100
h = 300

[rules.photos]
title = "required,max=255"
photo = "omitempty"
`

func load(t *testing.T, toml string) {
	t.Helper()

	v.Reset()
	t.Cleanup(v.Reset)

	SetDefaults()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(toml)))
}

func TestDefaultsAreValid(t *testing.T) {
	load(t, "")

	require.NoError(t, Validate())
	assert.Equal(t, int64(50<<20), MaxUploadSize())
	assert.Empty(t, Tables())
}

func TestFields(t *testing.T) {
	load(t, sample)

	require.NoError(t, Validate())
	assert.Equal(t, []string{"photos"}, Tables())

	fields, err := Fields("photos")
	require.NoError(t, err)

	assert.Equal(t, proffer.FieldConfig{
		Dir:             "photo_dir",
		ThumbnailMethod: "box",
		ThumbnailSizes: []proffer.ThumbnailSize{
			{Label: "square", Dimensions: proffer.Dimensions{Width: 200, Height: 200, Crop: true}},
			{Label: "portrait", Dimensions: proffer.Dimensions{Width: 100, Height: 300}},
		},
	}, fields["photo"])

	assert.Equal(t, map[string]string{
		"title": "required,max=255",
		"photo": "omitempty",
	}, Rules("photos"))
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"log level":    "[app]\nlog_level = \"loud\"",
		"db driver":    "[db]\ndriver = \"mysql\"",
		"storage type": "[storage]\ntype = \"ftp\"",
		"s3 without keys": `[storage]
type = "s3"`,
		"field without dir": `[proffer.docs.doc]
thumbnail_method = "box"`,
		"size without label": `[proffer.docs.doc]
dir = "doc_dir"
[[proffer.docs.doc.thumbnail_sizes]]
w = 10`,
		"size without dimensions": `[proffer.docs.doc]
dir = "doc_dir"
[[proffer.docs.doc.thumbnail_sizes]]
label = "s"`,
	}

	for name, toml := range tests {
		t.Run(name, func(t *testing.T) {
			load(t, toml)
			assert.Error(t, Validate())
		})
	}
}
