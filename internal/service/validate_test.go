package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carlot/internal/domain"
	"carlot/internal/storage"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.Tags
		wantErr bool
	}{
		{name: "empty", raw: "", want: domain.Tags{}},
		{name: "null", raw: "null", want: domain.Tags{}},
		{name: "full", raw: `{"car_type":"SUV","company":" Kia ","dealer":"Lot 7"}`, want: domain.Tags{CarType: "SUV", Company: "Kia", Dealer: "Lot 7"}},
		{name: "partial", raw: `{"company":"Ford"}`, want: domain.Tags{Company: "Ford"}},
		{name: "unknown keys ignored", raw: `{"color":"red"}`, want: domain.Tags{}},
		{name: "array", raw: `["SUV"]`, wantErr: true},
		{name: "plain text", raw: "SUV", wantErr: true},
		{name: "broken json", raw: `{"company":`, wantErr: true},
		{name: "wrong field type", raw: `{"company":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTags(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeepImages(t *testing.T) {
	got, err := ParseKeepImages(`["https://a/1.jpg", "https://a/2.jpg", "https://a/1.jpg"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/1.jpg", "https://a/2.jpg"}, got)

	got, err = ParseKeepImages("[]")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseKeepImages(`"https://a/1.jpg"`)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseKeepImages(`["", "https://a/1.jpg"]`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckFiles_SniffsContentType(t *testing.T) {
	files, err := checkFiles([]storage.File{
		{Name: "a", ContentType: "application/octet-stream", Data: []byte("\xff\xd8\xff\xe0rest")},
		{Name: "b", ContentType: "image/webp", Data: []byte("RIFF")},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", files[0].ContentType)
	assert.Equal(t, "image/webp", files[1].ContentType)
}

func TestWithoutKept(t *testing.T) {
	assert.Equal(t, []string{"b", "d"}, withoutKept([]string{"a", "b", "c", "d"}, []string{"c", "a", "x"}))
	assert.Nil(t, withoutKept([]string{"a"}, []string{"a"}))
}
