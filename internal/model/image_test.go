package model

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodedImage_DataURL(t *testing.T) {
	img := EncodedImage{MIMEType: JPEG, Data: []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01}}

	url := img.DataURL()
	require.Equal(t, "data:image/jpeg;base64,/9j/AAE=", url)
	require.Equal(t, len(url), img.Len())

	parsed, err := ParseDataURL(url)
	require.NoError(t, err)
	require.Equal(t, img, parsed)
}

func TestEncodedImage_Zero(t *testing.T) {
	var img EncodedImage
	require.True(t, img.IsZero())
	require.Empty(t, img.DataURL())
	require.Zero(t, img.Len())
}

func TestParseDataURL_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"no prefix", "image/png;base64,AAAA", ErrMalformedDataURL},
		{"not base64", "data:image/png,raw", ErrMalformedDataURL},
		{"broken payload", "data:image/png;base64,%%%", ErrMalformedDataURL},
		{"gif not accepted", "data:image/gif;base64,R0lG", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataURL(tt.in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCompressionParams_Normalized(t *testing.T) {
	p := CompressionParams{Quality: 1.7, MaxWidth: 0, MaxHeight: -3, RetryAbove: -1}.Normalized()
	require.Equal(t, 1.0, p.Quality)
	require.Equal(t, 1, p.MaxWidth)
	require.Equal(t, 1, p.MaxHeight)
	require.Zero(t, p.RetryAbove)

	p = CompressionParams{Quality: 0.3, MaxWidth: 10, MaxHeight: 10, RetryStep: -0.1, RetryFloor: 0.5}.Normalized()
	require.Zero(t, p.RetryStep)
	require.Equal(t, 0.3, p.RetryFloor)
}

func TestRawImage_Dimensions(t *testing.T) {
	var empty *RawImage
	require.Zero(t, empty.Width())

	raw := &RawImage{Image: image.NewNRGBA(image.Rect(0, 0, 640, 480))}
	require.Equal(t, 640, raw.Width())
	require.Equal(t, 480, raw.Height())
}

func TestSubmissionError(t *testing.T) {
	withMsg := &SubmissionError{Status: 400, Message: "email already registered"}
	require.Equal(t, "email already registered", withMsg.Error())
	require.False(t, withMsg.Transient())
	require.ErrorIs(t, withMsg, ErrUpstream)

	transport := &SubmissionError{Err: errors.New("connection refused")}
	require.True(t, transport.Transient())
	require.Contains(t, transport.Error(), "connection refused")

	server := &SubmissionError{Status: 503}
	require.True(t, server.Transient())
	require.Contains(t, server.Error(), "503")
}
