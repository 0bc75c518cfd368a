package capture

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func inkAt(t *testing.T, raw *model.RawImage, x, y int) uint32 {
	t.Helper()
	_, _, _, a := raw.Image.At(x, y).RGBA()
	return a >> 8
}

func TestCanvas_EmptyByDefault(t *testing.T) {
	c := NewCanvas(0, 0)
	w, h := c.Size()
	require.Equal(t, DefaultCanvasWidth, w)
	require.Equal(t, DefaultCanvasHeight, h)
	require.True(t, c.IsEmpty())
}

func TestCanvas_AddStroke(t *testing.T) {
	c := NewCanvas(200, 100, WithPen(4, color.Black))

	require.ErrorIs(t, c.AddStroke(nil), model.ErrInvalidStroke)
	require.True(t, c.IsEmpty())

	require.NoError(t, c.AddStroke(Stroke{{X: 20, Y: 50}, {X: 180, Y: 50}}))
	require.False(t, c.IsEmpty())

	raw, err := c.Export()
	require.NoError(t, err)
	require.Equal(t, model.OriginDrawing, raw.Origin)
	require.Equal(t, 200, raw.Width())
	require.Equal(t, 100, raw.Height())

	require.Greater(t, inkAt(t, raw, 100, 50), uint32(200), "stroke body must be inked")
	require.Zero(t, inkAt(t, raw, 100, 10), "background must stay transparent")
}

func TestCanvas_CrossingStrokesDoNotCancel(t *testing.T) {
	c := NewCanvas(100, 100, WithPen(6, nil))

	// зигзаг: сегменты в разных направлениях перекрываются в узлах
	require.NoError(t, c.AddStroke(Stroke{{X: 10, Y: 10}, {X: 90, Y: 90}, {X: 10, Y: 90}, {X: 90, Y: 10}}))

	raw, err := c.Export()
	require.NoError(t, err)
	require.Greater(t, inkAt(t, raw, 50, 50), uint32(200))
	require.Greater(t, inkAt(t, raw, 90, 90), uint32(200))
}

func TestCanvas_SinglePointDot(t *testing.T) {
	c := NewCanvas(50, 50, WithPen(8, nil))
	require.NoError(t, c.AddStroke(Stroke{{X: 25, Y: 25}}))

	raw, err := c.Export()
	require.NoError(t, err)
	require.Greater(t, inkAt(t, raw, 25, 25), uint32(200))
}

func TestCanvas_OutOfBoundsClamped(t *testing.T) {
	c := NewCanvas(50, 50)
	require.NoError(t, c.AddStroke(Stroke{{X: -100, Y: 25}, {X: 500, Y: 25}}))
	require.False(t, c.IsEmpty())
}

func TestCanvas_Clear(t *testing.T) {
	c := NewCanvas(100, 40)
	require.NoError(t, c.AddStroke(Stroke{{X: 10, Y: 20}, {X: 90, Y: 20}}))

	c.Clear()
	require.True(t, c.IsEmpty())

	raw, err := c.Export()
	require.NoError(t, err)
	require.Zero(t, inkAt(t, raw, 50, 20))
}

func TestCanvas_ExportBaselineIsPNG(t *testing.T) {
	c := NewCanvas(120, 60)
	require.NoError(t, c.AddStroke(Stroke{{X: 10, Y: 10}, {X: 110, Y: 50}}))

	raw, err := c.Export()
	require.NoError(t, err)
	require.Equal(t, model.PNG, raw.Original.MIMEType)

	img, err := imaging.Decode(bytes.NewReader(raw.Original.Data))
	require.NoError(t, err)
	require.Equal(t, 120, img.Bounds().Dx())

	// экспорт - снимок, дальнейшие штрихи его не меняют
	require.NoError(t, c.AddStroke(Stroke{{X: 10, Y: 55}, {X: 110, Y: 55}}))
	require.Zero(t, inkAt(t, raw, 60, 55))
}
