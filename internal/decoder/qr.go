package decoder

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// FrameDecoder extracts a payload from one captured frame.
type FrameDecoder interface {
	Decode(img image.Image) (text string, ok bool, err error)
}

// QRDecoder decodes QR codes with gozxing.
type QRDecoder struct {
	TryHarder bool
}

func (d QRDecoder) Decode(img image.Image) (string, bool, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, err
	}

	var hints map[gozxing.DecodeHintType]interface{}
	if d.TryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}

	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		// not found, checksum and format failures mean "no code in this frame"
		var re gozxing.ReaderException
		if errors.As(err, &re) {
			return "", false, nil
		}
		return "", false, err
	}
	return res.GetText(), true, nil
}
