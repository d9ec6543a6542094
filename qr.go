package main

import (
	"bytes"
	"strings"

	"github.com/mdp/qrterminal/v3"
)

// Use ascii blocks to form the QR Code
const BLACK_WHITE = "▄"
const BLACK_BLACK = " "
const WHITE_BLACK = "▀"
const WHITE_WHITE = "█"

// RenderQR encodes text as a QR code drawn with half blocks, one string per
// terminal line.
func RenderQR(text string) []string {
	var buf bytes.Buffer
	config := qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         &buf,
		HalfBlocks:     true,
		BlackChar:      BLACK_BLACK,
		WhiteBlackChar: WHITE_BLACK,
		WhiteChar:      WHITE_WHITE,
		BlackWhiteChar: BLACK_WHITE,
		QuietZone:      1,
	}
	qrterminal.GenerateWithConfig(text, config)

	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}
