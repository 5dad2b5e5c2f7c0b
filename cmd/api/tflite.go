//go:build tflite

package main

import "oncoscan/internal/inference/tflite"

func init() {
	engineOpener = tflite.Opener
}
