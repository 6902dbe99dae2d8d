package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	NanoidSize     = 32
	nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func NanoID() string {
	return NanoIDSize(NanoidSize)
}

func NanoIDSize(size int) string {
	if size == 0 {
		size = NanoidSize
	}

	return gonanoid.MustGenerate(nanoidAlphabet, size)
}

// ReportNumber renders the human readable report number RP{yyyy}{MM}{dd}{ss}.
func ReportNumber(t time.Time) string {
	return fmt.Sprintf("RP%04d%02d%02d%02d", t.Year(), int(t.Month()), t.Day(), t.Second())
}

// ReportNumberWithSuffix is used after a unique-index collision.
func ReportNumberWithSuffix(t time.Time) string {
	return ReportNumber(t) + "-" + gonanoid.MustGenerate(suffixAlphabet, 4)
}
