package sh1106

// Command bytes understood by the controller.
const (
	cmdLowColumn    = 0x00
	cmdHighColumn   = 0x10
	cmdStartLine    = 0x40
	cmdContrast     = 0x81
	cmdSegRemap     = 0xA0
	cmdForceOn      = 0xA4
	cmdInvert       = 0xA6
	cmdDCDCMode     = 0xAD
	cmdDCDCSet      = 0x8A
	cmdDisplayPower = 0xAE
	cmdPage         = 0xB0
	cmdScanDir      = 0xC0

	// DefaultContrast is the controller's reset contrast.
	DefaultContrast = 0x80
)

func bit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// PageAddress selects the page subsequent pixel writes go to.
func PageAddress(page int) byte {
	return cmdPage | byte(page)&0x07
}

// ColumnAddress returns the low and high nibble commands for RAM column col.
func ColumnAddress(col int) []byte {
	return []byte{
		cmdLowColumn | byte(col)&0x0F,
		cmdHighColumn | byte(col>>4)&0x0F,
	}
}

// StartLine sets the RAM row mapped to the top of the panel.
func StartLine(line int) byte {
	return cmdStartLine | byte(line)&0x3F
}

// SegmentRemap mirrors the panel horizontally.
func SegmentRemap(remap bool) byte {
	return cmdSegRemap | bit(remap)
}

// ForceOn lights every pixel regardless of RAM when on is true.
func ForceOn(on bool) byte {
	return cmdForceOn | bit(on)
}

// Invert swaps lit and dark pixels for the whole panel.
func Invert(inv bool) byte {
	return cmdInvert | bit(inv)
}

// DisplayPower turns the panel on or off.
func DisplayPower(on bool) byte {
	return cmdDisplayPower | bit(on)
}

// DCDC enables or disables the internal charge pump.
func DCDC(on bool) []byte {
	return []byte{cmdDCDCMode, cmdDCDCSet | bit(on)}
}

// Contrast sets the segment drive current.
func Contrast(v uint8) []byte {
	return []byte{cmdContrast, v}
}

// ScanDirection flips the panel vertically when reversed.
func ScanDirection(reversed bool) byte {
	return cmdScanDir | bit(reversed)<<3
}
