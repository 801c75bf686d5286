package loaders

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var ErrNotSPIRV = errors.New("not a SPIR-V module")

// LoadSPIRV reads a compiled shader module from disk.
func LoadSPIRV(path string) ([]uint32, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader module %q", path)
	}
	code, err := BytesToBytecode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "shader module %q", path)
	}
	return code, nil
}

// BytesToBytecode converts a little endian SPIR-V binary into words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Mark(errors.Newf("size %d is not a positive multiple of 4", len(b)), ErrNotSPIRV)
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != SPIRVMagic {
		return nil, errors.Mark(errors.Newf("bad magic %#08x", byteCode[0]), ErrNotSPIRV)
	}
	return byteCode, nil
}
