package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// hexUint32 is a pflag.Value for 32-bit addresses and sizes. It accepts any
// Go integer literal and prints as 0x%08x.
type hexUint32 uint32

var _ pflag.Value = (*hexUint32)(nil)

func newHexUint32(val uint32, p *uint32) *hexUint32 {
	*p = val
	return (*hexUint32)(p)
}

func (h *hexUint32) String() string {
	return fmt.Sprintf("0x%08x", uint32(*h))
}

func (h *hexUint32) Set(s string) error {
	v, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, 32)
	if err != nil {
		return fmt.Errorf("%q is not a 32-bit value", s)
	}
	*h = hexUint32(v)
	return nil
}

func (h *hexUint32) Type() string {
	return "hex32"
}

// hexUint32VarP defines a hex32 flag on fs
func hexUint32VarP(fs *pflag.FlagSet, p *uint32, name, shorthand string, value uint32, usage string) {
	fs.VarP(newHexUint32(value, p), name, shorthand, usage)
}
