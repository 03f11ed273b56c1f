// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package envelope

import (
	"errors"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
)

// CodecVersion is the current envelope wire version
const CodecVersion = 0

// Codec is the codec for sealed content envelopes
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()

	Codec = codec.NewDefaultManager()
	err := errors.Join(
		c.RegisterType(&Sealed{}),
		Codec.RegisterCodec(CodecVersion, c),
	)
	if err != nil {
		panic(err)
	}
}
