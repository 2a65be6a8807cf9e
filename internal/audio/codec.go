package audio

import (
	"gopkg.in/hraban/opus.v2"
)

// Opus tuning. 32 kbps VoIP-profile mono with DTX and in-band FEC.
const (
	opusBitrate = 32000

	// MaxPacketBytes is the largest encoded packet the encoder may
	// produce (RFC 6716 ceiling); encode buffers are sized to it once.
	MaxPacketBytes = 1275
)

// Encoder turns one PCM frame into an encoded packet. Encode writes into
// buf and returns the number of bytes produced.
type Encoder interface {
	Encode(pcm []int16, buf []byte) (int, error)
}

// Decoder turns an encoded packet back into PCM. Decode fills pcm and
// returns the number of samples produced.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Codec constructs encoder/decoder instances. Decoders are stateful, so
// the playback path creates one per remote sender.
type Codec interface {
	NewEncoder() (Encoder, error)
	NewDecoder() (Decoder, error)
}

// OpusCodec is the production Codec, fixed at the pipeline's 48 kHz mono
// parameters.
type OpusCodec struct{}

func (OpusCodec) NewEncoder() (Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		return nil, err
	}
	if err := enc.SetDTX(true); err != nil {
		return nil, err
	}
	if err := enc.SetInBandFEC(true); err != nil {
		return nil, err
	}
	return enc, nil
}

func (OpusCodec) NewDecoder() (Decoder, error) {
	return opus.NewDecoder(SampleRate, Channels)
}
