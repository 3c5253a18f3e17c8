package tts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	opus "gopkg.in/hraban/opus.v2"
)

// opusSampleRate is fixed by the codec: libopusfile always decodes at 48kHz.
const opusSampleRate = 48000

// decodeOggOpus decodes an Ogg/Opus container into little-endian PCM16.
func decodeOggOpus(data []byte) ([]byte, AudioFormat, error) {
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, AudioFormat{}, fmt.Errorf("open opus stream: %w", err)
	}
	defer stream.Close()

	var out bytes.Buffer
	buf := make([]int16, 4800)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			for _, s := range buf[:n] {
				var b [2]byte
				binary.LittleEndian.PutUint16(b[:], uint16(s))
				out.Write(b[:])
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, AudioFormat{}, fmt.Errorf("decode opus: %w", err)
		}
	}

	format := AudioFormat{
		Encoding:   EncodingPCM48,
		SampleRate: opusSampleRate,
		Channels:   1,
		BitDepth:   16,
	}
	return out.Bytes(), format, nil
}
