package pb

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName overrides grpc's default "proto" content-subtype. Registering
// under that name means every client/server in this process that doesn't
// explicitly pick a codec gets this one — fine here since JobService is
// the only gRPC service the job submission path uses.
const codecName = "proto"

// gobCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/gob. A real protoc-gen-go pipeline would emit descriptor-driven
// reflection code instead; gob is the pragmatic stand-in since wire
// compatibility with any specific existing binary is explicitly out of
// scope.
type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("pb: gob marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("pb: gob unmarshal: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
