package serializer

import (
	"bytes"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
	"Zstd(Binary)": func() IRPCSerializer {
		s, err := NewCompressedSerializer(NewBinarySerializer(), 64)
		if err != nil {
			panic(err)
		}
		return s
	},
}

// testEnvelopes creates a set of test envelopes with different fields filled
func testEnvelopes() []common.Envelope {
	return []common.Envelope{
		// Zero-sized data frame
		{Kind: common.FrameTData, Context: 0, Src: 1, Dst: 0},

		// Point-to-point frame with a small payload
		{
			Kind:    common.FrameTData,
			Context: 0,
			Src:     0,
			Dst:     1,
			Tag:     7,
			Count:   2,
			Seq:     1,
			Payload: []byte{15, 0, 0, 0, 16, 0, 0, 0},
		},

		// Collective frame (collective bit set) with a large payload
		{
			Kind:    common.FrameTData,
			Context: 1<<31 | 0,
			Src:     3,
			Dst:     0,
			Tag:     2,
			Count:   512,
			Seq:     99,
			Payload: bytes.Repeat([]byte{1, 2, 3, 4}, 512),
		},

		// Abort frame with an exit code
		{Kind: common.FrameTAbort, Context: 0, Src: 2, Tag: 13},

		// Negative tag and self context
		{Kind: common.FrameTData, Context: 1, Tag: -1, Count: 1, Payload: []byte{1}},
	}
}

// TestSerializerRoundTrip tests that envelopes can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	envelopes := testEnvelopes()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, env := range envelopes {
				data, err := serializer.Serialize(env)
				if err != nil {
					t.Errorf("Failed to serialize envelope %d: %v", i, err)
					continue
				}

				var result common.Envelope
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize envelope %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(env, result) {
					t.Errorf("Envelope %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, env, result)
				}
			}
		})
	}
}

// TestDeserializeDoesNotAlias makes sure the payload is copied out of the input buffer
func TestDeserializeDoesNotAlias(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(common.Envelope{
				Kind:    common.FrameTData,
				Count:   4,
				Payload: []byte{1, 2, 3, 4},
			})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Envelope
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// Overwrite the input buffer, the result must not change
			for i := range data {
				data[i] = 0xff
			}

			if !bytes.Equal(result.Payload, []byte{1, 2, 3, 4}) {
				t.Errorf("Payload changed after reuse of the input buffer: %v", result.Payload)
			}
		})
	}
}

// TestCompressedSerializerThreshold checks that only large envelopes are compressed
func TestCompressedSerializerThreshold(t *testing.T) {
	serializer, err := NewCompressedSerializer(NewBinarySerializer(), 256)
	if err != nil {
		t.Fatalf("Failed to create serializer: %v", err)
	}

	small := common.Envelope{Kind: common.FrameTData, Count: 1, Payload: []byte{1}}
	data, err := serializer.Serialize(small)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if data[0] != markerPlain {
		t.Errorf("Expected small envelope to be sent uncompressed")
	}

	large := common.Envelope{Kind: common.FrameTData, Count: 4096, Payload: make([]byte, 4096)}
	data, err = serializer.Serialize(large)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if data[0] != markerZstd {
		t.Errorf("Expected large envelope to be compressed")
	}
	if len(data) >= 4096 {
		t.Errorf("Expected compressed envelope to be smaller than the payload, got %d bytes", len(data))
	}
}

// TestFactory tests the name based factory
func TestFactory(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob", ""} {
		if _, err := New(name); err != nil {
			t.Errorf("Expected serializer %q to exist: %v", name, err)
		}
	}

	if _, err := New("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}

	_, err := NewFromConfig(common.WorldConfig{Serializer: "binary", Compression: "lz4"})
	if err == nil {
		t.Errorf("Expected error for unknown compression")
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	header := make([]byte, binaryHeaderSize)
	header[0] = byte(common.FrameTData)

	withFlags := func(flags byte, tail ...byte) []byte {
		data := append([]byte{}, header...)
		data[1] = flags
		return append(data, tail...)
	}

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0, 0, 0},
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        withFlags(0),
			expectError: false,
		},
		{
			name:        "Missing count",
			data:        withFlags(hasCount, 0, 0),
			expectError: true,
		},
		{
			name:        "Invalid length for payload",
			data:        withFlags(hasPayload, 0, 0, 0, 10, 1, 2), // Claims 10 bytes but only 2 provided
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var env common.Envelope
			err := serializer.Deserialize(tc.data, &env)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
