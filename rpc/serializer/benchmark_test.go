package serializer

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
	"testing"
)

// benchmarkEnvelopes returns a set of envelopes for targeted benchmarking
func benchmarkEnvelopes() map[string]common.Envelope {
	return map[string]common.Envelope{
		"Empty": {
			Kind: common.FrameTData,
		},
		"Scalar": {
			Kind:    common.FrameTData,
			Tag:     1,
			Count:   1,
			Payload: make([]byte, 8),
		},
		"Vector1KB": {
			Kind:    common.FrameTData,
			Tag:     1,
			Count:   128,
			Payload: make([]byte, 1024),
		},
		"Vector64KB": {
			Kind:    common.FrameTData,
			Tag:     1,
			Count:   8192,
			Payload: make([]byte, 64*1024),
		},
	}
}

func BenchmarkSerializers(b *testing.B) {
	for serializerName, factory := range testSerializers {
		serializer := factory()

		for envName, env := range benchmarkEnvelopes() {
			b.Run(serializerName+"/"+envName, func(b *testing.B) {
				data, err := serializer.Serialize(env)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes/frame")
				b.ResetTimer()

				var result common.Envelope
				for i := 0; i < b.N; i++ {
					data, _ = serializer.Serialize(env)
					_ = serializer.Deserialize(data, &result)
				}
			})
		}
	}
}
