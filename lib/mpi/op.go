package mpi

import (
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/lib/wire"
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// Op is a reduction operator
type Op int

const (
	Sum Op = iota
	Min
	Max
	Prod
)

// String returns the name of the operator
func (o Op) String() string {
	switch o {
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	case Prod:
		return "prod"
	default:
		return "unknown"
	}
}

// apply combines two values
func apply[T wire.Number](o Op, a, b T) T {
	switch o {
	case Sum:
		return a + b
	case Min:
		return min(a, b)
	case Max:
		return max(a, b)
	default:
		return a * b
	}
}

// combiner returns the function combining two encoded vectors element wise
func combiner[T wire.Number](o Op, codec wire.Codec[T]) (fabric.CombineFunc, error) {
	if o < Sum || o > Prod {
		return nil, common.NewError(common.RetCInvalidOp, "invalid reduction operator %d", int(o))
	}

	return func(acc, in []byte) ([]byte, error) {
		n := codec.Count(len(acc))
		if codec.Count(len(in)) != n {
			return nil, common.NewError(common.RetCCountMismatch,
				"reduction of %d and %d elements", n, codec.Count(len(in)))
		}
		a := make([]T, n)
		b := make([]T, n)
		if err := codec.Decode(acc, a); err != nil {
			return nil, err
		}
		if err := codec.Decode(in, b); err != nil {
			return nil, err
		}
		for i := range a {
			a[i] = apply(o, a[i], b[i])
		}
		return codec.Append(acc[:0], a), nil
	}, nil
}
