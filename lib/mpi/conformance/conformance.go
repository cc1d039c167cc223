package conformance

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/mpi"
	"github.com/ValentinKolb/dMPI/lib/wire"
	"slices"
	"time"
	"unsafe"
)

// Check is one property every world must satisfy. Run is called by every rank
// of the communicator at the same time and returns a description of the first
// violation.
type Check struct {
	Name string
	Run  func(c mpi.Comm) error
}

// Result is the outcome of a check at one rank
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Checks returns every check in the order they must be run
func Checks() []Check {
	return []Check{
		{"RankSize", checkRankSize},
		{"AllreduceScalar", checkAllreduceScalar},
		{"AllreduceVector", checkAllreduceVector},
		{"Reduce", checkReduce},
		{"Broadcast", checkBroadcast},
		{"BroadcastSlice", checkBroadcastSlice},
		{"SendRecv", checkSendRecv},
		{"SendRecvSlice", checkSendRecvSlice},
		{"NonBlocking", checkNonBlocking},
		{"Wildcards", checkWildcards},
		{"Gather", checkGather},
		{"Scatter", checkScatter},
		{"Alltoall", checkAlltoall},
		{"CompositeType", checkCompositeType},
		{"Self", checkSelf},
		{"Barrier", checkBarrier},
	}
}

// Run runs every check and returns the results. All ranks of c must call Run
// with the same checks.
func Run(c mpi.Comm, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		start := time.Now()
		err := check.Run(c)
		results = append(results, Result{Name: check.Name, Err: err, Duration: time.Since(start)})
	}
	return results
}

// --------------------------------------------------------------------------
// Checks
// --------------------------------------------------------------------------

// Tags of the point-to-point checks, so a failing check can not feed the next one
const (
	tagScalar = iota + 100
	tagScalar64
	tagSlice
	tagNonBlocking
	tagWildcard
)

func checkRankSize(c mpi.Comm) error {
	if c.Size() < 1 {
		return fmt.Errorf("size() = %d", c.Size())
	}
	if c.Rank() < 0 || c.Rank() >= c.Size() {
		return fmt.Errorf("rank() = %d outside [0, %d)", c.Rank(), c.Size())
	}
	n, err := mpi.Allreduce(c, 1, mpi.Sum)
	if err != nil {
		return err
	}
	if n != c.Size() {
		return fmt.Errorf("%d ranks took part, size() = %d", n, c.Size())
	}
	return nil
}

func checkAllreduceScalar(c mpi.Comm) error {
	n := c.Size()
	cases := []struct {
		name  string
		value int
		op    mpi.Op
		want  int
	}{
		{"all_reduce(1, sum)", 1, mpi.Sum, n},
		{"all_reduce(1, prod)", 1, mpi.Prod, 1},
		{"all_reduce(rank, max)", c.Rank(), mpi.Max, n - 1},
		{"all_reduce(rank, min)", c.Rank(), mpi.Min, 0},
	}
	for _, tc := range cases {
		got, err := mpi.Allreduce(c, tc.value, tc.op)
		if err != nil {
			return fmt.Errorf("%s: %w", tc.name, err)
		}
		if got != tc.want {
			return fmt.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}

	// Floating point
	f, err := mpi.Allreduce(c, 0.5, mpi.Sum)
	if err != nil {
		return err
	}
	if f != 0.5*float64(n) {
		return fmt.Errorf("all_reduce(0.5, sum) = %v, want %v", f, 0.5*float64(n))
	}
	return nil
}

func checkAllreduceVector(c mpi.Comm) error {
	n := c.Size()
	rank := int64(c.Rank())
	vec := []int64{1, rank, 2 * rank}

	for _, op := range []mpi.Op{mpi.Sum, mpi.Min, mpi.Max, mpi.Prod} {
		got, err := mpi.AllreduceSlice(c, vec, op)
		if err != nil {
			return fmt.Errorf("all_reduce(vector, %s): %w", op, err)
		}
		for i := range vec {
			// Every element must match the scalar reduction of that element
			scalar, err := mpi.Allreduce(c, vec[i], op)
			if err != nil {
				return err
			}
			if got[i] != scalar {
				return fmt.Errorf("all_reduce(vector, %s)[%d] = %d, scalar reduction gives %d", op, i, got[i], scalar)
			}
		}
	}

	got, err := mpi.AllreduceSlice(c, vec, mpi.Sum)
	if err != nil {
		return err
	}
	sumRanks := int64(n * (n - 1) / 2)
	want := []int64{int64(n), sumRanks, 2 * sumRanks}
	if !slices.Equal(got, want) {
		return fmt.Errorf("all_reduce(vector, sum) = %v, want %v", got, want)
	}
	return nil
}

func checkReduce(c mpi.Comm) error {
	root := c.Size() - 1
	got, err := mpi.Reduce(c, c.Rank()+1, mpi.Sum, root)
	if err != nil {
		return err
	}
	// Only the result at root is defined
	if want := c.Size() * (c.Size() + 1) / 2; c.Rank() == root && got != want {
		return fmt.Errorf("reduce(rank+1, sum) at root = %d, want %d", got, want)
	}

	vec, err := mpi.ReduceSlice(c, []float64{1, float64(c.Rank())}, mpi.Max, 0)
	if err != nil {
		return err
	}
	if c.Rank() == 0 && !slices.Equal(vec, []float64{1, float64(c.Size() - 1)}) {
		return fmt.Errorf("reduce(vector, max) at root = %v", vec)
	}
	return nil
}

func checkBroadcast(c mpi.Comm) error {
	for _, v := range []int{10, 20} {
		in := -1
		if c.Rank() == 0 {
			in = v
		}
		got, err := mpi.Bcast(c, in, 0)
		if err != nil {
			return err
		}
		if got != v {
			return fmt.Errorf("broadcast(%d) = %d", v, got)
		}
	}

	// Other primitives and a root other than 0
	root := c.Size() - 1
	b, err := mpi.Bcast(c, c.Rank() == root, root)
	if err != nil {
		return err
	}
	if !b {
		return fmt.Errorf("broadcast(true) = false")
	}
	z, err := mpi.Bcast(c, complex(float64(c.Rank()), 1), root)
	if err != nil {
		return err
	}
	if z != complex(float64(root), 1) {
		return fmt.Errorf("broadcast(complex) = %v", z)
	}
	return nil
}

func checkBroadcastSlice(c mpi.Comm) error {
	var in []uint16
	want := []uint16{3, 1, 4, 1, 5, 9, 2, 6}
	if c.Rank() == 0 {
		in = want
	}
	got, err := mpi.BcastSlice(c, in, 0)
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("broadcast(vector) = %v, want %v", got, want)
	}
	return nil
}

func checkSendRecv(c mpi.Comm) error {
	if c.Size() < 2 {
		return nil
	}
	switch c.Rank() {
	case 0:
		if err := mpi.Send(c, int32(15), 1, tagScalar); err != nil {
			return err
		}
		return mpi.Send(c, int64(15), 1, tagScalar64)
	case 1:
		v32, _, err := mpi.Recv[int32](c, 0, tagScalar)
		if err != nil {
			return err
		}
		if v32 != 15 {
			return fmt.Errorf("received int32 %d, want 15", v32)
		}
		v64, status, err := mpi.Recv[int64](c, 0, tagScalar64)
		if err != nil {
			return err
		}
		if v64 != 15 || status.Source != 0 || status.Tag != tagScalar64 {
			return fmt.Errorf("received int64 %d with %+v", v64, status)
		}
	}
	return nil
}

func checkSendRecvSlice(c mpi.Comm) error {
	if c.Size() < 2 {
		return nil
	}
	want := []int{0, 1, 2, 3, 4}
	switch c.Rank() {
	case 0:
		return mpi.SendSlice(c, want, 1, tagSlice)
	case 1:
		got, status, err := mpi.RecvSlice[int](c, 0, tagSlice)
		if err != nil {
			return err
		}
		if !slices.Equal(got, want) || status.Count != len(want) {
			return fmt.Errorf("received %v (%d elements), want %v", got, status.Count, want)
		}
	}
	return nil
}

func checkNonBlocking(c mpi.Comm) error {
	if c.Size() < 2 {
		return nil
	}
	switch c.Rank() {
	case 0:
		buf := make([]float64, 10)
		for i := range buf {
			buf[i] = float64(i) * 1.5
		}
		req := mpi.IsendSlice(c, buf, 1, tagNonBlocking)
		if _, err := req.Wait(); err != nil {
			return err
		}
		// The buffer belongs to the caller again
		returned := req.Result()
		for i := range returned {
			returned[i] = -1
		}
	case 1:
		req := mpi.IrecvSlice[float64](c, 0, tagNonBlocking)
		status, err := req.Wait()
		if err != nil {
			return err
		}
		got := req.Result()
		if status.Count != 10 || len(got) != 10 {
			return fmt.Errorf("received %d elements, want 10", len(got))
		}
		for i, v := range got {
			if v != float64(i)*1.5 {
				return fmt.Errorf("element %d = %v, want %v", i, v, float64(i)*1.5)
			}
		}
		if _, err := req.Wait(); err == nil {
			return fmt.Errorf("second wait on a request succeeded")
		}
	}
	return nil
}

func checkWildcards(c mpi.Comm) error {
	if c.Rank() != 0 {
		return mpi.Send(c, uint8(c.Rank()), 0, tagWildcard)
	}

	seen := make([]bool, c.Size())
	seen[0] = true
	for i := 1; i < c.Size(); i++ {
		status, err := mpi.Probe(c, mpi.AnySource, mpi.AnyTag)
		if err != nil {
			return err
		}
		v, recvStatus, err := mpi.Recv[uint8](c, status.Source, status.Tag)
		if err != nil {
			return err
		}
		if int(v) != recvStatus.Source || recvStatus.Tag != tagWildcard {
			return fmt.Errorf("received %d with %+v", v, recvStatus)
		}
		seen[v] = true
	}
	if slices.Contains(seen, false) {
		return fmt.Errorf("not every rank was received: %v", seen)
	}
	return nil
}

func checkGather(c mpi.Comm) error {
	got, err := mpi.GatherSlice(c, []int{1, c.Rank()}, 0)
	if err != nil {
		return err
	}
	if c.Rank() != 0 {
		return nil
	}
	want := make([]int, 0, 2*c.Size())
	for r := 0; r < c.Size(); r++ {
		want = append(want, 1, r)
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("gather({1, rank}) = %v, want %v", got, want)
	}
	return nil
}

func checkScatter(c mpi.Comm) error {
	var in []int
	if c.Rank() == 0 {
		for r := 0; r < c.Size(); r++ {
			in = append(in, 2*(r+1))
		}
	}
	got, err := mpi.Scatter(c, in, 0)
	if err != nil {
		return err
	}
	if want := 2 * (c.Rank() + 1); got != want {
		return fmt.Errorf("scatter gave %d, want %d", got, want)
	}

	// Gather of the scattered values restores the input
	back, err := mpi.Gather(c, got, 0)
	if err != nil {
		return err
	}
	if c.Rank() == 0 && !slices.Equal(back, in) {
		return fmt.Errorf("gather(scatter(%v)) = %v", in, back)
	}
	return nil
}

func checkAlltoall(c mpi.Comm) error {
	size := c.Size()
	vals := make([]int32, 2*size)
	for r := 0; r < size; r++ {
		vals[2*r] = int32(c.Rank())
		vals[2*r+1] = int32(r)
	}
	got, err := mpi.AlltoallSlice(c, vals)
	if err != nil {
		return err
	}
	for src := 0; src < size; src++ {
		if got[2*src] != int32(src) || got[2*src+1] != int32(c.Rank()) {
			return fmt.Errorf("all_to_all block of rank %d = %v", src, got[2*src:2*src+2])
		}
	}

	all, err := mpi.Alltoall(c, c.Rank()*c.Rank())
	if err != nil {
		return err
	}
	for r, v := range all {
		if v != r*r {
			return fmt.Errorf("all_to_all(rank*rank)[%d] = %d", r, v)
		}
	}
	return nil
}

type particle struct {
	Pos    [3]float64
	Charge int32
	Alive  bool
}

func checkCompositeType(c mpi.Comm) error {
	var p particle
	b, err := wire.Struct[particle](
		[]int{3, 1, 1},
		[]uintptr{unsafe.Offsetof(p.Pos), unsafe.Offsetof(p.Charge), unsafe.Offsetof(p.Alive)},
		[]wire.Descriptor{wire.DescriptorFor[float64](), wire.DescriptorFor[int32](), wire.DescriptorFor[bool]()},
	)
	if err != nil {
		return err
	}
	typ, err := b.Commit(c)
	if err != nil {
		return err
	}
	if _, err := b.Commit(c); err == nil {
		return fmt.Errorf("second commit succeeded")
	}

	mine := particle{Pos: [3]float64{float64(c.Rank()), 1, 2}, Charge: int32(-c.Rank()), Alive: c.Rank()%2 == 0}
	all, err := mpi.GatherTyped(c, typ, []particle{mine}, 0)
	if err != nil {
		return err
	}
	if c.Rank() == 0 {
		for r, got := range all {
			want := particle{Pos: [3]float64{float64(r), 1, 2}, Charge: int32(-r), Alive: r%2 == 0}
			if got != want {
				return fmt.Errorf("gathered particle %d = %+v, want %+v", r, got, want)
			}
		}
	}

	back, err := mpi.BcastTyped(c, typ, all, 0)
	if err != nil {
		return err
	}
	if len(back) != c.Size() || back[c.Rank()] != mine {
		return fmt.Errorf("broadcast particles = %+v", back)
	}
	return nil
}

func checkSelf(c mpi.Comm) error {
	self := c.Env().Self()
	if self.Rank() != 0 || self.Size() != 1 {
		return fmt.Errorf("self has rank %d and size %d", self.Rank(), self.Size())
	}
	req := mpi.Isend(self, c.Rank(), 0, 1)
	v, _, err := mpi.Recv[int](self, 0, 1)
	if err != nil {
		return err
	}
	if _, err := req.Wait(); err != nil {
		return err
	}
	if v != c.Rank() {
		return fmt.Errorf("self message = %d, want %d", v, c.Rank())
	}
	sum, err := mpi.Allreduce(self, 7, mpi.Sum)
	if err != nil {
		return err
	}
	if sum != 7 {
		return fmt.Errorf("all_reduce over self = %d", sum)
	}
	return nil
}

func checkBarrier(c mpi.Comm) error {
	for i := 0; i < 3; i++ {
		if err := c.Barrier(); err != nil {
			return err
		}
	}
	return nil
}
