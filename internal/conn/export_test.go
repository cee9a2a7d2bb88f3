package conn

// SetNextForTest forces the in-flight table's next-allocation counter,
// letting conn_test exercise the 2^32-1 wrap boundary without four
// billion Allocate calls.
func (f *InFlight) SetNextForTest(n uint32) {
	f.mu.Lock()
	f.next = n
	f.mu.Unlock()
}
