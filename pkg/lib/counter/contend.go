package counter

import "sync"

// RunContended starts pairs of goroutines, one incrementing and one
// decrementing iterations times each, releases them together and returns
// the final value. With a guarded counter the result always equals the
// value before the call.
func RunContended(c *Counter, pairs, iterations int) int {
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < iterations; j++ {
				c.Increment()
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < iterations; j++ {
				c.Decrement()
			}
		}()
	}
	close(start)
	wg.Wait()

	return c.Value()
}
