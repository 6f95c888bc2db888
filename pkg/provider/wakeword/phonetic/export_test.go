package phonetic

// WaitScoring blocks until no scorer goroutine is running.
func (s *Spotter) WaitScoring() { s.wg.Wait() }
