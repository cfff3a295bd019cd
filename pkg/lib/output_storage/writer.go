package output_storage

// Write implements io.Writer. It appends a copy of p, since callers such
// as os/exec reuse their buffer after Write returns.
//
// A nil receiver discards the data and reports success.
func (s *OutputStorage) Write(p []byte) (int, error) {
	if s == nil {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.Append(append([]byte(nil), p...))

	return len(p), nil
}
