package store

// FailAfterSlideInsert makes SaveSlide abort with err right after the slide
// row is written. Pass nil to restore normal behavior.
func FailAfterSlideInsert(s *Store, err error) {
	if err == nil {
		s.afterSlideInsert = nil
		return
	}
	s.afterSlideInsert = func() error { return err }
}

// ExecRaw runs a statement outside the Store API.
func ExecRaw(s *Store, query string, args ...any) error {
	_, err := s.db.Exec(query, args...)
	return err
}
