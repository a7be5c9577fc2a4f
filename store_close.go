package brainy

import "context"

// Close stops the background timer loop, flushes final statistics, and
// releases the storage backend if it holds an open handle (sqlite does;
// memory/filesystem/object-store backends are no-ops here).
func (s *Store) Close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if !s.mode.Frozen() {
		if err := s.flushStatistics(ctx); err != nil {
			s.logger.Warn("final statistics flush failed", "error", err)
		}
	}

	if closer, ok := s.adapter.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return wrapErr("close", KindStorageUnavailable, "", err)
		}
	}
	return nil
}
