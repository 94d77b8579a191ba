package process

import (
	"errors"
	"fmt"
	"time"
)

// terminatePollInterval is how often teardown re-checks a child during the
// grace period.
const terminatePollInterval = 5 * time.Millisecond

// teardown brings the child down and releases everything exactly once.
func (s *handleState) teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if !s.exited {
		s.terminateLocked()
	}
	s.closed = true

	err := s.closeEndpointsLocked()
	if rerr := s.proc.release(); rerr != nil {
		err = errors.Join(err, fmt.Errorf("release process: %w", rerr))
	}
	s.scratch = nil
	return err
}

// terminateLocked sends SIGTERM, waits up to the grace period, then kills
// and reaps.
func (s *handleState) terminateLocked() {
	if _, exited, _ := s.pollLocked(); exited {
		return
	}

	s.logger.Debugf("Terminating process")
	if err := s.proc.signal(SignalTerm); err != nil {
		s.logger.Debugf("SIGTERM failed: %s", err)
	}

	deadline := time.Now().Add(s.grace)
	for {
		if _, exited, _ := s.pollLocked(); exited {
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		time.Sleep(min(remaining, terminatePollInterval))
	}

	s.logger.Debugf("Process ignored SIGTERM for %s, killing", s.grace)
	if err := s.proc.kill(); err != nil {
		s.logger.Warningf("Kill failed: %s", err)
	}

	code, _, err := s.proc.wait(true)
	if err != nil {
		s.logger.Warningf("Reap failed: %s", err)
		s.markExited(-1)
		return
	}
	s.markExited(code)
}

// closeEndpointsLocked closes every parent end still held. In POSIX pty
// mode stdin and stdout share the master, which is closed once through
// stdout.
func (s *handleState) closeEndpointsLocked() error {
	var errs []error
	closeEndpoint := func(ep endpoint, name string) {
		if err := ep.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	if s.stdin != nil && s.stdin != s.stdout {
		closeEndpoint(s.stdin, "stdin")
	}
	if s.stdout != nil {
		closeEndpoint(s.stdout, "stdout")
	}
	if s.stderr != nil {
		closeEndpoint(s.stderr, "stderr")
	}
	if s.term != nil {
		if err := s.term.close(); err != nil {
			errs = append(errs, fmt.Errorf("close pty: %w", err))
		}
	}

	s.stdin, s.stdout, s.stderr, s.term = nil, nil, nil, nil
	s.stdinOpen, s.stdoutOpen, s.stderrOpen = false, false, false
	return errors.Join(errs...)
}
